package shipper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate upper-cases the country codes of the request and checks it before
// anything is sent to a carrier.
func (r *LabelRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty label request", ErrInvalidRequest)
	}
	r.Sender.CountryCode = normalizeCountry(r.Sender.CountryCode)
	r.Recipient.CountryCode = normalizeCountry(r.Recipient.CountryCode)
	return classify(validate.Struct(r))
}

// Validate upper-cases the country of the query and checks it before
// anything is sent to a carrier.
func (q *RelayQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: empty relay query", ErrInvalidRequest)
	}
	q.Country = normalizeCountry(q.Country)
	return classify(validate.Struct(q))
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	fe := verrs[0]
	msg := fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag())
	switch {
	case fe.StructField() == "WeightKG":
		return fmt.Errorf("%w: %s", ErrInvalidPackage, msg)
	case strings.Contains(fe.Namespace(), ".Sender.") || strings.Contains(fe.Namespace(), ".Recipient."):
		return fmt.Errorf("%w: %s", ErrInvalidAddress, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

func validateCredentials(c Carrier, creds any) error {
	err := validate.Struct(creds)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, len(verrs))
		for i, fe := range verrs {
			fields[i] = fe.Field()
		}
		return NewConfigError(c, "INVALID_CREDENTIALS",
			"missing "+strings.Join(fields, ", "))
	}
	return NewConfigError(c, "INVALID_CREDENTIALS", err.Error())
}
