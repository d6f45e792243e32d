package shipper

import (
	"context"
)

// Credentials is the per-carrier secret set. Implementations are the
// *Credentials structs below; each carries exactly what its carrier's
// authentication scheme needs.
type Credentials interface {
	Carrier() Carrier
	Validate() error
}

// CredentialResolver supplies credentials for a carrier. It returns an error
// wrapping ErrCredentialsNotFound when none are configured.
type CredentialResolver interface {
	Resolve(ctx context.Context, c Carrier) (Credentials, error)
}

// ColissimoCredentials authenticate label requests with a contract number.
type ColissimoCredentials struct {
	ContractNumber string `validate:"required"`
	Password       string `validate:"required"`
}

// Carrier implements Credentials.
func (ColissimoCredentials) Carrier() Carrier { return CarrierColissimo }

// Validate implements Credentials.
func (c ColissimoCredentials) Validate() error { return validateCredentials(CarrierColissimo, c) }

// MondialRelayCredentials sign requests with the enseigne private key.
type MondialRelayCredentials struct {
	Enseigne   string `validate:"required"`
	PrivateKey string `validate:"required"`
}

// Carrier implements Credentials.
func (MondialRelayCredentials) Carrier() Carrier { return CarrierMondialRelay }

// Validate implements Credentials.
func (c MondialRelayCredentials) Validate() error {
	return validateCredentials(CarrierMondialRelay, c)
}

// LaPosteCredentials hold the Okapi API key of the tracking service.
type LaPosteCredentials struct {
	APIKey string `validate:"required"`
}

// Carrier implements Credentials.
func (LaPosteCredentials) Carrier() Carrier { return CarrierLaPoste }

// Validate implements Credentials.
func (c LaPosteCredentials) Validate() error { return validateCredentials(CarrierLaPoste, c) }

// CredentialsFor asserts creds to the concrete type a carrier expects and
// validates it. A mismatch or a missing field is a configuration error.
func CredentialsFor[T Credentials](c Carrier, creds Credentials) (T, error) {
	var zero T
	if creds == nil {
		return zero, NewConfigError(c, "MISSING_CREDENTIALS", "no credentials configured").
			WithCause(ErrCredentialsNotFound)
	}
	typed, ok := creds.(T)
	if !ok {
		return zero, NewConfigError(c, "WRONG_CREDENTIALS",
			"credentials belong to "+string(creds.Carrier()))
	}
	if err := typed.Validate(); err != nil {
		return zero, err
	}
	return typed, nil
}
