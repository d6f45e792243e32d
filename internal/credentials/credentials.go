// Package credentials implements the credential resolvers the dispatcher
// reads carrier secrets from: the site configuration stored in Redis and the
// process environment.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/carrierbridge/pkg/shipper"
)

// Values is the flat set of carrier secrets, whatever their source.
type Values struct {
	ColissimoContractNumber string
	ColissimoPassword       string
	MondialRelayEnseigne    string
	MondialRelayPrivateKey  string
	LaPosteAPIKey           string
}

// For returns the credentials of carrier c. A carrier counts as configured
// only when every field it needs is set.
func (v Values) For(c shipper.Carrier) (shipper.Credentials, bool) {
	switch c {
	case shipper.CarrierColissimo:
		if v.ColissimoContractNumber != "" && v.ColissimoPassword != "" {
			return shipper.ColissimoCredentials{
				ContractNumber: v.ColissimoContractNumber,
				Password:       v.ColissimoPassword,
			}, true
		}
	case shipper.CarrierMondialRelay:
		if v.MondialRelayEnseigne != "" && v.MondialRelayPrivateKey != "" {
			return shipper.MondialRelayCredentials{
				Enseigne:   v.MondialRelayEnseigne,
				PrivateKey: v.MondialRelayPrivateKey,
			}, true
		}
	case shipper.CarrierLaPoste:
		if v.LaPosteAPIKey != "" {
			return shipper.LaPosteCredentials{APIKey: v.LaPosteAPIKey}, true
		}
	}
	return nil, false
}

func notFound(c shipper.Carrier) error {
	return fmt.Errorf("%w: %s", shipper.ErrCredentialsNotFound, c)
}

// Static serves credentials fixed at startup, typically from the environment.
type Static struct {
	values Values
}

// NewStatic creates a resolver over fixed values.
func NewStatic(v Values) *Static {
	return &Static{values: v}
}

// Resolve implements shipper.CredentialResolver.
func (s *Static) Resolve(ctx context.Context, c shipper.Carrier) (shipper.Credentials, error) {
	if creds, ok := s.values.For(c); ok {
		return creds, nil
	}
	return nil, notFound(c)
}

// Chain asks each resolver in turn. The first one holding credentials for the
// carrier wins; any error other than not-found stops the chain.
type Chain []shipper.CredentialResolver

// Resolve implements shipper.CredentialResolver.
func (ch Chain) Resolve(ctx context.Context, c shipper.Carrier) (shipper.Credentials, error) {
	for _, r := range ch {
		if r == nil {
			continue
		}
		creds, err := r.Resolve(ctx, c)
		switch {
		case err == nil && creds != nil:
			return creds, nil
		case err == nil, errors.Is(err, shipper.ErrCredentialsNotFound):
			continue
		default:
			return nil, err
		}
	}
	return nil, notFound(c)
}

var (
	_ shipper.CredentialResolver = (*Static)(nil)
	_ shipper.CredentialResolver = Chain(nil)
)
