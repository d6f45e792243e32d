// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
	"fmt"
)

// Shipper defines the interface that all shipping carriers must implement.
// Every method is a single round trip against the carrier; implementations
// keep no state between calls.
type Shipper interface {
	// Carrier returns the carrier identifier.
	Carrier() Carrier

	// GenerateLabel creates a shipment and returns its label.
	GenerateLabel(ctx context.Context, creds Credentials, req *LabelRequest) (*LabelResult, error)

	// TrackShipment returns the normalized tracking state of a parcel.
	TrackShipment(ctx context.Context, creds Credentials, trackingNumber string) (*TrackingResult, error)

	// SearchRelayPoints lists pickup points near a location, carrier-ranked.
	SearchRelayPoints(ctx context.Context, creds Credentials, q *RelayQuery) ([]RelayPoint, error)

	// TestCredentials checks that the carrier accepts the credentials.
	// It returns an error wrapping ErrAuthenticationFailed when they are refused.
	TestCredentials(ctx context.Context, creds Credentials) error
}

// Operation names used in logs, metrics and unsupported-operation errors.
const (
	OpGenerateLabel     = "generate_label"
	OpTrackShipment     = "track_shipment"
	OpSearchRelayPoints = "search_relay_points"
	OpTestCredentials   = "test_credentials"
)

// Unsupported returns the error carriers give for operations they do not offer.
func Unsupported(c Carrier, op string) error {
	return fmt.Errorf("%w: %s does not support %s", ErrUnsupportedOperation, c, op)
}
