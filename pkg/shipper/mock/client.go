// Package mock provides an in-memory shipper for dispatcher and server tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper"
)

// Client is a mock shipper. Every operation succeeds with canned data unless
// the matching On* hook is set.
type Client struct {
	carrier shipper.Carrier

	OnGenerateLabel     func(ctx context.Context, creds shipper.Credentials, req *shipper.LabelRequest) (*shipper.LabelResult, error)
	OnTrackShipment     func(ctx context.Context, creds shipper.Credentials, trackingNumber string) (*shipper.TrackingResult, error)
	OnSearchRelayPoints func(ctx context.Context, creds shipper.Credentials, q *shipper.RelayQuery) ([]shipper.RelayPoint, error)
	OnTestCredentials   func(ctx context.Context, creds shipper.Credentials) error

	mu    sync.Mutex
	calls []string
	creds []shipper.Credentials
}

// New creates a new mock shipper for carrier c.
func New(c shipper.Carrier) *Client {
	return &Client{carrier: c}
}

// Carrier returns the carrier identifier.
func (c *Client) Carrier() shipper.Carrier {
	return c.carrier
}

// Calls returns the operations invoked so far, in order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// LastCredentials returns the credentials of the last call, if any.
func (c *Client) LastCredentials() shipper.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.creds) == 0 {
		return nil
	}
	return c.creds[len(c.creds)-1]
}

func (c *Client) record(op string, creds shipper.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, op)
	c.creds = append(c.creds, creds)
}

// GenerateLabel returns a mock label.
func (c *Client) GenerateLabel(ctx context.Context, creds shipper.Credentials, req *shipper.LabelRequest) (*shipper.LabelResult, error) {
	c.record(shipper.OpGenerateLabel, creds)
	if c.OnGenerateLabel != nil {
		return c.OnGenerateLabel(ctx, creds, req)
	}

	trackingNumber := fmt.Sprintf("MOCK%09d", time.Now().UnixNano()%1000000000)
	return &shipper.LabelResult{
		TrackingNumber: trackingNumber,
		Label:          []byte("%PDF-1.4 mock"),
		TrackingURL:    shipper.TrackingURL(c.carrier, trackingNumber),
	}, nil
}

// TrackShipment returns an in-transit parcel with a single event.
func (c *Client) TrackShipment(ctx context.Context, creds shipper.Credentials, trackingNumber string) (*shipper.TrackingResult, error) {
	c.record(shipper.OpTrackShipment, creds)
	if c.OnTrackShipment != nil {
		return c.OnTrackShipment(ctx, creds, trackingNumber)
	}

	return &shipper.TrackingResult{
		TrackingNumber: trackingNumber,
		Carrier:        c.carrier.DisplayName(),
		Status:         shipper.StatusInTransit,
		Events: []shipper.CarrierEvent{
			{Timestamp: time.Now().UTC().Truncate(time.Second), Description: "In transit", Location: "FR"},
		},
	}, nil
}

// SearchRelayPoints returns one relay point in the queried postal code.
func (c *Client) SearchRelayPoints(ctx context.Context, creds shipper.Credentials, q *shipper.RelayQuery) ([]shipper.RelayPoint, error) {
	c.record(shipper.OpSearchRelayPoints, creds)
	if c.OnSearchRelayPoints != nil {
		return c.OnSearchRelayPoints(ctx, creds, q)
	}

	return []shipper.RelayPoint{{
		ID:           "000001",
		Name:         "Mock relay",
		Address:      "1 rue de la Paix",
		City:         "Paris",
		PostalCode:   q.PostalCode,
		Country:      "FR",
		Latitude:     48.8698,
		Longitude:    2.3315,
		OpeningHours: []string{"Lundi: 09:00-18:00"},
	}}, nil
}

// TestCredentials accepts any credentials.
func (c *Client) TestCredentials(ctx context.Context, creds shipper.Credentials) error {
	c.record(shipper.OpTestCredentials, creds)
	if c.OnTestCredentials != nil {
		return c.OnTestCredentials(ctx, creds)
	}
	return nil
}

var _ shipper.Shipper = (*Client)(nil)
