package laposte

import (
	"context"
	"net/http"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetShipment func(ctx context.Context, apiKey, idShip string) (*TrackingResponse, error)
	OnProbe       func(ctx context.Context, apiKey string) (int, error)

	// LastAPIKey is the key sent by the last call.
	LastAPIKey string
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// GetShipment returns an in-transit mock parcel.
func (m *MockAPIClient) GetShipment(ctx context.Context, apiKey, idShip string) (*TrackingResponse, error) {
	m.LastAPIKey = apiKey
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{ReturnCode: 104, ReturnMessage: "Numéro de suivi inconnu"}
	}

	if m.OnGetShipment != nil {
		return m.OnGetShipment(ctx, apiKey, idShip)
	}

	now := time.Now().UTC().Truncate(time.Second)
	day := func(d int) string { return now.Add(time.Duration(d) * 24 * time.Hour).Format(time.RFC3339) }
	return &TrackingResponse{
		Lang:       "fr_FR",
		Scope:      "open",
		ReturnCode: http.StatusOK,
		Shipment: &Shipment{
			IDShip:  idShip,
			Product: "Colissimo",
			Timeline: []TimelineEntry{
				{ID: 1, ShortLabel: "Pris en charge", LongLabel: "Votre colis est pris en charge par La Poste", Date: day(-2), Country: "FR", Status: true, Type: 1},
				{ID: 2, ShortLabel: "En cours d'acheminement", LongLabel: "Votre colis est en cours d'acheminement", Date: day(-1), Country: "FR", Status: true, Type: 2},
				{ID: 3, ShortLabel: "En cours de livraison", Status: false, Type: 3},
				{ID: 4, ShortLabel: "Livré", Status: false, Type: 4},
			},
			Event: []Event{
				{Date: day(-1), Code: "ET1", Label: "Votre colis est en cours d'acheminement"},
				{Date: day(-2), Code: "PC1", Label: "Votre colis a été déposé"},
			},
		},
	}, nil
}

// Probe answers 404 for the dummy parcel, or 401 when errors are simulated.
func (m *MockAPIClient) Probe(ctx context.Context, apiKey string) (int, error) {
	m.LastAPIKey = apiKey
	if err := m.wait(ctx); err != nil {
		return 0, err
	}

	if m.SimulateErrors {
		return http.StatusUnauthorized, nil
	}

	if m.OnProbe != nil {
		return m.OnProbe(ctx, apiKey)
	}
	return http.StatusNotFound, nil
}

func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.SimulateLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ APIClient = (*MockAPIClient)(nil)
