package mondialrelay

import (
	"context"
	"fmt"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper/signing"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateLabel       func(ctx context.Context, fields signing.Fields) (*LabelResponse, error)
	OnSearchRelayPoints func(ctx context.Context, fields signing.Fields) (*RelaySearchResponse, error)

	// LastFields is the field list of the last call.
	LastFields signing.Fields
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// CreateLabel returns a mock expedition.
func (m *MockAPIClient) CreateLabel(ctx context.Context, fields signing.Fields) (*LabelResponse, error) {
	m.LastFields = fields
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Stat: "99", Description: StatDescription("99")}
	}

	if m.OnCreateLabel != nil {
		return m.OnCreateLabel(ctx, fields)
	}

	num := fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	return &LabelResponse{
		ExpeditionNum: num,
		LabelURL:      DefaultLabelURL + "/ww2/PDF/StickerMaker2.aspx?ens=MOCK&expedition=" + num,
	}, nil
}

// SearchRelayPoints returns two mock relay points.
func (m *MockAPIClient) SearchRelayPoints(ctx context.Context, fields signing.Fields) (*RelaySearchResponse, error) {
	m.LastFields = fields
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Stat: "99", Description: StatDescription("99")}
	}

	if m.OnSearchRelayPoints != nil {
		return m.OnSearchRelayPoints(ctx, fields)
	}

	cp, _ := fields.Get("CP")
	return &RelaySearchResponse{Points: []PointRelais{
		{
			Num: "020147", LgAdr1: "TABAC DE LA MAIRIE", LgAdr3: "2 PLACE DE LA MAIRIE",
			CP: cp, Ville: "PARIS", Pays: "FR",
			Latitude: "48,8606111", Longitude: "02,3376544", Distance: "350",
			Horaires: [7]string{
				"0900 1200 1400 1900", "0900 1200 1400 1900", "0900 1200 1400 1900",
				"0900 1200 1400 1900", "0900 1200 1400 1900", "0900 1230 0000 0000",
				"0000 0000 0000 0000",
			},
		},
		{
			Num: "020398", LgAdr1: "PRESSE DU MARCHE", LgAdr3: "15 RUE DU MARCHE",
			CP: cp, Ville: "PARIS", Pays: "FR",
			Latitude: "48,8620000", Longitude: "02,3400000", Distance: "780",
			Horaires: [7]string{
				"0730 1930 0000 0000", "0730 1930 0000 0000", "0730 1930 0000 0000",
				"0730 1930 0000 0000", "0730 1930 0000 0000", "0800 1300 0000 0000",
				"0000 0000 0000 0000",
			},
		},
	}}, nil
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
