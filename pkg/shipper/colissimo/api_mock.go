package colissimo

import (
	"context"
	"fmt"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGenerateLabel      func(ctx context.Context, req *LabelRequest) (*LabelResponse, error)
	OnCheckGenerateLabel func(ctx context.Context, req *LabelRequest) (*CheckResponse, error)

	// LastRequest is the last request received by either operation.
	LastRequest *LabelRequest
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// GenerateLabel returns a mock label.
func (m *MockAPIClient) GenerateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error) {
	m.LastRequest = req
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Messages: []Message{
			{ID: "30220", Type: "ERROR", MessageContent: "Simulated API error"},
		}}
	}

	if m.OnGenerateLabel != nil {
		return m.OnGenerateLabel(ctx, req)
	}

	return &LabelResponse{
		ParcelNumber: fmt.Sprintf("6A%09d", time.Now().UnixNano()%1000000000),
		Label:        []byte("%PDF-1.4\n% mock label\n%%EOF"),
		Messages:     []Message{{ID: "0", Type: "INFOS", MessageContent: "La requête a été traitée avec succès"}},
	}, nil
}

// CheckGenerateLabel returns no error messages by default.
func (m *MockAPIClient) CheckGenerateLabel(ctx context.Context, req *LabelRequest) (*CheckResponse, error) {
	m.LastRequest = req
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return &CheckResponse{Messages: []Message{
			{ID: "30000", Type: "ERROR", MessageContent: "Identifiant ou mot de passe incorrect - erreur d'authentification"},
		}}, nil
	}

	if m.OnCheckGenerateLabel != nil {
		return m.OnCheckGenerateLabel(ctx, req)
	}

	return &CheckResponse{}, nil
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

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
