package laposte

import (
	"context"
	"fmt"
)

// APIClient defines the La Poste Suivi v2 operations.
type APIClient interface {
	// GetShipment fetches the tracking document of a parcel.
	GetShipment(ctx context.Context, apiKey, idShip string) (*TrackingResponse, error)

	// Probe issues a tracking request for a dummy parcel and returns the
	// HTTP status, which tells whether the key is accepted.
	Probe(ctx context.Context, apiKey string) (int, error)
}

// ============================================================================
// API Response Types (match the Suivi v2 JSON structure)
// ============================================================================

// TrackingResponse is the body of GET /suivi/v2/idships/{id}.
type TrackingResponse struct {
	Lang          string    `json:"lang"`
	Scope         string    `json:"scope"`
	ReturnCode    int       `json:"returnCode"`
	ReturnMessage string    `json:"returnMessage"`
	Shipment      *Shipment `json:"shipment"`
}

// Shipment is the tracked parcel.
type Shipment struct {
	IDShip       string          `json:"idShip"`
	Holder       int             `json:"holder"`
	Product      string          `json:"product"`
	IsFinal      bool            `json:"isFinal"`
	EntryDate    string          `json:"entryDate,omitempty"`
	DeliveryDate string          `json:"deliveryDate,omitempty"`
	Timeline     []TimelineEntry `json:"timeline,omitempty"`
	Event        []Event         `json:"event,omitempty"`
}

// TimelineEntry is a milestone. Type runs from 1 (picked up) to 5
// (returned); Status reports whether the milestone is reached.
type TimelineEntry struct {
	ID         int    `json:"id,omitempty"`
	ShortLabel string `json:"shortLabel"`
	LongLabel  string `json:"longLabel"`
	Date       string `json:"date,omitempty"`
	Country    string `json:"country,omitempty"`
	Status     bool   `json:"status"`
	Type       int    `json:"type"`
}

// Event is an entry of the flat event log.
type Event struct {
	Date  string `json:"date"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

// APIError is a returnCode other than 200 or 207.
type APIError struct {
	ReturnCode    int
	ReturnMessage string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.ReturnMessage, e.ReturnCode)
}
