package colissimo

import (
	"context"
	"strings"
)

// APIClient defines the Colissimo web service operations.
// The mock implementation backs unit tests; the HTTP implementation talks to
// the SLS REST service.
type APIClient interface {
	// GenerateLabel creates a label and returns the parcel number and PDF.
	GenerateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error)

	// CheckGenerateLabel validates a label request without creating a label.
	CheckGenerateLabel(ctx context.Context, req *LabelRequest) (*CheckResponse, error)
}

// ============================================================================
// API Request/Response Types (match the SLS REST JSON structure)
// ============================================================================

// LabelRequest is the generateLabel JSON document.
type LabelRequest struct {
	ContractNumber string       `json:"contractNumber"`
	Password       string       `json:"password"`
	OutputFormat   OutputFormat `json:"outputFormat"`
	Letter         Letter       `json:"letter"`
}

// OutputFormat selects the label layout.
type OutputFormat struct {
	X                  int    `json:"x"`
	Y                  int    `json:"y"`
	OutputPrintingType string `json:"outputPrintingType"`
}

// Letter groups the shipment sections.
type Letter struct {
	Service   Service      `json:"service"`
	Parcel    Parcel       `json:"parcel"`
	Sender    AddressBlock `json:"sender"`
	Addressee AddressBlock `json:"addressee"`
}

// Service carries the product and deposit information.
type Service struct {
	ProductCode string `json:"productCode"`
	DepositDate string `json:"depositDate"` // DD/MM/YYYY
	OrderNumber string `json:"orderNumber,omitempty"`
	TotalAmount *int64 `json:"totalAmount,omitempty"` // cents
}

// Parcel carries the weight in kilograms.
type Parcel struct {
	Weight float64 `json:"weight"`
}

// AddressBlock wraps an address.
type AddressBlock struct {
	Address Address `json:"address"`
}

// Address is a Colissimo postal address.
type Address struct {
	CompanyName  string `json:"companyName,omitempty"`
	LastName     string `json:"lastName"`
	FirstName    string `json:"firstName"`
	Line2        string `json:"line2"`
	CountryCode  string `json:"countryCode"`
	City         string `json:"city"`
	ZipCode      string `json:"zipCode"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Message is a service message. Type is "ERROR", "INFOS" or "WARNING".
type Message struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	MessageContent string `json:"messageContent"`
}

// LabelResponse is a successful label creation.
type LabelResponse struct {
	ParcelNumber string
	Label        []byte
	Messages     []Message
}

// CheckResponse holds the messages returned by checkGenerateLabel.
type CheckResponse struct {
	Messages []Message
}

// labelEnvelope is the JSON part of a generateLabel response.
type labelEnvelope struct {
	Messages        []Message `json:"messages"`
	LabelV2Response *struct {
		ParcelNumber        string `json:"parcelNumber"`
		ParcelNumberPartner string `json:"parcelNumberPartner,omitempty"`
		PDFURL              string `json:"pdfUrl,omitempty"`
	} `json:"labelV2Response,omitempty"`
}

func (e *labelEnvelope) parcelNumber() string {
	if e.LabelV2Response == nil {
		return ""
	}
	return strings.TrimSpace(e.LabelV2Response.ParcelNumber)
}

// APIError carries the ERROR messages of a rejected request.
type APIError struct {
	Messages []Message
}

func (e *APIError) Error() string {
	return strings.Join(e.contents(), ", ")
}

func (e *APIError) contents() []string {
	out := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		out[i] = m.MessageContent
	}
	return out
}

// Code returns the id of the first message.
func (e *APIError) Code() string {
	if len(e.Messages) == 0 || e.Messages[0].ID == "" {
		return "REJECTED"
	}
	return e.Messages[0].ID
}

// ErrorMessages returns the messages of type ERROR.
func ErrorMessages(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if strings.EqualFold(m.Type, "ERROR") {
			out = append(out, m)
		}
	}
	return out
}
