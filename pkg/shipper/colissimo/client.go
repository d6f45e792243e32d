// Package colissimo provides integration with the Colissimo label web service.
package colissimo

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrier = shipper.CarrierColissimo

// HomeCountry is the country of the contract; parcels staying in it use the
// domestic product.
const HomeCountry = "FR"

// Product codes.
const (
	ProductDomestic      = "DOM"  // domicile sans signature
	ProductEuropeSigned  = "DOS"  // Europe, domicile avec signature
	ProductInternational = "COLI" // international
)

// europeSigned lists the countries served by ProductEuropeSigned.
var europeSigned = map[string]bool{
	"BE": true, "LU": true, "NL": true, "DE": true, "IT": true,
	"ES": true, "PT": true, "AT": true, "IE": true,
}

const outputPrintingType = "PDF_10x15_300dpi"

var paris = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Config holds Colissimo configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	UseMock bool

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Client is the Colissimo adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a new Colissimo client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Colissimo client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    shipper.TracerOrNoop(tracer),
		now:       now,
	}
}

// Carrier returns the carrier identifier.
func (c *Client) Carrier() shipper.Carrier {
	return carrier
}

// GenerateLabel creates a label with Colissimo.
func (c *Client) GenerateLabel(ctx context.Context, creds shipper.Credentials, req *shipper.LabelRequest) (res *shipper.LabelResult, err error) {
	ctx, span := shipper.StartSpan(ctx, c.tracer, carrier, shipper.OpGenerateLabel)
	defer func() { shipper.EndSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	cc, err := shipper.CredentialsFor[shipper.ColissimoCredentials](carrier, creds)
	if err != nil {
		return nil, err
	}

	apiReq := c.buildLabelRequest(cc, req)
	c.logger.Ctx(ctx).Info("Generating Colissimo label",
		zap.String("product_code", apiReq.Letter.Service.ProductCode),
		zap.String("deposit_date", apiReq.Letter.Service.DepositDate),
		zap.String("recipient_country", req.Recipient.CountryCode),
		zap.String("order_reference", req.OrderReference),
	)

	apiResp, err := c.apiClient.GenerateLabel(ctx, apiReq)
	if err != nil {
		c.logger.Ctx(ctx).Error("Colissimo API error", zap.Error(err))
		return nil, toShipperError(err)
	}

	return &shipper.LabelResult{
		TrackingNumber: apiResp.ParcelNumber,
		Label:          apiResp.Label,
		TrackingURL:    shipper.TrackingURL(carrier, apiResp.ParcelNumber),
	}, nil
}

// TrackShipment is served by the La Poste tracking service.
func (c *Client) TrackShipment(ctx context.Context, creds shipper.Credentials, trackingNumber string) (*shipper.TrackingResult, error) {
	return nil, shipper.Unsupported(carrier, shipper.OpTrackShipment)
}

// SearchRelayPoints is not offered by Colissimo.
func (c *Client) SearchRelayPoints(ctx context.Context, creds shipper.Credentials, q *shipper.RelayQuery) ([]shipper.RelayPoint, error) {
	return nil, shipper.Unsupported(carrier, shipper.OpSearchRelayPoints)
}

// TestCredentials sends a dummy request to the check endpoint. The dummy is
// incomplete on purpose, so only authentication messages count.
func (c *Client) TestCredentials(ctx context.Context, creds shipper.Credentials) (err error) {
	ctx, span := shipper.StartSpan(ctx, c.tracer, carrier, shipper.OpTestCredentials)
	defer func() { shipper.EndSpan(span, err) }()

	cc, err := shipper.CredentialsFor[shipper.ColissimoCredentials](carrier, creds)
	if err != nil {
		return err
	}

	resp, err := c.apiClient.CheckGenerateLabel(ctx, c.probeRequest(cc))
	if err != nil {
		c.logger.Ctx(ctx).Error("Colissimo API error", zap.Error(err))
		return toShipperError(err)
	}

	for _, m := range ErrorMessages(resp.Messages) {
		if m.ID == "FIELD_REQUIRED" {
			continue
		}
		if isAuthenticationMessage(m.MessageContent) {
			return shipper.NewRejectedError(carrier, "AUTHENTICATION_FAILED", m.MessageContent).
				WithCause(shipper.ErrAuthenticationFailed)
		}
	}
	return nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

// ProductCode returns the product for a destination country.
func ProductCode(countryCode string) string {
	cc := strings.ToUpper(countryCode)
	switch {
	case cc == HomeCountry:
		return ProductDomestic
	case europeSigned[cc]:
		return ProductEuropeSigned
	}
	return ProductInternational
}

// DepositDate formats t as DD/MM/YYYY in the Paris calendar.
func DepositDate(t time.Time) string {
	return t.In(paris).Format("02/01/2006")
}

func (c *Client) buildLabelRequest(cc shipper.ColissimoCredentials, req *shipper.LabelRequest) *LabelRequest {
	service := Service{
		ProductCode: ProductCode(req.Recipient.CountryCode),
		DepositDate: DepositDate(c.now()),
		OrderNumber: req.OrderReference,
	}
	if req.DeclaredAmount != nil && *req.DeclaredAmount > 0 {
		cents := int64(math.Round(*req.DeclaredAmount * 100))
		service.TotalAmount = &cents
	}

	sender := partyToAPI(req.Sender)
	sender.CompanyName = req.Sender.Company
	sender.PhoneNumber = req.Sender.Phone

	addressee := partyToAPI(req.Recipient)
	addressee.MobileNumber = req.Recipient.Phone

	return &LabelRequest{
		ContractNumber: cc.ContractNumber,
		Password:       cc.Password,
		OutputFormat:   OutputFormat{OutputPrintingType: outputPrintingType},
		Letter: Letter{
			Service:   service,
			Parcel:    Parcel{Weight: req.WeightKG},
			Sender:    AddressBlock{Address: sender},
			Addressee: AddressBlock{Address: addressee},
		},
	}
}

func (c *Client) probeRequest(cc shipper.ColissimoCredentials) *LabelRequest {
	dummy := Address{LastName: "Test", FirstName: "Test", Line2: "1 rue test", CountryCode: "FR", City: "Paris", ZipCode: "75001"}
	return &LabelRequest{
		ContractNumber: cc.ContractNumber,
		Password:       cc.Password,
		OutputFormat:   OutputFormat{OutputPrintingType: outputPrintingType},
		Letter: Letter{
			Service:   Service{ProductCode: ProductDomestic, DepositDate: DepositDate(c.now())},
			Parcel:    Parcel{Weight: 1},
			Sender:    AddressBlock{Address: dummy},
			Addressee: AddressBlock{Address: dummy},
		},
	}
}

func partyToAPI(p shipper.Party) Address {
	first, last := splitName(p.Name)
	return Address{
		LastName:    last,
		FirstName:   first,
		Line2:       p.Street,
		CountryCode: p.CountryCode,
		City:        p.City,
		ZipCode:     p.PostalCode,
		Email:       p.Email,
	}
}

// splitName splits "Jean-Pierre de la Fontaine" into the words before the
// last space and the last word. A single word is the last name.
func splitName(name string) (first, last string) {
	name = strings.Join(strings.Fields(name), " ")
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

func isAuthenticationMessage(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "authentification") || strings.Contains(s, "authentication")
}

func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shipper.NewRejectedError(carrier, apiErr.Code(), apiErr.Error()).
			WithDetails(apiErr.contents()...)
	}
	return shipper.Classify(carrier, err)
}

// Ensure Client implements shipper.Shipper interface
var _ shipper.Shipper = (*Client)(nil)
