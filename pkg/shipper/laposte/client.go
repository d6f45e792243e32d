// Package laposte provides integration with the La Poste Suivi v2 tracking
// service. It tracks every parcel handled by La Poste, Colissimo included.
package laposte

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrier = shipper.CarrierLaPoste

// defaultProduct names the carrier when the shipment has no product.
const defaultProduct = "Colissimo"

// Config holds La Poste configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	UseMock bool
}

// Client is the La Poste tracking adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new La Poste client.
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

// NewWithAPIClient creates a new La Poste client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    shipper.TracerOrNoop(tracer),
	}
}

// Carrier returns the carrier identifier.
func (c *Client) Carrier() shipper.Carrier {
	return carrier
}

// GenerateLabel is not offered: La Poste labels are created through Colissimo.
func (c *Client) GenerateLabel(ctx context.Context, creds shipper.Credentials, req *shipper.LabelRequest) (*shipper.LabelResult, error) {
	return nil, shipper.Unsupported(carrier, shipper.OpGenerateLabel)
}

// TrackShipment fetches and normalizes the tracking state of a parcel.
func (c *Client) TrackShipment(ctx context.Context, creds shipper.Credentials, trackingNumber string) (res *shipper.TrackingResult, err error) {
	ctx, span := shipper.StartSpan(ctx, c.tracer, carrier, shipper.OpTrackShipment)
	defer func() { shipper.EndSpan(span, err) }()

	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: empty tracking number", shipper.ErrInvalidRequest)
	}
	lc, err := shipper.CredentialsFor[shipper.LaPosteCredentials](carrier, creds)
	if err != nil {
		return nil, err
	}

	c.logger.Ctx(ctx).Info("Tracking La Poste shipment",
		zap.String("tracking_number", trackingNumber),
	)

	apiResp, err := c.apiClient.GetShipment(ctx, lc.APIKey, trackingNumber)
	if err != nil {
		c.logger.Ctx(ctx).Error("La Poste API error", zap.Error(err))
		return nil, toShipperError(err)
	}

	return normalize(trackingNumber, apiResp.Shipment), nil
}

// SearchRelayPoints is not offered by this adapter.
func (c *Client) SearchRelayPoints(ctx context.Context, creds shipper.Credentials, q *shipper.RelayQuery) ([]shipper.RelayPoint, error) {
	return nil, shipper.Unsupported(carrier, shipper.OpSearchRelayPoints)
}

// TestCredentials requests a dummy parcel. Only 401 and 403 mean the key is
// refused; a 404 for the unknown parcel is the expected answer.
func (c *Client) TestCredentials(ctx context.Context, creds shipper.Credentials) (err error) {
	ctx, span := shipper.StartSpan(ctx, c.tracer, carrier, shipper.OpTestCredentials)
	defer func() { shipper.EndSpan(span, err) }()

	lc, err := shipper.CredentialsFor[shipper.LaPosteCredentials](carrier, creds)
	if err != nil {
		return err
	}

	status, err := c.apiClient.Probe(ctx, lc.APIKey)
	if err != nil {
		return toShipperError(err)
	}
	c.logger.Ctx(ctx).Debug("La Poste credential probe", zap.Int("status", status))

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return shipper.NewRejectedError(carrier, "AUTHENTICATION_FAILED", "API key refused").
			WithStatusCode(status).
			WithCause(shipper.ErrAuthenticationFailed)
	}
	return nil
}

func normalize(requested string, s *Shipment) *shipper.TrackingResult {
	trackingNumber := strings.TrimSpace(s.IDShip)
	if trackingNumber == "" {
		trackingNumber = requested
	}
	product := strings.TrimSpace(s.Product)
	if product == "" {
		product = defaultProduct
	}
	return &shipper.TrackingResult{
		TrackingNumber: trackingNumber,
		Carrier:        product,
		Status:         CurrentStatus(s.Timeline),
		IsFinal:        s.IsFinal,
		Events:         MergeEvents(s.Timeline, s.Event),
	}
}

func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.ReturnMessage
		if msg == "" {
			msg = "tracking request rejected"
		}
		return shipper.NewRejectedError(carrier, strconv.Itoa(apiErr.ReturnCode), msg).
			WithDetails(apiErr.ReturnMessage)
	}
	return shipper.Classify(carrier, err)
}

var _ shipper.Shipper = (*Client)(nil)
