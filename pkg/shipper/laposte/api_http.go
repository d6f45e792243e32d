package laposte

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper"
)

// DefaultBaseURL is the production Okapi gateway.
const DefaultBaseURL = "https://api.laposte.fr"

// probeID is a syntactically valid parcel number that never exists.
const probeID = "0000000000"

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // optional, overrides Timeout
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = shipper.NewHTTPClient(cfg.Timeout)
	}

	return &HTTPAPIClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// GetShipment fetches the tracking document of a parcel.
func (c *HTTPAPIClient) GetShipment(ctx context.Context, apiKey, idShip string) (*TrackingResponse, error) {
	resp, err := c.doRequest(ctx, apiKey, idShip)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shipper.NewNetworkError(shipper.CarrierLaPoste, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, body)
	}

	var result TrackingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, shipper.NewProtocolError(shipper.CarrierLaPoste, "INVALID_JSON", "failed to decode tracking response").
			WithCause(err).
			WithBody(body)
	}

	if result.ReturnCode != http.StatusOK && result.ReturnCode != http.StatusMultiStatus {
		return nil, &APIError{ReturnCode: result.ReturnCode, ReturnMessage: result.ReturnMessage}
	}
	if result.Shipment == nil {
		return nil, shipper.NewProtocolError(shipper.CarrierLaPoste, "MISSING_SHIPMENT", "no shipment in tracking response").
			WithBody(body)
	}
	return &result, nil
}

// Probe requests a dummy parcel; 401 and 403 mean the key is refused.
func (c *HTTPAPIClient) Probe(ctx context.Context, apiKey string) (int, error) {
	resp, err := c.doRequest(ctx, apiKey, probeID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *HTTPAPIClient) doRequest(ctx context.Context, apiKey, idShip string) (*http.Response, error) {
	endpoint := c.baseURL + "/suivi/v2/idships/" + url.PathEscape(idShip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Okapi-Key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shipper.NewNetworkError(shipper.CarrierLaPoste, err)
	}
	return resp, nil
}

// parseError builds the transport error of a non-2xx response. The gateway
// usually still answers with a returnMessage.
func parseError(status int, body []byte) error {
	shipErr := shipper.NewTransportError(shipper.CarrierLaPoste, status, body)
	var apiErr struct {
		ReturnMessage string `json:"returnMessage"`
		Message       string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		msg := apiErr.ReturnMessage
		if msg == "" {
			msg = apiErr.Message
		}
		if msg != "" {
			shipErr.WithDetails(msg)
		}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		shipErr.WithCause(shipper.ErrAuthenticationFailed)
	}
	return shipErr
}

var _ APIClient = (*HTTPAPIClient)(nil)
