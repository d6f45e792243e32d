package colissimo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdmultipart "mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/multipart"
)

// DefaultBaseURL is the production SLS REST endpoint.
const DefaultBaseURL = "https://ws.colissimo.fr/sls-ws/SlsServiceWSRest/2.0"

// HTTPAPIClient is the production implementation of APIClient.
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

// GenerateLabel posts the request to /generateLabel.
func (c *HTTPAPIClient) GenerateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error) {
	resp, body, err := c.doRequest(ctx, "/generateLabel", "generateLabelRequest", req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, body)
	}

	return decodeLabelResponse(resp.Header.Get("Content-Type"), body)
}

// CheckGenerateLabel posts the request to /checkGenerateLabel. The service
// answers with plain JSON messages, also on validation failures.
func (c *HTTPAPIClient) CheckGenerateLabel(ctx context.Context, req *LabelRequest) (*CheckResponse, error) {
	resp, body, err := c.doRequest(ctx, "/checkGenerateLabel", "checkGenerateLabelRequest", req)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(resp.Header.Get("Content-Type"), body)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, shipper.NewTransportError(shipper.CarrierColissimo, resp.StatusCode, body)
		}
		return nil, err
	}
	return &CheckResponse{Messages: env.Messages}, nil
}

// doRequest sends req as a single multipart form field of type
// application/json and reads the whole response.
func (c *HTTPAPIClient) doRequest(ctx context.Context, path, field string, req *LabelRequest) (*http.Response, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var form bytes.Buffer
	w := stdmultipart.NewWriter(&form)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, field))
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &form)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("User-Agent", "carrierbridge/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, shipper.NewNetworkError(shipper.CarrierColissimo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, shipper.NewNetworkError(shipper.CarrierColissimo, err)
	}
	return resp, body, nil
}

// parseError builds the transport error of a non-2xx response, keeping the
// service messages when the body carries any.
func parseError(status int, body []byte) error {
	shipErr := shipper.NewTransportError(shipper.CarrierColissimo, status, body)
	var env labelEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		for _, m := range ErrorMessages(env.Messages) {
			shipErr.WithDetails(m.MessageContent)
		}
	}
	return shipErr
}

// decodeEnvelope extracts the JSON envelope from a plain JSON body or from the
// JSON part of a multipart body.
func decodeEnvelope(contentType string, body []byte) (*labelEnvelope, error) {
	if !multipart.IsMultipart(contentType) {
		return unmarshalEnvelope(body)
	}
	parts, err := decodeParts(contentType, body)
	if err != nil {
		return nil, err
	}
	return envelopeFromParts(parts)
}

func decodeParts(contentType string, body []byte) ([]multipart.Part, error) {
	parts, err := multipart.DecodeResponse(contentType, body)
	if err != nil {
		return nil, shipper.NewProtocolError(shipper.CarrierColissimo, "MALFORMED_MULTIPART", "malformed multipart response").
			WithCause(err)
	}
	return parts, nil
}

func envelopeFromParts(parts []multipart.Part) (*labelEnvelope, error) {
	jsonPart, ok := multipart.Find(parts, "application/json")
	if !ok {
		return nil, shipper.NewProtocolError(shipper.CarrierColissimo, "MISSING_JSON_PART", "no application/json part in response")
	}
	return unmarshalEnvelope(jsonPart.Body)
}

func unmarshalEnvelope(data []byte) (*labelEnvelope, error) {
	var env labelEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, shipper.NewProtocolError(shipper.CarrierColissimo, "INVALID_JSON", "failed to decode response").
			WithCause(err).
			WithBody(data)
	}
	return &env, nil
}

// rejection returns the APIError of an envelope without parcel number, or a
// protocol error when the service gave no reason.
func rejection(env *labelEnvelope) error {
	if errs := ErrorMessages(env.Messages); len(errs) > 0 {
		return &APIError{Messages: errs}
	}
	return shipper.NewProtocolError(shipper.CarrierColissimo, "MISSING_PARCEL_NUMBER", "no parcel number in response")
}

// decodeLabelResponse reads a generateLabel response. Errors come back as a
// plain JSON body; a label comes back as a multipart body holding a JSON part
// and a PDF part. A partial result is never returned.
func decodeLabelResponse(contentType string, body []byte) (*LabelResponse, error) {
	if !multipart.IsMultipart(contentType) {
		env, err := unmarshalEnvelope(body)
		if err != nil {
			return nil, err
		}
		if env.parcelNumber() == "" {
			return nil, rejection(env)
		}
		return nil, shipper.NewProtocolError(shipper.CarrierColissimo, "MISSING_LABEL", "response carries no label")
	}

	parts, err := decodeParts(contentType, body)
	if err != nil {
		return nil, err
	}
	env, err := envelopeFromParts(parts)
	if err != nil {
		return nil, err
	}
	parcelNumber := env.parcelNumber()
	if parcelNumber == "" {
		return nil, rejection(env)
	}
	pdf, ok := multipart.Find(parts, "application/pdf")
	if !ok || len(pdf.Body) == 0 {
		return nil, shipper.NewProtocolError(shipper.CarrierColissimo, "MISSING_LABEL", "no application/pdf part in response")
	}

	return &LabelResponse{
		ParcelNumber: parcelNumber,
		Label:        pdf.Body,
		Messages:     env.Messages,
	}, nil
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
