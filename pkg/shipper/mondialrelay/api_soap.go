package mondialrelay

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/signing"
	"github.com/tournevent/carrierbridge/pkg/shipper/xmltag"
)

// Production endpoints.
const (
	DefaultEndpoint = "https://api.mondialrelay.com/Web_Services.asmx"
	DefaultLabelURL = "https://www.mondialrelay.com"
	soapActionBase  = "http://www.mondialrelay.fr/webservice/"
)

// SOAPAPIClient is the production implementation of APIClient using SOAP.
type SOAPAPIClient struct {
	endpoint     string
	labelBaseURL string
	httpClient   *http.Client
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	Endpoint     string
	LabelBaseURL string // prefix of the relative label paths returned by the service
	Timeout      time.Duration
	HTTPClient   *http.Client // optional, overrides Timeout
}

// NewSOAPAPIClient creates a new SOAP-based API client for production use.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	labelBaseURL := strings.TrimRight(cfg.LabelBaseURL, "/")
	if labelBaseURL == "" {
		labelBaseURL = DefaultLabelURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = shipper.NewHTTPClient(cfg.Timeout)
	}

	return &SOAPAPIClient{
		endpoint:     endpoint,
		labelBaseURL: labelBaseURL,
		httpClient:   httpClient,
	}
}

// CreateLabel calls WSI2_CreationEtiquette.
func (c *SOAPAPIClient) CreateLabel(ctx context.Context, fields signing.Fields) (*LabelResponse, error) {
	doc, err := c.call(ctx, ActionCreateLabel, fields)
	if err != nil {
		return nil, err
	}
	return c.parseLabelResponse(doc)
}

// SearchRelayPoints calls WSI4_PointRelais_Recherche.
func (c *SOAPAPIClient) SearchRelayPoints(ctx context.Context, fields signing.Fields) (*RelaySearchResponse, error) {
	doc, err := c.call(ctx, ActionSearchRelays, fields)
	if err != nil {
		return nil, err
	}
	return parseRelaySearchResponse(doc)
}

// ============================================================================
// SOAP Request Helpers
// ============================================================================

var envelopeTemplate = template.Must(template.New("envelope").Funcs(template.FuncMap{
	"xml": escapeXML,
}).Parse(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:mr="http://www.mondialrelay.fr/webservice/">
  <soap:Body>
    <mr:{{.Action}}>
{{- range .Fields}}
      <{{.Name}}>{{xml .Value}}</{{.Name}}>
{{- end}}
    </mr:{{.Action}}>
  </soap:Body>
</soap:Envelope>`))

// BuildEnvelope serializes a signed field list, in order, into the SOAP
// request of action.
func BuildEnvelope(action string, fields signing.Fields) ([]byte, error) {
	data := struct {
		Action string
		Fields signing.Fields
	}{action, fields}

	var buf bytes.Buffer
	if err := envelopeTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (c *SOAPAPIClient) call(ctx context.Context, action string, fields signing.Fields) (*xmltag.Node, error) {
	body, err := BuildEnvelope(action, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapActionBase+action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shipper.NewNetworkError(shipper.CarrierMondialRelay, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shipper.NewNetworkError(shipper.CarrierMondialRelay, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseSOAPError(resp.StatusCode, data)
	}

	doc, err := xmltag.Parse(data)
	if err != nil {
		return nil, shipper.NewProtocolError(shipper.CarrierMondialRelay, "INVALID_XML", "failed to parse response").
			WithCause(err).
			WithBody(data)
	}
	if fault, ok := doc.Scalar("faultstring"); ok {
		return nil, shipper.NewProtocolError(shipper.CarrierMondialRelay, "SOAP_FAULT", fault).WithBody(data)
	}
	return doc, nil
}

// ============================================================================
// SOAP Response Parsing Functions
// ============================================================================

func parseSOAPError(status int, body []byte) error {
	shipErr := shipper.NewTransportError(shipper.CarrierMondialRelay, status, body)
	if doc, err := xmltag.Parse(body); err == nil {
		if fault, ok := doc.Scalar("faultstring"); ok {
			shipErr.WithDetails(fault)
		}
	}
	return shipErr
}

// checkStat fails unless the response carries STAT 0.
func checkStat(doc *xmltag.Node) error {
	stat, ok := doc.Scalar("STAT")
	if !ok || stat == "" {
		return shipper.NewProtocolError(shipper.CarrierMondialRelay, "MISSING_STAT", "no STAT in response")
	}
	if stat != "0" {
		return &APIError{Stat: stat, Description: StatDescription(stat)}
	}
	return nil
}

func (c *SOAPAPIClient) parseLabelResponse(doc *xmltag.Node) (*LabelResponse, error) {
	if err := checkStat(doc); err != nil {
		return nil, err
	}

	expeditionNum := doc.Value("ExpeditionNum")
	if expeditionNum == "" {
		return nil, shipper.NewProtocolError(shipper.CarrierMondialRelay, "MISSING_EXPEDITION_NUMBER", "no expedition number in response")
	}

	labelPath := doc.Value("URL_Etiquette")
	if labelPath == "" {
		return nil, shipper.NewProtocolError(shipper.CarrierMondialRelay, "MISSING_LABEL", "no label URL in response")
	}
	labelURL := labelPath
	if !strings.HasPrefix(labelPath, "http://") && !strings.HasPrefix(labelPath, "https://") {
		labelURL = c.labelBaseURL + labelPath
	}

	return &LabelResponse{
		ExpeditionNum: expeditionNum,
		LabelURL:      labelURL,
	}, nil
}

func parseRelaySearchResponse(doc *xmltag.Node) (*RelaySearchResponse, error) {
	if err := checkStat(doc); err != nil {
		return nil, err
	}

	blocks := doc.Blocks("PointRelais_Details")
	points := make([]PointRelais, 0, len(blocks))
	for _, b := range blocks {
		p := PointRelais{
			Num:       b.Value("Num"),
			LgAdr1:    b.Value("LgAdr1"),
			LgAdr2:    b.Value("LgAdr2"),
			LgAdr3:    b.Value("LgAdr3"),
			LgAdr4:    b.Value("LgAdr4"),
			CP:        b.Value("CP"),
			Ville:     b.Value("Ville"),
			Pays:      b.Value("Pays"),
			Latitude:  b.Value("Latitude"),
			Longitude: b.Value("Longitude"),
			Distance:  b.Value("Distance"),
		}
		for day := range p.Horaires {
			p.Horaires[day] = b.Value(fmt.Sprintf("Horaires_%02d", day+1))
		}
		points = append(points, p)
	}

	return &RelaySearchResponse{Points: points}, nil
}

var _ APIClient = (*SOAPAPIClient)(nil)
