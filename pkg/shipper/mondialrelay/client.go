// Package mondialrelay provides integration with the Mondial Relay web
// service: label creation and relay point search, both signed with the
// enseigne private key.
package mondialrelay

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/signing"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrier = shipper.CarrierMondialRelay

// Mode codes.
const (
	ModeRelay = "24R"
	ModeHome  = "HOM"
)

// Field widths accepted by the service.
const (
	maxAddressLen = 32
	maxCityLen    = 26
)

const (
	defaultCountry      = "FR"
	defaultResultsCount = 10
	securityField       = "Security"
)

var weekdays = [7]string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche"}

// Config holds Mondial Relay configuration.
type Config struct {
	Endpoint     string
	LabelBaseURL string
	Timeout      time.Duration
	UseMock      bool
}

// Client is the Mondial Relay adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Mondial Relay client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewSOAPAPIClient(SOAPAPIClientConfig{
			Endpoint:     cfg.Endpoint,
			LabelBaseURL: cfg.LabelBaseURL,
			Timeout:      cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Mondial Relay client with a custom API client.
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

// GenerateLabel creates an expedition. Mondial Relay returns the label as a
// URL, so the result carries LabelURL and no in-memory label.
func (c *Client) GenerateLabel(ctx context.Context, creds shipper.Credentials, req *shipper.LabelRequest) (res *shipper.LabelResult, err error) {
	ctx, span := shipper.StartSpan(ctx, c.tracer, carrier, shipper.OpGenerateLabel)
	defer func() { shipper.EndSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	mc, err := shipper.CredentialsFor[shipper.MondialRelayCredentials](carrier, creds)
	if err != nil {
		return nil, err
	}

	fields := LabelFields(mc.Enseigne, req).Signed(securityField, mc.PrivateKey)
	c.logger.Ctx(ctx).Info("Creating Mondial Relay expedition",
		zap.String("mode", string(req.Mode())),
		zap.String("relay_point", req.RelayPointID),
		zap.String("recipient_country", req.Recipient.CountryCode),
		zap.String("order_reference", req.OrderReference),
	)

	apiResp, err := c.apiClient.CreateLabel(ctx, fields)
	if err != nil {
		c.logger.Ctx(ctx).Error("Mondial Relay API error", zap.Error(err))
		return nil, toShipperError(err)
	}

	trackingNumber := strings.TrimSpace(apiResp.ExpeditionNum)
	return &shipper.LabelResult{
		TrackingNumber: trackingNumber,
		LabelURL:       apiResp.LabelURL,
		TrackingURL:    shipper.TrackingURL(carrier, trackingNumber),
	}, nil
}

// TrackShipment is not offered by this adapter.
func (c *Client) TrackShipment(ctx context.Context, creds shipper.Credentials, trackingNumber string) (*shipper.TrackingResult, error) {
	return nil, shipper.Unsupported(carrier, shipper.OpTrackShipment)
}

// SearchRelayPoints lists relay points near a postal code, in the order
// ranked by the service.
func (c *Client) SearchRelayPoints(ctx context.Context, creds shipper.Credentials, q *shipper.RelayQuery) (points []shipper.RelayPoint, err error) {
	ctx, span := shipper.StartSpan(ctx, c.tracer, carrier, shipper.OpSearchRelayPoints)
	defer func() { shipper.EndSpan(span, err) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	mc, err := shipper.CredentialsFor[shipper.MondialRelayCredentials](carrier, creds)
	if err != nil {
		return nil, err
	}

	fields := SearchFields(mc.Enseigne, q).Signed(securityField, mc.PrivateKey)
	c.logger.Ctx(ctx).Info("Searching Mondial Relay points",
		zap.String("country", fieldValue(fields, "Pays")),
		zap.String("postal_code", q.PostalCode),
		zap.String("limit", fieldValue(fields, "NombreResultats")),
	)

	apiResp, err := c.apiClient.SearchRelayPoints(ctx, fields)
	if err != nil {
		c.logger.Ctx(ctx).Error("Mondial Relay API error", zap.Error(err))
		return nil, toShipperError(err)
	}

	points = make([]shipper.RelayPoint, len(apiResp.Points))
	for i, p := range apiResp.Points {
		points[i] = relayPointToShipper(p)
	}
	return points, nil
}

// TestCredentials runs a one-result relay search. STAT codes for an unknown
// enseigne or a bad signature mean the credentials are refused.
func (c *Client) TestCredentials(ctx context.Context, creds shipper.Credentials) error {
	_, err := c.SearchRelayPoints(ctx, creds, &shipper.RelayQuery{Country: defaultCountry, PostalCode: "75001", Limit: 1})
	var shipErr *shipper.ShipperError
	if errors.As(err, &shipErr) && shipErr.Kind == shipper.KindRejected && authStats[shipErr.Code] {
		return shipErr.WithCause(shipper.ErrAuthenticationFailed)
	}
	return err
}

// ============================================================================
// Request builders
// ============================================================================

// LabelFields returns the unsigned WSI2_CreationEtiquette fields, in wire order.
func LabelFields(enseigne string, req *shipper.LabelRequest) signing.Fields {
	modeCol := ModeHome
	relayCountry := ""
	if req.Mode() == shipper.DeliveryRelay {
		modeCol = ModeRelay
		relayCountry = req.Recipient.CountryCode
	}

	f := signing.Fields{}.
		Add("Enseigne", enseigne).
		Add("ModeCol", modeCol).
		Add("ModeLiv", ModeRelay).
		Add("NDossier", req.OrderReference).
		Add("NClient", "")
	f = appendParty(f, "Expe", req.Sender)
	f = appendParty(f, "Dest", req.Recipient)
	return f.
		Add("Poids", strconv.FormatInt(Grams(req.WeightKG), 10)).
		Add("Longueur", "").
		Add("Taille", "").
		Add("NbColis", "1").
		Add("CRT_Valeur", "0").
		Add("CRT_Devise", "EUR").
		Add("Exp_Valeur", "").
		Add("Exp_Devise", "").
		Add("COL_Rel_Pays", relayCountry).
		Add("COL_Rel", req.RelayPointID).
		Add("LIV_Rel_Pays", relayCountry).
		Add("LIV_Rel", req.RelayPointID).
		Add("TAvisage", "").
		Add("TRepworking", "").
		Add("TInstructions", "").
		Add("Insurance", "0").
		Add("Assembly", "0").
		Add("TEXTE", "")
}

func appendParty(f signing.Fields, prefix string, p shipper.Party) signing.Fields {
	return f.
		Add(prefix+"_Langage", "FR").
		Add(prefix+"_Ad1", truncate(p.Name, maxAddressLen)).
		Add(prefix+"_Ad2", "").
		Add(prefix+"_Ad3", truncate(p.Street, maxAddressLen)).
		Add(prefix+"_Ad4", "").
		Add(prefix+"_Ville", truncate(p.City, maxCityLen)).
		Add(prefix+"_CP", p.PostalCode).
		Add(prefix+"_Pays", p.CountryCode).
		Add(prefix+"_Tel1", stripSpaces(p.Phone)).
		Add(prefix+"_Tel2", "").
		Add(prefix+"_Mail", p.Email)
}

// SearchFields returns the unsigned WSI4_PointRelais_Recherche fields, in wire order.
func SearchFields(enseigne string, q *shipper.RelayQuery) signing.Fields {
	country := q.Country
	if country == "" {
		country = defaultCountry
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultResultsCount
	}

	return signing.Fields{}.
		Add("Enseigne", enseigne).
		Add("Pays", country).
		Add("Ville", q.City).
		Add("CP", q.PostalCode).
		Add("Latitude", coordinate(q.Latitude)).
		Add("Longitude", coordinate(q.Longitude)).
		Add("Taille", "").
		Add("Poids", "").
		Add("Action", "").
		Add("DelaiEnvoi", "0").
		Add("RayonRecherche", "").
		Add("TypeActivite", "").
		Add("NACE", "").
		Add("NombreResultats", strconv.Itoa(limit))
}

// Grams converts kilograms to whole grams.
func Grams(kg float64) int64 {
	return int64(math.Round(kg * 1000))
}

func coordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 7, 64)
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func fieldValue(f signing.Fields, name string) string {
	v, _ := f.Get(name)
	return v
}

// ============================================================================
// Response conversion
// ============================================================================

func relayPointToShipper(p PointRelais) shipper.RelayPoint {
	point := shipper.RelayPoint{
		ID:           strings.TrimSpace(p.Num),
		Name:         strings.TrimSpace(p.LgAdr1),
		Address:      strings.TrimSpace(p.LgAdr3),
		City:         strings.TrimSpace(p.Ville),
		PostalCode:   strings.TrimSpace(p.CP),
		Country:      strings.TrimSpace(p.Pays),
		Latitude:     parseDecimal(p.Latitude),
		Longitude:    parseDecimal(p.Longitude),
		OpeningHours: OpeningHours(p.Horaires),
	}
	if metres := parseDecimal(p.Distance); metres > 0 {
		km := metres / 1000
		point.DistanceKM = &km
	}
	return point
}

// parseDecimal parses a number written with a comma or a dot as decimal
// separator. Unparsable values read as zero.
func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// OpeningHours formats the seven packed Horaires values, Monday first, into
// "Lundi: 09:00-12:00 / 14:00-18:00" entries. Days without session are left out.
func OpeningHours(packed [7]string) []string {
	hours := []string{}
	for i, day := range weekdays {
		if ranges := FormatSlots(packed[i]); ranges != "" {
			hours = append(hours, day+": "+ranges)
		}
	}
	return hours
}

// FormatSlots formats one packed day "HHMM HHMM HHMM HHMM" (morning open,
// morning close, afternoon open, afternoon close). A session with a 0000
// bound is closed. It returns "" when both sessions are closed.
func FormatSlots(packed string) string {
	slots := strings.Fields(packed)
	for len(slots) < 4 {
		slots = append(slots, "0000")
	}

	var ranges []string
	for _, session := range [][2]string{{slots[0], slots[1]}, {slots[2], slots[3]}} {
		from, to := session[0], session[1]
		if !isTime(from) || !isTime(to) || from == "0000" || to == "0000" {
			continue
		}
		ranges = append(ranges, formatTime(from)+"-"+formatTime(to))
	}
	return strings.Join(ranges, " / ")
}

func isTime(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatTime(hhmm string) string {
	return hhmm[:2] + ":" + hhmm[2:]
}

func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Description
		if msg == "" {
			msg = "request rejected"
		}
		return shipper.NewRejectedError(carrier, apiErr.Stat, msg).
			WithDetails("STAT " + apiErr.Stat)
	}
	return shipper.Classify(carrier, err)
}

var _ shipper.Shipper = (*Client)(nil)
