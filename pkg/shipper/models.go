package shipper

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Carrier identifies a supported carrier. The set is closed: values outside
// the constants below are rejected by ParseCarrier.
type Carrier string

const (
	CarrierColissimo    Carrier = "colissimo"
	CarrierMondialRelay Carrier = "mondial-relay"
	CarrierLaPoste      Carrier = "laposte"
)

// Carriers lists every supported carrier.
var Carriers = []Carrier{CarrierColissimo, CarrierMondialRelay, CarrierLaPoste}

// ParseCarrier resolves a carrier identifier as typed by operators or stored
// on orders ("Mondial Relay", "mondialrelay", "Colissimo", ...).
func ParseCarrier(s string) (Carrier, error) {
	c := strings.ToLower(strings.TrimSpace(s))
	c = strings.Join(strings.Fields(c), "-")
	switch c {
	case "colissimo":
		return CarrierColissimo, nil
	case "mondial-relay", "mondialrelay":
		return CarrierMondialRelay, nil
	case "laposte", "la-poste":
		return CarrierLaPoste, nil
	}
	return "", fmt.Errorf("%w: %q", ErrCarrierNotFound, s)
}

// DisplayName returns the carrier name shown to customers.
func (c Carrier) DisplayName() string {
	switch c {
	case CarrierColissimo:
		return "Colissimo"
	case CarrierMondialRelay:
		return "Mondial Relay"
	case CarrierLaPoste:
		return "La Poste"
	}
	return string(c)
}

// ShipmentStatus represents the normalized status of a shipment.
//
//	PENDING -> PICKED_UP -> IN_TRANSIT -> OUT_FOR_DELIVERY -> DELIVERED
//	                                 \-> RETURNED
type ShipmentStatus string

const (
	StatusPending        ShipmentStatus = "PENDING"
	StatusPickedUp       ShipmentStatus = "PICKED_UP"
	StatusInTransit      ShipmentStatus = "IN_TRANSIT"
	StatusOutForDelivery ShipmentStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      ShipmentStatus = "DELIVERED"
	StatusReturned       ShipmentStatus = "RETURNED"
)

// IsTerminal reports whether no further transition is expected.
func (s ShipmentStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusReturned
}

// DeliveryMode selects home delivery or delivery to a relay point.
type DeliveryMode string

const (
	DeliveryHome  DeliveryMode = "home"
	DeliveryRelay DeliveryMode = "relay"
)

// Party is a sender or recipient.
type Party struct {
	Name        string `json:"name" validate:"required"`
	Company     string `json:"company,omitempty"`
	Street      string `json:"street" validate:"required"`
	City        string `json:"city" validate:"required"`
	PostalCode  string `json:"postalCode" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required,iso3166_1_alpha2"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

// LabelRequest is the carrier-agnostic request for a shipping label.
type LabelRequest struct {
	Sender         Party        `json:"sender"`
	Recipient      Party        `json:"recipient"`
	WeightKG       float64      `json:"weightKg" validate:"gt=0"`
	OrderReference string       `json:"orderReference,omitempty"`
	DeclaredAmount *float64     `json:"declaredAmount,omitempty" validate:"omitempty,gte=0"`
	DeliveryMode   DeliveryMode `json:"deliveryMode,omitempty" validate:"omitempty,oneof=home relay"`
	RelayPointID   string       `json:"relayPointId,omitempty" validate:"required_if=DeliveryMode relay"`
}

// Mode returns the delivery mode, defaulting to home delivery.
func (r *LabelRequest) Mode() DeliveryMode {
	if r.DeliveryMode == "" {
		return DeliveryHome
	}
	return r.DeliveryMode
}

// LabelResult is returned by a successful label generation. Exactly one of
// Label and LabelURL is populated, depending on the carrier.
type LabelResult struct {
	TrackingNumber string `json:"trackingNumber"`
	Label          []byte `json:"label,omitempty"`
	LabelURL       string `json:"labelUrl,omitempty"`
	TrackingURL    string `json:"trackingUrl"`
}

// CarrierEvent is a tracking event reported by a carrier.
type CarrierEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Code        string    `json:"code,omitempty"`
}

// TrackingResult is the normalized tracking state of a parcel.
type TrackingResult struct {
	TrackingNumber string         `json:"trackingNumber"`
	Carrier        string         `json:"carrier"`
	Status         ShipmentStatus `json:"status"`
	IsFinal        bool           `json:"isFinal"`
	Events         []CarrierEvent `json:"events"` // newest first
}

// RelayQuery describes a relay point search.
type RelayQuery struct {
	Country    string   `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	PostalCode string   `json:"postalCode" validate:"required"`
	City       string   `json:"city,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Limit      int      `json:"limit,omitempty" validate:"gte=0,lte=30"`
}

// RelayPoint is a pickup location.
type RelayPoint struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	PostalCode   string   `json:"postalCode"`
	Country      string   `json:"country"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	OpeningHours []string `json:"openingHours"`
	DistanceKM   *float64 `json:"distanceKm,omitempty"`
}

// CredentialCheck is the outcome of a credential test, shaped for display.
type CredentialCheck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TrackingURL returns the public tracking page of a parcel.
func TrackingURL(c Carrier, trackingNumber string) string {
	n := url.QueryEscape(trackingNumber)
	switch c {
	case CarrierColissimo, CarrierLaPoste:
		return "https://www.laposte.fr/outils/suivre-vos-envois?code=" + n
	case CarrierMondialRelay:
		return "https://www.mondialrelay.fr/suivi-de-colis/?numeroExpedition=" + n
	}
	return "https://www.google.com/search?q=suivi+colis+" + n
}
