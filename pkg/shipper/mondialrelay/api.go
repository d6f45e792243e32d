package mondialrelay

import (
	"context"
	"fmt"

	"github.com/tournevent/carrierbridge/pkg/shipper/signing"
)

// Web service actions.
const (
	ActionCreateLabel  = "WSI2_CreationEtiquette"
	ActionSearchRelays = "WSI4_PointRelais_Recherche"
)

// APIClient defines the Mondial Relay web service operations. Requests are
// signed field lists: the implementation must put the fields on the wire in
// the order it receives them.
type APIClient interface {
	// CreateLabel calls WSI2_CreationEtiquette.
	CreateLabel(ctx context.Context, fields signing.Fields) (*LabelResponse, error)

	// SearchRelayPoints calls WSI4_PointRelais_Recherche.
	SearchRelayPoints(ctx context.Context, fields signing.Fields) (*RelaySearchResponse, error)
}

// ============================================================================
// API Response Types (tags of the SOAP responses)
// ============================================================================

// LabelResponse is a successful WSI2_CreationEtiquette response.
type LabelResponse struct {
	ExpeditionNum string
	LabelURL      string // absolute URL of the PDF label
}

// RelaySearchResponse is a successful WSI4_PointRelais_Recherche response.
type RelaySearchResponse struct {
	Points []PointRelais
}

// PointRelais holds the raw values of one PointRelais_Details block.
type PointRelais struct {
	Num       string
	LgAdr1    string // name
	LgAdr2    string
	LgAdr3    string // street
	LgAdr4    string
	CP        string
	Ville     string
	Pays      string
	Latitude  string    // comma decimal separator
	Longitude string    // comma decimal separator
	Distance  string    // metres
	Horaires  [7]string // Horaires_01 (Monday) .. Horaires_07 (Sunday)
}

// APIError is a non-zero STAT returned by the web service.
type APIError struct {
	Stat        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("STAT %s", e.Stat)
	}
	return fmt.Sprintf("STAT %s: %s", e.Stat, e.Description)
}

// statDescriptions documents the STAT codes operators meet most often.
var statDescriptions = map[string]string{
	"1":  "Enseigne invalide",
	"2":  "Numéro d'enseigne vide ou inexistant",
	"8":  "Mot de passe ou hachage invalide",
	"9":  "Ville non reconnue ou non unique",
	"20": "Poids du colis invalide",
	"24": "Numéro d'expédition ou de suivi invalide",
	"97": "Clé de sécurité invalide",
	"98": "Erreur générique (paramètres invalides)",
	"99": "Erreur générique du service",
}

// StatDescription returns the documented meaning of a STAT code, or "".
func StatDescription(stat string) string {
	return statDescriptions[stat]
}

// authStats are the codes returned for a wrong enseigne or signature.
var authStats = map[string]bool{"1": true, "2": true, "8": true, "97": true}
