package laposte_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/laposte"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const trackingJSON = `{
  "lang": "fr_FR",
  "scope": "open",
  "returnCode": 200,
  "shipment": {
    "idShip": "6A18987970813",
    "holder": 4,
    "product": "Colissimo",
    "isFinal": true,
    "entryDate": "2024-03-09T08:00:00+01:00",
    "deliveryDate": "2024-03-11T09:15:00+01:00",
    "timeline": [
      {"id": 1, "shortLabel": "Pris en charge", "longLabel": "Votre colis est pris en charge", "date": "2024-03-09T08:00:00+01:00", "country": "FR", "status": true, "type": 1},
      {"id": 2, "shortLabel": "En transit", "longLabel": "Votre colis est en cours d'acheminement", "date": "2024-03-10T06:00:00+01:00", "country": "FR", "status": true, "type": 2},
      {"id": 3, "shortLabel": "En livraison", "longLabel": "", "date": "2024-03-11T07:30:00+01:00", "country": "FR", "status": true, "type": 3},
      {"id": 5, "shortLabel": "Livré", "longLabel": "Votre colis est livré", "date": "2024-03-11T09:15:00+01:00", "country": "FR", "status": true, "type": 4}
    ],
    "event": [
      {"date": "2024-03-11T09:15:20+01:00", "code": "DI1", "label": "Votre colis est livré"},
      {"date": "2024-03-10T13:42:00+01:00", "code": "ET1", "label": "Votre colis est arrivé sur son site de distribution"},
      {"date": "2024-03-09T08:00:00+01:00", "code": "PC1", "label": "Votre colis est pris en charge"}
    ]
  }
}`

func newHTTPClient(t *testing.T, handler http.HandlerFunc) *laposte.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := laposte.NewHTTPAPIClient(laposte.HTTPAPIClientConfig{BaseURL: server.URL})
	return laposte.NewWithAPIClient(laposte.Config{}, api, otelzap.New(zap.NewNop()), nil)
}

func TestHTTPAPIClient_TrackShipment(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/suivi/v2/idships/6A18987970813", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "okapi-test-key", r.Header.Get("X-Okapi-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(trackingJSON))
	})

	res, err := client.TrackShipment(context.Background(), testCreds, "6A18987970813")

	require.NoError(t, err)
	assert.Equal(t, "6A18987970813", res.TrackingNumber)
	assert.Equal(t, "Colissimo", res.Carrier)
	assert.Equal(t, shipper.StatusDelivered, res.Status)
	assert.True(t, res.IsFinal)

	descriptions := make([]string, len(res.Events))
	for i, e := range res.Events {
		descriptions[i] = e.Description
	}
	assert.Equal(t, []string{
		"Votre colis est livré",
		"En livraison",
		"Votre colis est arrivé sur son site de distribution",
		"Votre colis est en cours d'acheminement",
		"Votre colis est pris en charge",
	}, descriptions)
}

func TestHTTPAPIClient_PathEscaping(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suivi/v2/idships/AB%2FCD", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"returnCode": 200, "shipment": {"idShip": "AB/CD"}}`))
	})

	res, err := client.TrackShipment(context.Background(), testCreds, "AB/CD")

	require.NoError(t, err)
	assert.Equal(t, "AB/CD", res.TrackingNumber)
}

func TestHTTPAPIClient_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		code     string
	}{
		{"not found", http.StatusNotFound, `{"returnCode": 404, "returnMessage": "Numéro inconnu"}`, shipper.ErrCarrierTransport, "HTTP_404"},
		{"server error", http.StatusBadGateway, `upstream`, shipper.ErrCarrierTransport, "HTTP_502"},
		{"invalid json", http.StatusOK, `{"returnCode":`, shipper.ErrCarrierProtocol, "INVALID_JSON"},
		{"return code", http.StatusOK, `{"returnCode": 400, "returnMessage": "Format du numéro invalide"}`, shipper.ErrCarrierRejected, "400"},
		{"missing shipment", http.StatusOK, `{"returnCode": 200}`, shipper.ErrCarrierProtocol, "MISSING_SHIPMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.TrackShipment(context.Background(), testCreds, "6A18987970813")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			var shipErr *shipper.ShipperError
			require.True(t, errors.As(err, &shipErr))
			assert.Equal(t, tt.code, shipErr.Code)
		})
	}
}

func TestHTTPAPIClient_TransportDetails(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code": "UNAUTHORIZED", "message": "Invalid API key"}`))
	})

	_, err := client.TrackShipment(context.Background(), testCreds, "6A18987970813")

	var shipErr *shipper.ShipperError
	require.True(t, errors.As(err, &shipErr))
	assert.Equal(t, http.StatusUnauthorized, shipErr.StatusCode)
	assert.Equal(t, []string{"Invalid API key"}, shipErr.Details)
	assert.ErrorIs(t, err, shipper.ErrAuthenticationFailed)
	assert.False(t, shipper.IsRetryable(err))
}

func TestHTTPAPIClient_TestCredentials(t *testing.T) {
	var status int
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suivi/v2/idships/0000000000", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	})

	status = http.StatusNotFound
	assert.NoError(t, client.TestCredentials(context.Background(), testCreds))

	status = http.StatusUnauthorized
	assert.ErrorIs(t, client.TestCredentials(context.Background(), testCreds), shipper.ErrAuthenticationFailed)
}

func TestHTTPAPIClient_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	api := laposte.NewHTTPAPIClient(laposte.HTTPAPIClientConfig{BaseURL: server.URL})
	client := laposte.NewWithAPIClient(laposte.Config{}, api, otelzap.New(zap.NewNop()), nil)

	_, err := client.TrackShipment(context.Background(), testCreds, "6A18987970813")

	assert.ErrorIs(t, err, shipper.ErrCarrierTransport)
	assert.True(t, shipper.IsRetryable(err))
	assert.Error(t, client.TestCredentials(context.Background(), testCreds))
}
