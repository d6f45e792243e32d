package colissimo_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/colissimo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const boundary = "uuid:0f6f8b2e-5c1d-4c55-8f3a-2a9d9c0e7b41"

var labelPDF = []byte("%PDF-1.4\r\n1 0 obj\r\n<< /Type /Catalog >>\r\nendobj\r\n%%EOF")

func multipartBody(jsonPart string, pdf []byte) string {
	var b strings.Builder
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: application/json;charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: binary\r\n")
	b.WriteString("Content-ID: <jsonInfos>\r\n\r\n")
	b.WriteString(jsonPart)
	if pdf != nil {
		b.WriteString("\r\n--" + boundary + "\r\n")
		b.WriteString("Content-Type: application/pdf\r\n")
		b.WriteString("Content-ID: <label>\r\n\r\n")
		b.Write(pdf)
	}
	b.WriteString("\r\n--" + boundary + "--\r\n")
	return b.String()
}

// readForm returns the decoded JSON request and checks the form part shape.
func readForm(t *testing.T, r *http.Request, field string) colissimo.LabelRequest {
	t.Helper()
	mr, err := r.MultipartReader()
	require.NoError(t, err)
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, field, part.FormName())
	assert.Equal(t, "application/json", part.Header.Get("Content-Type"))

	data, err := io.ReadAll(part)
	require.NoError(t, err)
	var req colissimo.LabelRequest
	require.NoError(t, json.Unmarshal(data, &req))
	return req
}

func newHTTPClient(t *testing.T, handler http.HandlerFunc) *colissimo.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return colissimo.New(colissimo.Config{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Now:     func() time.Time { return fixedNow },
	}, otelzap.New(zap.NewNop()), nil)
}

func TestHTTP_GenerateLabel_FranceToBelgium(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generateLabel", r.URL.Path)

		req := readForm(t, r, "generateLabelRequest")
		assert.Equal(t, "DOS", req.Letter.Service.ProductCode)
		assert.Equal(t, "07/03/2025", req.Letter.Service.DepositDate)
		assert.Equal(t, 1.2, req.Letter.Parcel.Weight)
		assert.Equal(t, "BE", req.Letter.Addressee.Address.CountryCode)

		w.Header().Set("Content-Type", `multipart/mixed; boundary="`+boundary+`"; type="application/json"; start="<jsonInfos>"`)
		_, _ = io.WriteString(w, multipartBody(
			`{"messages":[{"id":"0","type":"INFOS","messageContent":"La requête a été traitée avec succès"}],"labelV2Response":{"parcelNumber":"6A12345678"}}`,
			labelPDF,
		))
	})

	res, err := client.GenerateLabel(context.Background(), testCreds, labelRequest("BE"))
	require.NoError(t, err)
	assert.Equal(t, "6A12345678", res.TrackingNumber)
	assert.Equal(t, labelPDF, res.Label)
	assert.Contains(t, res.TrackingURL, "6A12345678")
}

func TestHTTP_GenerateLabel_UnquotedBoundary(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/mixed; boundary="+boundary+`;type="application/json";start="<jsonInfos>"`)
		_, _ = io.WriteString(w, multipartBody(`{"labelV2Response":{"parcelNumber":"6A87654321"}}`, labelPDF))
	})

	res, err := client.GenerateLabel(context.Background(), testCreds, labelRequest("FR"))
	require.NoError(t, err)
	assert.Equal(t, "6A87654321", res.TrackingNumber)
	assert.Equal(t, labelPDF, res.Label)
}

func TestHTTP_GenerateLabel_ErrorJSON(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		_, _ = io.WriteString(w, `{"messages":[
			{"id":"30109","type":"ERROR","messageContent":"Le code postal du destinataire est invalide"},
			{"id":"30110","type":"ERROR","messageContent":"La ville du destinataire est invalide"},
			{"id":"0","type":"INFOS","messageContent":"info"}]}`)
	})

	_, err := client.GenerateLabel(context.Background(), testCreds, labelRequest("FR"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierRejected)
	assert.Contains(t, err.Error(), "Le code postal du destinataire est invalide, La ville du destinataire est invalide")
}

func TestHTTP_GenerateLabel_MalformedResponses(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		code        string
	}{
		{
			name:        "json without messages",
			contentType: "application/json",
			body:        `{"messages":[]}`,
			code:        "MISSING_PARCEL_NUMBER",
		},
		{
			name:        "invalid json",
			contentType: "application/json",
			body:        `<html>maintenance</html>`,
			code:        "INVALID_JSON",
		},
		{
			name:        "missing pdf part",
			contentType: `multipart/mixed; boundary="` + boundary + `"`,
			body:        multipartBody(`{"labelV2Response":{"parcelNumber":"6A12345678"}}`, nil),
			code:        "MISSING_LABEL",
		},
		{
			name:        "missing parcel number",
			contentType: `multipart/mixed; boundary="` + boundary + `"`,
			body:        multipartBody(`{"labelV2Response":{}}`, labelPDF),
			code:        "MISSING_PARCEL_NUMBER",
		},
		{
			name:        "missing boundary",
			contentType: "multipart/mixed",
			body:        multipartBody(`{"labelV2Response":{"parcelNumber":"6A12345678"}}`, labelPDF),
			code:        "MALFORMED_MULTIPART",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := client.GenerateLabel(context.Background(), testCreds, labelRequest("FR"))
			assert.Nil(t, res)
			require.Error(t, err)
			assert.ErrorIs(t, err, shipper.ErrCarrierProtocol)
			assert.ErrorIs(t, err, &shipper.ShipperError{Code: tt.code})
		})
	}
}

func TestHTTP_GenerateLabel_HTTPError(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"messages":[{"id":"30001","type":"ERROR","messageContent":"Le poids est invalide"}]}`)
	})

	_, err := client.GenerateLabel(context.Background(), testCreds, labelRequest("FR"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierTransport)

	var shipErr *shipper.ShipperError
	require.ErrorAs(t, err, &shipErr)
	assert.Equal(t, http.StatusBadRequest, shipErr.StatusCode)
	assert.Contains(t, shipErr.Body, "Le poids est invalide")
	assert.Equal(t, []string{"Le poids est invalide"}, shipErr.Details)
	assert.False(t, shipper.IsRetryable(err))
}

func TestHTTP_TestCredentials(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkGenerateLabel", r.URL.Path)
		req := readForm(t, r, "checkGenerateLabelRequest")

		w.Header().Set("Content-Type", "application/json")
		if req.Password != "secret" {
			_, _ = io.WriteString(w, `{"messages":[{"id":"30000","type":"ERROR","messageContent":"Identifiant ou mot de passe incorrect : erreur d'authentification"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"messages":[{"id":"FIELD_REQUIRED","type":"ERROR","messageContent":"champ requis"}]}`)
	})

	assert.NoError(t, client.TestCredentials(context.Background(), testCreds))

	err := client.TestCredentials(context.Background(), shipper.ColissimoCredentials{ContractNumber: "123456", Password: "wrong"})
	assert.ErrorIs(t, err, shipper.ErrAuthenticationFailed)
}

func TestHTTP_TestCredentials_ServerDown(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "bad gateway")
	})

	err := client.TestCredentials(context.Background(), testCreds)
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierTransport)
	assert.True(t, shipper.IsRetryable(err))
}
