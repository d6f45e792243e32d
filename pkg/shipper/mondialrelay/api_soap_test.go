package mondialrelay_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/tournevent/carrierbridge/pkg/shipper/mondialrelay"
	"github.com/tournevent/carrierbridge/pkg/shipper/signing"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// readFields decodes the operation element of a SOAP request into its
// ordered field list.
func readFields(t *testing.T, body []byte) (string, signing.Fields) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		action string
		fields signing.Fields
		depth  int
		name   string
		value  bytes.Buffer
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch tk := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 3 {
				action = tk.Name.Local
			}
			if depth == 4 {
				name = tk.Name.Local
				value.Reset()
			}
		case xml.CharData:
			if depth == 4 {
				value.Write(tk)
			}
		case xml.EndElement:
			if depth == 4 {
				fields = fields.Add(name, value.String())
			}
			depth--
		}
	}
	return action, fields
}

func newSOAPClient(t *testing.T, handler http.HandlerFunc) *mondialrelay.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return mondialrelay.New(mondialrelay.Config{Endpoint: srv.URL}, otelzap.New(zap.NewNop()), nil)
}

func soapResponse(action, inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <soap:Body>
    <` + action + `Response xmlns="http://www.mondialrelay.fr/webservice/">
      <` + action + `Result>` + inner + `</` + action + `Result>
    </` + action + `Response>
  </soap:Body>
</soap:Envelope>`
}

func TestSOAP_CreateLabel_WireOrderMatchesSignature(t *testing.T) {
	client := newSOAPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "http://www.mondialrelay.fr/webservice/WSI2_CreationEtiquette", r.Header.Get("SOAPAction"))
		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		action, fields := readFields(t, body)
		assert.Equal(t, mondialrelay.ActionCreateLabel, action)

		require.NotEmpty(t, fields)
		security := fields[len(fields)-1]
		assert.Equal(t, "Security", security.Name)
		assert.Equal(t, fields[:len(fields)-1].Sign("PrivateK"), security.Value, "signature must cover the fields in wire order")

		name, _ := fields.Get("Dest_Ad1")
		assert.Equal(t, "Jean Dupont", name)

		_, _ = io.WriteString(w, soapResponse("WSI2_CreationEtiquette", `
        <STAT>0</STAT>
        <ExpeditionNum>31234567 </ExpeditionNum>
        <URL_Etiquette>/ww2/PDF/StickerMaker2.aspx?ens=BDTEST13&amp;expedition=31234567</URL_Etiquette>`))
	})

	res, err := client.GenerateLabel(context.Background(), testCreds, relayLabelRequest())
	require.NoError(t, err)
	assert.Equal(t, "31234567", res.TrackingNumber)
	assert.Equal(t, "https://www.mondialrelay.com/ww2/PDF/StickerMaker2.aspx?ens=BDTEST13&expedition=31234567", res.LabelURL)
	assert.Empty(t, res.Label)
}

func TestSOAP_EscapesValues(t *testing.T) {
	req := relayLabelRequest()
	req.Recipient.Name = `Dupont & Fils <SARL>`

	client := newSOAPClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "<Dest_Ad1>Dupont &amp; Fils &lt;SARL&gt;</Dest_Ad1>")

		_, fields := readFields(t, body)
		name, _ := fields.Get("Dest_Ad1")
		assert.Equal(t, `Dupont & Fils <SARL>`, name)
		assert.Equal(t, fields[:len(fields)-1].Sign("PrivateK"), fields[len(fields)-1].Value)

		_, _ = io.WriteString(w, soapResponse("WSI2_CreationEtiquette",
			`<STAT>0</STAT><ExpeditionNum>1</ExpeditionNum><URL_Etiquette>/label</URL_Etiquette>`))
	})

	_, err := client.GenerateLabel(context.Background(), testCreds, req)
	require.NoError(t, err)
}

func TestSOAP_CreateLabel_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		code    string
	}{
		{
			name:    "non-zero stat",
			status:  http.StatusOK,
			body:    soapResponse("WSI2_CreationEtiquette", `<STAT>20</STAT>`),
			wantErr: shipper.ErrCarrierRejected,
			code:    "20",
		},
		{
			name:    "missing stat",
			status:  http.StatusOK,
			body:    soapResponse("WSI2_CreationEtiquette", `<ExpeditionNum>31234567</ExpeditionNum>`),
			wantErr: shipper.ErrCarrierProtocol,
			code:    "MISSING_STAT",
		},
		{
			name:    "missing expedition number",
			status:  http.StatusOK,
			body:    soapResponse("WSI2_CreationEtiquette", `<STAT>0</STAT><URL_Etiquette>/label</URL_Etiquette>`),
			wantErr: shipper.ErrCarrierProtocol,
			code:    "MISSING_EXPEDITION_NUMBER",
		},
		{
			name:    "missing label url",
			status:  http.StatusOK,
			body:    soapResponse("WSI2_CreationEtiquette", `<STAT>0</STAT><ExpeditionNum>31234567</ExpeditionNum>`),
			wantErr: shipper.ErrCarrierProtocol,
			code:    "MISSING_LABEL",
		},
		{
			name:    "not xml",
			status:  http.StatusOK,
			body:    `<html><body>Service Unavailable`,
			wantErr: shipper.ErrCarrierProtocol,
			code:    "INVALID_XML",
		},
		{
			name:    "soap fault",
			status:  http.StatusInternalServerError,
			body:    `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><soap:Fault><faultcode>soap:Server</faultcode><faultstring>Server was unable to process request.</faultstring></soap:Fault></soap:Body></soap:Envelope>`,
			wantErr: shipper.ErrCarrierTransport,
			code:    "HTTP_500",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newSOAPClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := client.GenerateLabel(context.Background(), testCreds, relayLabelRequest())
			assert.Nil(t, res)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, &shipper.ShipperError{Code: tt.code})
		})
	}
}

func TestSOAP_SearchRelayPoints(t *testing.T) {
	client := newSOAPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "http://www.mondialrelay.fr/webservice/WSI4_PointRelais_Recherche", r.Header.Get("SOAPAction"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		action, fields := readFields(t, body)
		assert.Equal(t, mondialrelay.ActionSearchRelays, action)
		assert.Equal(t, fields[:len(fields)-1].Sign("PrivateK"), fields[len(fields)-1].Value)

		_, _ = io.WriteString(w, soapResponse("WSI4_PointRelais_Recherche", `
        <STAT>0</STAT>
        <PointsRelais>
          <PointRelais_Details>
            <STAT>0</STAT>
            <Num>020147</Num>
            <LgAdr1>TABAC DE LA MAIRIE                  </LgAdr1>
            <LgAdr2 />
            <LgAdr3>2 PLACE DE LA MAIRIE                </LgAdr3>
            <LgAdr4 />
            <CP>75001</CP>
            <Ville>PARIS</Ville>
            <Pays>FR</Pays>
            <Latitude>48,8606111</Latitude>
            <Longitude>02,3376544</Longitude>
            <Horaires_01>0900 1200 1400 1800</Horaires_01>
            <Horaires_02>0900 1200 1400 1800</Horaires_02>
            <Horaires_03>0000 0000 0000 0000</Horaires_03>
            <Horaires_04>0900 1200 1400 1800</Horaires_04>
            <Horaires_05>0900 1200 1400 1800</Horaires_05>
            <Horaires_06>0900 1230 0000 0000</Horaires_06>
            <Horaires_07>0000 0000 0000 0000</Horaires_07>
            <Distance>1250</Distance>
          </PointRelais_Details>
          <PointRelais_Details>
            <STAT>0</STAT>
            <Num>020398</Num>
            <LgAdr1>PRESSE DU MARCHE</LgAdr1>
            <LgAdr3>15 RUE DU MARCHE</LgAdr3>
            <CP>75001</CP>
            <Ville>PARIS</Ville>
            <Pays>FR</Pays>
            <Latitude>not-a-number</Latitude>
            <Longitude>02,3400000</Longitude>
          </PointRelais_Details>
        </PointsRelais>`))
	})

	points, err := client.SearchRelayPoints(context.Background(), testCreds, &shipper.RelayQuery{PostalCode: "75001"})
	require.NoError(t, err)
	require.Len(t, points, 2)

	first := points[0]
	assert.Equal(t, "020147", first.ID)
	assert.Equal(t, "TABAC DE LA MAIRIE", first.Name)
	assert.Equal(t, "2 PLACE DE LA MAIRIE", first.Address)
	assert.Equal(t, "PARIS", first.City)
	assert.InDelta(t, 48.8606111, first.Latitude, 1e-9)
	assert.InDelta(t, 2.3376544, first.Longitude, 1e-9)
	require.NotNil(t, first.DistanceKM)
	assert.InDelta(t, 1.25, *first.DistanceKM, 1e-9)
	assert.Equal(t, []string{
		"Lundi: 09:00-12:00 / 14:00-18:00",
		"Mardi: 09:00-12:00 / 14:00-18:00",
		"Jeudi: 09:00-12:00 / 14:00-18:00",
		"Vendredi: 09:00-12:00 / 14:00-18:00",
		"Samedi: 09:00-12:30",
	}, first.OpeningHours)

	second := points[1]
	assert.Equal(t, "020398", second.ID)
	assert.Zero(t, second.Latitude)
	assert.InDelta(t, 2.34, second.Longitude, 1e-9)
	assert.Nil(t, second.DistanceKM)
	assert.Empty(t, second.OpeningHours)
}

func TestSOAP_SearchRelayPoints_Rejected(t *testing.T) {
	client := newSOAPClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, soapResponse("WSI4_PointRelais_Recherche", `<STAT>97</STAT>`))
	})

	_, err := client.SearchRelayPoints(context.Background(), testCreds, &shipper.RelayQuery{PostalCode: "75001"})
	assert.ErrorIs(t, err, shipper.ErrCarrierRejected)
	assert.Contains(t, err.Error(), "Clé de sécurité invalide")

	err = client.TestCredentials(context.Background(), testCreds)
	assert.ErrorIs(t, err, shipper.ErrAuthenticationFailed)
}

func TestBuildEnvelope(t *testing.T) {
	fields := signing.Fields{}.Add("Enseigne", "BDTEST13").Add("CP", "75001").Signed("Security", "PrivateK")
	body, err := mondialrelay.BuildEnvelope(mondialrelay.ActionSearchRelays, fields)
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, `<mr:WSI4_PointRelais_Recherche>`)
	assert.Contains(t, s, `</mr:WSI4_PointRelais_Recherche>`)
	assert.Less(t, bytes.Index(body, []byte("<Enseigne>")), bytes.Index(body, []byte("<CP>")))
	assert.Less(t, bytes.Index(body, []byte("<CP>")), bytes.Index(body, []byte("<Security>")))
}
