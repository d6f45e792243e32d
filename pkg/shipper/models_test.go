package shipper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierbridge/pkg/shipper"
)

func TestParseCarrier(t *testing.T) {
	tests := []struct {
		in   string
		want shipper.Carrier
	}{
		{"colissimo", shipper.CarrierColissimo},
		{"Colissimo", shipper.CarrierColissimo},
		{"Mondial Relay", shipper.CarrierMondialRelay},
		{"mondialrelay", shipper.CarrierMondialRelay},
		{"mondial-relay", shipper.CarrierMondialRelay},
		{" La Poste ", shipper.CarrierLaPoste},
		{"laposte", shipper.CarrierLaPoste},
	}
	for _, tt := range tests {
		got, err := shipper.ParseCarrier(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := shipper.ParseCarrier("chronopost")
	assert.ErrorIs(t, err, shipper.ErrCarrierNotFound)
}

func TestCarrier_DisplayName(t *testing.T) {
	assert.Equal(t, "Colissimo", shipper.CarrierColissimo.DisplayName())
	assert.Equal(t, "Mondial Relay", shipper.CarrierMondialRelay.DisplayName())
	assert.Equal(t, "La Poste", shipper.CarrierLaPoste.DisplayName())
}

func TestShipmentStatus_IsTerminal(t *testing.T) {
	assert.True(t, shipper.StatusDelivered.IsTerminal())
	assert.True(t, shipper.StatusReturned.IsTerminal())
	assert.False(t, shipper.StatusInTransit.IsTerminal())
	assert.False(t, shipper.StatusPending.IsTerminal())
}

func TestTrackingURL(t *testing.T) {
	assert.Equal(t, "https://www.laposte.fr/outils/suivre-vos-envois?code=6A12345678901",
		shipper.TrackingURL(shipper.CarrierColissimo, "6A12345678901"))
	assert.Equal(t, "https://www.laposte.fr/outils/suivre-vos-envois?code=6A12345678901",
		shipper.TrackingURL(shipper.CarrierLaPoste, "6A12345678901"))
	assert.Equal(t, "https://www.mondialrelay.fr/suivi-de-colis/?numeroExpedition=12345678",
		shipper.TrackingURL(shipper.CarrierMondialRelay, "12345678"))
	assert.Equal(t, "https://www.laposte.fr/outils/suivre-vos-envois?code=A+B%26C",
		shipper.TrackingURL(shipper.CarrierLaPoste, "A B&C"))
}

func TestLabelRequest_Mode(t *testing.T) {
	req := &shipper.LabelRequest{}
	assert.Equal(t, shipper.DeliveryHome, req.Mode())
	req.DeliveryMode = shipper.DeliveryRelay
	assert.Equal(t, shipper.DeliveryRelay, req.Mode())
}
