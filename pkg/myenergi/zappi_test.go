package myenergi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZappiStatus(t *testing.T) {
	require := require.New(t)

	body := []byte(`{"zappi":[{"sno":16016000,"dat":"01-01-2026","tim":"12:00:00",` +
		`"div":7200,"sta":3,"pst":"C2","zmo":1,"frq":50.01}]}`)

	status, err := parseZappiStatus(body, "16016000")
	require.NoError(err)
	require.Equal(ChargerStateCharging, status.State)
	require.Equal(PlugStateCharging, status.PlugState)
	require.Equal(ChargeModeFast, status.ChargeMode)
	require.Equal(7200, status.ChargeWatts)
	require.True(status.IsActivelyCharging())
}

func TestParseZappiStatusWrongSerial(t *testing.T) {
	body := []byte(`{"zappi":[{"sno":16016000,"sta":3,"pst":"C2","zmo":1}]}`)

	_, err := parseZappiStatus(body, "99999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "99999999")
}

func TestParseZappiStatusMalformed(t *testing.T) {
	_, err := parseZappiStatus([]byte(`not json`), "16016000")
	require.Error(t, err)
}

func TestIsActivelyCharging(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		name   string
		status ChargerStatus
		want   bool
	}{
		{"charging with plug active", ChargerStatus{State: ChargerStateCharging, PlugState: PlugStateCharging}, true},
		{"boosting with plug active", ChargerStatus{State: ChargerStateBoosting, PlugState: PlugStateCharging}, true},
		{"charging but plug negotiating", ChargerStatus{State: ChargerStateCharging, PlugState: PlugStateOther}, false},
		{"plug active but paused", ChargerStatus{State: ChargerStatePaused, PlugState: PlugStateCharging}, false},
		{"completed", ChargerStatus{State: ChargerStateCompleted, PlugState: PlugStateOther}, false},
	}
	for _, c := range cases {
		assert.Equal(c.want, c.status.IsActivelyCharging(), c.name)
	}
}

func TestStateCodeMapping(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(ChargerStatePaused, chargerStateFromCode(1))
	assert.Equal(ChargerStateOther, chargerStateFromCode(2))
	assert.Equal(ChargerStateCharging, chargerStateFromCode(3))
	assert.Equal(ChargerStateBoosting, chargerStateFromCode(4))
	assert.Equal(ChargerStateCompleted, chargerStateFromCode(5))
	assert.Equal(ChargerStateOther, chargerStateFromCode(42))

	assert.Equal(PlugStateCharging, plugStateFromCode("C2"))
	assert.Equal(PlugStateOther, plugStateFromCode("B2"))
	assert.Equal(PlugStateOther, plugStateFromCode(""))

	assert.Equal(ChargeModeEcoPlus, chargeModeFromCode(3))
	assert.Equal(ChargeModeUnknown, chargeModeFromCode(0))
}
