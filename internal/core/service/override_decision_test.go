package service

import (
	"testing"

	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChargeStartIdleBattery(t *testing.T) {
	require := require.New(t)

	d := ctrl.Decide(state(false, false), charging(), batt(-200))
	require.Equal(domain.ActionEnableOverride, d.Action)
	require.True(d.NewState.IsEvCharging)
	require.True(d.NewState.OwnsOverride)
}

func TestChargeStartBatteryAlreadyCharging(t *testing.T) {
	require := require.New(t)

	d := ctrl.Decide(state(false, false), charging(), batt(1500))
	require.Equal(domain.ActionNone, d.Action)
	require.True(d.NewState.IsEvCharging)
	require.False(d.NewState.OwnsOverride, "must not take ownership of somebody else's charge")
}

func TestSteadyChargingBatterySupplied(t *testing.T) {
	require := require.New(t)

	// battery charging, no matter by whom: nothing to do, ownership unchanged
	d := ctrl.Decide(state(true, true), charging(), batt(3000))
	require.Equal(domain.ActionNone, d.Action)
	require.True(d.NewState.OwnsOverride)

	d = ctrl.Decide(state(true, false), charging(), batt(1500))
	require.Equal(domain.ActionNone, d.Action)
	require.True(d.NewState.IsEvCharging)
	require.False(d.NewState.OwnsOverride)
}

func TestSteadyChargingReenablesOnPowerDrop(t *testing.T) {
	require := require.New(t)

	// our timed window expired or the SOC ceiling cut the charge off
	d := ctrl.Decide(state(true, true), charging(), batt(-200))
	require.Equal(domain.ActionReenableOverride, d.Action)
	require.True(d.NewState.OwnsOverride)

	// a foreign charge that stops mid EV charge is taken over
	d = ctrl.Decide(state(true, false), charging(), batt(0))
	require.Equal(domain.ActionReenableOverride, d.Action)
	require.True(d.NewState.OwnsOverride)
}

func TestChargeStopReleasesOwnedOverride(t *testing.T) {
	require := require.New(t)

	d := ctrl.Decide(state(true, true), idle(), batt(3000))
	require.Equal(domain.ActionDisableOverride, d.Action)
	require.False(d.NewState.IsEvCharging)
	require.False(d.NewState.OwnsOverride)
}

func TestChargeStopWithoutOwnership(t *testing.T) {
	require := require.New(t)

	d := ctrl.Decide(state(true, false), idle(), batt(1500))
	require.Equal(domain.ActionNone, d.Action)
	require.False(d.NewState.IsEvCharging)
}

func TestNothingHappening(t *testing.T) {
	require := require.New(t)

	d := ctrl.Decide(state(false, false), idle(), batt(-500))
	require.Equal(domain.ActionNone, d.Action)
	require.Equal(state(false, false), d.NewState)
}

func TestUnknownBatteryPowerCountsAsIdle(t *testing.T) {
	require := require.New(t)

	// a flaky cloud reading must not suppress the override
	d := ctrl.Decide(state(false, false), charging(), domain.BatterySnapshot{})
	require.Equal(domain.ActionEnableOverride, d.Action)
	require.True(d.NewState.OwnsOverride)
}

func TestZeroBatteryPowerCountsAsIdle(t *testing.T) {
	require := require.New(t)

	d := ctrl.Decide(state(false, false), charging(), batt(0))
	require.Equal(domain.ActionEnableOverride, d.Action)
}

func TestOwnershipImpliesEvCharging(t *testing.T) {
	assert := assert.New(t)

	// run every (prev, observation) combination and check the invariant holds
	// on the resulting state
	states := []domain.OverrideState{
		state(false, false), state(true, false), state(true, true),
	}
	chargers := []*myenergi.ChargerStatus{charging(), idle()}
	batteries := []domain.BatterySnapshot{batt(-500), batt(0), batt(2000), {}}

	for _, prev := range states {
		for _, c := range chargers {
			for _, b := range batteries {
				d := ctrl.Decide(prev, c, b)
				if d.NewState.OwnsOverride {
					assert.True(d.NewState.IsEvCharging,
						"ownership without an active EV charge: prev=%+v charger=%+v", prev, c)
				}
			}
		}
	}
}

func TestFullChargeCycle(t *testing.T) {
	require := require.New(t)

	// idle -> charging -> charging -> window expiry -> stopped, as a real
	// session plays out
	s := state(false, false)

	d := ctrl.Decide(s, charging(), batt(-100))
	require.Equal(domain.ActionEnableOverride, d.Action)
	s = d.NewState

	d = ctrl.Decide(s, charging(), batt(3000))
	require.Equal(domain.ActionNone, d.Action)
	s = d.NewState

	d = ctrl.Decide(s, charging(), batt(0))
	require.Equal(domain.ActionReenableOverride, d.Action)
	s = d.NewState

	d = ctrl.Decide(s, idle(), batt(3000))
	require.Equal(domain.ActionDisableOverride, d.Action)
	require.Equal(state(false, false), d.NewState)
}

func state(evCharging, owns bool) domain.OverrideState {
	return domain.OverrideState{IsEvCharging: evCharging, OwnsOverride: owns}
}

func charging() *myenergi.ChargerStatus {
	return &myenergi.ChargerStatus{
		State:       myenergi.ChargerStateCharging,
		PlugState:   myenergi.PlugStateCharging,
		ChargeWatts: 7000,
	}
}

func idle() *myenergi.ChargerStatus {
	return &myenergi.ChargerStatus{
		State:     myenergi.ChargerStatePaused,
		PlugState: myenergi.PlugStateOther,
	}
}

func batt(powerWatt float64) domain.BatterySnapshot {
	soc := 60.0
	return domain.BatterySnapshot{Soc: &soc, Power: &powerWatt}
}

var ctrl = &DefaultOverrideDecisionLogic{
	Logger: zap.Must(zap.NewDevelopment()),
}
