package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/service"
	"github.com/greggjaskiewicz/BatterySitter/internal/util"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"
	"github.com/greggjaskiewicz/BatterySitter/pkg/sigen"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeUpstreams drives both fake adapter actors and records every override
// call the sitter makes.
type fakeUpstreams struct {
	mu           sync.Mutex
	evCharging   bool
	batteryPower float64
	chargerErr   error
	flowErr      error
	manualCalls  []domain.SetManualChargeRequest
}

func (f *fakeUpstreams) setEvCharging(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evCharging = v
}

func (f *fakeUpstreams) setBatteryPower(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batteryPower = v
}

func (f *fakeUpstreams) setChargerErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargerErr = err
}

func (f *fakeUpstreams) calls() []domain.SetManualChargeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SetManualChargeRequest{}, f.manualCalls...)
}

type fakeZappiActor struct {
	upstreams *fakeUpstreams
}

func (a *fakeZappiActor) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.GetChargerStatusRequest:
		a.upstreams.mu.Lock()
		charging := a.upstreams.evCharging
		chargerErr := a.upstreams.chargerErr
		a.upstreams.mu.Unlock()
		if chargerErr != nil {
			ctx.Respond(domain.GetChargerStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: chargerErr},
			})
			return
		}
		status := &myenergi.ChargerStatus{
			State:     myenergi.ChargerStatePaused,
			PlugState: myenergi.PlugStateOther,
		}
		if charging {
			status = &myenergi.ChargerStatus{
				State:       myenergi.ChargerStateCharging,
				PlugState:   myenergi.PlugStateCharging,
				ChargeWatts: 7000,
			}
		}
		ctx.Respond(domain.GetChargerStatusResponse{Status: status})
	case domain.ReconnectRequest:
		ctx.Respond(domain.ReconnectResponse{Id: domain.ACTOR_ID_ZAPPI})
	}
}

type fakeSigenActor struct {
	upstreams *fakeUpstreams
}

func (a *fakeSigenActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetOperationalModesRequest:
		ctx.Respond(domain.GetOperationalModesResponse{
			Modes: []sigen.OperationalMode{
				{Label: "Sigen AI Mode", Value: "1"},
				{Label: "Maximum Self-Powered Mode", Value: "2"},
			},
			CurrentMode: "Maximum Self-Powered Mode",
		})
	case domain.GetEnergyFlowRequest:
		a.upstreams.mu.Lock()
		power := a.upstreams.batteryPower
		flowErr := a.upstreams.flowErr
		a.upstreams.mu.Unlock()
		if flowErr != nil {
			ctx.Respond(domain.GetEnergyFlowResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: flowErr},
			})
			return
		}
		soc := 60.0
		ctx.Respond(domain.GetEnergyFlowResponse{
			Flow: &sigen.EnergyFlow{BatterySoc: &soc, BatteryPower: &power},
		})
	case domain.SetManualChargeRequest:
		a.upstreams.mu.Lock()
		a.upstreams.manualCalls = append(a.upstreams.manualCalls, msg)
		a.upstreams.mu.Unlock()
		ctx.Respond(domain.SetManualChargeResponse{Enabled: msg.Enable})
	case domain.ReconnectRequest:
		ctx.Respond(domain.ReconnectResponse{Id: domain.ACTOR_ID_SIGEN})
	}
}

func spawnSitterFixture(t *testing.T, upstreams *fakeUpstreams) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Polling.IntervalSeconds = 1
	logger := zap.Must(zap.NewDevelopment())

	zappiPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &fakeZappiActor{upstreams: upstreams}
	}))
	sigenPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &fakeSigenActor{upstreams: upstreams}
	}))

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewSitterActor(&cfg, zappiPID, sigenPID, &eventstream.EventStream{},
			&service.DefaultOverrideDecisionLogic{Logger: logger}, logger)
	})
	pid, err := context.SpawnNamed(props, "sitter")
	require.NoError(t, err)
	return as, context, pid
}

func TestSitterEnablesAndReleasesOverride(t *testing.T) {

	assert := assert.New(t)

	upstreams := &fakeUpstreams{evCharging: true, batteryPower: -200}
	as, context, pid := spawnSitterFixture(t, upstreams)
	defer as.Shutdown()

	// EV charging from the first tick; the fake battery keeps reporting a
	// discharge, so the override must be enabled and then re-issued
	time.Sleep(3500 * time.Millisecond)

	calls := upstreams.calls()
	require.NotEmpty(t, calls, "override must have been enabled")
	assert.True(calls[0].Enable)
	assert.Equal(30, calls[0].DurationMinutes)
	assert.EqualValues(10, calls[0].PowerKw)
	assert.GreaterOrEqual(len(calls), 2, "override must be re-issued while the battery reports no charge")

	// EV stops: the sitter must release its own override exactly once
	upstreams.setEvCharging(false)
	time.Sleep(2500 * time.Millisecond)

	calls = upstreams.calls()
	last := calls[len(calls)-1]
	assert.False(last.Enable, "override must be released when EV stops")

	disables := 0
	for _, c := range calls {
		if !c.Enable {
			disables++
		}
	}
	assert.Equal(1, disables, "exactly one release call")

	context.Stop(pid)
}

func TestSitterLeavesForeignChargeAlone(t *testing.T) {

	assert := assert.New(t)

	// battery already charging when the EV starts: no override calls at all
	upstreams := &fakeUpstreams{evCharging: true, batteryPower: 2000}
	as, context, pid := spawnSitterFixture(t, upstreams)
	defer as.Shutdown()

	time.Sleep(3 * time.Second)

	assert.Empty(upstreams.calls(), "must not touch somebody else's charge")

	// and when the EV stops, still nothing to undo
	upstreams.setEvCharging(false)
	time.Sleep(2 * time.Second)

	assert.Empty(upstreams.calls())

	context.Stop(pid)
}

func TestSitterReleasesOverrideWhenChargerUnreachable(t *testing.T) {

	assert := assert.New(t)

	upstreams := &fakeUpstreams{evCharging: true, batteryPower: -200}
	as, context, pid := spawnSitterFixture(t, upstreams)
	defer as.Shutdown()

	// wait until the override is held
	time.Sleep(2500 * time.Millisecond)
	require.NotEmpty(t, upstreams.calls())
	assert.True(upstreams.calls()[0].Enable)

	// the charger API goes down: the reading degrades to "not charging", so
	// the owned override must be released instead of being left on forever
	upstreams.setChargerErr(errors.New("charger offline"))
	time.Sleep(2500 * time.Millisecond)

	calls := upstreams.calls()
	last := calls[len(calls)-1]
	assert.False(last.Enable, "owned override must be released while the charger is unreachable")

	// and the loop kept ticking: once the charger answers again the override
	// comes back
	before := len(calls)
	upstreams.setChargerErr(nil)
	time.Sleep(2500 * time.Millisecond)

	calls = upstreams.calls()
	require.Greater(t, len(calls), before, "polling must continue after a failed tick")
	assert.True(calls[len(calls)-1].Enable)

	context.Stop(pid)
}

func TestSitterKeepsPollingThroughBatteryProbeFailure(t *testing.T) {

	assert := assert.New(t)

	// battery telemetry failing the whole time: unknown counts as not
	// charging, so the override is still taken and maintained
	upstreams := &fakeUpstreams{evCharging: true, batteryPower: -200,
		flowErr: errors.New("cloud timeout")}
	as, context, pid := spawnSitterFixture(t, upstreams)
	defer as.Shutdown()

	time.Sleep(3500 * time.Millisecond)

	calls := upstreams.calls()
	require.GreaterOrEqual(t, len(calls), 2, "ticks must survive battery probe failures")
	for _, c := range calls {
		assert.True(c.Enable)
	}

	context.Stop(pid)
}

func TestSitterShutdownReleasesOwnedOverride(t *testing.T) {

	assert := assert.New(t)

	upstreams := &fakeUpstreams{evCharging: true, batteryPower: -200}
	as, context, pid := spawnSitterFixture(t, upstreams)
	defer as.Shutdown()

	// wait until the override is held
	time.Sleep(2500 * time.Millisecond)
	require.NotEmpty(t, upstreams.calls())

	res, err := context.RequestFuture(pid, domain.ShutdownRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ShutdownResponse)
	require.True(t, ok)

	assert.True(resp.OverrideReleased)
	calls := upstreams.calls()
	assert.False(calls[len(calls)-1].Enable, "shutdown must end with a release call")

	context.Stop(pid)
}

func TestSitterShutdownWithoutOverride(t *testing.T) {

	assert := assert.New(t)

	upstreams := &fakeUpstreams{}
	as, context, pid := spawnSitterFixture(t, upstreams)
	defer as.Shutdown()

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ShutdownRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ShutdownResponse)
	require.True(t, ok)

	assert.False(resp.OverrideReleased, "nothing to release")
	assert.Empty(upstreams.calls())

	context.Stop(pid)
}
