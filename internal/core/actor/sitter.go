package actor

import (
	"fmt"
	"time"

	"github.com/greggjaskiewicz/BatterySitter/internal/config"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/events"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/port"
	. "github.com/greggjaskiewicz/BatterySitter/internal/util/actorutil"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	// cloud sessions go stale after a while, so both upstream sessions are
	// rebuilt on a fixed cadence
	reconnectInterval = 8 * time.Hour

	// the vendor override is a timed window; it is re-issued whenever the
	// battery stops charging mid EV charge, so the exact length only matters
	// if this process dies mid-session
	overrideWindowMinutes = 30

	adapterRequestTimeout = 25 * time.Second
)

// SitterActor polls the EV charger and the home battery on a fixed interval
// and reconciles the manual-charge override so the battery never discharges
// into the EV.
type SitterActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config      *config.Config
	zappiActor  *actor.PID
	sigenActor  *actor.PID
	eventStream *eventstream.EventStream
	decision    port.OverrideDecisionLogic

	overrideState    domain.OverrideState
	lastReconnect    time.Time
	pendingCharger   *domain.GetChargerStatusResponse
	pendingDecision  domain.TickDecision
	pendingReconnect int
	reconnectFailed  bool
	shutdownReplyTo  *actor.PID

	logger *zap.Logger
}

type sitterTick struct {
}

func NewSitterActor(config *config.Config, zappiActor, sigenActor *actor.PID,
	eventStream *eventstream.EventStream, decision port.OverrideDecisionLogic, logger *zap.Logger) *SitterActor {
	act := &SitterActor{
		config:      config,
		zappiActor:  zappiActor,
		sigenActor:  sigenActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		eventStream: eventStream,
		decision:    decision,
		logger:      ActorLogger("sitter", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *SitterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SitterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("sitter@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.lastReconnect = time.Now()
		state.overrideState = domain.OverrideState{}

		// list the station's operational modes once, for the log record
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sigenActor, domain.GetOperationalModesRequest{}, adapterRequestTimeout), func(err error) any {
			return domain.GetOperationalModesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingModesReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("sitter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) WaitingModesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetOperationalModesResponse:
		if msg.HasResponseError() {
			state.logger.Warn("sitter@waitingModes could not list operational modes", zap.Error(msg.GetResponseError()))
		} else {
			for _, mode := range msg.Modes {
				state.logger.Info("sitter: station operational mode",
					zap.String("label", mode.Label), zap.String("value", mode.Value))
			}
			state.logger.Info("sitter: current operational mode", zap.String("mode", msg.CurrentMode))
		}
		state.scheduleTick(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("sitter@waitingModes: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("sitter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SITTER,
			Healthy: true,
			State:   "idle",
		})
	case sitterTick:
		state.logger.Debug("sitter@default tick")
		if time.Since(state.lastReconnect) >= reconnectInterval {
			state.startReconnect(ctx)
			return
		}
		state.startProbe(ctx)
	case domain.ShutdownRequest:
		state.logger.Info("sitter@default shutdown requested",
			zap.Bool("owns_override", state.overrideState.OwnsOverride))
		state.shutdownReplyTo = ForRequest(msg).ReplyTo(ctx)
		if !state.overrideState.OwnsOverride {
			state.finishShutdown(ctx, false, nil)
			return
		}
		// release the override we hold before the process goes away
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sigenActor, domain.SetManualChargeRequest{
			Enable: false,
		}, adapterRequestTimeout), func(err error) any {
			return domain.SetManualChargeResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.ShuttingDownReceive)
	default:
		state.logger.Debug("sitter@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) startReconnect(ctx actor.Context) {
	state.logger.Info("sitter: session refresh due, reconnecting upstreams")
	state.pendingReconnect = 2
	state.reconnectFailed = false
	for _, pid := range []*actor.PID{state.zappiActor, state.sigenActor} {
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ReconnectRequest{}, adapterRequestTimeout), func(err error) any {
			return domain.ReconnectResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	}
	state.behavior.BecomeStacked(state.WaitingReconnectReceive)
}

func (state *SitterActor) WaitingReconnectReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReconnectResponse:
		if msg.HasResponseError() {
			state.logger.Error("sitter@reconnect upstream reconnect failed", zap.Error(msg.GetResponseError()))
			state.reconnectFailed = true
		} else {
			state.logger.Info("sitter@reconnect upstream reconnected", zap.String("id", msg.Id))
		}
		state.pendingReconnect--
		if state.pendingReconnect <= 0 {
			// the clock only resets when both sessions came back; otherwise the
			// next tick retries the reconnect
			if !state.reconnectFailed {
				state.lastReconnect = time.Now()
			}
			state.behavior.UnbecomeStacked()
			state.startProbe(ctx)
		}
	default:
		state.logger.Debug("sitter@reconnect: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) startProbe(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.zappiActor, domain.GetChargerStatusRequest{}, adapterRequestTimeout), func(err error) any {
		return domain.GetChargerStatusResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.behavior.BecomeStacked(state.WaitingChargerReceive)
}

func (state *SitterActor) WaitingChargerReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetChargerStatusResponse:
		if msg.HasResponseError() {
			// degrade to "not charging" so the decision table still runs and
			// an owned override is released even while the charger API is down
			state.logger.Error("sitter@waitingCharger charger poll failed, treating EV as not charging",
				zap.Error(msg.GetResponseError()))
			state.pendingCharger = nil
		} else {
			state.logger.Debug("sitter@waitingCharger GetChargerStatusResponse",
				zap.String("state", string(msg.Status.State)))
			state.pendingCharger = &msg
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sigenActor, domain.GetEnergyFlowRequest{}, adapterRequestTimeout), func(err error) any {
			return domain.GetEnergyFlowResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.UnbecomeStacked()
		state.behavior.BecomeStacked(state.WaitingFlowReceive)
	default:
		state.logger.Debug("sitter@waitingCharger: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) WaitingFlowReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetEnergyFlowResponse:
		// a failed or empty battery reading degrades to an all-unknown
		// snapshot; the decision logic treats unknown as not charging
		battery := domain.BatterySnapshot{}
		if msg.HasResponseError() {
			state.logger.Warn("sitter@waitingFlow battery poll failed", zap.Error(msg.GetResponseError()))
		} else if msg.Flow == nil {
			state.logger.Warn("sitter@waitingFlow battery info unavailable")
		} else {
			battery = domain.BatterySnapshot{Soc: msg.Flow.BatterySoc, Power: msg.Flow.BatteryPower}
		}

		// a failed charger probe reads as an EV that is not charging
		var charger *myenergi.ChargerStatus
		if state.pendingCharger != nil {
			charger = state.pendingCharger.Status
		} else {
			charger = &myenergi.ChargerStatus{
				State:     myenergi.ChargerStateOther,
				PlugState: myenergi.PlugStateOther,
			}
		}
		state.pendingCharger = nil

		state.publishTelemetry(charger, battery)
		state.logger.Debug("sitter: tick observation",
			zap.Bool("ev_charging", charger.IsActivelyCharging()),
			zap.Bool("battery_charging", battery.AlreadyCharging()))

		decision := state.decision.Decide(state.overrideState, charger, battery)
		state.behavior.UnbecomeStacked()

		if decision.Action == domain.ActionNone {
			state.adoptState(decision.NewState)
			state.finishTick(ctx)
			return
		}
		state.pendingDecision = decision
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sigenActor, state.controlRequest(decision.Action), adapterRequestTimeout), func(err error) any {
			return domain.SetManualChargeResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingControlReceive)
	default:
		state.logger.Debug("sitter@waitingFlow: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) WaitingControlReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.SetManualChargeResponse:
		if msg.HasResponseError() {
			// keep the previous state untouched so the same transition is
			// retried naturally on the next tick
			state.logger.Error("sitter@waitingControl override call failed",
				zap.String("action", state.pendingDecision.Action.String()),
				zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("sitter: override applied",
				zap.String("action", state.pendingDecision.Action.String()))
			state.adoptState(state.pendingDecision.NewState)
		}
		state.pendingDecision = domain.TickDecision{}
		state.behavior.UnbecomeStacked()
		state.finishTick(ctx)
	default:
		state.logger.Debug("sitter@waitingControl: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SitterActor) ShuttingDownReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.SetManualChargeResponse:
		if msg.HasResponseError() {
			state.logger.Error("sitter@shutdown could not release override", zap.Error(msg.GetResponseError()))
			state.finishShutdown(ctx, false, msg.GetResponseError())
			return
		}
		state.logger.Info("sitter@shutdown override released")
		state.overrideState = domain.OverrideState{}
		state.finishShutdown(ctx, true, nil)
	default:
		// ticks and stale replies are irrelevant now
		state.logger.Debug("sitter@shutdown drop", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SitterActor) DoneReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SITTER,
			Healthy: false,
			State:   "shutdown",
		})
	default:
		state.logger.Debug("sitter@done drop", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SitterActor) finishShutdown(ctx actor.Context, released bool, err error) {
	if state.shutdownReplyTo != nil {
		ctx.Send(state.shutdownReplyTo, domain.ShutdownResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			OverrideReleased: released,
		})
		state.shutdownReplyTo = nil
	}
	state.behavior.Become(state.DoneReceive)
}

func (state *SitterActor) controlRequest(action domain.TickAction) domain.SetManualChargeRequest {
	if action == domain.ActionDisableOverride {
		return domain.SetManualChargeRequest{Enable: false}
	}
	return domain.SetManualChargeRequest{
		Enable:          true,
		DurationMinutes: overrideWindowMinutes,
		PowerKw:         state.config.Sigenergy.ChargingPower,
	}
}

func (state *SitterActor) adoptState(newState domain.OverrideState) {
	if newState != state.overrideState {
		state.logger.Info("sitter: state change",
			zap.Bool("ev_charging", newState.IsEvCharging),
			zap.Bool("owns_override", newState.OwnsOverride))
	}
	state.overrideState = newState
	state.eventStream.Publish(events.OverrideStateToUpdateEvent(newState))
}

func (state *SitterActor) publishTelemetry(charger *myenergi.ChargerStatus, battery domain.BatterySnapshot) {
	for _, ev := range events.ChargerStatusToUpdateEvents(charger) {
		state.eventStream.Publish(ev)
	}
	for _, ev := range events.BatterySnapshotToUpdateEvents(battery) {
		state.eventStream.Publish(ev)
	}
}

func (state *SitterActor) scheduleTick(ctx actor.Context) {
	state.scheduler.RequestOnce(time.Duration(state.config.Polling.IntervalSeconds)*time.Second, ctx.Self(), sitterTick{})
}

func (state *SitterActor) finishTick(ctx actor.Context) {
	state.scheduleTick(ctx)
	state.stash.UnstashAll(ctx)
}
