package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/util/actorutil"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	ZAPPI_ACTOR_ID = "zappi"

	requestTimeout = 20 * time.Second
	clientTimeout  = 15 * time.Second
)

type ZappiActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	charger  myenergi.ChargerClient
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewZappiActor(charger myenergi.ChargerClient, logger *zap.Logger) *ZappiActor {
	act := &ZappiActor{
		charger:  charger,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("zappi", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ZappiActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ZappiActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("zappi@starting started")
		if err := state.connect(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		_ = state.charger.Close()
	default:
		state.logger.Debug("zappi@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ZappiActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("zappi@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      ZAPPI_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetChargerStatusRequest:
		state.logger.Debug("zappi@default: GetChargerStatusRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getChargerStatus),
			mapTaskResult[domain.GetChargerStatusResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetChargerStatusResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(requestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCharger)
	case domain.ReconnectRequest:
		state.logger.Debug("zappi@default: ReconnectRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.reconnect),
			mapTaskResult[domain.ReconnectResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReconnectResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Id: ZAPPI_ACTOR_ID,
				},
				replyTo: sender,
			}
		}).WithTimeout(requestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCharger)
	case *actor.Stopping:
		_ = state.charger.Close()
	default:
		state.logger.Debug("zappi@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ZappiActor) WaitingCharger(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("zappi@WaitingCharger backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		_ = state.charger.Close()
	default:
		state.logger.Debug("zappi@WaitingCharger stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *ZappiActor) connect() error {
	callCtx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()
	return a.charger.Connect(callCtx)
}

func (a *ZappiActor) getChargerStatus() (*domain.GetChargerStatusResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	status, err := a.charger.Refresh(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetChargerStatusResponse{
		Status: status,
	}, nil
}

func (a *ZappiActor) reconnect() (*domain.ReconnectResponse, error) {
	_ = a.charger.Close()
	if err := a.connect(); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ReconnectResponse{
		Id: ZAPPI_ACTOR_ID,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
