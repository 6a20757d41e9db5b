package actor

import (
	"context"
	"fmt"

	"github.com/greggjaskiewicz/BatterySitter/internal/adapter/override"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/util/actorutil"
	"github.com/greggjaskiewicz/BatterySitter/pkg/sigen"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	SIGEN_ACTOR_ID = "sigen"
)

type SigenActor struct {
	behavior   actor.Behavior
	stash      *actorutil.Stash
	cloud      sigen.Client
	controller *override.Controller
	logger     *zap.Logger
}

func NewSigenActor(cloud sigen.Client, logger *zap.Logger) *SigenActor {
	act := &SigenActor{
		cloud:      cloud,
		controller: override.NewController(cloud, logger),
		behavior:   actor.NewBehavior(),
		stash:      &actorutil.Stash{},
		logger:     actorutil.ActorLogger("sigen", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *SigenActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SigenActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("sigen@starting started")
		if err := state.initialize(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		_ = state.cloud.Close()
	default:
		state.logger.Debug("sigen@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SigenActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("sigen@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      SIGEN_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetEnergyFlowRequest:
		state.logger.Debug("sigen@default: GetEnergyFlowRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getEnergyFlow),
			mapTaskResult[domain.GetEnergyFlowResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetEnergyFlowResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(requestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.GetOperationalModesRequest:
		state.logger.Debug("sigen@default: GetOperationalModesRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getOperationalModes),
			mapTaskResult[domain.GetOperationalModesResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetOperationalModesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(requestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.SetManualChargeRequest:
		state.logger.Debug("sigen@default: SetManualChargeRequest",
			zap.Bool("enable", msg.Enable))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SetManualChargeResponse, error) {
			a := state.setManualCharge(msg)
			return &a, nil
		}),
			mapTaskResult[domain.SetManualChargeResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetManualChargeResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(requestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.ReconnectRequest:
		state.logger.Debug("sigen@default: ReconnectRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.reconnect),
			mapTaskResult[domain.ReconnectResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReconnectResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Id: SIGEN_ACTOR_ID,
				},
				replyTo: sender,
			}
		}).WithTimeout(requestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case *actor.Stopping:
		_ = state.cloud.Close()
	default:
		state.logger.Debug("sigen@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SigenActor) WaitingCloud(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("sigen@WaitingCloud backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		_ = state.cloud.Close()
	default:
		state.logger.Debug("sigen@WaitingCloud stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *SigenActor) initialize() error {
	callCtx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()
	return a.cloud.Initialize(callCtx)
}

func (a *SigenActor) getEnergyFlow() (*domain.GetEnergyFlowResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	flow, err := a.cloud.GetEnergyFlow(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetEnergyFlowResponse{
		Flow: flow,
	}, nil
}

func (a *SigenActor) getOperationalModes() (*domain.GetOperationalModesResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	modes, err := a.cloud.GetOperationalModes(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	current, err := a.cloud.GetOperationalMode(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetOperationalModesResponse{
		Modes:       modes,
		CurrentMode: current,
	}, nil
}

func (a *SigenActor) setManualCharge(msg domain.SetManualChargeRequest) domain.SetManualChargeResponse {
	callCtx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	err := a.controller.Set(callCtx, msg.Enable, msg.DurationMinutes, msg.PowerKw)
	if err != nil {
		logger.Error(err)
		return domain.SetManualChargeResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.SetManualChargeResponse{
		Enabled: msg.Enable,
	}
}

func (a *SigenActor) reconnect() (*domain.ReconnectResponse, error) {
	_ = a.cloud.Close()
	if err := a.initialize(); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ReconnectResponse{
		Id: SIGEN_ACTOR_ID,
	}, nil
}
