package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/greggjaskiewicz/BatterySitter/internal/adapter/actor"
	"github.com/greggjaskiewicz/BatterySitter/internal/config"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/events"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/service"
	. "github.com/greggjaskiewicz/BatterySitter/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type ZappiActorProvider func() *adactor.ZappiActor

type SigenActorProvider func() *adactor.SigenActor

type MQTTActorProvider func() *adactor.MQTTActor

// MasterOfPuppetsActor owns the whole actor tree: both upstream adapters, the
// sitter control loop and the optional MQTT bridge.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	streamSubscription *eventstream.Subscription
	zappiActor         *actor.PID
	sigenActor         *actor.PID
	sitterActor        *actor.PID
	mqttActor          *actor.PID
	zappiActorProvider ZappiActorProvider
	sigenActorProvider SigenActorProvider
	mqttActorProvider  MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	zappiActorHealthy  bool
	sigenActorHealthy  bool
	sitterActorHealthy bool
	mqttActorHealthy   bool
	mqttExpected       bool
	checksReceived     int
	respondTo          *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, zappiActorProvider ZappiActorProvider,
	sigenActorProvider SigenActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:             config,
		behavior:           actor.NewBehavior(),
		stash:              &Stash{},
		logger:             ActorLogger("master", logger),
		eventStream:        &eventstream.EventStream{},
		zappiActorProvider: zappiActorProvider,
		sigenActorProvider: sigenActorProvider,
		mqttActorProvider:  mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.mqttExpected = state.config.MQTTEnabled()
		state.currentHealthCheck.reset()

		// start Zappi child
		zappiActorPID, err := state.startZappiActor(ctx)
		if err != nil {
			panic(err)
		}
		state.zappiActor = zappiActorPID

		// start Sigen child
		sigenActorPID, err := state.startSigenActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sigenActor = sigenActorPID

		// start MQTT child, only when a broker is configured
		if state.config.MQTTEnabled() {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
			state.subscribeMQTTToEvents(ctx)
			if state.config.MQTT.HADiscoveryEnable {
				bridge := events.BridgeDevice(state.config.MQTT.BaseTopic)
				ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
					Sensors: events.AllSensors(bridge),
				})
			}
		}

		// start Sitter child
		sitterActorPID, err := state.startSitterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sitterActor = sitterActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// Zappi Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.zappiActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_ZAPPI,
				Healthy: false,
			}
		})
		// Sigen Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sigenActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_SIGEN,
				Healthy: false,
			}
		})
		// Sitter Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sitterActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_SITTER,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		if state.mqttActor != nil {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_MQTT,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.ShutdownRequest:
		// the sitter releases any held override and answers the caller
		state.logger.Info("master@default shutdown requested")
		ctx.Forward(state.sitterActor)
	case *actor.Stopping:
		if state.streamSubscription != nil {
			state.eventStream.Unsubscribe(state.streamSubscription)
			state.streamSubscription = nil
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_ZAPPI:
				state.currentHealthCheck.zappiActorHealthy = true
			case domain.ACTOR_ID_SIGEN:
				state.currentHealthCheck.sigenActorHealthy = true
			case domain.ACTOR_ID_SITTER:
				state.currentHealthCheck.sitterActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startZappiActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	zappiProps := actor.PropsFromProducer(func() actor.Actor {
		return state.zappiActorProvider()
	}, actor.WithSupervisor(supervisor))
	zappiActorPID, err := ctx.SpawnNamed(zappiProps, domain.ACTOR_ID_ZAPPI)
	if err != nil {
		return nil, err
	}

	return zappiActorPID, nil
}

func (state *MasterOfPuppetsActor) startSigenActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	sigenProps := actor.PropsFromProducer(func() actor.Actor {
		return state.sigenActorProvider()
	}, actor.WithSupervisor(supervisor))
	sigenActorPID, err := ctx.SpawnNamed(sigenProps, domain.ACTOR_ID_SIGEN)
	if err != nil {
		return nil, err
	}

	return sigenActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startSitterActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	sitterProps := actor.PropsFromProducer(func() actor.Actor {
		return NewSitterActor(&state.config, state.zappiActor, state.sigenActor, state.eventStream,
			&service.DefaultOverrideDecisionLogic{Logger: state.logger}, state.logger)
	}, actor.WithSupervisor(supervisor))
	sitterActorPID, err := ctx.SpawnNamed(sitterProps, domain.ACTOR_ID_SITTER)
	if err != nil {
		return nil, err
	}

	return sitterActorPID, nil
}

// subscribeMQTTToEvents routes sensor updates from the event stream to the
// MQTT actor. The handler runs on the publisher's goroutine, so it must go
// through the root context.
func (state *MasterOfPuppetsActor) subscribeMQTTToEvents(ctx actor.Context) {
	system := ctx.ActorSystem()
	mqttPID := state.mqttActor
	state.streamSubscription = state.eventStream.Subscribe(func(evt interface{}) {
		if event, ok := evt.(domain.SensorUpdateEvent); ok {
			system.Root.Send(mqttPID, domain.PublishSensorUpdateRequest{
				Event: event,
			})
		}
	})
}

func (state *healthCheckResult) reset() {
	state.zappiActorHealthy = false
	state.sigenActorHealthy = false
	state.sitterActorHealthy = false
	state.mqttActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) expectedChecks() int {
	if state.mqttExpected {
		return 4
	}
	return 3
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == state.expectedChecks()
}

func (state *healthCheckResult) allHealthy() bool {
	healthy := state.zappiActorHealthy && state.sigenActorHealthy && state.sitterActorHealthy
	if state.mqttExpected {
		healthy = healthy && state.mqttActorHealthy
	}
	return healthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
