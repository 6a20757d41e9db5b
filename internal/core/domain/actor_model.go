package domain

import (
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"
	"github.com/greggjaskiewicz/BatterySitter/pkg/sigen"
)

const (
	ACTOR_ID_MASTER = "master"
	ACTOR_ID_ZAPPI  = "zappi"
	ACTOR_ID_SIGEN  = "sigen"
	ACTOR_ID_SITTER = "sitter"
	ACTOR_ID_MQTT   = "mqtt"
)

type GetChargerStatusRequest struct {
	ActorRequestMixIn
}

type GetChargerStatusResponse struct {
	ActorResponseMixIn
	Status *myenergi.ChargerStatus
}

type GetEnergyFlowRequest struct {
	ActorRequestMixIn
}

type GetEnergyFlowResponse struct {
	ActorResponseMixIn
	Flow *sigen.EnergyFlow
}

type GetOperationalModesRequest struct {
	ActorRequestMixIn
}

type GetOperationalModesResponse struct {
	ActorResponseMixIn
	Modes       []sigen.OperationalMode
	CurrentMode string
}

type SetManualChargeRequest struct {
	ActorRequestMixIn
	Enable          bool
	DurationMinutes int
	PowerKw         float64
}

type SetManualChargeResponse struct {
	ActorResponseMixIn
	Enabled bool
}

// ReconnectRequest asks an adapter to drop and rebuild its upstream session.
type ReconnectRequest struct {
	ActorRequestMixIn
}

type ReconnectResponse struct {
	ActorResponseMixIn
	Id string
}

// ShutdownRequest lets the sitter release a held override before the actor
// system stops. The response is sent once cleanup is done (or skipped).
type ShutdownRequest struct {
	ActorRequestMixIn
}

type ShutdownResponse struct {
	ActorResponseMixIn
	OverrideReleased bool
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
