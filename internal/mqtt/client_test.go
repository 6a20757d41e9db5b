package mqtt

import (
	"testing"

	"github.com/greggjaskiewicz/BatterySitter/internal/config"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/events"

	"github.com/stretchr/testify/assert"
)

func TestStateTopics(t *testing.T) {

	assert := assert.New(t)

	c := &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "battsitter"}}

	assert.Equal("battsitter/bridge/state", c.BridgeStateTopic())
	assert.Equal("battsitter/sensor/battery_soc/state", c.SensorStateTopic("battery_soc"))
	assert.Equal("battsitter/binary_sensor/ev_charging/state", c.BinarySensorStateTopic("ev_charging"))
}

func TestHADiscoveryMessages(t *testing.T) {

	assert := assert.New(t)

	c := &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "battsitter"}}
	bridge := events.BridgeDevice("battsitter")

	for _, sensor := range events.AllSensors(bridge) {
		msg := GenericSensorToHADiscoveryMessage(c, sensor)

		assert.NotEmpty(msg.StateTopic, "state topic for %s", sensor.Id)
		assert.Equal(c.BridgeStateTopic(), msg.AvTopic, "availability topic for %s", sensor.Id)
		assert.Equal("mqtt", msg.Platform)

		if sensor.Id == events.SENSOR_ID_BRIDGE_STATE {
			assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
			assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
		} else if sensor.SensorType == events.SENSOR_TYPE_BINARY {
			assert.Equal(MQTT_PAYLOAD_ON, msg.PayloadOn)
			assert.Equal(MQTT_PAYLOAD_OFF, msg.PayloadOff)
		}
	}
}

func TestHADiscoveryTopic(t *testing.T) {

	assert := assert.New(t)

	bridge := events.BridgeDevice("battsitter")
	sensors := events.SitterSensors(bridge)

	topic := HADiscoverySensorTopic(sensors[0])
	assert.Contains(topic, "homeassistant/binary_sensor/")
	assert.Contains(topic, "/ev_charging/config")
}
