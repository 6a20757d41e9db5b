package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/greggjaskiewicz/BatterySitter/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_ID_EV_CHARGING     = "ev_charging"
	SENSOR_ID_CHARGER_STATE   = "charger_state"
	SENSOR_ID_CHARGER_POWER   = "charger_power"
	SENSOR_ID_BATTERY_SOC     = "battery_soc"
	SENSOR_ID_BATTERY_POWER   = "battery_power"
	SENSOR_ID_OVERRIDE_ACTIVE = "override_active"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_BATTERY      = "battery"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_RUNNING      = "running"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("battsitter_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "greggjaskiewicz",
		Model:        "BatterySitter",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("BatterySitter %s", md5HashShort(baseTopic)),
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func SitterSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// EV charging
	sensors = append(sensors, GenericSensor{
		Device:      bridgeDevice,
		Id:          SENSOR_ID_EV_CHARGING,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "EV charging",
		DeviceClass: DEVICE_CLASS_RUNNING,
		Icon:        "mdi:ev-station",
		UniqueId:    uniqueId(bridgeDevice.Id, SENSOR_ID_EV_CHARGING),
	})

	// Charger state
	sensors = append(sensors, GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_CHARGER_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charger state",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_CHARGER_STATE),
	})

	// Charger power
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_CHARGER_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charger power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_CHARGER_POWER),
	})

	// Battery SoC
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	// Battery power flow
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_BATTERY_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_BATTERY_POWER),
	})

	// Override active
	sensors = append(sensors, GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_OVERRIDE_ACTIVE,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Battery override active",
		Icon:       "mdi:battery-plus",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_OVERRIDE_ACTIVE),
	})

	return sensors
}

// AllSensors is what HA discovery publishes.
func AllSensors(bridgeDevice Device) []GenericSensor {
	return append(BridgeSensors(bridgeDevice), SitterSensors(bridgeDevice)...)
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}
