package events

import (
	. "github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"
)

func ChargerStatusToUpdateEvents(status *myenergi.ChargerStatus) []any {
	var events []any

	// EV charging
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_EV_CHARGING,
		},
		Value: status.IsActivelyCharging(),
	})
	// Charger state
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGER_STATE,
		},
		Value: string(status.State),
	})
	// Charger power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGER_POWER,
		},
		Value:    float64(status.ChargeWatts),
		Decimals: 0,
	})

	return events
}

func BatterySnapshotToUpdateEvents(battery BatterySnapshot) []any {
	var events []any

	if battery.Soc != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_SOC,
			},
			Value:    *battery.Soc,
			Decimals: 1,
		})
	}
	if battery.Power != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_POWER,
			},
			Value:    *battery.Power,
			Decimals: 0,
		})
	}

	return events
}

func OverrideStateToUpdateEvent(state OverrideState) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_ACTIVE,
		},
		Value: state.OwnsOverride,
	}
}
