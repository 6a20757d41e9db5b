package util

import (
	"github.com/greggjaskiewicz/BatterySitter/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Zappi: config.ZappiConfig{
			Username: "A12345",
			Password: "apikey",
			Serial:   "16016000",
		},
		Sigenergy: config.SigenergyConfig{
			Username:      "user@example.com",
			Password:      "secret",
			Region:        "eu",
			ChargingPower: 10,
		},
		Polling: config.PollingConfig{
			IntervalSeconds: 60,
		},
		MQTT: config.MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		Port: 8080,
	}
}
