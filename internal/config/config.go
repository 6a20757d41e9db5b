package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	Zappi     ZappiConfig     `mapstructure:"zappi"`
	Sigenergy SigenergyConfig `mapstructure:"sigenergy"`
	Polling   PollingConfig   `mapstructure:"polling"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

type ZappiConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Serial   string `mapstructure:"serial"`
}

type SigenergyConfig struct {
	Username      string  `mapstructure:"username"`
	Password      string  `mapstructure:"password"`
	Region        string  `mapstructure:"region"`
	ChargingPower float64 `mapstructure:"charging_power"`
}

type PollingConfig struct {
	IntervalSeconds uint32 `mapstructure:"interval_seconds"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// MQTTEnabled reports whether an MQTT broker is configured at all. The bridge
// runs fine without one.
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Host != ""
}

// Validate checks the fields the bridge cannot run without.
func (c *Config) Validate() error {
	if c.Zappi.Username == "" || c.Zappi.Password == "" {
		return errors.New("zappi.username and zappi.password are required")
	}
	if c.Zappi.Serial == "" {
		return errors.New("zappi.serial is required")
	}
	if c.Sigenergy.Username == "" || c.Sigenergy.Password == "" {
		return errors.New("sigenergy.username and sigenergy.password are required")
	}
	if c.Sigenergy.ChargingPower <= 0 {
		return fmt.Errorf("sigenergy.charging_power must be positive, got %v", c.Sigenergy.ChargingPower)
	}
	if c.Polling.IntervalSeconds < 1 {
		return errors.New("polling.interval_seconds must be at least 1")
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
