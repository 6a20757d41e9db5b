package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/greggjaskiewicz/BatterySitter/internal/adapter/actor"
	"github.com/greggjaskiewicz/BatterySitter/internal/config"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/actor"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/server"
	"github.com/greggjaskiewicz/BatterySitter/internal/util/actorutil"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"
	"github.com/greggjaskiewicz/BatterySitter/pkg/sigen"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, rootContext *pactor.RootContext, masterActor *pactor.PID, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// Release any held battery override before anything else goes away
	res, err := rootContext.RequestFuture(masterActor, domain.ShutdownRequest{}, 15*time.Second).Result()
	if err != nil {
		log.Printf("shutdown: could not confirm override release: %v", err)
	} else if resp, ok := res.(domain.ShutdownResponse); ok && resp.OverrideReleased {
		log.Println("shutdown: battery override released")
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	sigenProv, err := sigenActorProvider(cfg, logger)
	if err != nil {
		slog.Error("sigenergy client", "error", err)
		os.Exit(1)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, zappiActorProvider(cfg, logger), sigenProv,
			mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		slog.Error("could not spawn master actor", "error", err)
		os.Exit(1)
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, ctx, pid, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => BATTSITTER_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("BATTSITTER_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("battsitter")
	viper.AutomaticEnv()

	cfgFile := os.Getenv("CONFIG_FILE")
	if cfgFile == "" {
		cfgFile = "config.json"
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf("config file %s not found", cfgFile)
	}
	slog.Info("Using config", "file", cfgFile)
	viper.SetConfigFile(cfgFile)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", cfgFile, err)
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func zappiActorProvider(cfg *config.Config, logger *zap.Logger) actor.ZappiActorProvider {
	return func() *adactor.ZappiActor {
		client := myenergi.NewChargerClient(cfg.Zappi.Username, cfg.Zappi.Password, cfg.Zappi.Serial, logger)
		return adactor.NewZappiActor(client, logger)
	}
}

func sigenActorProvider(cfg *config.Config, logger *zap.Logger) (actor.SigenActorProvider, error) {

	client, err := sigen.NewClient(cfg.Sigenergy.Username, cfg.Sigenergy.Password, cfg.Sigenergy.Region, logger)
	if err != nil {
		return nil, err
	}

	return func() *adactor.SigenActor {
		return adactor.NewSigenActor(client, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "battsitter")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("polling.interval_seconds", 30)
	viper.SetDefault("sigenergy.region", "eu")
	viper.SetDefault("sigenergy.charging_power", 10)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.Zappi.Password = "*redacted*"
	cfg.Sigenergy.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
