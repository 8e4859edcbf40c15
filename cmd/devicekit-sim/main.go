// Command devicekit-sim is an interactive device simulator.
//
// The simulator loads a capability model, connects to a hub (directly or
// through provisioning) and offers a prompt to send telemetry, report
// properties and watch inbound traffic. Every command the model declares
// is answered with an echo handler so platform-side command flows can be
// exercised end to end.
//
// Usage:
//
//	devicekit-sim -model <path> -device-id <id> -key <base64> [flags]
//
// Flags (every flag can also be set via a DEVICEKIT_* environment
// variable):
//
//	-model string               Capability model path (JSON or YAML)
//	-device-id string           Device identity
//	-key string                 Base64 symmetric device key
//	-endpoint string            Hub endpoint (skips provisioning)
//	-scope string               Provisioning ID scope
//	-provision-endpoint string  Provisioning service URL
//	-transport string           Transport: mqtt, http (default "mqtt")
//	-log-level string           Log level: debug, info, warn, error
//	-prefer-gateway             Prefer a local gateway found via mDNS
//	-state-dir string           Directory for cached registration state
//	-traffic-log string         Append wire traffic events to this file
//
// Examples:
//
//	# Connect directly to a hub
//	devicekit-sim -model thermostat.json -device-id therm-01 \
//	    -key "c2VjcmV0" -endpoint hub.example.com
//
//	# Provision first, caching the assignment under /var/lib/devicekit
//	devicekit-sim -model thermostat.json -device-id therm-01 \
//	    -key "c2VjcmV0" -scope 0ne0042 \
//	    -provision-endpoint https://provision.example.com \
//	    -state-dir /var/lib/devicekit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joeshaw/envdecode"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/client"
	"github.com/latticeiot/devicekit-go/pkg/log"
	"github.com/latticeiot/devicekit-go/pkg/persistence"
	"github.com/latticeiot/devicekit-go/pkg/provisioning"
)

// Config holds the simulator configuration. Environment variables provide
// defaults, flags override them.
type Config struct {
	ModelPath         string `env:"DEVICEKIT_MODEL" description:"capability model path"`
	DeviceID          string `env:"DEVICEKIT_DEVICE_ID" description:"device identity"`
	Key               string `env:"DEVICEKIT_KEY" description:"base64 symmetric device key"`
	Endpoint          string `env:"DEVICEKIT_ENDPOINT" description:"hub endpoint"`
	IDScope           string `env:"DEVICEKIT_ID_SCOPE" description:"provisioning ID scope"`
	ProvisionEndpoint string `env:"DEVICEKIT_PROVISION_ENDPOINT" description:"provisioning service URL"`
	Transport         string `env:"DEVICEKIT_TRANSPORT,default=mqtt" description:"transport kind"`
	LogLevel          string `env:"DEVICEKIT_LOG_LEVEL,default=info" description:"log level"`
	PreferGateway     bool   `env:"DEVICEKIT_PREFER_GATEWAY,default=false" description:"prefer a local gateway"`
	StateDir          string `env:"DEVICEKIT_STATE_DIR" description:"registration state directory"`
	TrafficLog        string `env:"DEVICEKIT_TRAFFIC_LOG" description:"wire traffic log file"`
}

var config Config

func main() {
	if err := envdecode.Decode(&config); err != nil {
		fmt.Fprintf(os.Stderr, "error: reading environment: %v\n", err)
		os.Exit(1)
	}
	registerFlags()

	if err := validateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// registerFlags overlays command-line flags on top of the environment
// defaults already decoded into config.
func registerFlags() {
	flag.StringVar(&config.ModelPath, "model", config.ModelPath, "Capability model path (JSON or YAML)")
	flag.StringVar(&config.DeviceID, "device-id", config.DeviceID, "Device identity")
	flag.StringVar(&config.Key, "key", config.Key, "Base64 symmetric device key")
	flag.StringVar(&config.Endpoint, "endpoint", config.Endpoint, "Hub endpoint (skips provisioning)")
	flag.StringVar(&config.IDScope, "scope", config.IDScope, "Provisioning ID scope")
	flag.StringVar(&config.ProvisionEndpoint, "provision-endpoint", config.ProvisionEndpoint, "Provisioning service URL")
	flag.StringVar(&config.Transport, "transport", config.Transport, "Transport: mqtt, http")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
	flag.BoolVar(&config.PreferGateway, "prefer-gateway", config.PreferGateway, "Prefer a local gateway found via mDNS")
	flag.StringVar(&config.StateDir, "state-dir", config.StateDir, "Directory for cached registration state")
	flag.StringVar(&config.TrafficLog, "traffic-log", config.TrafficLog, "Append wire traffic events to this file")
	flag.Parse()
}

func validateConfig() error {
	if config.DeviceID == "" {
		return errors.New("missing -device-id")
	}
	if config.Key == "" {
		return errors.New("missing -key")
	}
	if config.Endpoint == "" && (config.IDScope == "" || config.ProvisionEndpoint == "") {
		return errors.New("either -endpoint or both -scope and -provision-endpoint are required")
	}
	if config.Endpoint != "" && (config.IDScope != "" || config.ProvisionEndpoint != "") {
		return errors.New("-endpoint excludes -scope and -provision-endpoint")
	}
	return nil
}

func run() error {
	logger := setupLogging(config.LogLevel)

	authClient, err := auth.NewSymmetricKeyClient(config.DeviceID, config.Key)
	if err != nil {
		return fmt.Errorf("auth setup: %w", err)
	}

	cfg := client.Config{
		ModelPath:          config.ModelPath,
		Auth:               authClient,
		TransportKind:      config.Transport,
		PreferLocalGateway: config.PreferGateway,
		Logger:             logger,
	}

	if config.TrafficLog != "" {
		fileLogger, err := log.NewFileLogger(config.TrafficLog)
		if err != nil {
			return fmt.Errorf("traffic log: %w", err)
		}
		defer fileLogger.Close()
		cfg.TrafficLogger = fileLogger
	}

	if config.Endpoint != "" {
		cfg.Endpoint = config.Endpoint
	} else {
		provisioner, err := buildProvisioner(authClient, logger)
		if err != nil {
			return err
		}
		cfg.Provisioner = provisioner
	}

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	repl, err := newREPL(c)
	if err != nil {
		return err
	}

	c.OnEvent(repl.printEvent)
	c.OnDesiredProperties(repl.printDesired)
	registerEchoHandlers(c, repl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting device %s...\n", c.DeviceID())
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	fmt.Printf("Connected (state: %s)\n", c.State())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	repl.Run(ctx, cancel)

	fmt.Println("Disconnecting...")
	if err := c.Disconnect(); err != nil {
		logger.Warn("disconnect failed", "error", err)
	}
	return nil
}

// buildProvisioner wires the REST provisioner, cached on disk when a state
// directory is configured.
func buildProvisioner(authClient auth.Client, logger *slog.Logger) (provisioning.Provisioner, error) {
	rest, err := provisioning.NewRESTProvisioner(provisioning.RESTConfig{
		Endpoint: config.ProvisionEndpoint,
		IDScope:  config.IDScope,
		Auth:     authClient,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning setup: %w", err)
	}

	if config.StateDir == "" {
		return rest, nil
	}
	statePath := filepath.Join(config.StateDir, "registration.json")
	store := persistence.NewRegistrationStore(statePath)
	return provisioning.NewCachedProvisioner(rest, store, logger), nil
}

// registerEchoHandlers answers every command the model declares by echoing
// the request payload back with an OK status.
func registerEchoHandlers(c *client.Client, repl *REPL) {
	model := c.Model()
	if model == nil {
		return
	}
	for _, iface := range model.Interfaces {
		for _, cmd := range iface.Commands {
			_ = c.OnCommand(iface.Name, cmd.Name, repl.echoCommand)
		}
	}
}

func setupLogging(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
