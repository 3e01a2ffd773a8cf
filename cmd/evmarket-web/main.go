// EV Market Web - marketplace web shell
//
// This is the main entry point for the EV Market web shell. It restores the
// signed-in session from local storage, keeps it current against the
// marketplace backend, and serves the session API and gated page routes to
// the browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/credstore"
	"github.com/eco-green-group4/evmarket-web/internal/events"
	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/database"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/influxdb"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/mqtt"
	"github.com/eco-green-group4/evmarket-web/internal/session"
	"github.com/eco-green-group4/evmarket-web/internal/web"
	"github.com/eco-green-group4/evmarket-web/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath   string
	clearStorage bool
}

// parseArgs parses args (including the program name).
func parseArgs(args []string) (options, error) {
	parser := argparse.NewParser("evmarket-web", "EV Market web shell: session lifecycle and access gate")
	configPath := parser.String("c", "config", &argparse.Options{Help: "Configuration file (or EVMARKET_CONFIG)", Default: getConfigPath()})
	clearStorage := parser.Flag("", "clear-storage", &argparse.Options{Help: "Remove stored credentials and preferences, then exit", Default: false})

	if err := parser.Parse(args); err != nil {
		return options{}, errors.New(parser.Usage(err))
	}
	return options{configPath: *configPath, clearStorage: *clearStorage}, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting EV Market web",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	table := gate.NewTable(cfg.Routes)
	if err := table.Validate(); err != nil {
		return fmt.Errorf("route table: %w", err)
	}

	// Open client storage
	store, db, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	if opts.clearStorage {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing storage: %w", err)
		}
		log.Info("client storage cleared")
		return nil
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var metrics *events.Metrics
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.App.DeviceID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = events.NewMetrics(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Session service and state machine
	var clientOpts []authclient.Option
	if metrics != nil {
		clientOpts = append(clientOpts, authclient.WithObserver(metrics.AuthObserver()))
	}
	client, err := authclient.New(cfg.Backend, store, log.With("component", "authclient"), clientOpts...)
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}
	manager := session.NewManager(client, auth.NewClassifier(cfg.Roles), log.With("component", "session"))
	defer manager.Close()

	var redirectSinks []web.RedirectFunc
	if metrics != nil {
		manager.Subscribe(metrics.SessionChanged)
		redirectSinks = append(redirectSinks, metrics.Redirected)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, stopBridge, err := startBridge(ctx, mqttClient, manager, cfg.App.DeviceID, byte(cfg.MQTT.QoS), log) // #nosec G115 -- validated 0..2
		if err != nil {
			return err
		}
		// Runs before the MQTT disconnect so queued events are flushed.
		defer stopBridge()
		redirectSinks = append(redirectSinks, bridge.Redirected)
	} else {
		log.Info("MQTT disabled")
	}

	server, err := web.New(web.Deps{
		Config:   cfg.Web,
		WS:       cfg.WebSocket,
		Logger:   log.With("component", "web"),
		Sessions: manager,
		Gate:     table,
		Store:    store,
		OnRedirect: func(d gate.Decision, from string) {
			for _, sink := range redirectSinks {
				sink(d, from)
			}
		},
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating web server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting web server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing web server", "error", closeErr)
		}
	}()

	// Initial session check; the gate holds redirects until it settles.
	go func() {
		if err := manager.Init(ctx); err != nil {
			log.Warn("initial session check", "error", err)
		}
	}()

	if cfg.Session.RefreshEnabled {
		go manager.RunRefresher(ctx, cfg.GetRefreshLeeway())
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// web server, event bridge drain, MQTT, session manager, InfluxDB, database.

	log.Info("EV Market web stopped")
	return nil
}

// startBridge runs an event bridge for manager on pub until stop is called
// or ctx is done. stop unsubscribes, then waits for queued events to be
// published. On error nothing is left running.
func startBridge(ctx context.Context, pub events.Publisher, manager *session.Manager, deviceID string, qos byte, log *logging.Logger) (*events.Bridge, func(), error) {
	bridge := events.NewBridge(pub, deviceID, qos, log)

	bridgeCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.Run(bridgeCtx)
	}()

	unsubscribe := manager.Subscribe(bridge.SessionChanged)
	drain := func() {
		unsubscribe()
		cancel()
		<-done
	}

	if err := bridge.ListenForCommands(func() { manager.Logout() }); err != nil {
		drain()
		return nil, nil, fmt.Errorf("listening for session commands: %w", err)
	}

	stop := func() {
		if err := bridge.StopCommands(); err != nil {
			log.Debug("stopping session commands", "error", err)
		}
		drain()
	}
	return bridge, stop, nil
}

// getConfigPath returns the default configuration file path.
// Uses EVMARKET_CONFIG environment variable if set.
func getConfigPath() string {
	if path := os.Getenv("EVMARKET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore opens the credential store selected by cfg.Driver. The returned
// database is nil for the memory driver.
func openStore(ctx context.Context, cfg config.StorageConfig, log *logging.Logger) (credstore.Store, *database.DB, error) {
	if cfg.Driver == "memory" {
		log.Warn("using in-memory client storage; the session will not survive a restart")
		return credstore.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("storage migrated", "path", db.Path(), "versions", applied)
	}
	store, err := credstore.OpenSQLite(ctx, db.DB)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}
	log.Info("client storage opened", "path", db.Path())
	return store, db, nil
}

// healthCheck verifies the optional connections are healthy. Nil clients
// are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
