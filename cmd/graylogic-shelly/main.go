// Gray Logic Shelly - Shelly device registry service
//
// This is the main entry point for the Gray Logic Shelly service. It listens
// for CoIoT status multicasts from Shelly devices on the local network and
// keeps a live registry of them:
//   - Devices are discovered from their first status update
//   - Devices that stay offline longer than the stale time are evicted
//   - Lifecycle events are relayed to MQTT, InfluxDB, a SQLite journal
//     and WebSocket clients
//
// The registry is also exposed over a REST API for installers and panels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-shelly/migrations"

	"github.com/nerrad567/gray-logic-shelly/internal/api"
	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
	"github.com/nerrad567/gray-logic-shelly/internal/device"
	"github.com/nerrad567/gray-logic-shelly/internal/deviceclient"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shelly/internal/journal"
	"github.com/nerrad567/gray-logic-shelly/internal/relay"
	"github.com/nerrad567/gray-logic-shelly/internal/shelly"
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

// healthCheckTimeout bounds the startup health check.
const healthCheckTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Shelly",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and journal (optional)
	var db *database.DB
	var events *journal.Journal
	if cfg.Journal.Enabled {
		db, err = database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		applied, migrateErr := db.Migrate(ctx)
		if migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		for _, m := range applied {
			log.Info("database migration applied", "version", m.Version, "name", m.Name)
		}
		log.Info("database migrations complete", "applied", len(applied))

		events = journal.New(db.DB)
	} else {
		log.Info("event journal disabled")
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
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Verify infrastructure connections before accepting devices
	hcCtx, hcCancel := context.WithTimeout(ctx, healthCheckTimeout)
	err = healthCheck(hcCtx, db, mqttClient, influxClient)
	hcCancel()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Device registry
	httpClient := deviceclient.New(deviceclient.Config{
		Timeout:    cfg.DeviceHTTP.Timeout,
		MaxRetries: cfg.DeviceHTTP.MaxRetries,
	})
	listener := coiot.NewListener(coiot.Config{
		Address:   cfg.CoIoTAddress(),
		Interface: cfg.CoIoT.Interface,
	})
	listener.SetLogger(log.Component("coiot"))

	shellies, err := shelly.New(shelly.Options{
		Listener:    listener,
		Factory:     deviceFactory(device.NewFactory(httpClient, device.WithFallbackValidity(cfg.CoIoT.FallbackValidity))),
		Credentials: httpClient,
		StaleTime:   cfg.Registry.StaleTime,
		Logger:      log.Component("shelly"),
	})
	if err != nil {
		return fmt.Errorf("creating device registry: %w", err)
	}
	defer func() {
		log.Info("closing device registry")
		if closeErr := shellies.Close(); closeErr != nil {
			log.Error("error closing device registry", "error", closeErr)
		}
	}()
	if cfg.DeviceHTTP.Username != "" {
		shellies.SetAuthCredentials(cfg.DeviceHTTP.Username, cfg.DeviceHTTP.Password)
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := relay.NewMetrics(promRegistry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// API server (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Registry: shellies,
			Gatherer: promRegistry,
			Version:  version,
		}
		if events != nil {
			deps.Events = events
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	}

	// Relay lifecycle events to every configured sink
	relayOpts := relay.Options{
		Metrics: metrics,
		Logger:  log.Component("relay"),
	}
	if mqttClient != nil {
		relayOpts.MQTT = mqttClient
	}
	if influxClient != nil {
		relayOpts.Influx = influxClient
	}
	if events != nil {
		relayOpts.Journal = events
	}
	if apiServer != nil {
		relayOpts.Hub = apiServer.Hub()
	}
	rel := relay.New(relayOpts)
	detach := rel.Attach(shellies)
	defer detach()

	if mqttClient != nil {
		mqttClient.SetOnConnect(rel.Republish)
		commands := relay.NewCommands(shellies, log.Component("commands"))
		if subErr := commands.Subscribe(mqttClient); subErr != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", subErr)
		}
		log.Info("MQTT command topics subscribed", "topic", mqtt.Topics{}.AllShellyCommands())
	}

	if apiServer != nil {
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if cfg.CoIoT.AutoStart {
		if startErr := shellies.Start(ctx); startErr != nil {
			return fmt.Errorf("starting CoIoT listener: %w", startErr)
		}
		log.Info("CoIoT listener started", "address", cfg.CoIoTAddress())
	} else {
		log.Info("CoIoT listener not started (auto_start disabled)")
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"stale_time", shellies.StaleTime(),
	)

	g, gctx := errgroup.WithContext(ctx)
	if events != nil && cfg.Journal.Retention > 0 {
		g.Go(func() error {
			pruneLoop(gctx, events, cfg.Journal.Retention, cfg.Journal.PruneInterval, log.Component("journal"))
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Relay detach
	// 2. API server
	// 3. Device registry (stops the listener)
	// 4. InfluxDB, MQTT, database

	log.Info("Gray Logic Shelly stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// deviceFactory adapts the device factory to the registry. Unknown model
// tags must reach the registry as a nil interface, not a typed nil pointer.
func deviceFactory(f *device.Factory) shelly.DeviceFactory {
	return shelly.FactoryFunc(func(deviceType, deviceID, host string) shelly.Device {
		if d := f.Create(deviceType, deviceID, host); d != nil {
			return d
		}
		return nil
	})
}

// healthChecker is implemented by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all enabled infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if the journal is disabled)
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checks := []struct {
		name    string
		checker healthChecker
		enabled bool
	}{
		{"database", db, db != nil},
		{"mqtt", mqttClient, mqttClient != nil},
		{"influxdb", influxClient, influxClient != nil},
	}

	for _, c := range checks {
		if !c.enabled {
			continue
		}
		if err := c.checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// pruner removes expired journal entries.
type pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneLoop removes journal entries older than retention, once at start and
// then every interval, until ctx is cancelled.
func pruneLoop(ctx context.Context, p pruner, retention, interval time.Duration, log *logging.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}

	prune := func() {
		removed, err := p.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("journal prune failed", "error", err)
		case removed > 0:
			log.Info("journal pruned", "removed", removed, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
