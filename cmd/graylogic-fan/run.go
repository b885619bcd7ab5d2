package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-fan/internal/api"
	"github.com/nerrad567/gray-logic-fan/internal/bridges/mifan"
	"github.com/nerrad567/gray-logic-fan/internal/command"
	"github.com/nerrad567/gray-logic-fan/internal/controller"
	"github.com/nerrad567/gray-logic-fan/internal/device"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-fan/internal/miio"
	"github.com/nerrad567/gray-logic-fan/internal/telemetry"
	"github.com/nerrad567/gray-logic-fan/migrations"
)

// prunerInterval is how often old state history is deleted.
const prunerInterval = time.Hour

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fan bridge",
	Long: `Start the fan bridge and run until interrupted.

The configuration file is read from --config, $GRAYLOGIC_FAN_CONFIG or
configs/config.yaml. GRAYLOGIC_FAN_* environment variables override it.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, getConfigPath(cmd))
}

// run is the bridge lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path of the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic fan bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Load the fan record; its cached model lets the controller build the
	// device before the first connection.
	registry := device.NewRegistry(
		device.NewSQLiteRepository(db.DB),
		device.NewSQLiteStateHistoryRepository(db.DB),
	)
	registry.SetLogger(log)

	record, err := registry.Load(ctx, device.Record{
		ID:       cfg.Fan.ID,
		Name:     cfg.Fan.Name,
		Address:  cfg.Fan.Address,
		DeviceID: cfg.Fan.DeviceID,
	})
	if err != nil {
		return fmt.Errorf("loading fan record: %w", err)
	}

	model := cfg.Fan.Model
	if model == "" {
		model = record.Model
	}

	ctrl, err := controller.New(controller.Options{
		Address:         cfg.Fan.Address,
		Token:           cfg.Fan.Token,
		DeviceID:        cfg.Fan.DeviceID,
		Model:           model,
		Name:            cfg.Fan.Name,
		PollingInterval: cfg.GetPollingInterval(),
		RefreshDelay:    cfg.GetRefreshDelay(),
		Dialer:          miio.UDPDialer{Logger: log},
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("creating fan controller: %w", err)
	}
	ctrl.AddListener(registry)

	// MQTT bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		var bridge *mifan.Bridge
		mqttClient, bridge, err = startMQTTBridge(ctx, cfg, ctrl, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB telemetry (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		ctrl.AddListener(telemetry.NewInfluxWriter(cfg.Fan.ID, influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Prometheus metrics (optional)
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics {
		metrics := telemetry.NewMetrics(cfg.Fan.ID, ctrl)
		ctrl.AddListener(metrics)
		metricsHandler = metrics.Handler()
	}

	// REST API and WebSocket (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log,
			FanID:      cfg.Fan.ID,
			Fan:        ctrl,
			Dispatcher: command.NewDispatcher(cfg.Fan.Features),
			Registry:   registry,
			Metrics:    metricsHandler,
			Version:    version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		ctrl.AddListener(apiServer.Hub())
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// The controller, history pruner and shutdown wait share one group so a
	// failure in either worker stops the bridge.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if startErr := ctrl.Start(gctx); startErr != nil {
			return fmt.Errorf("starting fan controller: %w", startErr)
		}
		<-gctx.Done()
		log.Info("stopping fan controller")
		ctrl.Stop()
		return nil
	})
	g.Go(func() error {
		return registry.RunPruner(gctx, cfg.GetHistoryRetention(), prunerInterval)
	})

	log.Info("initialisation complete, waiting for shutdown signal",
		"fan", cfg.Fan.ID,
		"address", cfg.Fan.Address,
	)

	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred Close() calls run in reverse order:
	// API, InfluxDB, MQTT bridge and client, database
	log.Info("Gray Logic fan bridge stopped")
	return nil
}

// startMQTTBridge connects to the broker and starts the MQTT bridge for the
// fan. The caller stops the bridge before closing the client.
func startMQTTBridge(ctx context.Context, cfg *config.Config, ctrl *controller.Controller, log *logging.Logger) (*mqtt.Client, *mifan.Bridge, error) {
	statusTopic := mqtt.Topics{}.BridgeStatus(mqtt.ProtocolFan, cfg.Fan.ID)
	client, err := mqtt.Connect(cfg.MQTT, statusTopic)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := mifan.NewBridge(mifan.Options{
		DeviceID:       cfg.Fan.ID,
		Address:        cfg.Fan.Address,
		Version:        version,
		MQTTClient:     client,
		Features:       cfg.Fan.Features,
		Stats:          ctrl,
		HealthInterval: cfg.GetHealthInterval(),
		Logger:         log,
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	ctrl.AddListener(bridge)

	// Retained state is republished after every reconnect
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		bridge.Republish()
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := bridge.Start(ctx); err != nil {
		_ = client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started", "fan", cfg.Fan.ID)

	return client, bridge, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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

	// The fan itself is not checked; the controller keeps reconnecting.
	return nil
}
