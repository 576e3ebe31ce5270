package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/castbridge/migrations"

	"github.com/nerrad567/castbridge/internal/api"
	"github.com/nerrad567/castbridge/internal/audit"
	"github.com/nerrad567/castbridge/internal/hostbus"
	"github.com/nerrad567/castbridge/internal/infrastructure/config"
	"github.com/nerrad567/castbridge/internal/infrastructure/database"
	"github.com/nerrad567/castbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/castbridge/internal/infrastructure/logging"
	"github.com/nerrad567/castbridge/internal/infrastructure/mqtt"
)

func runCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the accessory and serve it on the MQTT host bus and local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, config.Path(opts.configPath))
		},
	}
}

// run is the long-lived service, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting castbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	acc, err := newAccessory(ctx, cfg, log)
	if err != nil {
		return err
	}
	acc.Start(ctx)
	defer func() {
		log.Info("stopping accessory")
		acc.Stop()
	}()
	log.Info("accessory started", "name", acc.Name())

	opts := hostbus.BridgeOptions{
		Accessory: acc,
		Version:   version,
		Logger:    log.Component("hostbus"),
	}

	// Command audit trail (optional)
	var (
		db        *database.DB
		auditRepo audit.Repository
	)
	if cfg.Database.Enabled {
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
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		opts.Audit = repo
		log.Info("command audit enabled", "path", db.Path(), "retention_days", cfg.Database.RetentionDays)

		retention := &audit.Retention{
			Pruner: repo,
			MaxAge: time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour,
			Logger: log.Component("audit"),
		}
		retCtx, stopRetention := context.WithCancel(ctx)
		retDone := make(chan struct{})
		go func() {
			defer close(retDone)
			retention.Run(retCtx)
		}()
		// Runs before the database is closed.
		defer func() {
			stopRetention()
			<-retDone
		}()
	}

	// State telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		opts.Telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Local HTTP API and state stream (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log.Component("api"),
			Accessory: acc,
			Audit:     auditRepo,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if !cfg.MQTT.Enabled {
		log.Info("host bus disabled, running without MQTT")
		if err := healthCheck(ctx, db, nil, influxClient, apiServer); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		<-ctx.Done()
		log.Info("castbridge stopped")
		return nil
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	mqttClient.SetOnConnect(func() {
		log.Debug("MQTT session ready")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	opts.MQTT = mqttClient
	bridge, err := hostbus.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating host bus: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting host bus: %w", err)
	}
	defer func() {
		log.Info("stopping host bus")
		bridge.Stop()
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: host bus, MQTT, API, InfluxDB,
	// database, then the accessory.
	return nil
}

// healthCheck verifies the infrastructure connections.
// Any argument may be nil when that component is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
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
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}
