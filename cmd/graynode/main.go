// Gray Logic Node - MQTT session dispatch engine
//
// This is the entry point for a node process. It connects to the MQTT
// broker under the configured device name, announces the device identity,
// and executes control messages (reconfigure, GPIO, OTA) published to the
// node's control topic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-node/migrations"

	"github.com/nerrad567/gray-logic-node/internal/auth"
	"github.com/nerrad567/gray-logic-node/internal/diagnostics"
	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/ota"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// statsInterval is how often session counters are written to InfluxDB.
const statsInterval = 30 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the node and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	checks := map[string]diagnostics.HealthChecker{}
	opts := session.Options{
		Logger:      log.Component("session"),
		StopTimeout: cfg.Session.StopTimeoutDuration(),
		OTA:         ota.LogTrigger{Logger: log.Component("ota")},
	}
	var (
		pinJournal *gpio.Journal
		otaJournal *ota.Journal
	)

	// Journals
	if cfg.GPIO.Journal || cfg.OTA.Journal {
		db, dbErr := openDatabase(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", db.Path())
		checks["database"] = db

		if cfg.GPIO.Journal {
			pinJournal = gpio.NewJournal(db.DB)
			opts.GPIO = pinJournal
		}
		if cfg.OTA.Journal {
			otaJournal = ota.NewJournal(db.DB, log.Component("ota"))
			opts.OTA = otaJournal
		}
	}

	// Telemetry
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
		opts.Recorder = influxClient
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Transport and session
	mqttClient := mqtt.New(cfg.MQTT, mqtt.Options{
		WillTopic: statusTopic(cfg),
		Logger:    log.Component("mqtt"),
	})
	checks["mqtt"] = mqttClient

	sess := session.New(mqttClient, opts)
	if err := sess.Start(sessionConfig(cfg)); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer func() {
		if stopErr := sess.Stop(); stopErr != nil {
			log.Error("error stopping session", "error", stopErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Diagnostics.Enabled {
		srv, srvErr := diagnostics.New(diagnostics.Deps{
			Config:  cfg.Diagnostics,
			Logger:  log.Component("diagnostics"),
			Session: sess,
			Version: version,
			Checks:  checks,
			Pins:    pinReader(pinJournal),
			OTA:     otaQueue(otaJournal),
		})
		if srvErr != nil {
			return fmt.Errorf("creating diagnostics server: %w", srvErr)
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	if influxClient != nil {
		device := sess.Identity().DeviceName
		g.Go(func() error {
			reportStats(gctx, sess, influxClient, device)
			return nil
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"session_id", sess.ID(),
		"control_topic", sess.ControlTopic(),
	)

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Gray Logic Node stopped")
	return nil
}

// runToken prints an operator token for the diagnostics server, signed
// with the configured diagnostics.auth.secret.
//
// Usage: graynode token [-subject name] [-ttl 15m]
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 0, "token lifetime (default diagnostics.auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing token flags: %w", err)
	}

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Diagnostics.Auth.Secret == "" {
		return errors.New("diagnostics.auth.secret is not set")
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Diagnostics.Auth.TokenTTL) * time.Minute
	}

	token, err := auth.GenerateToken(*subject, auth.ScopeOperator, cfg.Diagnostics.Auth.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

// openDatabase opens the journal database and applies migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // error path cleanup
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// sessionConfig maps the node configuration onto session settings.
func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		DeviceName:         cfg.Device.Name,
		DeviceModel:        cfg.Device.Model,
		LastUpdated:        cfg.Device.LastUpdated,
		SensorType:         cfg.Device.SensorType,
		ControlPrefix:      cfg.Topics.ControlPrefix,
		StatusPrefix:       cfg.Topics.StatusPrefix,
		InboundBufferSize:  cfg.MQTT.Buffer.Inbound,
		OutboundBufferSize: cfg.MQTT.Buffer.Outbound,
		TableCapacity:      cfg.Session.TableCapacity,
		ArenaSize:          cfg.Session.ArenaSize,
	}
}

// statusTopic is the topic the session publishes device status to, and
// therefore where the Last Will belongs.
func statusTopic(cfg *config.Config) string {
	prefix := cfg.Topics.StatusPrefix
	if prefix == "" {
		prefix = session.DefaultStatusPrefix
	}
	return prefix + session.NormalizeDeviceName(cfg.Device.Name)
}

// pinReader and otaQueue keep nil journals from becoming non-nil interfaces.
func pinReader(j *gpio.Journal) diagnostics.PinReader {
	if j == nil {
		return nil
	}
	return j
}

func otaQueue(j *ota.Journal) diagnostics.OTAQueue {
	if j == nil {
		return nil
	}
	return j
}

// reportStats writes session counters every statsInterval until ctx ends.
func reportStats(ctx context.Context, sess *session.Session, client *influxdb.Client, device string) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			client.WriteStats(device, sess.Stats(), now)
		}
	}
}
