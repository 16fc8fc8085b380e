package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rfbridge/internal/api"
	"github.com/nerrad567/rfbridge/internal/bridge"
	"github.com/nerrad567/rfbridge/internal/command"
	"github.com/nerrad567/rfbridge/internal/connectivity"
	"github.com/nerrad567/rfbridge/internal/discovery"
	"github.com/nerrad567/rfbridge/internal/indicator"
	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/infrastructure/database"
	"github.com/nerrad567/rfbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/rfbridge/internal/infrastructure/logging"
	"github.com/nerrad567/rfbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfbridge/internal/mode"
	"github.com/nerrad567/rfbridge/internal/provision"
	"github.com/nerrad567/rfbridge/internal/rf"
	"github.com/nerrad567/rfbridge/internal/rf/gpio"
	"github.com/nerrad567/rfbridge/internal/rf/serial"
	"github.com/nerrad567/rfbridge/internal/rf/stub"
	"github.com/nerrad567/rfbridge/internal/store"
	"github.com/nerrad567/rfbridge/internal/update"
	"github.com/nerrad567/rfbridge/migrations"
)

// run is the bridge lifecycle, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, mode.ErrRestartRequested when the
//     process should be restarted, or the failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting rfbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "device_id", cfg.Device.ID)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	st := store.NewSQLiteStore(db.DB)

	arbiter := mode.NewArbiter(mode.ArbiterOptions{
		Store:  st,
		Window: cfg.GetResetWindow(),
		Logger: log.Component("mode"),
	})

	doubleReset, err := arbiter.DetectDoubleReset(ctx, time.Now())
	if err != nil {
		// A broken marker store must not keep the bridge offline.
		log.Warn("double reset detection failed", "error", err)
	}
	if doubleReset {
		return provisionOnly(ctx, cfg, configPath, arbiter, log)
	}

	return serve(ctx, cfg, db, st, arbiter, log)
}

// provisionOnly runs the provisioning portal instead of the bridge.
func provisionOnly(ctx context.Context, cfg *config.Config, configPath string, arbiter *mode.Arbiter, log *logging.Logger) error {
	portal, err := provision.New(provision.Options{
		Host:       cfg.Update.Host,
		Port:       cfg.Update.Port,
		ConfigPath: configPath,
		Timeout:    cfg.GetProvisioningTimeout(),
		Logger:     log.Component("provision"),
	})
	if err != nil {
		return fmt.Errorf("creating provisioning portal: %w", err)
	}
	return arbiter.RunProvisioning(ctx, portal)
}

// serve wires the bridge and runs it until shutdown or a restart request.
func serve(ctx context.Context, cfg *config.Config, db *database.DB, st *store.SQLiteStore, arbiter *mode.Arbiter, log *logging.Logger) error {
	topics := mqtt.NewTopics(cfg.Device.ID)
	health := map[string]api.HealthChecker{"database": db}

	// Optional telemetry mirror
	var (
		telemetry bridge.Telemetry
		recorder  connectivity.SignalRecorder
	)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
		if err != nil {
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
		} else {
			defer func() {
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			telemetry = influxClient
			recorder = influxClient
			health["influxdb"] = influxClient
			log.Info("InfluxDB telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	mqttClient := mqtt.New(cfg.MQTT, topics)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		// Publishes the retained offline status before disconnecting.
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Warn("error closing MQTT", "error", closeErr)
		}
	}()

	driver, err := openDriver(cfg.RF, log.Component("rf"))
	if err != nil {
		return fmt.Errorf("opening rf driver: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			log.Warn("error closing rf driver", "error", closeErr)
		}
	}()

	queue := command.NewQueue(cfg.Queue.MaxCount)
	decoder, err := command.NewDecoder(command.DecoderOptions{
		Queue:       queue,
		Encoder:     rf.TypeAEncoder{},
		SwitchTopic: topics.SendTypeA(),
		RawTopic:    topics.Send(),
		MaxRepeat:   cfg.RF.MaxRepeat,
		Logger:      log.Component("decoder"),
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}

	var status connectivity.Indicator = indicator.Noop{}
	if cfg.Indicator.Enabled {
		led, ledErr := indicator.Open(cfg.Indicator.Chip, cfg.Indicator.Pin)
		if ledErr != nil {
			log.Warn("status LED unavailable", "error", ledErr)
		} else {
			defer led.Close() //nolint:errcheck // shutdown path
			status = led
		}
	}

	advertiser := discovery.New(discovery.Options{
		Config:    cfg.Discovery,
		DeviceID:  cfg.Device.ID,
		Version:   version,
		Port:      cfg.Update.Port,
		Interface: cfg.Network.Interface,
		Logger:    log.Component("discovery"),
	})
	defer advertiser.Shutdown()

	connLog := log.Component("connectivity")
	machine, err := connectivity.NewMachine(connectivity.MachineOptions{
		Link:        connectivity.NewInterfaceLink(cfg.Network, connLog),
		Session:     mqttClient,
		Topics:      topics,
		Advertiser:  advertiser,
		Indicator:   status,
		Signal:      connectivity.NewWirelessSignal(cfg.Network),
		Recorder:    recorder,
		LinkBackoff: connectivity.NewBackoff(connectivity.DefaultBackoffInitial, connectivity.DefaultBackoffMax),
		SessionBackoff: connectivity.NewBackoff(
			time.Duration(cfg.MQTT.Reconnect.InitialDelay)*time.Second,
			time.Duration(cfg.MQTT.Reconnect.MaxDelay)*time.Second,
		),
		LinkTimeout:    cfg.GetLinkTimeout(),
		SignalInterval: cfg.GetSignalInterval(),
		Logger:         connLog,
	})
	if err != nil {
		return fmt.Errorf("creating connectivity machine: %w", err)
	}

	var updates *update.Manager
	if cfg.Update.Enabled {
		updates, err = update.NewManager(update.Options{
			Config:  cfg.Update,
			Flag:    arbiter,
			History: st,
			Logger:  log.Component("update"),
		})
		if err != nil {
			return fmt.Errorf("creating update manager: %w", err)
		}
	}

	opts := bridge.Options{
		Queue:        queue,
		Decoder:      decoder,
		Transmitter:  driver,
		Receiver:     driver,
		Connectivity: machine,
		Publisher:    mqttClient,
		Inbox:        mqttClient,
		Mode:         arbiter,
		Topics:       topics,
		Telemetry:    telemetry,
		PumpBatch:    cfg.Loop.PumpBatch,
		TickInterval: cfg.GetTickInterval(),
		IdleDelay:    cfg.GetIdleDelay(),
		Logger:       log.Component("bridge"),
	}
	if updates != nil {
		opts.Updates = updates
	}
	b, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Update.Enabled {
		deps := api.Deps{
			Config:  cfg.Update,
			Logger:  log.Component("api"),
			Status:  b,
			Version: version,
			Health:  health,
		}
		if updates != nil {
			deps.Updates = updates
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	}

	g.Go(func() error {
		return b.Run(gctx)
	})

	log.Info("initialisation complete",
		"rf_driver", cfg.RF.Driver,
		"queue_capacity", queue.Cap(),
		"topic_prefix", topics.Prefix,
	)

	err = g.Wait()
	if errors.Is(err, mode.ErrRestartRequested) {
		log.Info("restart requested")
		return err
	}
	if err != nil {
		return err
	}
	log.Info("rfbridge stopped")
	return nil
}

// openDriver opens the transceiver named by cfg.Driver.
func openDriver(cfg config.RFConfig, log *logging.Logger) (rf.Transceiver, error) {
	defaults := rf.Defaults{Protocol: cfg.DefaultProtocol}

	switch cfg.Driver {
	case "gpio":
		return gpio.Open(gpio.Options{
			Chip:        cfg.GPIO.Chip,
			TransmitPin: cfg.GPIO.TransmitPin,
			ReceivePin:  cfg.GPIO.ReceivePin,
			Tolerance:   cfg.GPIO.ReceiveTolerance,
			Defaults:    defaults,
			Logger:      log,
		})
	case "serial":
		return serial.Open(serial.Options{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
			Defaults: defaults,
			Logger:   log,
		}), nil
	case "stub":
		log.Warn("using the stub rf driver, nothing will be transmitted")
		return stub.New(defaults), nil
	default:
		return nil, fmt.Errorf("unknown rf driver %q", cfg.Driver)
	}
}
