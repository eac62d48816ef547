package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/birdhouse-core/internal/api"
	"github.com/nerrad567/birdhouse-core/internal/automation"
	"github.com/nerrad567/birdhouse-core/internal/bridges/mqttbridge"
	"github.com/nerrad567/birdhouse-core/internal/controlloop"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/config"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/gpio"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/logging"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/birdhouse-core/internal/metrics"
	"github.com/nerrad567/birdhouse-core/internal/outlet"
	"github.com/nerrad567/birdhouse-core/internal/process"
	"github.com/nerrad567/birdhouse-core/internal/schedule"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// run is the daemon, separated from the cobra plumbing for testability.
// It returns nil on a clean shutdown when ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting birdhouse",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", path)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving time zone: %w", err)
	}
	unit, err := weather.ParseUnit(cfg.Weather.TemperatureUnit)
	if err != nil {
		return fmt.Errorf("temperature unit: %w", err)
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	outletRepo := outlet.NewSQLiteRepository(db.DB)
	weatherRepo := weather.NewSQLiteRepository(db.DB)
	waterRepo := watertemp.NewSQLiteRepository(db.DB)

	outlets, err := outletRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading outlets: %w", err)
	}
	if len(outlets) == 0 {
		log.Warn("no outlets defined; run `birdhouse outlets seed` to load them from the config")
	}

	sw, err := gpio.Open(cfg.GPIO, outletPins(outlets))
	if err != nil {
		return fmt.Errorf("opening gpio: %w", err)
	}
	defer func() {
		if closeErr := sw.Close(); closeErr != nil {
			log.Error("error releasing gpio lines", "error", closeErr)
		}
	}()
	log.Info("gpio ready", "driver", cfg.GPIO.Driver, "outlets", len(outlets))

	recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	inputs := controlloop.NewInputs()
	listeners := automation.Listeners{recorder}
	ingestOpts := []weather.Option{
		weather.WithUnit(unit),
		weather.WithLogger(log.Component("weather")),
	}
	waterOpts := []watertemp.Option{
		watertemp.WithUnit(unit),
		watertemp.WithLogger(log.Component("watertemp")),
	}

	// MQTT bridge (optional)
	var mqttStatus api.ConnectionReporter
	if cfg.MQTT.Enabled {
		client, bridge, connErr := startMQTT(ctx, cfg.MQTT, inputs, log)
		if connErr != nil {
			return connErr
		}
		defer func() {
			bridge.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttStatus = client
		listeners = append(listeners, bridge)
		ingestOpts = append(ingestOpts, weather.WithPublisher(bridge))
		waterOpts = append(waterOpts, watertemp.WithPublisher(bridge))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB mirror (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB, influxdb.WithSite(cfg.Site.ID))
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		listeners = append(listeners, influxClient)
		ingestOpts = append(ingestOpts, weather.WithMirror(influxClient))
		waterOpts = append(waterOpts, watertemp.WithMirror(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	engine := automation.NewEngine(outletRepo, sw, schedule.NewMatcher(loc), cfg.DebounceWindow(), log.Component("scheduler"))
	engine.SetStateListener(listeners)
	override := automation.NewOverrideController(outletRepo, sw, log.Component("override"))
	override.SetStateListener(listeners)
	ingester := weather.NewIngester(weatherRepo, ingestOpts...)
	waterIngester := watertemp.NewIngester(waterRepo, waterOpts...)

	loop := controlloop.New(controlloop.Config{
		CycleInterval:  cfg.CycleInterval(),
		SampleInterval: cfg.SampleInterval(),
		MotionTimeout:  cfg.MotionTimeout,
		HistoryDays:    cfg.HistoryDays,
	}, engine, override, ingester, inputs,
		controlloop.WithRecorder(recorder),
		controlloop.WithWaterIngester(waterIngester),
		controlloop.WithEventPruner(outletRepo),
		controlloop.WithLogger(log.Component("loop")),
	)

	// Collaborators (motion detector, DHT22 driver)
	var procs api.ProcessReporter
	if len(cfg.Collaborators) > 0 {
		group := process.NewGroup(cfg.Collaborators, log.Component("process"))
		if startErr := group.Start(ctx); startErr != nil {
			log.Warn("some collaborators did not start", "error", startErr)
		}
		defer func() {
			if stopErr := group.Stop(); stopErr != nil {
				log.Error("error stopping collaborators", "error", stopErr)
			}
		}()
		procs = group
		log.Info("collaborators started", "count", group.Len())
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := startAPI(ctx, cfg, db, outletRepo, weatherRepo, waterRepo, unit, sw, inputs, mqttStatus, procs, log)
		if apiErr != nil {
			return apiErr
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete")
	if err := loop.Run(ctx); err != nil {
		return err
	}
	log.Info("birdhouse stopped")
	return nil
}

// outletPins returns the GPIO pin of every outlet. The pin is the outlet ID.
func outletPins(outlets []outlet.Outlet) []int {
	pins := make([]int, 0, len(outlets))
	for _, o := range outlets {
		pins = append(pins, o.ID)
	}
	return pins
}

func startMQTT(ctx context.Context, cfg config.MQTTConfig, inputs *controlloop.Inputs, log *logging.Logger) (*mqtt.Client, *mqttbridge.Bridge, error) {
	client, err := mqtt.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	bridge := mqttbridge.New(client, client.Topics(), inputs, client.QoS(),
		mqttbridge.WithLogger(log.Component("mqttbridge")))
	if err := bridge.Start(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	return client, bridge, nil
}

func startAPI(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	outlets *outlet.SQLiteRepository,
	weatherRepo *weather.SQLiteRepository,
	waterRepo *watertemp.SQLiteRepository,
	unit weather.Unit,
	sw gpio.Switch,
	inputs *controlloop.Inputs,
	mqttStatus api.ConnectionReporter,
	procs api.ProcessReporter,
	log *logging.Logger,
) (*api.Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log.Component("api"),
		Outlets:   outlets,
		Weather:   weatherRepo,
		WaterTemp: waterRepo,
		Unit:      unit,
		Location:  loc,
		Switch:    sw,
		Motion:    inputs,
		Gatherer:  prometheus.DefaultGatherer,
		DB:        db,
		MQTT:      mqttStatus,
		Processes: procs,
		Version:   version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return server, nil
}
