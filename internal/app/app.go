package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"medibox-agent/internal/alert"
	"medibox-agent/internal/config"
	"medibox-agent/internal/detector"
	"medibox-agent/internal/httpapi"
	"medibox-agent/internal/metrics"
	"medibox-agent/internal/mqtt"
	"medibox-agent/internal/sensor"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("initializing agent",
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"event_topic", cfg.EventTopic,
		"alert_topic", cfg.AlertTopic,
		"sensor_driver", cfg.SensorDriver,
		"weight_threshold_g", cfg.WeightThreshold,
		"poll_interval", cfg.PollInterval,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	src, closeSource, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	det := detector.New(cfg.DeviceID, cfg.WeightThreshold, detector.SinceStart())
	cal := sensor.Calibrator{
		Samples:  cfg.CalibrationSamples,
		Interval: cfg.CalibrationInterval,
		Logger:   logger,
	}
	if _, err := cal.Calibrate(ctx, src, det); err != nil {
		return err
	}

	channel := mqtt.NewPahoChannel(cfg, logger, m)
	mgr := mqtt.NewManager(channel, mqtt.ManagerOptions{
		AlertTopic:  cfg.AlertTopic,
		MaxAttempts: cfg.MaxReconnectAttempts,
		Backoff:     cfg.ReconnectBackoff,
		Logger:      logger,
		Metrics:     m,
	})
	defer mgr.Close()

	dispatcher := alert.NewDispatcher(cfg.AlertTopic, cfg.AlertMaxPayload, alert.LogActuator{Logger: logger}, logger, m)
	channel.SetHandler(dispatcher.OnMessage)

	publisher := mqtt.NewPublisher(mgr, cfg.EventTopic, logger, m)

	var srv *http.Server
	errCh := make(chan error, 1)
	if cfg.HTTPEnabled() {
		mux := httpapi.NewMux(cfg.DeviceID, func() string { return mgr.State().String() }, reg)
		srv = httpapi.NewServer(cfg.HTTPAddr, mux)
		go func() {
			logger.Info("http listening", "addr", cfg.HTTPAddr)
			errCh <- srv.ListenAndServe()
		}()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	loop := &Loop{
		Session:      mgr,
		Source:       src,
		Detector:     det,
		Publisher:    publisher,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
		Metrics:      m,
	}
	go func() { loopDone <- loop.Run(loopCtx, cfg.LoopInterval) }()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	cancel()
	<-loopDone
	logger.Info("agent shutting down")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func openSource(cfg config.Config, logger *slog.Logger) (sensor.WeightSource, func(), error) {
	switch cfg.SensorDriver {
	case config.SensorDriverHX711:
		hx, err := sensor.OpenHX711(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return hx, func() {
			if err := hx.Close(); err != nil {
				logger.Warn("hx711 close", "error", err)
			}
		}, nil
	default:
		logger.Warn("using simulated weight sensor", "base_weight_g", cfg.SensorBaseWeight)
		return sensor.NewSimulatedSource(cfg.SensorBaseWeight, nil, nil), func() {}, nil
	}
}
