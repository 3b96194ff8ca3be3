package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SensorDriverSimulated = "simulated"
	SensorDriverHX711     = "hx711"

	// HTTPAddrOff disables the health/metrics listener.
	HTTPAddrOff = "off"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	DeviceID string

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	EventTopic string
	AlertTopic string

	MQTTConnectTimeout   time.Duration
	MaxReconnectAttempts int
	ReconnectBackoff     time.Duration
	AlertMaxPayload      int
	WeightThreshold      float64
	PollInterval         time.Duration
	LoopInterval         time.Duration
	CalibrationSamples   int
	CalibrationInterval  time.Duration
	SensorDriver         string
	SensorBaseWeight     float64
	HX711ClockPin        string
	HX711DataPin         string
	HX711Offset          float64
	HX711Scale           float64
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	deviceID := envString("DEVICE_ID", "medibox_001")

	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	connectTimeout, err := envDuration("MQTT_CONNECT_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	maxAttempts, err := envInt("MQTT_MAX_RECONNECT_ATTEMPTS", 5)
	if err != nil {
		return Config{}, err
	}
	if maxAttempts < 1 {
		return Config{}, fmt.Errorf("MQTT_MAX_RECONNECT_ATTEMPTS must be at least 1, got %d", maxAttempts)
	}

	reconnectBackoff, err := envDuration("MQTT_RECONNECT_BACKOFF", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	alertMaxPayload, err := envInt("ALERT_MAX_PAYLOAD", 200)
	if err != nil {
		return Config{}, err
	}
	if alertMaxPayload < 1 {
		return Config{}, fmt.Errorf("ALERT_MAX_PAYLOAD must be positive, got %d", alertMaxPayload)
	}

	threshold, err := envFloat("WEIGHT_THRESHOLD", 5.0)
	if err != nil {
		return Config{}, err
	}
	if threshold <= 0 {
		return Config{}, fmt.Errorf("WEIGHT_THRESHOLD must be positive, got %v", threshold)
	}

	pollInterval, err := envDuration("POLL_INTERVAL", time.Second)
	if err != nil {
		return Config{}, err
	}
	loopInterval, err := envDuration("LOOP_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	calSamples, err := envInt("CALIBRATION_SAMPLES", 10)
	if err != nil {
		return Config{}, err
	}
	if calSamples < 1 {
		return Config{}, fmt.Errorf("CALIBRATION_SAMPLES must be at least 1, got %d", calSamples)
	}
	calInterval, err := envDuration("CALIBRATION_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	driver := strings.ToLower(envString("SENSOR_DRIVER", SensorDriverSimulated))
	switch driver {
	case SensorDriverSimulated, SensorDriverHX711:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: simulated, hx711)", driver)
	}

	baseWeight, err := envFloat("SENSOR_BASE_WEIGHT", 100.0)
	if err != nil {
		return Config{}, err
	}
	hxOffset, err := envFloat("HX711_OFFSET", 0)
	if err != nil {
		return Config{}, err
	}
	hxScale, err := envFloat("HX711_SCALE", 1)
	if err != nil {
		return Config{}, err
	}
	if hxScale == 0 {
		return Config{}, fmt.Errorf("HX711_SCALE must be non-zero")
	}

	return Config{
		AppEnv:               appEnv,
		LogLevel:             level,
		HTTPAddr:             envString("HTTP_ADDR", ":9100"),
		DeviceID:             deviceID,
		MQTTBroker:           envString("MQTT_BROKER", "localhost"),
		MQTTPort:             mqttPort,
		MQTTClientID:         envString("MQTT_CLIENT_ID", deviceID),
		MQTTUsername:         strings.TrimSpace(os.Getenv("MQTT_USERNAME")),
		MQTTPassword:         os.Getenv("MQTT_PASSWORD"),
		EventTopic:           envString("MQTT_EVENT_TOPIC", fmt.Sprintf("medibox/%s/event", deviceID)),
		AlertTopic:           envString("MQTT_ALERT_TOPIC", fmt.Sprintf("medibox/%s/alert", deviceID)),
		MQTTConnectTimeout:   connectTimeout,
		MaxReconnectAttempts: maxAttempts,
		ReconnectBackoff:     reconnectBackoff,
		AlertMaxPayload:      alertMaxPayload,
		WeightThreshold:      threshold,
		PollInterval:         pollInterval,
		LoopInterval:         loopInterval,
		CalibrationSamples:   calSamples,
		CalibrationInterval:  calInterval,
		SensorDriver:         driver,
		SensorBaseWeight:     baseWeight,
		HX711ClockPin:        envString("HX711_CLK_PIN", "GPIO5"),
		HX711DataPin:         envString("HX711_DATA_PIN", "GPIO4"),
		HX711Offset:          hxOffset,
		HX711Scale:           hxScale,
	}, nil
}

// HTTPEnabled reports whether the health/metrics listener should start.
func (c Config) HTTPEnabled() bool {
	return c.HTTPAddr != "" && !strings.EqualFold(c.HTTPAddr, HTTPAddrOff)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

// envDuration parses a positive duration.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
