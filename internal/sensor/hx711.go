package sensor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/hx711"
	"periph.io/x/host/v3"

	"medibox-agent/internal/config"
)

const hx711ReadTimeout = 500 * time.Millisecond

type rawReader interface {
	ReadTimeout(timeout time.Duration) (int32, error)
}

// HX711Source reads a load cell through an HX711 amplifier on two GPIO pins.
// grams = (raw - offset) / scale.
type HX711Source struct {
	dev    rawReader
	offset float64
	scale  float64
	logger *slog.Logger

	mu   sync.Mutex
	last float64
}

func OpenHX711(cfg config.Config, logger *slog.Logger) (*HX711Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	clk := gpioreg.ByName(cfg.HX711ClockPin)
	if clk == nil {
		return nil, fmt.Errorf("hx711 clock pin %q not found", cfg.HX711ClockPin)
	}
	data := gpioreg.ByName(cfg.HX711DataPin)
	if data == nil {
		return nil, fmt.Errorf("hx711 data pin %q not found", cfg.HX711DataPin)
	}

	dev, err := hx711.New(clk, data)
	if err != nil {
		return nil, fmt.Errorf("hx711 (%s/%s): %w", cfg.HX711ClockPin, cfg.HX711DataPin, err)
	}
	return newHX711Source(dev, cfg.HX711Offset, cfg.HX711Scale, logger), nil
}

func newHX711Source(dev rawReader, offset, scale float64, logger *slog.Logger) *HX711Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &HX711Source{dev: dev, offset: offset, scale: scale, logger: logger}
}

// Read returns the last good reading when the amplifier is not ready in time.
func (s *HX711Source) Read() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.dev.ReadTimeout(hx711ReadTimeout)
	if err != nil {
		s.logger.Warn("hx711 read failed, reusing last value", "error", err, "last_g", s.last)
		return s.last
	}
	s.last = (float64(raw) - s.offset) / s.scale
	return s.last
}

func (s *HX711Source) Close() error {
	if h, ok := s.dev.(interface{ Halt() error }); ok {
		return h.Halt()
	}
	return nil
}
