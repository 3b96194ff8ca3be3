// Package sensor provides weight sources and the startup calibration routine.
package sensor

import (
	"context"
	"log/slog"
	"time"
)

// WeightSource returns the current mass on the scale in grams. A source that
// cannot take a fresh reading returns its best available value.
type WeightSource interface {
	Read() float64
}

// Baseliner receives the calibrated baseline.
type Baseliner interface {
	Calibrated(baseline float64)
}

type Calibrator struct {
	Samples  int
	Interval time.Duration
	Logger   *slog.Logger
}

// Calibrate averages Samples readings taken Interval apart and hands the mean
// to target. It only fails when ctx ends first, in which case target is untouched.
func (c Calibrator) Calibrate(ctx context.Context, src WeightSource, target Baseliner) (float64, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := c.Samples
	if n < 1 {
		n = 1
	}

	var sum float64
	for i := 0; i < n; i++ {
		if i > 0 && c.Interval > 0 {
			t := time.NewTimer(c.Interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, ctx.Err()
			case <-t.C:
			}
		}
		sum += src.Read()
	}

	baseline := sum / float64(n)
	target.Calibrated(baseline)
	logger.Info("weight calibrated", "baseline_g", baseline, "samples", n)
	return baseline, nil
}
