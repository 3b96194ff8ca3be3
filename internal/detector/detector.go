// Package detector turns periodic weight samples into pill removal events.
//
// Detection is edge-triggered on consecutive samples: an event fires when the
// weight falls by more than the threshold since the previous sample. A slow
// removal spread over many samples is not detected; sensor jitter is assumed
// to stay well under the threshold.
package detector

import (
	"sync"
	"time"

	"medibox-agent/internal/types"
)

// State is the detector's only memory between samples.
type State struct {
	LastWeight  float64
	Initialized bool
}

// Clock returns milliseconds since the agent started.
type Clock func() int64

// SinceStart returns a Clock anchored at the current instant.
func SinceStart() Clock {
	start := time.Now()
	return func() int64 { return time.Since(start).Milliseconds() }
}

type Detector struct {
	deviceID  string
	threshold float64
	clock     Clock

	mu    sync.Mutex
	state State
}

func New(deviceID string, threshold float64, clock Clock) *Detector {
	if clock == nil {
		clock = SinceStart()
	}
	return &Detector{
		deviceID:  deviceID,
		threshold: threshold,
		clock:     clock,
	}
}

// Calibrated records the baseline and arms the detector. Once armed it stays armed.
func (d *Detector) Calibrated(baseline float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.LastWeight = baseline
	d.state.Initialized = true
}

// OnSample returns an event when weight dropped by more than the threshold
// since the last sample. The sample always becomes the new last weight.
func (d *Detector) OnSample(weight float64) (types.PillEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := d.state.LastWeight - weight
	d.state.LastWeight = weight

	if !d.state.Initialized || delta <= d.threshold {
		return types.PillEvent{}, false
	}
	return types.PillEvent{
		DeviceID:    d.deviceID,
		Weight:      weight,
		WeightDelta: delta,
		Timestamp:   d.clock(),
	}, true
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
