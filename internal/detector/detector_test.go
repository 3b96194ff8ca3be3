package detector

import (
	"math"
	"testing"
)

func fixedClock(ms int64) Clock { return func() int64 { return ms } }

func TestOnSample_UninitializedNeverFires(t *testing.T) {
	d := New("box", 5.0, fixedClock(0))

	for _, w := range []float64{100, 0, 500, -1000, 1e9, -1e9, 0} {
		if ev, ok := d.OnSample(w); ok {
			t.Fatalf("OnSample(%v) = %+v, want no event before calibration", w, ev)
		}
		if got := d.State().LastWeight; got != w {
			t.Fatalf("LastWeight = %v, want %v", got, w)
		}
	}
	if d.State().Initialized {
		t.Fatal("Initialized = true without calibration")
	}
}

func TestOnSample_ThresholdSequence(t *testing.T) {
	d := New("medibox_001", 5.0, fixedClock(4242))
	d.Calibrated(100.0)

	if _, ok := d.OnSample(100.0); ok {
		t.Fatal("100 -> 100 produced an event")
	}
	ev, ok := d.OnSample(80.0)
	if !ok {
		t.Fatal("100 -> 80 produced no event")
	}
	if ev.Weight != 80.0 || ev.WeightDelta != 20.0 {
		t.Errorf("event weight=%v delta=%v, want 80 and 20", ev.Weight, ev.WeightDelta)
	}
	if ev.DeviceID != "medibox_001" {
		t.Errorf("DeviceID = %q", ev.DeviceID)
	}
	if ev.Timestamp != 4242 {
		t.Errorf("Timestamp = %d, want 4242", ev.Timestamp)
	}
}

func TestOnSample_IffDropExceedsThreshold(t *testing.T) {
	const threshold = 5.0
	tests := []struct {
		name   string
		w1, w2 float64
		want   bool
	}{
		{name: "equal", w1: 50, w2: 50, want: false},
		{name: "exactly threshold", w1: 50, w2: 45, want: false},
		{name: "just over", w1: 50, w2: 44.99, want: true},
		{name: "large drop", w1: 100, w2: 10, want: true},
		{name: "increase", w1: 10, w2: 100, want: false},
		{name: "small jitter", w1: 100, w2: 99.9, want: false},
		{name: "to negative", w1: 2, w2: -4, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New("box", threshold, fixedClock(1))
			d.Calibrated(tt.w1)
			_, got := d.OnSample(tt.w2)
			if got != tt.want {
				t.Errorf("%v -> %v fired = %v, want %v", tt.w1, tt.w2, got, tt.want)
			}
		})
	}
}

func TestOnSample_EdgeTriggered(t *testing.T) {
	d := New("box", 5.0, fixedClock(1))
	d.Calibrated(100)

	fired := func(w float64) bool {
		_, ok := d.OnSample(w)
		return ok
	}

	if !fired(90) {
		t.Fatal("first drop did not fire")
	}
	if fired(90) {
		t.Fatal("sustained low weight re-fired")
	}
	if !fired(80) {
		t.Fatal("second drop from new baseline did not fire")
	}
	if fired(95) {
		t.Fatal("refill fired")
	}
}

func TestOnSample_LastWeightAlwaysTracksSample(t *testing.T) {
	d := New("box", 5.0, fixedClock(1))
	d.Calibrated(100)

	for _, w := range []float64{100, 80, 81, 20, 20.5, 300, math.SmallestNonzeroFloat64} {
		d.OnSample(w)
		if got := d.State().LastWeight; got != w {
			t.Fatalf("LastWeight = %v after OnSample(%v)", got, w)
		}
	}
}

func TestCalibrated_StaysInitialized(t *testing.T) {
	d := New("box", 5.0, fixedClock(1))
	d.Calibrated(42)

	st := d.State()
	if !st.Initialized || st.LastWeight != 42 {
		t.Fatalf("State() = %+v, want initialized with 42", st)
	}
	for _, w := range []float64{0, 1000, -5} {
		d.OnSample(w)
		if !d.State().Initialized {
			t.Fatalf("Initialized reverted after OnSample(%v)", w)
		}
	}
}
