package videosource

import (
	"math"
	"testing"
	"time"
)

func cadenceTimes(intervals ...time.Duration) []time.Time {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base}
	for _, iv := range intervals {
		base = base.Add(iv)
		times = append(times, base)
	}
	return times
}

func TestCalculateCadenceEmptyWindow(t *testing.T) {
	stats := CalculateCadence(nil, time.Second)
	if stats.FramesObserved != 0 || stats.IsStable {
		t.Errorf("empty window: %+v", stats)
	}

	stats = CalculateCadence(cadenceTimes(time.Second), 0)
	if stats.FPSMean != 0 || stats.IsStable {
		t.Errorf("zero duration: %+v", stats)
	}
}

func TestCalculateCadenceSingleFrame(t *testing.T) {
	stats := CalculateCadence(cadenceTimes(), time.Second)
	if stats.FramesObserved != 1 {
		t.Errorf("FramesObserved = %d, want 1", stats.FramesObserved)
	}
	if stats.FPSMean != 1.0 {
		t.Errorf("FPSMean = %v, want 1.0", stats.FPSMean)
	}
	if stats.IsStable {
		t.Error("a single frame must not report a stable cadence")
	}
}

func TestCalculateCadenceStable(t *testing.T) {
	// 31 frames at exactly 100ms: a clean 10 FPS cadence.
	intervals := make([]time.Duration, 30)
	for i := range intervals {
		intervals[i] = 100 * time.Millisecond
	}
	stats := CalculateCadence(cadenceTimes(intervals...), 3100*time.Millisecond)

	if !stats.IsStable {
		t.Errorf("constant cadence reported unstable: %+v", stats)
	}
	if math.Abs(stats.FPSMean-10.0) > 0.1 {
		t.Errorf("FPSMean = %v, want ~10", stats.FPSMean)
	}
	if stats.FPSStdDev > 1e-6 {
		t.Errorf("FPSStdDev = %v, want ~0", stats.FPSStdDev)
	}
	if math.Abs(stats.FPSMin-10.0) > 0.01 || math.Abs(stats.FPSMax-10.0) > 0.01 {
		t.Errorf("FPSMin/Max = %v/%v, want 10/10", stats.FPSMin, stats.FPSMax)
	}
}

func TestCalculateCadenceUnstable(t *testing.T) {
	// Alternating 50ms/250ms intervals: wild instantaneous swings
	// (20 FPS vs 4 FPS) around a modest mean.
	intervals := make([]time.Duration, 20)
	for i := range intervals {
		if i%2 == 0 {
			intervals[i] = 50 * time.Millisecond
		} else {
			intervals[i] = 250 * time.Millisecond
		}
	}
	stats := CalculateCadence(cadenceTimes(intervals...), 3*time.Second)

	if stats.IsStable {
		t.Errorf("jittery cadence reported stable: %+v", stats)
	}
	if stats.FPSMax <= stats.FPSMin {
		t.Errorf("FPSMax %v should exceed FPSMin %v", stats.FPSMax, stats.FPSMin)
	}
}
