package videosource

import (
	"math"
	"time"
)

// cadenceStabilityThreshold is the maximum allowed FPS standard
// deviation as a fraction of mean FPS. A cadence is considered stable
// if stddev < 15% of mean.
// Example: 30 FPS mean → stable if stddev < 4.5 FPS
const cadenceStabilityThreshold = 0.15

// PlaybackQuality is a snapshot of a source's frame accounting,
// analogous to a media element's playback quality report.
//
// TotalVideoFrames counts frames the source decoded and presented;
// DroppedVideoFrames counts frames that were decoded but never
// delivered to a consumer (coalesced in the dispatch mailbox). The
// vsync fallback driver polls these counters to approximate
// presentation timing when native callbacks are unavailable.
type PlaybackQuality struct {
	// TotalVideoFrames is the number of frames presented since the
	// source started.
	TotalVideoFrames uint64

	// DroppedVideoFrames is the number of frames that were replaced in
	// the mailbox before any consumer observed them.
	DroppedVideoFrames uint64

	// CreationTime is when the source started producing frames.
	CreationTime time.Time
}

// CadenceStats describes the measured frame cadence of a source over
// an observation window. The vsync fallback driver reports its
// observed cadence through these stats, so consumers can judge how
// closely the approximation tracks the real frame rate.
type CadenceStats struct {
	// FramesObserved is the number of frames in the window.
	FramesObserved int

	// Duration is the observation window length.
	Duration time.Duration

	// FPSMean is the mean FPS across the window.
	FPSMean float64

	// FPSStdDev is the standard deviation of instantaneous FPS.
	FPSStdDev float64

	// FPSMin is the minimum instantaneous FPS.
	FPSMin float64

	// FPSMax is the maximum instantaneous FPS.
	FPSMax float64

	// IsStable is true if FPS stddev < 15% of mean.
	IsStable bool
}

// CalculateCadence computes cadence statistics from frame presentation
// timestamps collected over totalDuration.
//
// The instantaneous FPS of each inter-frame interval feeds min/max and
// the standard deviation; the mean is the overall rate. Fewer than two
// frames yields an unstable, zeroed result rather than an error: an
// empty window is an observation, not a fault.
func CalculateCadence(frameTimes []time.Time, totalDuration time.Duration) CadenceStats {
	n := len(frameTimes)

	if n == 0 || totalDuration <= 0 {
		return CadenceStats{Duration: totalDuration}
	}

	fpsMean := float64(n) / totalDuration.Seconds()

	// Instantaneous FPS per inter-frame interval
	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}

	if len(instantaneous) == 0 {
		return CadenceStats{
			FramesObserved: n,
			Duration:       totalDuration,
			FPSMean:        fpsMean,
		}
	}

	fpsMin := instantaneous[0]
	fpsMax := instantaneous[0]
	sum := 0.0
	for _, fps := range instantaneous {
		if fps < fpsMin {
			fpsMin = fps
		}
		if fps > fpsMax {
			fpsMax = fps
		}
		sum += fps
	}
	instMean := sum / float64(len(instantaneous))

	variance := 0.0
	for _, fps := range instantaneous {
		d := fps - instMean
		variance += d * d
	}
	variance /= float64(len(instantaneous))
	stddev := math.Sqrt(variance)

	return CadenceStats{
		FramesObserved: n,
		Duration:       totalDuration,
		FPSMean:        fpsMean,
		FPSStdDev:      stddev,
		FPSMin:         fpsMin,
		FPSMax:         fpsMax,
		IsStable:       stddev < cadenceStabilityThreshold*fpsMean,
	}
}
