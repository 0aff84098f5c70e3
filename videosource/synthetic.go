package videosource

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyntheticConfig configures a SyntheticSource.
type SyntheticConfig struct {
	// Width and Height are the initial frame dimensions in pixels (required).
	Width  int
	Height int

	// FPS is the nominal frame rate (0.1 - 240).
	FPS float64

	// Jitter is the per-frame interval variation as a fraction of the
	// nominal interval (0 - 0.9). Non-zero values simulate a variable
	// frame rate stream. Optional, default 0 (constant rate).
	Jitter float64

	// DeferMetadata, when true, hides the dimensions until Start, so
	// consumers exercise the metadata-loaded path. Optional.
	DeferMetadata bool
}

// SyntheticSource generates a paced moving test pattern. It exists for
// demos and tests: deterministic dimensions, controllable cadence,
// mid-stream resizing, optional VFR jitter. No codec, no I/O.
type SyntheticSource struct {
	*hub

	fps    float64
	jitter float64

	dimMu    sync.Mutex
	width    int
	height   int
	deferred bool

	// Configured dimensions held back while metadata is deferred.
	pendingW int
	pendingH int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
	stopped   bool

	seq uint64
	rng *rand.Rand
}

// NewSynthetic creates a synthetic source with fail-fast validation.
func NewSynthetic(cfg SyntheticConfig) (*SyntheticSource, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("videosource: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS < 0.1 || cfg.FPS > 240 {
		return nil, fmt.Errorf("videosource: invalid FPS %.2f (must be 0.1-240)", cfg.FPS)
	}
	if cfg.Jitter < 0 || cfg.Jitter > 0.9 {
		return nil, fmt.Errorf("videosource: invalid jitter %.2f (must be 0-0.9)", cfg.Jitter)
	}

	s := &SyntheticSource{
		hub:      newHub(),
		fps:      cfg.FPS,
		jitter:   cfg.Jitter,
		deferred: cfg.DeferMetadata,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.DeferMetadata {
		// Dimensions stay (0,0) until Start "loads metadata".
		s.pendingW, s.pendingH = cfg.Width, cfg.Height
	} else {
		s.width, s.height = cfg.Width, cfg.Height
	}
	return s, nil
}

// Start begins frame generation. Returns an error if already started.
func (s *SyntheticSource) Start(ctx context.Context) error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()

	if s.started {
		return fmt.Errorf("videosource: synthetic source already started")
	}
	s.started = true

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.hub.start()

	if s.deferred {
		s.dimMu.Lock()
		s.width, s.height = s.pendingW, s.pendingH
		s.dimMu.Unlock()
		s.emit(EventMetadataLoaded)
	}

	s.wg.Add(1)
	go s.frameLoop()
	return nil
}

// Stop halts generation and the dispatch loop. Idempotent.
func (s *SyntheticSource) Stop() error {
	s.startedMu.Lock()
	if !s.started || s.stopped {
		s.startedMu.Unlock()
		return nil
	}
	s.stopped = true
	s.startedMu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.hub.close()
	return nil
}

// Resize changes the pattern dimensions mid-stream and fires a resize
// notification, simulating a track or resolution change.
func (s *SyntheticSource) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("videosource: invalid dimensions %dx%d", width, height)
	}
	s.dimMu.Lock()
	s.width, s.height = width, height
	s.dimMu.Unlock()
	s.emit(EventResize)
	return nil
}

// Dimensions returns the current pattern size (implements
// Source.Dimensions).
func (s *SyntheticSource) Dimensions() (int, int) {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	return s.width, s.height
}

// frameLoop paces frame generation at the configured rate, applying
// jitter to each interval when VFR simulation is on.
func (s *SyntheticSource) frameLoop() {
	defer s.wg.Done()

	base := time.Duration(float64(time.Second) / s.fps)
	timer := time.NewTimer(base)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.seq++
			frame := s.generateFrame(s.seq)
			s.publishFrame(frame, time.Duration(s.seq)*base)

			interval := base
			if s.jitter > 0 {
				// Uniform jitter in [-j, +j] around the nominal interval
				factor := 1 + (s.rng.Float64()*2-1)*s.jitter
				interval = time.Duration(float64(base) * factor)
			}
			timer.Reset(interval)
		}
	}
}

// generateFrame renders a moving diagonal gradient. The pattern shifts
// with the sequence number so consecutive frames differ visibly.
func (s *SyntheticSource) generateFrame(seq uint64) *Frame {
	w, h := s.Dimensions()
	data := make([]byte, w*h*3)

	shift := int(seq * 3)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[i] = byte((x + shift) * 255 / max(w, 1))
			data[i+1] = byte((y + shift) * 255 / max(h, 1))
			data[i+2] = byte((x + y + shift) & 0xff)
			i += 3
		}
	}

	return &Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     w,
		Height:    h,
		Data:      data,
		TraceID:   uuid.New().String(),
	}
}
