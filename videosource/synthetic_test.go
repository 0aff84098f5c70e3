package videosource

import (
	"context"
	"testing"
	"time"
)

func TestNewSyntheticValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  SyntheticConfig
	}{
		{"zero width", SyntheticConfig{Width: 0, Height: 360, FPS: 30}},
		{"negative height", SyntheticConfig{Width: 640, Height: -1, FPS: 30}},
		{"fps too low", SyntheticConfig{Width: 640, Height: 360, FPS: 0.01}},
		{"fps too high", SyntheticConfig{Width: 640, Height: 360, FPS: 500}},
		{"jitter out of range", SyntheticConfig{Width: 640, Height: 360, FPS: 30, Jitter: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSynthetic(tc.cfg); err == nil {
				t.Errorf("NewSynthetic(%+v) should fail", tc.cfg)
			}
		})
	}
}

func TestSyntheticProducesFrames(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Width: 64, Height: 48, FPS: 120})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	fired := make(chan FrameInfo, 16)
	var cb FrameCallbackFunc
	cb = func(info FrameInfo) {
		fired <- info
		src.RequestFrameCallback(cb)
	}
	src.RequestFrameCallback(cb)

	var last FrameInfo
	for i := 0; i < 3; i++ {
		last = waitFor(t, fired)
	}
	if last.Width != 64 || last.Height != 48 {
		t.Errorf("frame dimensions = %dx%d, want 64x48", last.Width, last.Height)
	}

	f := src.CurrentFrame()
	if f == nil {
		t.Fatal("CurrentFrame is nil after presented frames")
	}
	if len(f.Data) != 64*48*3 {
		t.Errorf("frame data length = %d, want %d", len(f.Data), 64*48*3)
	}
	if f.TraceID == "" {
		t.Error("frame is missing a trace ID")
	}

	if q := src.PlaybackQuality(); q.TotalVideoFrames < 3 {
		t.Errorf("TotalVideoFrames = %d, want >= 3", q.TotalVideoFrames)
	}
}

// TestSyntheticJitteredPacing: with jitter enabled the source keeps
// presenting frames (VFR simulation changes the intervals, never the
// delivery guarantee).
func TestSyntheticJitteredPacing(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Width: 16, Height: 16, FPS: 120, Jitter: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	fired := make(chan FrameInfo, 16)
	var cb FrameCallbackFunc
	cb = func(info FrameInfo) {
		fired <- info
		src.RequestFrameCallback(cb)
	}
	src.RequestFrameCallback(cb)

	var prev uint64
	for i := 0; i < 5; i++ {
		info := waitFor(t, fired)
		if info.PresentedFrames <= prev {
			t.Errorf("PresentedFrames went %d -> %d, want monotonic increase", prev, info.PresentedFrames)
		}
		prev = info.PresentedFrames
	}
}

func TestSyntheticStartTwice(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Width: 8, Height: 8, FPS: 30})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	if err := src.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestSyntheticStopIdempotent(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Width: 8, Height: 8, FPS: 30})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := src.Stop(); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	// Never started is also a clean no-op.
	idle, _ := NewSynthetic(SyntheticConfig{Width: 8, Height: 8, FPS: 30})
	if err := idle.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
}

// TestSyntheticDeferredMetadata: with DeferMetadata the dimensions are
// hidden until Start, which announces them with a metadata-loaded
// notification: the path a consumer attached before metadata takes.
func TestSyntheticDeferredMetadata(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{
		Width: 320, Height: 240, FPS: 60,
		DeferMetadata: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if w, h := src.Dimensions(); w != 0 || h != 0 {
		t.Errorf("pre-start dimensions = %dx%d, want 0x0", w, h)
	}

	loaded := make(chan struct{}, 1)
	if _, err := src.AddListener(EventMetadataLoaded, func() {
		loaded <- struct{}{}
	}); err != nil {
		t.Fatal(err)
	}

	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("metadata-loaded notification never fired")
	}
	if w, h := src.Dimensions(); w != 320 || h != 240 {
		t.Errorf("post-start dimensions = %dx%d, want 320x240", w, h)
	}
}

func TestSyntheticResize(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Width: 64, Height: 48, FPS: 120})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	resized := make(chan struct{}, 1)
	if _, err := src.AddListener(EventResize, func() {
		resized <- struct{}{}
	}); err != nil {
		t.Fatal(err)
	}

	if err := src.Resize(128, 96); err != nil {
		t.Fatal(err)
	}
	select {
	case <-resized:
	case <-time.After(2 * time.Second):
		t.Fatal("resize notification never fired")
	}
	if w, h := src.Dimensions(); w != 128 || h != 96 {
		t.Errorf("Dimensions = %dx%d, want 128x96", w, h)
	}

	if err := src.Resize(0, 10); err == nil {
		t.Error("Resize(0, 10) should fail")
	}

	// Frames generated after the resize carry the new dimensions. A
	// frame generated just before the resize may still be in flight, so
	// allow a couple of old-size stragglers through.
	fired := make(chan FrameInfo, 16)
	var cb FrameCallbackFunc
	cb = func(info FrameInfo) {
		fired <- info
		src.RequestFrameCallback(cb)
	}
	src.RequestFrameCallback(cb)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case info := <-fired:
			if info.Width == 128 && info.Height == 96 {
				return
			}
		case <-deadline:
			t.Fatal("no frame with post-resize dimensions arrived")
		}
	}
}
