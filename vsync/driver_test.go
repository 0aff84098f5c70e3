package vsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/framesync/videosource"
)

// fakePolled is a source without native presentation callbacks: the
// tests advance its frame counter by hand and the driver has to notice.
type fakePolled struct {
	total   atomic.Uint64
	width   int
	height  int
	current atomic.Pointer[videosource.Frame]
}

func newFakePolled(w, h int) *fakePolled {
	return &fakePolled{width: w, height: h}
}

// present simulates n frames arriving at once.
func (p *fakePolled) present(n uint64) {
	f := &videosource.Frame{
		Seq:    p.total.Add(n),
		Width:  p.width,
		Height: p.height,
		Data:   make([]byte, p.width*p.height*3),
	}
	p.current.Store(f)
}

func (p *fakePolled) Dimensions() (int, int) { return p.width, p.height }

func (p *fakePolled) AddListener(kind videosource.EventKind, fn func()) (videosource.ListenerID, error) {
	return 1, nil
}

func (p *fakePolled) RemoveListener(id videosource.ListenerID) {}

func (p *fakePolled) CurrentFrame() *videosource.Frame { return p.current.Load() }

func (p *fakePolled) PlaybackQuality() videosource.PlaybackQuality {
	return videosource.PlaybackQuality{TotalVideoFrames: p.total.Load()}
}

func startDriver(t *testing.T, inner Polled, opts ...Option) *Driver {
	t.Helper()
	d, err := New(inner, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Stop() })
	return d
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("nil inner source should fail")
	}
	if _, err := New(newFakePolled(4, 4), WithRefreshRate(0)); err == nil {
		t.Error("zero refresh rate should fail")
	}
	if _, err := New(newFakePolled(4, 4), WithRefreshRate(5000)); err == nil {
		t.Error("absurd refresh rate should fail")
	}
}

// TestFiresOnlyWhenCounterAdvances: refresh ticks without a new
// presented frame stay silent; a counter advance fires the armed
// callback on the next tick.
func TestFiresOnlyWhenCounterAdvances(t *testing.T) {
	src := newFakePolled(64, 48)
	d := startDriver(t, src, WithRefreshRate(200))

	fired := make(chan videosource.FrameInfo, 4)
	if id := d.RequestFrameCallback(func(info videosource.FrameInfo) { fired <- info }); id == 0 {
		t.Fatal("RequestFrameCallback returned 0")
	}

	// No frames presented: many ticks pass, nothing fires.
	select {
	case <-fired:
		t.Fatal("callback fired without a presented frame")
	case <-time.After(100 * time.Millisecond):
	}

	src.present(1)
	select {
	case info := <-fired:
		if info.PresentedFrames != 1 {
			t.Errorf("PresentedFrames = %d, want 1", info.PresentedFrames)
		}
		if info.Width != 64 || info.Height != 48 {
			t.Errorf("dimensions = %dx%d, want 64x48", info.Width, info.Height)
		}
		if !info.ExpectedDisplay.After(info.PresentationTime) {
			t.Error("ExpectedDisplay should be one refresh interval after PresentationTime")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired after a presented frame")
	}

	// One-shot: another frame without re-arming fires nothing.
	src.present(1)
	select {
	case <-fired:
		t.Error("one-shot callback fired twice")
	case <-time.After(100 * time.Millisecond):
	}

	stats := d.Stats()
	if stats.TicksFired < 2 {
		t.Errorf("TicksFired = %d, want >= 2", stats.TicksFired)
	}
	if stats.TicksIdle == 0 {
		t.Error("expected idle ticks during the quiet stretch")
	}
}

// TestCoalescesBurst: several frames landing within one refresh
// interval produce a single callback carrying the latest counter, the
// same latest-wins policy a native source applies.
func TestCoalescesBurst(t *testing.T) {
	src := newFakePolled(8, 8)
	d := startDriver(t, src, WithRefreshRate(50))

	fired := make(chan videosource.FrameInfo, 4)
	d.RequestFrameCallback(func(info videosource.FrameInfo) { fired <- info })

	src.present(5)

	select {
	case info := <-fired:
		if info.PresentedFrames != 5 {
			t.Errorf("PresentedFrames = %d, want 5", info.PresentedFrames)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

// TestBaselineAtStart: frames presented before Start never fire an
// armed callback; arming means "next frame", not "any frame".
func TestBaselineAtStart(t *testing.T) {
	src := newFakePolled(8, 8)
	src.present(10)

	d := startDriver(t, src, WithRefreshRate(200))

	fired := make(chan videosource.FrameInfo, 1)
	d.RequestFrameCallback(func(info videosource.FrameInfo) { fired <- info })

	select {
	case <-fired:
		t.Fatal("pre-start frames fired a callback")
	case <-time.After(100 * time.Millisecond):
	}

	src.present(1)
	select {
	case info := <-fired:
		if info.PresentedFrames != 11 {
			t.Errorf("PresentedFrames = %d, want 11", info.PresentedFrames)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired for the post-start frame")
	}
}

// TestStatsReportObservedCadence: every fired tick feeds the cadence
// window, so Stats reports the pacing the driver actually observed.
func TestStatsReportObservedCadence(t *testing.T) {
	src := newFakePolled(8, 8)
	d := startDriver(t, src, WithRefreshRate(200))

	fired := make(chan videosource.FrameInfo, 16)
	var cb videosource.FrameCallbackFunc
	cb = func(info videosource.FrameInfo) {
		fired <- info
		d.RequestFrameCallback(cb)
	}
	d.RequestFrameCallback(cb)

	for i := 0; i < 4; i++ {
		src.present(1)
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("callback %d never fired", i+1)
		}
		time.Sleep(20 * time.Millisecond)
	}

	c := d.Stats().Cadence
	if c.FramesObserved < 4 {
		t.Errorf("Cadence.FramesObserved = %d, want >= 4", c.FramesObserved)
	}
	if c.FPSMean <= 0 {
		t.Errorf("Cadence.FPSMean = %v, want > 0", c.FPSMean)
	}
	if c.FPSMax < c.FPSMin {
		t.Errorf("Cadence FPSMax %v < FPSMin %v", c.FPSMax, c.FPSMin)
	}

	// A driver that never fired reports an empty, unstable window.
	idle := startDriver(t, newFakePolled(8, 8), WithRefreshRate(200))
	if c := idle.Stats().Cadence; c.FramesObserved != 0 || c.IsStable {
		t.Errorf("idle driver cadence = %+v, want empty and unstable", c)
	}
}

func TestCancelFrameCallback(t *testing.T) {
	src := newFakePolled(8, 8)
	d := startDriver(t, src, WithRefreshRate(200))

	fired := make(chan videosource.FrameInfo, 1)
	id := d.RequestFrameCallback(func(info videosource.FrameInfo) { fired <- info })
	d.CancelFrameCallback(id)
	d.CancelFrameCallback(id) // idempotent

	src.present(1)
	select {
	case <-fired:
		t.Error("cancelled callback fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopIdempotent(t *testing.T) {
	src := newFakePolled(8, 8)
	d, err := New(src, WithRefreshRate(200))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := d.Stop(); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	if id := d.RequestFrameCallback(func(videosource.FrameInfo) {}); id != 0 {
		t.Errorf("RequestFrameCallback after Stop = %d, want 0", id)
	}

	// Never started is also a clean no-op.
	idle, _ := New(src)
	if err := idle.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
}

func TestDelegationToInnerSource(t *testing.T) {
	src := newFakePolled(320, 240)
	src.present(2)
	d := startDriver(t, src, WithRefreshRate(200))

	if w, h := d.Dimensions(); w != 320 || h != 240 {
		t.Errorf("Dimensions = %dx%d, want 320x240", w, h)
	}
	if d.CurrentFrame() == nil {
		t.Error("CurrentFrame should pass through the wrapped source")
	}
	if q := d.PlaybackQuality(); q.TotalVideoFrames != 2 {
		t.Errorf("TotalVideoFrames = %d, want 2", q.TotalVideoFrames)
	}
	if _, err := d.AddListener(videosource.EventResize, func() {}); err != nil {
		t.Errorf("AddListener passthrough: %v", err)
	}
}
