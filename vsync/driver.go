package vsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/framesync/videosource"
)

// defaultRefreshRate is the assumed display refresh rate when none is
// configured.
const defaultRefreshRate = 60.0

// cadenceWindow caps how many fired-tick timestamps feed the cadence
// report in Stats.
const cadenceWindow = 240

// Polled is the subset of videosource.Source a platform can provide
// without native presentation callbacks: readable dimensions, the
// persistent event pair, the latest frame, and playback quality
// counters. Every videosource.Source satisfies it structurally.
type Polled interface {
	Dimensions() (width, height int)
	AddListener(kind videosource.EventKind, fn func()) (videosource.ListenerID, error)
	RemoveListener(id videosource.ListenerID)
	CurrentFrame() *videosource.Frame
	PlaybackQuality() videosource.PlaybackQuality
}

// Option configures a Driver.
type Option func(*Driver)

// WithRefreshRate sets the refresh tick rate in Hz (default 60).
func WithRefreshRate(hz float64) Option {
	return func(d *Driver) { d.refreshHz = hz }
}

// Driver synthesizes presented-frame callbacks from playback quality
// counters, behind the full videosource.Source interface.
type Driver struct {
	inner     Polled
	refreshHz float64

	mu        sync.Mutex
	callbacks map[videosource.CallbackID]videosource.FrameCallbackFunc
	nextID    videosource.CallbackID
	closed    bool

	lastTotal uint64

	// ticksIdle counts refresh ticks that found no new presented
	// frame; exposed through Stats for tuning.
	ticksIdle  uint64
	ticksFired uint64

	// frameTimes holds the timestamps of recent fired ticks; Stats
	// derives the observed frame cadence from them.
	frameTimes []time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
	stopped   bool
}

// Compile-time check: Driver is a drop-in videosource.Source.
var _ videosource.Source = (*Driver)(nil)

// DriverStats is a snapshot of the driver's tick accounting.
type DriverStats struct {
	// TicksIdle is the number of refresh ticks with no new frame.
	TicksIdle uint64
	// TicksFired is the number of refresh ticks that dispatched a callback.
	TicksFired uint64
	// Cadence describes the pacing of fired ticks over the recent
	// observation window: how closely the approximation tracks the
	// source's real frame cadence.
	Cadence videosource.CadenceStats
}

// New creates a fallback driver around a polled source.
func New(inner Polled, opts ...Option) (*Driver, error) {
	if inner == nil {
		return nil, fmt.Errorf("vsync: inner source is required")
	}

	d := &Driver{
		inner:     inner,
		refreshHz: defaultRefreshRate,
		callbacks: make(map[videosource.CallbackID]videosource.FrameCallbackFunc),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.refreshHz <= 0 || d.refreshHz > 1000 {
		return nil, fmt.Errorf("vsync: invalid refresh rate %.1f Hz (must be 0-1000)", d.refreshHz)
	}
	return d, nil
}

// Start begins the refresh loop. Returns an error if already started.
func (d *Driver) Start(ctx context.Context) error {
	d.startedMu.Lock()
	defer d.startedMu.Unlock()

	if d.started {
		return fmt.Errorf("vsync: driver already started")
	}
	d.started = true

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Baseline the counter so frames presented before Start never fire
	// a callback: armed callbacks mean "next frame", not "any frame".
	d.lastTotal = d.inner.PlaybackQuality().TotalVideoFrames

	d.wg.Add(1)
	go d.refreshLoop()

	slog.Info("vsync: fallback driver started", "refresh_hz", d.refreshHz)
	return nil
}

// Stop halts the refresh loop and rejects further callback
// registrations. Idempotent. Does not stop the wrapped source.
func (d *Driver) Stop() error {
	d.startedMu.Lock()
	if !d.started || d.stopped {
		d.startedMu.Unlock()
		return nil
	}
	d.stopped = true
	d.startedMu.Unlock()

	d.cancel()
	d.wg.Wait()

	d.mu.Lock()
	d.closed = true
	d.callbacks = make(map[videosource.CallbackID]videosource.FrameCallbackFunc)
	d.mu.Unlock()
	return nil
}

// refreshLoop ticks at the refresh rate and cross-checks the quality
// counters; see the package documentation for the policy.
func (d *Driver) refreshLoop() {
	defer d.wg.Done()

	interval := time.Duration(float64(time.Second) / d.refreshHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.tick(interval)
		}
	}
}

func (d *Driver) tick(interval time.Duration) {
	total := d.inner.PlaybackQuality().TotalVideoFrames
	now := time.Now()

	d.mu.Lock()
	if total <= d.lastTotal {
		d.ticksIdle++
		d.mu.Unlock()
		return
	}
	d.lastTotal = total
	d.ticksFired++

	d.frameTimes = append(d.frameTimes, now)
	if len(d.frameTimes) > cadenceWindow {
		d.frameTimes = d.frameTimes[len(d.frameTimes)-cadenceWindow:]
	}

	// One-shot drain, exactly like a native source: callbacks armed
	// during dispatch land in the next tick's registry.
	cbs := d.callbacks
	d.callbacks = make(map[videosource.CallbackID]videosource.FrameCallbackFunc)
	d.mu.Unlock()

	if len(cbs) == 0 {
		return
	}

	w, h := d.inner.Dimensions()
	if f := d.inner.CurrentFrame(); f != nil {
		w, h = f.Width, f.Height
	}
	info := videosource.FrameInfo{
		PresentationTime: now,
		ExpectedDisplay:  now.Add(interval),
		PresentedFrames:  total,
		Width:            w,
		Height:           h,
	}

	for _, fn := range cbs {
		fn(info)
	}
}

// Stats returns tick accounting and the observed frame cadence for
// this driver.
func (d *Driver) Stats() DriverStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	var window time.Duration
	if n := len(d.frameTimes); n >= 2 {
		window = d.frameTimes[n-1].Sub(d.frameTimes[0])
	}
	return DriverStats{
		TicksIdle:  d.ticksIdle,
		TicksFired: d.ticksFired,
		Cadence:    videosource.CalculateCadence(d.frameTimes, window),
	}
}

// --- videosource.Source implementation ---

// Dimensions delegates to the wrapped source.
func (d *Driver) Dimensions() (int, int) { return d.inner.Dimensions() }

// AddListener delegates persistent events to the wrapped source.
func (d *Driver) AddListener(kind videosource.EventKind, fn func()) (videosource.ListenerID, error) {
	return d.inner.AddListener(kind, fn)
}

// RemoveListener delegates to the wrapped source.
func (d *Driver) RemoveListener(id videosource.ListenerID) { d.inner.RemoveListener(id) }

// RequestFrameCallback arms a one-shot callback on the driver's own
// registry. Returns 0 for a nil fn or a stopped driver.
func (d *Driver) RequestFrameCallback(fn videosource.FrameCallbackFunc) videosource.CallbackID {
	if fn == nil {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0
	}
	d.nextID++
	id := d.nextID
	d.callbacks[id] = fn
	return id
}

// CancelFrameCallback revokes a pending callback; unknown or fired IDs
// are ignored (idempotent).
func (d *Driver) CancelFrameCallback(id videosource.CallbackID) {
	d.mu.Lock()
	delete(d.callbacks, id)
	d.mu.Unlock()
}

// CurrentFrame delegates to the wrapped source.
func (d *Driver) CurrentFrame() *videosource.Frame { return d.inner.CurrentFrame() }

// PlaybackQuality delegates to the wrapped source.
func (d *Driver) PlaybackQuality() videosource.PlaybackQuality {
	return d.inner.PlaybackQuality()
}
