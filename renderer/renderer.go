package renderer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/framesync/surface"
	"github.com/e7canasta/framesync/videosource"
)

// DefaultFilter is the standing surface filter applied when no
// WithFilter option is given: a mild contrast/saturation boost.
const DefaultFilter = "contrast(1.1) saturate(1.2)"

// SnapshotHook receives a copy of the surface after each paint, off
// the paint path. The context is cancelled when the renderer is
// destroyed; hooks still in flight at that point are abandoned.
type SnapshotHook func(ctx context.Context, snap *image.RGBA) error

// Option configures a Renderer.
type Option func(*Renderer)

// WithFilter sets the filter expression reapplied on every resize.
// Validated at construction time; see package surface for the grammar.
func WithFilter(expr string) Option {
	return func(r *Renderer) { r.filterExpr = expr }
}

// WithLogger sets the renderer's logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithSnapshotHook installs a per-paint snapshot consumer. The hook
// runs on its own goroutine so richer post-processing never stalls the
// repaint cycle.
func WithSnapshotHook(hook SnapshotHook) Option {
	return func(r *Renderer) { r.hook = hook }
}

// Stats is a snapshot of a renderer's operational counters.
type Stats struct {
	// Blits is the number of frames painted onto the surface.
	Blits uint64
	// Resizes is the number of times the surface was re-derived from
	// the source's dimensions (including the one at construction).
	Resizes uint64
	// Destroyed reports whether Destroy has been called.
	Destroyed bool
}

// Renderer repaints a drawing surface once per presented video frame.
// See the package documentation for the scheduling policy and
// lifecycle guarantees.
type Renderer struct {
	src        videosource.Source
	surf       *surface.Surface
	filterExpr string
	log        *slog.Logger
	hook       SnapshotHook

	destroyed atomic.Bool

	// mu guards frameCB: Destroy must cancel exactly the callback that
	// is currently armed, not one being re-armed concurrently.
	mu      sync.Mutex
	frameCB videosource.CallbackID

	resizeID videosource.ListenerID
	metaID   videosource.ListenerID

	blits   atomic.Uint64
	resizes atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	hookWG sync.WaitGroup
}

// New binds src to surf and starts the repaint cycle.
//
// Side effects before returning: both event subscriptions are
// registered, the surface is sized to the source's current dimensions
// with the filter applied (even if the source's metadata loaded long
// ago), and exactly one frame callback is armed.
func New(src videosource.Source, surf *surface.Surface, opts ...Option) (*Renderer, error) {
	if src == nil {
		return nil, fmt.Errorf("renderer: video source is required")
	}
	if surf == nil {
		return nil, fmt.Errorf("renderer: drawing surface is required")
	}

	r := &Renderer{
		src:        src,
		surf:       surf,
		filterExpr: DefaultFilter,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := surface.ValidateFilter(r.filterExpr); err != nil {
		return nil, fmt.Errorf("renderer: invalid filter expression: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	var err error
	r.resizeID, err = src.AddListener(videosource.EventResize, r.onResize)
	if err != nil {
		return nil, fmt.Errorf("renderer: subscribing to resize: %w", err)
	}
	r.metaID, err = src.AddListener(videosource.EventMetadataLoaded, r.onResize)
	if err != nil {
		src.RemoveListener(r.resizeID)
		return nil, fmt.Errorf("renderer: subscribing to metadata: %w", err)
	}

	// Size the surface immediately: a source whose metadata already
	// loaded will never fire either notification again.
	r.onResize()

	r.mu.Lock()
	r.frameCB = src.RequestFrameCallback(r.onFramePresented)
	r.mu.Unlock()

	return r, nil
}

// onResize re-derives the surface from the source's dimensions.
//
// Resizing clears the surface's pixel buffer AND resets its filter, so
// the filter must be reapplied on every resize, not once at
// construction. Both happen in one surface call: with the fallback
// driver interposed this handler and onFramePresented run on different
// goroutines, and a blit must never slip between the resize and the
// refilter.
func (r *Renderer) onResize() {
	if r.destroyed.Load() {
		return
	}

	w, h := r.src.Dimensions()
	if err := r.surf.SetSizeAndFilter(w, h, r.filterExpr); err != nil {
		// Validated in New; cannot fail for the configured expression.
		r.log.Warn("renderer: reapplying filter failed", "error", err)
	}
	r.resizes.Add(1)

	r.log.Debug("renderer: surface resized", "width", w, "height", h, "filter", r.filterExpr)
}

// onFramePresented paints the source's current frame and re-arms the
// frame callback, keeping exactly one outstanding.
//
// The destroyed check comes first: cancellation of an in-flight
// notification cannot be guaranteed, so the handler itself must refuse
// to act after Destroy.
func (r *Renderer) onFramePresented(info videosource.FrameInfo) {
	if r.destroyed.Load() {
		return
	}

	if f := r.src.CurrentFrame(); f != nil {
		if err := r.surf.DrawFrame(f); err != nil {
			// A bad frame is a skipped repaint, not a render failure.
			r.log.Warn("renderer: dropping unpaintable frame",
				"seq", f.Seq,
				"trace_id", f.TraceID,
				"error", err,
			)
		} else {
			r.blits.Add(1)
		}
	}

	// Re-arm for the next presented frame. Re-check destroyed under
	// the lock so Destroy cannot race us into a dangling subscription.
	r.mu.Lock()
	if !r.destroyed.Load() {
		r.frameCB = r.src.RequestFrameCallback(r.onFramePresented)
	}
	r.mu.Unlock()

	if r.hook != nil {
		r.dispatchHook()
	}
}

// dispatchHook runs the snapshot hook off the paint path. The snapshot
// is the asynchronous sub-step; the destroyed flag is re-checked after
// it completes, and the hook is abandoned if destruction happened
// during the wait. Never write to a surface the caller considers
// finalized.
func (r *Renderer) dispatchHook() {
	r.hookWG.Add(1)
	go func() {
		defer r.hookWG.Done()

		snap := r.surf.Snapshot()
		if r.destroyed.Load() {
			return
		}
		if err := r.hook(r.ctx, snap); err != nil {
			r.log.Warn("renderer: snapshot hook failed", "error", err)
		}
	}()
}

// Destroy stops the repaint cycle and revokes all subscriptions.
//
// Idempotent: only the first call acts, and revoking an
// already-revoked subscription is a no-op at the source. Effective
// immediately: after Destroy returns, no renderer method produces
// further visible side effects on the surface, even for notifications
// already in flight.
func (r *Renderer) Destroy() {
	if !r.destroyed.CompareAndSwap(false, true) {
		return
	}

	r.cancel()

	r.mu.Lock()
	r.src.CancelFrameCallback(r.frameCB)
	r.mu.Unlock()

	r.src.RemoveListener(r.resizeID)
	r.src.RemoveListener(r.metaID)

	r.log.Debug("renderer: destroyed",
		"blits", r.blits.Load(),
		"resizes", r.resizes.Load(),
	)
}

// Stats returns operational counters (non-blocking snapshot).
func (r *Renderer) Stats() Stats {
	return Stats{
		Blits:     r.blits.Load(),
		Resizes:   r.resizes.Load(),
		Destroyed: r.destroyed.Load(),
	}
}
