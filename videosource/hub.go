package videosource

import (
	"sync"
	"sync/atomic"
	"time"
)

// hub implements the shared notification machinery embedded by every
// Source in this package: the event listener registry, the one-shot
// frame callback registry, and the single dispatch goroutine that
// serializes delivery of both.
//
// Frame delivery uses a single-slot mailbox with overwrite policy: a
// frame published while the previous one is still undelivered replaces
// it and increments the dropped counter. Events are rare and ordered,
// so they queue FIFO and drain before the pending frame; a dimension
// change is therefore always observed before the repaint it affects.
//
// Goroutine topology:
//   - 1 fixed: dispatchLoop (spawned by start, stopped by close)
//   - publishers call publishFrame/emit from their own goroutines
type hub struct {
	mu   sync.Mutex
	cond *sync.Cond

	// --- Mailbox (single slot, overwrite) ---

	pendingFrame *Frame
	pendingInfo  FrameInfo
	hasPending   bool

	// --- Event queue (FIFO, drained before frames) ---

	events []EventKind

	// --- Registries ---

	listeners    map[ListenerID]*listenerEntry
	nextListener ListenerID
	callbacks    map[CallbackID]FrameCallbackFunc
	nextCallback CallbackID

	// --- Lifecycle ---

	closed bool
	wg     sync.WaitGroup

	// --- Counters (atomic, read by Stats/PlaybackQuality without lock) ---

	current   atomic.Pointer[Frame]
	presented atomic.Uint64
	dropped   atomic.Uint64
	createdAt time.Time
}

type listenerEntry struct {
	kind EventKind
	fn   func()
}

func newHub() *hub {
	h := &hub{
		listeners: make(map[ListenerID]*listenerEntry),
		callbacks: make(map[CallbackID]FrameCallbackFunc),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// start spawns the dispatch goroutine. Call exactly once.
// Notifications queued before start are delivered once the loop runs.
func (h *hub) start() {
	h.createdAt = time.Now()
	h.wg.Add(1)
	go h.dispatchLoop()
}

// close stops the dispatch goroutine and rejects further
// registrations. Idempotent. Pending notifications are discarded:
// after close returns, no handler runs again.
func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()

	h.wg.Wait()
}

// dispatchLoop serializes all notification delivery.
//
// Algorithm:
//  1. Wait for an event or a pending frame (sync.Cond, no busy-wait)
//  2. Drain one queued event, if any, before touching the frame slot
//  3. Otherwise consume the pending frame and fire the armed one-shot
//     callbacks, forgetting them first so re-arms from inside a
//     callback land in the next cycle
func (h *hub) dispatchLoop() {
	defer h.wg.Done()

	for {
		h.mu.Lock()
		for !h.closed && len(h.events) == 0 && !h.hasPending {
			h.cond.Wait()
		}
		if h.closed {
			h.mu.Unlock()
			return
		}

		// Events first: dimension updates must precede the repaint
		// they affect.
		if len(h.events) > 0 {
			kind := h.events[0]
			h.events = h.events[1:]

			var fns []func()
			for _, l := range h.listeners {
				if l.kind == kind {
					fns = append(fns, l.fn)
				}
			}
			h.mu.Unlock()

			for _, fn := range fns {
				fn()
			}
			continue
		}

		// Consume frame (mark slot empty before dispatching)
		info := h.pendingInfo
		h.pendingFrame = nil
		h.hasPending = false

		// One-shot: take the whole registry, replace with a fresh map.
		// Callbacks re-armed during dispatch fire on the NEXT frame.
		cbs := h.callbacks
		h.callbacks = make(map[CallbackID]FrameCallbackFunc)
		h.mu.Unlock()

		for _, fn := range cbs {
			fn(info)
		}
	}
}

// publishFrame makes f the current frame and schedules one
// presented-frame dispatch. Non-blocking; overwrites an undelivered
// frame (the skip is counted in DroppedVideoFrames).
func (h *hub) publishFrame(f *Frame, mediaTime time.Duration) {
	h.current.Store(f)
	seq := h.presented.Add(1)

	now := time.Now()
	info := FrameInfo{
		PresentationTime: now,
		ExpectedDisplay:  now,
		MediaTime:        mediaTime,
		PresentedFrames:  seq,
		Width:            f.Width,
		Height:           f.Height,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.hasPending {
		h.dropped.Add(1)
	}
	h.pendingFrame = f
	h.pendingInfo = info
	h.hasPending = true
	h.cond.Signal()
	h.mu.Unlock()
}

// emit queues a persistent event for dispatch.
func (h *hub) emit(kind EventKind) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.events = append(h.events, kind)
	h.cond.Signal()
	h.mu.Unlock()
}

// AddListener registers fn for kind (implements Source.AddListener).
func (h *hub) AddListener(kind EventKind, fn func()) (ListenerID, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}
	if kind != EventMetadataLoaded && kind != EventResize {
		return 0, ErrUnknownEvent
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrSourceClosed
	}

	h.nextListener++
	id := h.nextListener
	h.listeners[id] = &listenerEntry{kind: kind, fn: fn}
	return id, nil
}

// RemoveListener revokes a listener (implements Source.RemoveListener).
// Unknown IDs are ignored (idempotent).
func (h *hub) RemoveListener(id ListenerID) {
	h.mu.Lock()
	delete(h.listeners, id)
	h.mu.Unlock()
}

// RequestFrameCallback arms a one-shot presented-frame callback
// (implements Source.RequestFrameCallback). Returns 0 for a nil fn or
// a closed source; cancelling 0 is a no-op.
func (h *hub) RequestFrameCallback(fn FrameCallbackFunc) CallbackID {
	if fn == nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}

	h.nextCallback++
	id := h.nextCallback
	h.callbacks[id] = fn
	return id
}

// CancelFrameCallback revokes a pending frame callback (implements
// Source.CancelFrameCallback). IDs that already fired, were cancelled,
// or never existed are ignored (idempotent).
func (h *hub) CancelFrameCallback(id CallbackID) {
	h.mu.Lock()
	delete(h.callbacks, id)
	h.mu.Unlock()
}

// CurrentFrame returns the latest published frame, nil before the
// first (implements Source.CurrentFrame).
func (h *hub) CurrentFrame() *Frame {
	return h.current.Load()
}

// PlaybackQuality returns frame accounting counters (implements
// Source.PlaybackQuality). Atomic reads, safe for high-rate polling.
func (h *hub) PlaybackQuality() PlaybackQuality {
	return PlaybackQuality{
		TotalVideoFrames:   h.presented.Load(),
		DroppedVideoFrames: h.dropped.Load(),
		CreationTime:       h.createdAt,
	}
}
