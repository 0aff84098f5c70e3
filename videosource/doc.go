// Package videosource provides presentation-driven access to playing
// video sources.
//
// # Philosophy
//
// "Repaint on presentation, never on a timer."
//
// A consumer that repaints on a fixed interval drifts against the
// source's real decode/display cadence: it stutters when the two
// disagree and wastes work repainting identical frames. This package
// inverts the control flow. A Source notifies its consumers once per
// frame that was actually presented, so downstream repaint cadence
// tracks real frame cadence, including under variable frame rate.
//
// # Subscription Model
//
// Three notification kinds exist, mirroring what a playing media
// element exposes:
//
//   - EventMetadataLoaded: dimensions became known for the first time
//   - EventResize: dimensions changed mid-stream (track switch, ABR)
//   - presented-frame callbacks: one per composited frame
//
// Event listeners are persistent and identified by the ListenerID
// returned at registration; removal passes the same ID back, never a
// function value (function identity is not comparable in Go).
//
// Presented-frame callbacks are ONE-SHOT: each fires at most once and
// must be re-armed by the consumer to observe the next frame. This is
// what keeps the "at most one repaint per presented frame" guarantee
// trivial to reason about.
//
// # Delivery Semantics
//
// Every Source delivers all notifications from a single dispatch
// goroutine, serialized. Frames use a single-slot mailbox with
// overwrite policy: a frame arriving while the previous one is still
// being dispatched replaces it and the skip is counted, not queued.
// A missed frame is a skipped repaint, never an error.
//
// # Basic Usage
//
//	src, err := videosource.NewSynthetic(videosource.SyntheticConfig{
//	    Width: 640, Height: 360, FPS: 30,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := src.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Stop()
//
//	var onFrame videosource.FrameCallbackFunc
//	onFrame = func(info videosource.FrameInfo) {
//	    paint(src.CurrentFrame())
//	    src.RequestFrameCallback(onFrame) // re-arm for next frame
//	}
//	src.RequestFrameCallback(onFrame)
//
// # Implementations
//
// GstSource plays a URI through a GStreamer pipeline and treats every
// appsink sample as a presented frame. SyntheticSource generates a
// paced test pattern and is used by demos and tests. Sources without
// native presentation callbacks can be wrapped by package vsync,
// which approximates them from playback quality counters behind the
// same interface.
//
// # Thread Safety
//
// All Source methods are safe for concurrent use. Notification
// handlers run on the dispatch goroutine; they must not block for
// long, or frames will coalesce (see Delivery Semantics).
package videosource
