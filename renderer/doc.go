// Package renderer binds a playing video source to a drawing surface
// and repaints the surface once per presented frame.
//
// # Scheduling Policy
//
// Two strategies were considered for pacing repaints:
//
//   - Fixed-interval timer (~16ms): repaint cadence decouples from the
//     source's actual decode/display cadence. The two drift, producing
//     visible stutter, and identical frames get repainted for nothing.
//     Rejected.
//   - Presentation-driven callback: the source notifies exactly when a
//     new frame was composited, correct under variable frame rate.
//     Adopted.
//
// Sources without native presentation callbacks are wrapped by package
// vsync, which approximates the same subscription interface from
// playback quality counters; the renderer cannot tell the difference.
//
// # Lifecycle
//
// Construction subscribes to resize and metadata notifications, sizes
// the surface synchronously (covering sources whose metadata already
// loaded, which will never notify again), and arms the first frame
// callback. Exactly one frame callback is outstanding at all times
// until Destroy: each firing repaints and immediately re-arms.
//
// Destroy is idempotent and immediate: the destroyed flag is checked
// at the top of every handler, so even a notification already in
// flight when Destroy returns produces no further side effects on the
// surface.
//
// # Ownership
//
// The renderer owns neither the source nor the surface; it only
// observes the former and mutates the latter's dimensions, filter, and
// pixels. Concurrent readers of the surface (export paths) should use
// Surface.Snapshot, which serializes against paints.
package renderer
