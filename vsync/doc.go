// Package vsync approximates presentation-driven frame callbacks for
// sources that cannot deliver them natively.
//
// # Why Not A Timer
//
// A consumer falling back to a plain fixed-interval repaint loses the
// core guarantee of presentation-driven rendering: repaint cadence
// tracking actual frame cadence. The Driver here degrades to "close to
// presentation-accurate" instead. It ticks at the display refresh rate
// but cross-checks the source's playback quality counters on every
// tick: a callback fires only when at least one NEW frame was
// presented since the previous tick. Ticks without a new frame are
// silent; multiple frames inside one tick collapse to a single
// callback (latest frame wins), visible as a gap in
// FrameInfo.PresentedFrames.
//
// # Drop-In Contract
//
// Driver implements videosource.Source, so a renderer bound to it
// cannot tell the difference from a native source. Dimension events
// pass straight through to the wrapped source's own dispatch; only the
// presented-frame subscription is synthesized here, serialized on the
// driver's refresh goroutine.
//
// # Usage
//
//	drv, err := vsync.New(polledSource, vsync.WithRefreshRate(60))
//	if err != nil { ... }
//	drv.Start(ctx)
//	defer drv.Stop()
//
//	r, err := renderer.New(drv, surf) // transparent fallback
package vsync
