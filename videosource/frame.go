package videosource

import "time"

// Frame is a decoded video frame with immutability contract for
// zero-copy sharing.
//
// IMMUTABILITY CONTRACT:
//   - Sources MUST NOT modify Data after publishing the frame
//   - Consumers MUST NOT modify Data (read-only access)
//   - Enforcement is documentation-based (runtime checks would add
//     a copy per frame)
type Frame struct {
	// Seq is a monotonic sequence number assigned at decode time.
	Seq uint64

	// Timestamp is when the frame was decoded (source time, not
	// consumer time).
	Timestamp time.Time

	// Width in pixels.
	Width int

	// Height in pixels.
	Height int

	// Data contains tightly packed RGB24 pixels, Width*Height*3 bytes,
	// row-major from the top-left. Shared by reference.
	Data []byte

	// TraceID is a unique identifier for correlating a frame across
	// pipeline stages in logs.
	TraceID string
}

// FrameInfo is the timing token handed to presented-frame callbacks.
// Callers treat it as opaque metadata about the presentation; none of
// it is required to perform a repaint.
type FrameInfo struct {
	// PresentationTime is when the frame was composited for display.
	PresentationTime time.Time

	// ExpectedDisplay is the estimated time the frame becomes visible.
	// Equals PresentationTime for sources that cannot estimate vsync.
	ExpectedDisplay time.Time

	// MediaTime is the frame's position on the media timeline, when
	// known (zero otherwise).
	MediaTime time.Duration

	// PresentedFrames is the total number of frames the source has
	// presented so far, including this one. Gaps between consecutive
	// callbacks indicate coalesced (skipped) frames.
	PresentedFrames uint64

	// Width and Height are the presented frame's dimensions.
	Width  int
	Height int
}
