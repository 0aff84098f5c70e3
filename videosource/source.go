package videosource

import "errors"

// EventKind identifies a persistent source notification.
type EventKind int

const (
	// EventMetadataLoaded fires once the source's dimensions become
	// known. Consumers constructed after metadata already loaded will
	// never see it; they should read Dimensions() eagerly as well.
	EventMetadataLoaded EventKind = iota

	// EventResize fires whenever the source's pixel dimensions change
	// mid-stream (track switch, adaptive bitrate step, caps change).
	EventResize
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventMetadataLoaded:
		return "metadata-loaded"
	case EventResize:
		return "resize"
	default:
		return "unknown"
	}
}

// ListenerID identifies a registered event listener. IDs are unique
// per source and never reused.
type ListenerID uint64

// CallbackID identifies a pending one-shot frame callback.
// The zero value is never a valid ID.
type CallbackID uint64

// FrameCallbackFunc is invoked once per presented frame it was armed
// for, on the source's dispatch goroutine, carrying presentation
// timing metadata. It must be re-armed via RequestFrameCallback to
// observe subsequent frames.
type FrameCallbackFunc func(info FrameInfo)

// Public API errors - stable contract for callers that branch on them.
var (
	// ErrSourceClosed is returned when registering against a source
	// whose dispatch loop has been stopped.
	ErrSourceClosed = errors.New("videosource: source closed")

	// ErrNilHandler is returned when a nil listener or callback
	// function is registered.
	ErrNilHandler = errors.New("videosource: nil handler")

	// ErrUnknownEvent is returned for an EventKind this package does
	// not define.
	ErrUnknownEvent = errors.New("videosource: unknown event kind")
)

// Source is the contract for a playing video source.
//
// Implementations must guarantee:
//   - Dimensions() is thread-safe and returns (0, 0) until metadata is known
//   - All notifications are delivered serialized, from one goroutine
//   - Frame callbacks are one-shot (fire at most once, then forget)
//   - CancelFrameCallback and RemoveListener are idempotent no-ops for
//     unknown, fired, or already-removed IDs
//   - CurrentFrame() returns the latest presented frame (nil before the
//     first), immutable once published
type Source interface {
	// Dimensions returns the source's current pixel width and height.
	Dimensions() (width, height int)

	// AddListener registers fn for the given event kind and returns an
	// ID for later removal. Registration while closed returns
	// ErrSourceClosed.
	AddListener(kind EventKind, fn func()) (ListenerID, error)

	// RemoveListener revokes a listener. Unknown IDs are ignored.
	RemoveListener(id ListenerID)

	// RequestFrameCallback arms fn to fire once for the next presented
	// frame and returns a cancellation ID. A nil fn or a closed source
	// yields ID 0, which cancels to a no-op.
	RequestFrameCallback(fn FrameCallbackFunc) CallbackID

	// CancelFrameCallback revokes a pending frame callback. Cancelling
	// an ID that already fired, was cancelled, or never existed is a
	// no-op.
	CancelFrameCallback(id CallbackID)

	// CurrentFrame returns the latest presented frame, nil before the
	// first. The returned frame must not be modified.
	CurrentFrame() *Frame

	// PlaybackQuality returns presented/dropped counters, analogous to
	// a media element's playback quality report. Safe for polling.
	PlaybackQuality() PlaybackQuality
}
