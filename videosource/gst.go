package videosource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/framesync/videosource/internal/gstpipe"
)

// GstConfig contains configuration for a GStreamer-backed source.
type GstConfig struct {
	// URI is the media location (required): file://, http(s)://, rtsp://.
	URI string
}

// GstSource plays a URI through a GStreamer pipeline and treats every
// appsink sample as a presented frame (the appsink runs clock-synced,
// so samples arrive at presentation time, not decode time).
//
// Dimension changes are detected per sample from the negotiated caps:
// the first sample fires EventMetadataLoaded, later changes fire
// EventResize.
type GstSource struct {
	*hub

	uri      string
	elements *gstpipe.PipelineElements

	dimMu     sync.Mutex
	width     int
	height    int
	metaKnown bool

	seq       atomic.Uint64
	bytesRead atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
	stopped   bool
}

// NewGst creates a GStreamer-backed source with fail-fast validation:
// the URI must be non-empty and GStreamer must be functional on this
// machine.
func NewGst(cfg GstConfig) (*GstSource, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("videosource: media URI is required")
	}
	if err := gstpipe.CheckAvailable(); err != nil {
		return nil, fmt.Errorf("videosource: GStreamer not available: %w", err)
	}

	return &GstSource{
		hub: newHub(),
		uri: cfg.URI,
	}, nil
}

// Start builds the pipeline and sets it PLAYING. Frames begin arriving
// asynchronously once decoding starts. Returns an error if already
// started or pipeline creation fails.
func (s *GstSource) Start(ctx context.Context) error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()

	if s.started {
		return fmt.Errorf("videosource: gst source already started")
	}

	elements, err := gstpipe.CreatePipeline(gstpipe.PipelineConfig{URI: s.uri})
	if err != nil {
		return fmt.Errorf("videosource: %w", err)
	}
	s.elements = elements
	s.ctx, s.cancel = context.WithCancel(ctx)

	callbackCtx := &gstpipe.CallbackContext{OnSample: s.onSample}
	s.elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return gstpipe.OnNewSample(sink, callbackCtx)
		},
	})

	converter := s.elements.Converter
	s.elements.Decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		gstpipe.OnPadAdded(self, srcPad, converter)
	})

	if err := s.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("videosource: failed to start pipeline: %w", err)
	}

	s.started = true
	s.hub.start()

	s.wg.Add(1)
	go s.watchBus()

	slog.Info("videosource: gst source started",
		"uri", s.uri,
		"note", "frames arrive asynchronously once the pipeline reaches PLAYING",
	)
	return nil
}

// Stop tears the pipeline down and stops notification dispatch.
// Idempotent. After Stop, no listener or frame callback fires again.
func (s *GstSource) Stop() error {
	s.startedMu.Lock()
	if !s.started || s.stopped {
		s.startedMu.Unlock()
		return nil
	}
	s.stopped = true
	s.startedMu.Unlock()

	s.cancel()
	if err := s.elements.Pipeline.SetState(gst.StateNull); err != nil {
		slog.Warn("videosource: error stopping pipeline", "error", err)
	}
	s.wg.Wait()
	s.hub.close()

	slog.Info("videosource: gst source stopped",
		"uri", s.uri,
		"frames", s.seq.Load(),
		"bytes_read", s.bytesRead.Load(),
	)
	return nil
}

// Dimensions returns the currently negotiated frame size (implements
// Source.Dimensions). (0, 0) until the first sample arrives.
func (s *GstSource) Dimensions() (int, int) {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	return s.width, s.height
}

// onSample runs on the GStreamer streaming thread for each presented
// frame: track dimension changes, then publish into the hub mailbox.
// Publishing is non-blocking, so the streaming thread is never stalled
// by slow consumers.
func (s *GstSource) onSample(sample gstpipe.Sample) {
	s.dimMu.Lock()
	switch {
	case !s.metaKnown:
		s.metaKnown = true
		s.width, s.height = sample.Width, sample.Height
		s.dimMu.Unlock()
		s.emit(EventMetadataLoaded)
	case sample.Width != s.width || sample.Height != s.height:
		old := fmt.Sprintf("%dx%d", s.width, s.height)
		s.width, s.height = sample.Width, sample.Height
		s.dimMu.Unlock()
		slog.Info("videosource: stream dimensions changed",
			"from", old,
			"to", fmt.Sprintf("%dx%d", sample.Width, sample.Height),
		)
		s.emit(EventResize)
	default:
		s.dimMu.Unlock()
	}

	seq := s.seq.Add(1)
	s.bytesRead.Add(uint64(len(sample.Data)))

	s.publishFrame(&Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     sample.Width,
		Height:    sample.Height,
		Data:      sample.Data,
		TraceID:   uuid.New().String(),
	}, sample.MediaTime)
}

// watchBus monitors the pipeline bus for EOS and errors.
func (s *GstSource) watchBus() {
	defer s.wg.Done()

	bus := s.elements.Pipeline.GetPipelineBus()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(500 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("videosource: end of stream", "uri", s.uri)
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("videosource: pipeline error", "uri", s.uri, "error", gerr.Error())
			return
		}
	}
}
