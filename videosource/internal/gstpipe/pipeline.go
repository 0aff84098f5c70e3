// Package gstpipe builds and services the GStreamer playback pipeline
// behind videosource.GstSource.
//
// This package is INTERNAL - clients use videosource.GstSource.
package gstpipe

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineConfig contains configuration for pipeline creation.
type PipelineConfig struct {
	// URI is the media location (file://, http(s)://, rtsp://...).
	URI string
}

// PipelineElements holds references to pipeline elements needed for
// dynamic pad linking and cleanup.
type PipelineElements struct {
	Pipeline  *gst.Pipeline
	AppSink   *app.Sink
	Decodebin *gst.Element
	Converter *gst.Element
}

// CreatePipeline creates and configures the playback pipeline:
//
//	uridecodebin → videoconvert → videoscale → capsfilter(RGB) → appsink
//
// uridecodebin selects demuxer and decoder for the URI and exposes
// dynamic pads, linked in the pad-added callback. The capsfilter locks
// the output format to packed RGB but leaves width/height free, so the
// appsink observes the stream's native dimensions and any mid-stream
// change surfaces as new sample caps.
//
// The pipeline is configured but NOT started (state remains NULL).
// Caller must call Pipeline.SetState(gst.StatePlaying) to start.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	decodebin, err := gst.NewElement("uridecodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create uridecodebin: %w", err)
	}
	decodebin.SetProperty("uri", cfg.URI)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	// Format lock only: width/height stay negotiable so resolution
	// changes propagate to the appsink instead of being rescaled away.
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGB"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	// sync=true keeps sample delivery on the pipeline clock: a sample
	// arriving at the appsink IS a presented frame, which is the whole
	// contract of this source.
	appsink.SetProperty("sync", true)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	pipeline.AddMany(
		decodebin,
		converter,
		scaler,
		capsfilter,
		appsink.Element,
	)

	// Link static elements (uridecodebin has dynamic pads, linked in
	// the pad-added callback)
	if err := gst.ElementLinkMany(
		converter,
		scaler,
		capsfilter,
		appsink.Element,
	); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("gstpipe: playback pipeline created", "uri", cfg.URI)

	return &PipelineElements{
		Pipeline:  pipeline,
		AppSink:   appsink,
		Decodebin: decodebin,
		Converter: converter,
	}, nil
}

// OnPadAdded links a freshly created uridecodebin pad to the converter.
//
// uridecodebin pads are not known at pipeline creation time; audio
// pads (if any) are left unlinked and the stream plays video-only.
func OnPadAdded(srcElement *gst.Element, srcPad *gst.Pad, sinkElement *gst.Element) {
	slog.Debug("gstpipe: pad-added signal received", "pad", srcPad.GetName())

	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstpipe: failed to get sink pad from videoconvert")
		return
	}
	if sinkPad.IsLinked() {
		// Second video track or audio pad; ignore.
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Warn("gstpipe: failed to link decodebin pad", "pad", srcPad.GetName(), "result", ret)
	}
}

// CheckAvailable verifies GStreamer can create elements at all.
// Used for fail-fast validation at source construction time.
func CheckAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("gstreamer not functional: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
