package gstpipe

import (
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Sample is one presented video frame pulled from the appsink, with
// its dimensions as negotiated at that moment.
type Sample struct {
	Width     int
	Height    int
	Data      []byte // packed RGB24, copied out of the GStreamer buffer
	MediaTime time.Duration
}

// CallbackContext holds state shared with the appsink callback.
type CallbackContext struct {
	// OnSample receives each successfully pulled frame.
	OnSample func(Sample)
}

// OnNewSample is called by GStreamer when the appsink holds a new
// presented frame.
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Reads width/height from the sample caps (they change mid-stream
//     on track or resolution switches)
//  3. Maps the buffer and copies pixel data (GStreamer reuses buffers)
//  4. Hands the result to ctx.OnSample
//
// A corrupted or unreadable sample is skipped, not fatal: a missed
// frame is just a skipped repaint.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstpipe: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	width, height, ok := sampleDimensions(sample)
	if !ok {
		slog.Warn("gstpipe: sample without usable caps, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstpipe: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstpipe: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse the buffer)
	frameData := make([]byte, len(data))
	copy(frameData, data)

	// PTS is negative when the buffer carries no timestamp.
	mediaTime := buffer.PresentationTimestamp()
	if mediaTime < 0 {
		mediaTime = 0
	}
	buffer.Unmap()

	ctx.OnSample(Sample{
		Width:     width,
		Height:    height,
		Data:      frameData,
		MediaTime: mediaTime,
	})

	return gst.FlowOK
}

// sampleDimensions extracts width/height from the sample's caps.
func sampleDimensions(sample *gst.Sample) (width, height int, ok bool) {
	caps := sample.GetCaps()
	if caps == nil {
		return 0, 0, false
	}

	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0, false
	}

	wv, err := structure.GetValue("width")
	if err != nil {
		return 0, 0, false
	}
	hv, err := structure.GetValue("height")
	if err != nil {
		return 0, 0, false
	}

	w, wok := wv.(int)
	h, hok := hv.(int)
	if !wok || !hok || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
