package surface

import (
	"fmt"
	"image"
	stddraw "image/draw"
	"sync"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"github.com/e7canasta/framesync/videosource"
)

// Surface is a raster drawing target with canvas-like semantics:
// mutable dimensions, a standing declarative filter expression, and a
// single-blit paint operation that applies the filter per paint.
//
// Thread-safety: all methods are safe for concurrent use, but a
// Snapshot taken concurrently with DrawFrame observes either the
// previous or the new frame, never a torn one (both hold the surface
// lock). Consumers that bypass Snapshot and share the backing image
// get no such guarantee.
type Surface struct {
	mu         sync.Mutex
	img        *image.RGBA
	filterExpr string
	matrix     colorMatrix
	filtered   bool

	blits atomic.Uint64
}

// New creates a surface of the given size. Zero or negative dimensions
// yield an empty surface, resizable later via SetSize.
func New(width, height int) *Surface {
	s := &Surface{}
	s.allocate(width, height)
	return s
}

func (s *Surface) allocate(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Size returns the surface's current pixel dimensions.
func (s *Surface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// SetSize reallocates the pixel buffer at the new dimensions.
//
// Matching canvas semantics, this CLEARS the surface and RESETS the
// filter expression to empty, even when the dimensions are unchanged.
// Callers that size the surface from a source must reapply their
// filter afterwards.
func (s *Surface) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocate(width, height)
	s.filterExpr = ""
	s.matrix = colorMatrix{}
	s.filtered = false
}

// Filter returns the current filter expression ("" when none is set).
func (s *Surface) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterExpr
}

// SetFilter parses and installs a filter expression, applied on every
// subsequent paint. An empty expression or "none" clears the filter.
// Parsing failures leave the previous filter in place.
func (s *Surface) SetFilter(expr string) error {
	matrix, active, err := parseFilter(expr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterExpr = expr
	s.matrix = matrix
	s.filtered = active
	return nil
}

// SetSizeAndFilter reallocates the pixel buffer at the new dimensions
// and installs expr in the same lock hold, so a concurrent DrawFrame
// can never land between the resize and the refilter and paint an
// unfiltered frame. A parse failure still resizes (clearing the buffer
// and resetting the filter, per SetSize semantics) and returns the
// error.
func (s *Surface) SetSizeAndFilter(width, height int, expr string) error {
	matrix, active, parseErr := parseFilter(expr)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocate(width, height)
	if parseErr != nil {
		s.filterExpr = ""
		s.matrix = colorMatrix{}
		s.filtered = false
		return parseErr
	}
	s.filterExpr = expr
	s.matrix = matrix
	s.filtered = active
	return nil
}

// ValidateFilter reports whether expr would be accepted by SetFilter,
// without touching any surface.
func ValidateFilter(expr string) error {
	_, _, err := parseFilter(expr)
	return err
}

// DrawFrame blits f onto the surface at the origin, at the surface's
// current dimensions, then applies the standing filter. This is the
// whole paint operation: one blit, no per-frame caller-side pixel
// work.
//
// Frames whose dimensions differ from the surface are scaled with
// bilinear interpolation. A nil frame or short pixel data is an error;
// an empty (0x0) surface makes the paint a counted no-op.
func (s *Surface) DrawFrame(f *videosource.Frame) error {
	if f == nil {
		return fmt.Errorf("surface: nil frame")
	}
	if len(f.Data) < f.Width*f.Height*3 {
		return fmt.Errorf("surface: frame %d: short pixel data (%d bytes for %dx%d)",
			f.Seq, len(f.Data), f.Width, f.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bounds := s.img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		s.blits.Add(1)
		return nil
	}

	src := rgbToRGBA(f)
	if f.Width == bounds.Dx() && f.Height == bounds.Dy() {
		stddraw.Draw(s.img, bounds, src, image.Point{}, stddraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(s.img, bounds, src, src.Bounds(), xdraw.Src, nil)
	}

	if s.filtered {
		applyMatrix(s.img, s.matrix)
	}

	s.blits.Add(1)
	return nil
}

// Snapshot returns a copy of the surface's current contents.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// Blits returns the number of paints performed since creation.
func (s *Surface) Blits() uint64 {
	return s.blits.Load()
}

// rgbToRGBA expands a packed RGB24 frame into an image.RGBA.
func rgbToRGBA(f *videosource.Frame) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	src := f.Data
	dst := out.Pix
	si, di := 0, 0
	for p := 0; p < f.Width*f.Height; p++ {
		dst[di] = src[si]
		dst[di+1] = src[si+1]
		dst[di+2] = src[si+2]
		dst[di+3] = 0xff
		si += 3
		di += 4
	}
	return out
}
