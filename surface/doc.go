// Package surface provides the raster drawing target that frames are
// painted onto.
//
// A Surface behaves like a canvas: it has mutable pixel dimensions and
// a mutable declarative filter expression. Two semantics are load
// bearing for consumers:
//
//   - SetSize reallocates the pixel buffer (clearing it) and RESETS
//     the filter expression. Anything that resizes the surface must
//     reapply its filter afterwards.
//   - The filter is applied by the surface on every paint, not by the
//     caller per frame. Painting is a single blit; the standing filter
//     expression realizes the visual transformation.
//
// The filter grammar is a whitespace-separated list of functions:
//
//	contrast(1.2) saturate(120%) brightness(0.9) grayscale(0.3)
//	sepia(40%) invert(1) opacity(80%)
//
// parsed once at SetFilter into a single composed color matrix.
// Unknown functions or malformed arguments fail at SetFilter time,
// never at paint time.
package surface
