package imagerender

import (
	"image"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Surface is a single reusable scratch raster. Callers hold it via Acquire
// for the whole of a page sequence; the image returned by Fit is only valid
// until the next Fit.
type Surface struct {
	mu  sync.Mutex
	buf *image.RGBA
}

// NewSurface returns an empty surface; its buffer grows on demand.
func NewSurface() *Surface { return &Surface{} }

// Acquire locks the surface and returns the release func.
func (s *Surface) Acquire() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// Fit copies src onto the surface, downscaling proportionally when it is
// wider than maxWidth (maxWidth <= 0 disables the ceiling).
func (s *Surface) Fit(src image.Image, maxWidth int) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = max(1, h*maxWidth/w)
		w = maxWidth
	}
	dst := s.view(w, h)
	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	}
	return dst
}

// Cap reports the pixel capacity currently held by the surface.
func (s *Surface) Cap() int {
	if s.buf == nil {
		return 0
	}
	return len(s.buf.Pix) / 4
}

// view returns a w x h sub-image over the shared buffer, growing it if needed.
func (s *Surface) view(w, h int) *image.RGBA {
	need := w * h * 4
	if s.buf == nil || len(s.buf.Pix) < need {
		s.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return &image.RGBA{
		Pix:    s.buf.Pix[:need],
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
}
