package render

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
)

// SurfaceKind selects the backing store for an offscreen surface.
type SurfaceKind int

const (
	// SurfaceVector is backed by a gg context and supports the full
	// vector draw API. Used for layers with shapes and text.
	SurfaceVector SurfaceKind = iota
	// SurfaceRaw is a bare RGBA buffer for direct pixel writes via
	// FastRenderer. Used for hot layers like particles.
	SurfaceRaw
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfaceVector:
		return "vector"
	case SurfaceRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Surface is a fixed-size offscreen drawing target. Every surface is
// one RGBA image underneath; Context always draws into those same
// pixels, so a raw surface can still take the odd vector op.
type Surface interface {
	Bounds() (w, h int)
	Context() *gg.Context
	Image() *image.RGBA
}

// NewSurface allocates a surface of the given kind. Dimensions must be
// positive; a surface that cannot be backed is an immediate error, not
// a deferred one.
func NewSurface(w, h int, kind SurfaceKind) (Surface, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("surface dimensions must be positive, got %dx%d", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	switch kind {
	case SurfaceVector:
		return &vectorSurface{img: img, ctx: gg.NewContextForRGBA(img)}, nil
	case SurfaceRaw:
		return &rawSurface{img: img}, nil
	default:
		return nil, fmt.Errorf("unknown surface kind %d", kind)
	}
}

type vectorSurface struct {
	img *image.RGBA
	ctx *gg.Context
}

func (s *vectorSurface) Bounds() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *vectorSurface) Context() *gg.Context { return s.ctx }
func (s *vectorSurface) Image() *image.RGBA   { return s.img }

type rawSurface struct {
	img *image.RGBA
	ctx *gg.Context
}

func (s *rawSurface) Bounds() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Context attaches a gg context over the existing pixels on first use.
// Raw surfaces mostly never need one, so the allocation waits until a
// caller asks. Surfaces are owned by the render goroutine; no lock.
func (s *rawSurface) Context() *gg.Context {
	if s.ctx == nil {
		s.ctx = gg.NewContextForRGBA(s.img)
	}
	return s.ctx
}

func (s *rawSurface) Image() *image.RGBA { return s.img }
