package preview

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfstudio/internal/imagerender"
	"github.com/local/pdfstudio/internal/pdfdoc"
)

// Zoom range of the full-size page view.
const (
	MinZoom  = 0.5
	MaxZoom  = 3.0
	ZoomStep = 0.25

	// fitPageRatio is the share of the container width a fit-page view takes.
	fitPageRatio = 0.8
)

// Fit sizes a page view to its container instead of a zoom factor.
type Fit string

const (
	FitNone  Fit = ""
	FitWidth Fit = "width"
	FitPage  Fit = "page"
)

func ParseFit(s string) (Fit, error) {
	switch Fit(s) {
	case FitNone, FitWidth, FitPage:
		return Fit(s), nil
	}
	return FitNone, fmt.Errorf("unknown fit mode %q", s)
}

// ClampZoom snaps z to a zoom step inside [MinZoom, MaxZoom]. Zero or an
// invalid value means 1.
func ClampZoom(z float64) float64 {
	if z <= 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return 1
	}
	z = math.Round(z/ZoomStep) * ZoomStep
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// PageRequest selects one page and how large to draw it. With a Fit mode
// and a ContainerWidth the zoom is derived from the page width.
type PageRequest struct {
	Page           int
	Zoom           float64
	Fit            Fit
	ContainerWidth int
}

// PageImage is one rendered page.
type PageImage struct {
	Page   int     `json:"page"`
	Total  int     `json:"total_pages"`
	Zoom   float64 `json:"zoom"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Image  string  `json:"image"`
}

func (r PageRequest) zoom(raster imagerender.Raster) (float64, error) {
	if r.Fit == FitNone || r.ContainerWidth <= 0 {
		return ClampZoom(r.Zoom), nil
	}
	b, err := raster.Bounds(r.Page)
	if err != nil {
		return 0, err
	}
	if b.Dx() <= 0 {
		return 1, nil
	}
	target := float64(r.ContainerWidth)
	if r.Fit == FitPage {
		target *= fitPageRatio
	}
	return target / float64(b.Dx()), nil
}

// RenderPage draws one page at full size. It is not cached and shares the
// surface lock with thumbnail generation, so only one render runs at a time.
func (g *Generator) RenderPage(ctx context.Context, data []byte, req PageRequest) (*PageImage, error) {
	start := time.Now()
	raster, err := g.renderer.Open(data)
	if err != nil {
		return nil, &pdfdoc.DecodeError{Err: err}
	}
	defer raster.Close()

	total := raster.NumPage()
	if err := pdfdoc.CheckPage(req.Page, total); err != nil {
		return nil, err
	}
	zoom, err := req.zoom(raster)
	if err != nil {
		return nil, &PageRenderError{Page: req.Page, Err: err}
	}

	release := g.surface.Acquire()
	defer release()
	if err := ctx.Err(); err != nil {
		return nil, &PageRenderError{Page: req.Page, Err: err}
	}
	img, err := raster.Render(req.Page, imagerender.DPIForScale(zoom))
	if err != nil {
		return nil, &PageRenderError{Page: req.Page, Err: err}
	}
	uri, err := imagerender.EncodeDataURI(img, g.opts.PageQuality)
	if err != nil {
		return nil, &PageRenderError{Page: req.Page, Err: err}
	}

	b := img.Bounds()
	log.Debug().
		Int("page", req.Page).
		Float64("zoom", zoom).
		Str("fit", string(req.Fit)).
		Dur("took", time.Since(start)).
		Msg("rendered page view")
	return &PageImage{
		Page:   req.Page,
		Total:  total,
		Zoom:   zoom,
		Width:  b.Dx(),
		Height: b.Dy(),
		Image:  uri,
	}, nil
}
