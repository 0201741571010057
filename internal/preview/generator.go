// Package preview renders low-resolution page thumbnails and caches them by
// file identity.
package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfstudio/internal/imagerender"
	"github.com/local/pdfstudio/internal/metrics"
	"github.com/local/pdfstudio/internal/pdfdoc"
)

// File is a source document plus the identity it is cached under.
type File struct {
	Identity FileIdentity
	Data     []byte
}

// Options control thumbnail and page output.
type Options struct {
	Scale    float64
	Quality  int
	MaxWidth int
	// PageQuality is the JPEG quality of full-size page views.
	PageQuality int
}

// PageRenderError reports the page that aborted a generation.
type PageRenderError struct {
	Page int
	Err  error
}

func (e *PageRenderError) Error() string {
	return fmt.Sprintf("preview page %d: %v", e.Page, e.Err)
}

func (e *PageRenderError) Unwrap() error { return e.Err }

// Generator turns documents into thumbnail strips. Pages are rendered one at
// a time onto a single shared surface.
type Generator struct {
	renderer imagerender.Renderer
	cache    *Cache
	surface  *imagerender.Surface
	opts     Options
}

// NewGenerator wires a generator to its renderer, cache and surface.
func NewGenerator(r imagerender.Renderer, cache *Cache, surface *imagerender.Surface, opts Options) *Generator {
	if opts.Scale <= 0 {
		opts.Scale = 0.3
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 60
	}
	if opts.PageQuality <= 0 || opts.PageQuality > 100 {
		opts.PageQuality = 85
	}
	return &Generator{renderer: r, cache: cache, surface: surface, opts: opts}
}

// Generate returns up to maxPages thumbnails (all pages when maxPages <= 0),
// or an empty slice if any page fails.
func (g *Generator) Generate(ctx context.Context, f File, maxPages int) []string {
	pages, err := g.GenerateE(ctx, f, maxPages)
	if err != nil {
		log.Warn().Err(err).Str("file", f.Identity.Name).Msg("preview generation failed")
		return []string{}
	}
	return pages
}

// GenerateE is Generate with the failure reported. On error the slice is
// empty and the error is a *pdfdoc.DecodeError when the bytes do not open,
// otherwise a *PageRenderError.
func (g *Generator) GenerateE(ctx context.Context, f File, maxPages int) ([]string, error) {
	if pages, ok := g.cache.Get(f.Identity, maxPages); ok {
		metrics.CacheHit()
		log.Debug().Str("file", f.Identity.Name).Int("pages", len(pages)).Str("cache", "hit").Msg("preview cache")
		return pages, nil
	}
	metrics.CacheMiss()

	start := time.Now()
	raster, err := g.renderer.Open(f.Data)
	if err != nil {
		return []string{}, &pdfdoc.DecodeError{Err: err}
	}
	defer raster.Close()

	total := raster.NumPage()
	n := total
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	release := g.surface.Acquire()
	defer release()

	dpi := imagerender.DPIForScale(g.opts.Scale)
	out := make([]string, 0, n)
	for page := 1; page <= n; page++ {
		if err := ctx.Err(); err != nil {
			return []string{}, &PageRenderError{Page: page, Err: err}
		}
		img, err := raster.Render(page, dpi)
		if err != nil {
			return []string{}, &PageRenderError{Page: page, Err: err}
		}
		uri, err := imagerender.EncodeDataURI(g.surface.Fit(img, g.opts.MaxWidth), g.opts.Quality)
		if err != nil {
			return []string{}, &PageRenderError{Page: page, Err: err}
		}
		out = append(out, uri)
	}

	g.cache.Put(f.Identity, out, total)
	metrics.IncPreviewPages(n)
	metrics.ObservePreview(time.Since(start))
	log.Debug().
		Str("file", f.Identity.Name).
		Int("pages", n).
		Int("total", total).
		Dur("took", time.Since(start)).
		Msg("generated previews")
	return out, nil
}

// PageCount opens the document only to count its pages.
func (g *Generator) PageCount(data []byte) (int, error) {
	raster, err := g.renderer.Open(data)
	if err != nil {
		return 0, &pdfdoc.DecodeError{Err: err}
	}
	defer raster.Close()
	return raster.NumPage(), nil
}
