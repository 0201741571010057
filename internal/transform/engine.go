// Package transform runs the four document transformations. Each run decodes
// the source bytes afresh, so runs share no state.
package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfstudio/internal/metrics"
	"github.com/local/pdfstudio/internal/pagerange"
	"github.com/local/pdfstudio/internal/pdfdoc"
)

// Source is the document being transformed.
type Source struct {
	Name string
	Data []byte
}

// CompressionStats describes a compress run's effect on size.
type CompressionStats struct {
	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`
	Reduction      int   `json:"reduction"`
}

// Result is a finished output file.
type Result struct {
	Tool      Tool
	Data      []byte
	FileName  string
	MediaType string
	Stats     *CompressionStats
}

// Options tune the engine.
type Options struct {
	// CompressDelay is a fixed pause before saving a compressed document so
	// the progress step stays visible. Zero disables it.
	CompressDelay time.Duration
}

type Engine struct {
	decoder pdfdoc.Decoder
	opts    Options
}

func NewEngine(dec pdfdoc.Decoder, opts Options) *Engine {
	return &Engine{decoder: dec, opts: opts}
}

// Run applies p to src. Failures are returned as the tool's typed error
// (*ExtractionError, *CompressionError, *WatermarkError, *RotationError).
func (e *Engine) Run(ctx context.Context, src Source, p Params) (*Result, error) {
	if p == nil {
		return nil, errors.New("transform: no parameters")
	}
	tool := p.Tool()
	start := time.Now()

	var (
		out   []byte
		stats *CompressionStats
		err   error
	)
	switch p := p.(type) {
	case ExtractParams:
		out, err = e.extract(src, p)
	case CompressParams:
		out, stats, err = e.compress(ctx, src, p)
	case WatermarkParams:
		out, err = e.watermark(src, p)
	case RotateParams:
		out, err = e.rotate(src, p)
	default:
		return nil, fmt.Errorf("transform: unsupported parameters %T", p)
	}

	if err != nil {
		metrics.ObserveTransformation(string(tool), "error", time.Since(start))
		return nil, wrap(tool, err)
	}
	metrics.ObserveTransformation(string(tool), "success", time.Since(start))

	res := &Result{
		Tool:      tool,
		Data:      out,
		FileName:  OutputName(src.Name, tool.Suffix()),
		MediaType: pdfdoc.MediaType,
		Stats:     stats,
	}
	log.Info().
		Str("tool", string(tool)).
		Str("file", res.FileName).
		Int("bytes", len(out)).
		Dur("took", time.Since(start)).
		Msg("transformation complete")
	return res, nil
}

func (e *Engine) extract(src Source, p ExtractParams) ([]byte, error) {
	pages := sortedUnique(p.Pages)
	if len(pages) == 0 {
		return nil, errors.New("no pages selected")
	}
	doc, err := e.decoder.Decode(src.Data)
	if err != nil {
		return nil, err
	}
	target, err := doc.Collect(pages)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("pages", pagerange.Format(pages)).Int("source_pages", doc.PageCount()).Msg("extracting pages")
	return target.Save(pdfdoc.SaveOptions{})
}

func (e *Engine) compress(ctx context.Context, src Source, p CompressParams) ([]byte, *CompressionStats, error) {
	opts, err := saveOptions(p.Level)
	if err != nil {
		return nil, nil, err
	}
	doc, err := e.decoder.Decode(src.Data)
	if err != nil {
		return nil, nil, err
	}

	if e.opts.CompressDelay > 0 {
		t := time.NewTimer(e.opts.CompressDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, nil, ctx.Err()
		}
	}

	out, err := doc.Save(opts)
	if err != nil {
		return nil, nil, err
	}
	stats := &CompressionStats{
		OriginalSize:   int64(len(src.Data)),
		CompressedSize: int64(len(out)),
	}
	stats.Reduction = Reduction(stats.OriginalSize, stats.CompressedSize)
	metrics.ObserveReduction(stats.Reduction)
	log.Debug().
		Str("level", string(p.Level)).
		Int64("original", stats.OriginalSize).
		Int64("compressed", stats.CompressedSize).
		Int("reduction", stats.Reduction).
		Msg("compressed document")
	return out, stats, nil
}

func saveOptions(l Level) (pdfdoc.SaveOptions, error) {
	switch l {
	case LevelOptimal:
		return pdfdoc.SaveOptions{ObjectStreams: true}, nil
	case LevelSmall:
		return pdfdoc.SaveOptions{ObjectStreams: true, Optimize: true}, nil
	case LevelLossless:
		return pdfdoc.SaveOptions{}, nil
	}
	return pdfdoc.SaveOptions{}, fmt.Errorf("unknown compression level %q", l)
}

// Validate checks watermark parameters.
func (p WatermarkParams) Validate() error {
	switch {
	case strings.TrimSpace(p.Text) == "":
		return errors.New("watermark text is empty")
	case p.FontSize <= 0:
		return fmt.Errorf("font size %.1f must be positive", p.FontSize)
	case p.Opacity < 0 || p.Opacity > 1:
		return fmt.Errorf("opacity %.2f outside [0,1]", p.Opacity)
	case p.Rotation < -90 || p.Rotation > 90:
		return fmt.Errorf("rotation %.0f outside [-90,90]", p.Rotation)
	}
	return nil
}

func (e *Engine) watermark(src Source, p WatermarkParams) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	doc, err := e.decoder.Decode(src.Data)
	if err != nil {
		return nil, err
	}
	pages := pagerange.SelectAll(doc.PageCount())
	if p.Pages != nil {
		pages = pagerange.Normalize(p.Pages, doc.PageCount())
	}

	wm := pdfdoc.Watermark{
		Text:     p.Text,
		FontName: pdfdoc.DefaultFont,
		FontSize: p.FontSize,
		Opacity:  p.Opacity,
		// On-screen rotation is clockwise; page space is counterclockwise.
		Rotation: -p.Rotation,
		Gray:     0.5,
	}
	log.Debug().Str("pages", pagerange.Format(pages)).Float64("rotation", wm.Rotation).Msg("watermarking pages")
	if err := doc.AddWatermark(pages, wm); err != nil {
		return nil, err
	}
	return doc.Save(pdfdoc.SaveOptions{})
}

func (e *Engine) rotate(src Source, p RotateParams) ([]byte, error) {
	doc, err := e.decoder.Decode(src.Data)
	if err != nil {
		return nil, err
	}
	var pages []int
	switch p.Scope {
	case ScopeSelected:
		// Pages beyond the document are skipped.
		pages = pagerange.Normalize(p.Pages, doc.PageCount())
	default:
		pages = pagerange.SelectAll(doc.PageCount())
	}
	if err := doc.Rotate(pages, p.Direction.Degrees()); err != nil {
		return nil, err
	}
	log.Debug().Str("pages", pagerange.Format(pages)).Int("delta", p.Direction.Degrees()).Msg("rotated pages")
	return doc.Save(pdfdoc.SaveOptions{})
}

// OutputName derives the download name, e.g. "report.pdf" -> "report_rotated.pdf".
func OutputName(name, suffix string) string {
	if strings.Contains(name, ".pdf") {
		return strings.Replace(name, ".pdf", suffix+".pdf", 1)
	}
	return name + suffix + ".pdf"
}

// Reduction is the rounded percentage saved, never negative.
func Reduction(original, compressed int64) int {
	if original <= 0 {
		return 0
	}
	r := int(math.Round(100 * (1 - float64(compressed)/float64(original))))
	if r < 0 {
		return 0
	}
	return r
}

// sortedUnique sorts and dedupes without bounds filtering, so out-of-range
// pages still reach the document and fail.
func sortedUnique(pages []int) []int {
	out := append([]int(nil), pages...)
	sort.Ints(out)
	n := 0
	for i, p := range out {
		if i > 0 && p == out[n-1] {
			continue
		}
		out[n] = p
		n++
	}
	return out[:n]
}
