package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

func init() {
	// Keep pdfcpu from creating a config directory under $HOME.
	api.DisableConfigDir()
}

// PDFCPUDecoder decodes documents with pdfcpu in relaxed validation mode.
type PDFCPUDecoder struct{}

// NewPDFCPUDecoder creates a pdfcpu-backed decoder.
func NewPDFCPUDecoder() *PDFCPUDecoder { return &PDFCPUDecoder{} }

func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Decode validates data and counts its pages.
func (PDFCPUDecoder) Decode(data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty input")}
	}
	n, err := api.PageCount(bytes.NewReader(data), newConfig())
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &pdfcpuDoc{data: data, pages: n}, nil
}

// pdfcpuDoc holds the document as serialized bytes; every mutation runs a
// pdfcpu stream operation and replaces them.
type pdfcpuDoc struct {
	data  []byte
	pages int
	dims  []types.Dim
}

func (d *pdfcpuDoc) PageCount() int { return d.pages }

func (d *pdfcpuDoc) PageSize(page int) (Size, error) {
	if err := CheckPage(page, d.pages); err != nil {
		return Size{}, err
	}
	if d.dims == nil {
		dims, err := api.PageDims(bytes.NewReader(d.data), newConfig())
		if err != nil {
			return Size{}, fmt.Errorf("page dims: %w", err)
		}
		d.dims = dims
	}
	if page > len(d.dims) {
		return Size{}, &PageError{Page: page, Total: len(d.dims)}
	}
	dim := d.dims[page-1]
	return Size{Width: dim.Width, Height: dim.Height}, nil
}

func (d *pdfcpuDoc) Rotation(page int) (int, error) {
	if err := CheckPage(page, d.pages); err != nil {
		return 0, err
	}
	ctx, err := api.ReadContext(bytes.NewReader(d.data), newConfig())
	if err != nil {
		return 0, fmt.Errorf("read context: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, fmt.Errorf("validate: %w", err)
	}
	_, _, inh, err := ctx.PageDict(page, false)
	if err != nil {
		return 0, fmt.Errorf("page %d dict: %w", page, err)
	}
	if inh == nil {
		return 0, nil
	}
	return NormalizeRotation(inh.Rotate), nil
}

func (d *pdfcpuDoc) Rotate(pages []int, delta int) error {
	if delta%90 != 0 {
		return fmt.Errorf("rotation %d is not a multiple of 90", delta)
	}
	if len(pages) == 0 {
		return nil
	}
	for _, p := range pages {
		if err := CheckPage(p, d.pages); err != nil {
			return err
		}
	}
	return d.apply(func(rs io.ReadSeeker, w io.Writer) error {
		return api.Rotate(rs, w, delta, selection(pages), newConfig())
	})
}

func (d *pdfcpuDoc) Collect(pages []int) (Document, error) {
	if len(pages) == 0 {
		return nil, errors.New("collect: no pages selected")
	}
	for _, p := range pages {
		if err := CheckPage(p, d.pages); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := api.Collect(bytes.NewReader(d.data), &buf, selection(pages), newConfig()); err != nil {
		return nil, fmt.Errorf("collect pages: %w", err)
	}
	return &pdfcpuDoc{data: buf.Bytes(), pages: len(pages)}, nil
}

func (d *pdfcpuDoc) AddWatermark(pages []int, wm Watermark) error {
	if len(pages) == 0 {
		return nil
	}
	for _, p := range pages {
		if err := CheckPage(p, d.pages); err != nil {
			return err
		}
	}
	stamp, err := textStamp(wm)
	if err != nil {
		return err
	}
	log.Debug().Str("text", wm.Text).Int("pages", len(pages)).Float64("rotation", wm.Rotation).Msg("applying text watermark")
	return d.apply(func(rs io.ReadSeeker, w io.Writer) error {
		return api.AddWatermarks(rs, w, selection(pages), stamp, newConfig())
	})
}

// textStamp builds an on-top text stamp anchored at the page center; pdfcpu
// centers the rotated text box on each page's own dimensions.
func textStamp(wm Watermark) (*model.Watermark, error) {
	fontName := wm.FontName
	if fontName == "" {
		fontName = DefaultFont
	}
	desc := fmt.Sprintf("fontname:%s, points:%d, scalefactor:1 abs, position:c, rotation:%s, opacity:%s, fillcolor:%s",
		fontName,
		int(math.Round(wm.FontSize)),
		strconv.FormatFloat(wm.Rotation, 'f', 2, 64),
		strconv.FormatFloat(wm.Opacity, 'f', 2, 64),
		grayHex(wm.Gray),
	)
	stamp, err := api.TextWatermark(wm.Text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("prepare watermark: %w", err)
	}
	return stamp, nil
}

func (d *pdfcpuDoc) Save(opts SaveOptions) ([]byte, error) {
	conf := newConfig()
	conf.WriteObjectStream = opts.ObjectStreams
	conf.WriteXRefStream = opts.ObjectStreams

	var buf bytes.Buffer
	if opts.Optimize {
		if err := api.Optimize(bytes.NewReader(d.data), &buf, conf); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		return buf.Bytes(), nil
	}
	ctx, err := api.ReadContext(bytes.NewReader(d.data), conf)
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *pdfcpuDoc) apply(op func(rs io.ReadSeeker, w io.Writer) error) error {
	var buf bytes.Buffer
	if err := op(bytes.NewReader(d.data), &buf); err != nil {
		return err
	}
	d.data = buf.Bytes()
	d.dims = nil
	return nil
}

// selection renders pages in pdfcpu's page selection syntax, preserving order.
func selection(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}

func grayHex(g float64) string {
	if g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}
	v := int(math.Round(g * 255))
	return fmt.Sprintf("#%02X%02X%02X", v, v, v)
}
