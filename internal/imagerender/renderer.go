package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// PointsPerInch is the PDF user-space unit; scale 1.0 renders one pixel per point.
const PointsPerInch = 72.0

// Raster is an opened document that can rasterise pages.
type Raster interface {
	NumPage() int
	// Bounds is the page's extent in points.
	Bounds(page int) (image.Rectangle, error)
	// Render rasterises page (1-based) at dpi.
	Render(page int, dpi float64) (image.Image, error)
	Close() error
}

// Renderer opens raw PDF bytes for rasterisation.
type Renderer interface {
	Open(data []byte) (Raster, error)
}

// FitzRenderer rasterises with MuPDF through go-fitz.
type FitzRenderer struct{}

// NewFitzRenderer creates a go-fitz backed renderer.
func NewFitzRenderer() *FitzRenderer { return &FitzRenderer{} }

// Open loads the document from memory.
func (FitzRenderer) Open(data []byte) (Raster, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &fitzRaster{doc: doc}, nil
}

type fitzRaster struct{ doc *fitz.Document }

func (r *fitzRaster) NumPage() int { return r.doc.NumPage() }

func (r *fitzRaster) Bounds(page int) (image.Rectangle, error) {
	b, err := r.doc.Bound(page - 1)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to measure page %d: %w", page, err)
	}
	return b, nil
}

func (r *fitzRaster) Render(page int, dpi float64) (image.Image, error) {
	// go-fitz uses 0-based indexing
	img, err := r.doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	b := img.Bounds()
	log.Debug().
		Int("page", page).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Float64("dpi", dpi).
		Msg("rendered page")
	return img, nil
}

func (r *fitzRaster) Close() error { return r.doc.Close() }

// DPIForScale converts a viewport scale into a render resolution.
func DPIForScale(scale float64) float64 { return PointsPerInch * scale }

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeDataURI encodes img as a self-contained base64 JPEG data URI.
func EncodeDataURI(img image.Image, quality int) (string, error) {
	b, err := EncodeJPEG(img, quality)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b), nil
}
