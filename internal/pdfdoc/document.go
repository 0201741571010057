// Package pdfdoc is the PDF capability used by the transformation engine:
// decode bytes into a page-addressable document, mutate pages, and
// serialize. Page numbers are 1-based throughout.
package pdfdoc

import (
	"fmt"
)

// MediaType is the media type of every document this package produces.
const MediaType = "application/pdf"

// DefaultFont is the standard Type1 font used for watermarks.
const DefaultFont = "Helvetica-Bold"

// Size is a page size in PDF points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Watermark describes a text stamp drawn over page content, centered on
// each page.
type Watermark struct {
	Text     string
	FontName string
	FontSize float64
	Opacity  float64
	// Rotation in degrees, counterclockwise in page space.
	Rotation float64
	Gray     float64
}

// SaveOptions selects the serialization strategy.
type SaveOptions struct {
	// ObjectStreams consolidates objects into compressed object streams.
	ObjectStreams bool
	// Optimize merges duplicate resources before writing.
	Optimize bool
}

// Document is a decoded PDF.
type Document interface {
	PageCount() int
	PageSize(page int) (Size, error)
	// Rotation returns the effective /Rotate of page, in [0,360).
	Rotation(page int) (int, error)
	// Rotate adds delta (a multiple of 90) to each listed page's rotation.
	Rotate(pages []int, delta int) error
	// Collect returns a new document holding the listed pages in the given
	// order. The receiver is not modified.
	Collect(pages []int) (Document, error)
	AddWatermark(pages []int, wm Watermark) error
	Save(opts SaveOptions) ([]byte, error)
}

// Decoder decodes raw bytes into a Document.
type Decoder interface {
	Decode(data []byte) (Document, error)
}

// DecodeError reports bytes that could not be parsed as a PDF.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode pdf: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PageError reports a page number outside the document.
type PageError struct {
	Page  int
	Total int
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d out of range (document has %d pages)", e.Page, e.Total)
}

// CheckPage returns a *PageError unless 1 <= page <= total.
func CheckPage(page, total int) error {
	if page < 1 || page > total {
		return &PageError{Page: page, Total: total}
	}
	return nil
}

// NormalizeRotation maps any multiple of 90 into [0,360).
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
