package pdftest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/local/pdfstudio/internal/imagerender"
)

// Renderer implements imagerender.Renderer over fake documents. Each page
// renders as a solid image whose red channel is the page ID.
type Renderer struct {
	// FailPage makes Render fail for that page (0 disables).
	FailPage int

	mu       sync.Mutex
	opens    int
	rendered []int

	active    int32
	maxActive int32
}

func (r *Renderer) Open(data []byte) (imagerender.Raster, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	r.mu.Lock()
	r.opens++
	r.mu.Unlock()
	return &raster{r: r, file: f}, nil
}

// Opens reports how many documents were opened.
func (r *Renderer) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// Rendered returns every page rendered, in call order.
func (r *Renderer) Rendered() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.rendered...)
}

// MaxConcurrent is the highest number of overlapping Render calls seen.
func (r *Renderer) MaxConcurrent() int { return int(atomic.LoadInt32(&r.maxActive)) }

type raster struct {
	r    *Renderer
	file File
}

func (ra *raster) NumPage() int { return len(ra.file.Pages) }

func (ra *raster) Bounds(page int) (image.Rectangle, error) {
	if page < 1 || page > len(ra.file.Pages) {
		return image.Rectangle{}, fmt.Errorf("page %d out of range", page)
	}
	p := ra.file.Pages[page-1]
	return image.Rect(0, 0, int(p.Width), int(p.Height)), nil
}

func (ra *raster) Render(page int, dpi float64) (image.Image, error) {
	n := atomic.AddInt32(&ra.r.active, 1)
	defer atomic.AddInt32(&ra.r.active, -1)
	for {
		m := atomic.LoadInt32(&ra.r.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&ra.r.maxActive, m, n) {
			break
		}
	}

	if page < 1 || page > len(ra.file.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	if page == ra.r.FailPage {
		return nil, errors.New("corrupt page content")
	}
	ra.r.mu.Lock()
	ra.r.rendered = append(ra.r.rendered, page)
	ra.r.mu.Unlock()

	p := ra.file.Pages[page-1]
	w := max(1, int(p.Width*dpi/imagerender.PointsPerInch))
	h := max(1, int(p.Height*dpi/imagerender.PointsPerInch))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: uint8(p.ID), G: 128, B: 64, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

func (ra *raster) Close() error { return nil }

// DecodeDataURI decodes a JPEG data URI produced by imagerender.EncodeDataURI.
func DecodeDataURI(uri string) (image.Image, error) {
	const prefix = "data:image/jpeg;base64,"
	if !strings.HasPrefix(uri, prefix) {
		return nil, errors.New("not a jpeg data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(uri[len(prefix):])
	if err != nil {
		return nil, err
	}
	return jpeg.Decode(bytes.NewReader(raw))
}
