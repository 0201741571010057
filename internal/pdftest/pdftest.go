// Package pdftest provides in-memory stand-ins for the PDF capability so the
// preview, transform, session and web packages can be tested without MuPDF
// or real PDF bytes. A fake document serializes to JSON; decoding anything
// else fails the way a corrupt PDF would.
package pdftest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/local/pdfstudio/internal/pdfdoc"
)

// Stamp is a watermark recorded on a fake page.
type Stamp struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Opacity  float64 `json:"opacity"`
	Rotation float64 `json:"rotation"`
}

// Page is one fake page. ID identifies the source page across Collect.
type Page struct {
	ID     int     `json:"id"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rotate int     `json:"rotate"`
	Stamps []Stamp `json:"stamps,omitempty"`
}

// File is the serialized form of a fake document.
type File struct {
	Magic         string `json:"magic"`
	Pages         []Page `json:"pages"`
	ObjectStreams bool   `json:"object_streams,omitempty"`
	Optimized     bool   `json:"optimized,omitempty"`
	// Padding inflates the payload; Save with ObjectStreams drops it.
	Padding string `json:"padding,omitempty"`
}

const magic = "%FAKEPDF"

// NewPDF builds serialized fake document bytes with n Letter-sized pages.
func NewPDF(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{ID: i + 1, Width: 612, Height: 792}
	}
	return Encode(File{Pages: pages})
}

// Encode serializes f.
func Encode(f File) []byte {
	f.Magic = magic
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return b
}

// Parse deserializes fake document bytes.
func Parse(data []byte) (File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	if f.Magic != magic {
		return File{}, errors.New("missing header")
	}
	return f, nil
}

// Decoder implements pdfdoc.Decoder over fake documents. Errors maps an
// operation name ("rotate", "collect", "watermark", "save") to a failure.
type Decoder struct {
	mu     sync.Mutex
	Errors map[string]error
	Calls  int
}

func (d *Decoder) Decode(data []byte) (pdfdoc.Document, error) {
	d.mu.Lock()
	d.Calls++
	d.mu.Unlock()
	f, err := Parse(data)
	if err != nil {
		return nil, &pdfdoc.DecodeError{Err: err}
	}
	return &Doc{file: f, errs: d.Errors}, nil
}

// Doc implements pdfdoc.Document.
type Doc struct {
	file File
	errs map[string]error
}

func (d *Doc) fail(op string) error {
	if d.errs == nil {
		return nil
	}
	return d.errs[op]
}

func (d *Doc) PageCount() int { return len(d.file.Pages) }

func (d *Doc) PageSize(page int) (pdfdoc.Size, error) {
	if err := pdfdoc.CheckPage(page, d.PageCount()); err != nil {
		return pdfdoc.Size{}, err
	}
	p := d.file.Pages[page-1]
	return pdfdoc.Size{Width: p.Width, Height: p.Height}, nil
}

func (d *Doc) Rotation(page int) (int, error) {
	if err := pdfdoc.CheckPage(page, d.PageCount()); err != nil {
		return 0, err
	}
	return d.file.Pages[page-1].Rotate, nil
}

func (d *Doc) Rotate(pages []int, delta int) error {
	if err := d.fail("rotate"); err != nil {
		return err
	}
	for _, p := range pages {
		if err := pdfdoc.CheckPage(p, d.PageCount()); err != nil {
			return err
		}
		d.file.Pages[p-1].Rotate = pdfdoc.NormalizeRotation(d.file.Pages[p-1].Rotate + delta)
	}
	return nil
}

func (d *Doc) Collect(pages []int) (pdfdoc.Document, error) {
	if err := d.fail("collect"); err != nil {
		return nil, err
	}
	out := &Doc{errs: d.errs}
	for _, p := range pages {
		if err := pdfdoc.CheckPage(p, d.PageCount()); err != nil {
			return nil, err
		}
		pg := d.file.Pages[p-1]
		pg.Stamps = append([]Stamp(nil), pg.Stamps...)
		out.file.Pages = append(out.file.Pages, pg)
	}
	return out, nil
}

func (d *Doc) AddWatermark(pages []int, wm pdfdoc.Watermark) error {
	if err := d.fail("watermark"); err != nil {
		return err
	}
	for _, p := range pages {
		if err := pdfdoc.CheckPage(p, d.PageCount()); err != nil {
			return err
		}
		pg := &d.file.Pages[p-1]
		pg.Stamps = append(pg.Stamps, Stamp{
			Text:     wm.Text,
			FontSize: wm.FontSize,
			Opacity:  wm.Opacity,
			Rotation: wm.Rotation,
		})
	}
	return nil
}

func (d *Doc) Save(opts pdfdoc.SaveOptions) ([]byte, error) {
	if err := d.fail("save"); err != nil {
		return nil, err
	}
	f := d.file
	f.ObjectStreams = opts.ObjectStreams
	f.Optimized = opts.Optimize
	if opts.ObjectStreams {
		f.Padding = ""
	}
	return Encode(f), nil
}

// MustParse is Parse for tests that already know the bytes are valid.
func MustParse(data []byte) File {
	f, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("pdftest: %v", err))
	}
	return f
}
