package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfstudio/internal/limiter"
	"github.com/local/pdfstudio/internal/pagerange"
	"github.com/local/pdfstudio/internal/pdfdoc"
	"github.com/local/pdfstudio/internal/preview"
	"github.com/local/pdfstudio/internal/transform"
)

// Messages shown when an operation fails; the cause is only logged.
const (
	MsgExtractFailed   = "Failed to extract pages. Please try again."
	MsgCompressFailed  = "Failed to compress PDF. Please try again."
	MsgWatermarkFailed = "Failed to add watermark. Please try again."
	MsgRotateFailed    = "Failed to rotate PDF. Please try again."
	MsgLoadFailed      = "Failed to load PDF. Please try again."
)

// FailureMessage is the user-facing text for a failed run of t.
func FailureMessage(t transform.Tool) string {
	switch t {
	case transform.ToolExtract:
		return MsgExtractFailed
	case transform.ToolCompress:
		return MsgCompressFailed
	case transform.ToolWatermark:
		return MsgWatermarkFailed
	case transform.ToolRotate:
		return MsgRotateFailed
	}
	return MsgLoadFailed
}

// Runner executes transformations.
type Runner interface {
	Run(ctx context.Context, src transform.Source, p transform.Params) (*transform.Result, error)
}

// Previewer renders thumbnails and full-size pages, and counts pages.
type Previewer interface {
	GenerateE(ctx context.Context, f preview.File, maxPages int) ([]string, error)
	RenderPage(ctx context.Context, data []byte, req preview.PageRequest) (*preview.PageImage, error)
	PageCount(data []byte) (int, error)
}

// Options tune the controller.
type Options struct {
	// SelectPages caps thumbnails on the page selection screen.
	SelectPages int
	// ViewerPages caps the viewer strip; 0 renders every page.
	ViewerPages int
}

const slotKey = "session"

// Controller owns the session state. Reads and reducer steps are serialized
// by a mutex; rendering and transformations hold a single slot so only one
// runs at a time, and run outside the mutex.
type Controller struct {
	id       string
	runner   Runner
	previews Previewer
	opts     Options
	slots    *limiter.Slots

	mu    sync.Mutex
	state State
}

// NewController creates a controller in the initial state.
func NewController(r Runner, p Previewer, opts Options) *Controller {
	if opts.SelectPages <= 0 {
		opts.SelectPages = 50
	}
	return &Controller{
		id:       uuid.NewString(),
		runner:   r,
		previews: p,
		opts:     opts,
		slots:    limiter.New(1),
		state:    Initial(),
	}
}

// ID identifies this session in logs.
func (c *Controller) ID() string { return c.id }

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a preview or transformation is running.
func (c *Controller) Busy() bool { return c.slots.InFlight(slotKey) > 0 }

// Dispatch applies a to the session state.
func (c *Controller) Dispatch(a Action) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(a)
}

func (c *Controller) apply(a Action) (State, error) {
	from := c.state.Step
	next, err := Reduce(c.state, a)
	if err != nil {
		log.Debug().
			Err(err).
			Str("session_id", c.id).
			Str("step", string(from)).
			Str("action", fmt.Sprintf("%T", a)).
			Msg("action rejected")
		return c.state, err
	}
	c.state = next
	if next.Step != from {
		log.Info().
			Str("session_id", c.id).
			Str("tool", string(next.Tool)).
			Str("from", string(from)).
			Str("step", string(next.Step)).
			Msg("session step")
	}
	return next, nil
}

// AttachFile attaches f and moves to the viewer.
func (c *Controller) AttachFile(f File) (State, error) {
	return c.Dispatch(AttachFile{File: f})
}

// LoadViewer renders the viewer's thumbnail strip for the attached file.
// A failure moves the session to the error step. If the file was replaced
// while rendering, the result is dropped and ErrStale returned.
func (c *Controller) LoadViewer(ctx context.Context) (State, error) {
	release, ok := c.slots.Allow(slotKey)
	if !ok {
		return c.Snapshot(), ErrBusy
	}
	defer release()

	s := c.Snapshot()
	if s.Step != StepViewer {
		return s, ErrInvalidTransition
	}
	total, pages, err := c.load(ctx, s.File, c.opts.ViewerPages)
	if err != nil {
		return c.fail(s.File, MsgLoadFailed, err)
	}
	return c.Dispatch(ViewerLoaded{File: s.File, Total: total, Previews: pages})
}

// Continue moves from the viewer to the tool's configuration screen and
// loads what that screen shows: page count for every tool, plus thumbnails
// for page selection.
func (c *Controller) Continue(ctx context.Context) (State, error) {
	release, ok := c.slots.Allow(slotKey)
	if !ok {
		return c.Snapshot(), ErrBusy
	}
	defer release()

	s, err := c.Dispatch(Continue{})
	if err != nil {
		return s, err
	}

	if s.Step == StepPageSelect {
		total, pages, err := c.load(ctx, s.File, c.opts.SelectPages)
		if err != nil {
			return c.fail(s.File, MsgLoadFailed, err)
		}
		return c.Dispatch(PagesLoaded{File: s.File, Total: total, Previews: pages})
	}

	total, err := c.previews.PageCount(s.File.Data)
	if err != nil {
		// Other screens stay usable; a bad file fails on run.
		log.Warn().Err(err).Str("session_id", c.id).Str("file", s.File.Name).Msg("failed to count pages")
		return s, nil
	}
	return c.Dispatch(PagesLoaded{File: s.File, Total: total, Previews: s.Previews})
}

func (c *Controller) load(ctx context.Context, f *File, maxPages int) (int, []string, error) {
	if f == nil {
		return 0, nil, ErrNoFile
	}
	total, err := c.previews.PageCount(f.Data)
	if err != nil {
		return 0, nil, err
	}
	pages, err := c.previews.GenerateE(ctx, preview.File{
		Identity: preview.FileIdentity{Name: f.Name, Size: f.Size, ModTime: f.ModTime},
		Data:     f.Data,
	}, maxPages)
	if err != nil {
		return 0, nil, err
	}
	return total, pages, nil
}

// Run executes the active tool against the attached file. It returns once
// the session has reached success or error; a failed transformation is
// reported through the state, not the error.
func (c *Controller) Run(ctx context.Context) (State, error) {
	release, ok := c.slots.Allow(slotKey)
	if !ok {
		return c.Snapshot(), ErrBusy
	}
	defer release()

	c.mu.Lock()
	s, err := c.apply(Begin{})
	c.mu.Unlock()
	if err != nil {
		return s, err
	}

	params, err := s.Params()
	if err != nil {
		return c.fail(s.File, FailureMessage(s.Tool), err)
	}

	start := time.Now()
	res, err := c.runner.Run(ctx, transform.Source{Name: s.File.Name, Data: s.File.Data}, params)
	if err != nil {
		return c.fail(s.File, FailureMessage(s.Tool), err)
	}

	log.Info().
		Str("session_id", c.id).
		Str("tool", string(s.Tool)).
		Str("file", res.FileName).
		Dur("took", time.Since(start)).
		Msg("run succeeded")
	return c.Dispatch(Succeed{
		Output: Output{
			ID:        uuid.NewString(),
			FileName:  res.FileName,
			MediaType: res.MediaType,
			Size:      len(res.Data),
			Data:      res.Data,
		},
		Stats: res.Stats,
	})
}

// fail moves the session to the error step unless f has since been
// replaced, in which case the failure is only logged.
func (c *Controller) fail(f *File, msg string, cause error) (State, error) {
	s := c.Snapshot()
	log.Error().
		Err(cause).
		Str("session_id", c.id).
		Str("tool", string(s.Tool)).
		Str("step", string(s.Step)).
		Msg("operation failed")
	return c.Dispatch(Fail{File: f, Message: msg})
}

// Output returns the last produced document, if any.
func (c *Controller) Output() (*Output, bool) {
	s := c.Snapshot()
	if s.Output == nil {
		return nil, false
	}
	return s.Output, true
}

// PageView is one full-size page of the attached file, with what the viewer
// needs to page through and zoom.
type PageView struct {
	preview.PageImage
	Selected bool    `json:"selected"`
	HasPrev  bool    `json:"has_prev"`
	HasNext  bool    `json:"has_next"`
	ZoomIn   float64 `json:"zoom_in"`
	ZoomOut  float64 `json:"zoom_out"`
}

// Page renders one page of the attached file. It reads the session but never
// changes it, so it does not take the run slot.
func (c *Controller) Page(ctx context.Context, req preview.PageRequest) (PageView, error) {
	s := c.Snapshot()
	if s.File == nil {
		return PageView{}, ErrNoFile
	}
	if req.Page < 1 || (s.Total > 0 && req.Page > s.Total) {
		return PageView{}, ErrPageOutOfRange
	}
	img, err := c.previews.RenderPage(ctx, s.File.Data, req)
	if err != nil {
		var pe *pdfdoc.PageError
		if errors.As(err, &pe) {
			return PageView{}, ErrPageOutOfRange
		}
		log.Warn().Err(err).Str("session_id", c.id).Int("page", req.Page).Msg("page view failed")
		return PageView{}, err
	}
	return PageView{
		PageImage: *img,
		Selected:  pagerange.Contains(s.Selection, img.Page),
		HasPrev:   img.Page > 1,
		HasNext:   img.Page < img.Total,
		ZoomIn:    preview.ClampZoom(img.Zoom + preview.ZoomStep),
		ZoomOut:   preview.ClampZoom(img.Zoom - preview.ZoomStep),
	}, nil
}
