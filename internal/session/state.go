// Package session holds the single editing session: which tool is active,
// the attached file, the page selection, per-tool settings and the result
// of the last run. State changes go through Reduce, a pure function.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/local/pdfstudio/internal/pagerange"
	"github.com/local/pdfstudio/internal/transform"
)

// Step is the screen the session is on.
type Step string

const (
	StepIdle            Step = "idle"
	StepUpload          Step = "upload"
	StepViewer          Step = "pdf-viewer"
	StepPageSelect      Step = "page-select"
	StepCompressOptions Step = "compress-options"
	StepWatermark       Step = "watermark"
	StepRotate          Step = "rotate"
	StepProgress        Step = "progress"
	StepSuccess         Step = "success"
	StepError           Step = "error"
	StepAbout           Step = "about"
)

var (
	ErrBusy              = errors.New("an operation is already in progress")
	ErrInvalidTransition = errors.New("action not allowed in the current step")
	ErrNoFile            = errors.New("no file attached")
	ErrEmptySelection    = errors.New("no pages selected")
	ErrNotPDF            = errors.New("file is not a PDF")
	ErrStale             = errors.New("result belongs to a file that is no longer attached")
	ErrPageOutOfRange    = errors.New("page out of range")
)

// File is the attached source document.
type File struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Data    []byte    `json:"-"`
}

// Output is the last produced document.
type Output struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
	Data      []byte `json:"-"`
}

// Watermark settings; Pages nil means every page.
type Watermark struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Opacity  float64 `json:"opacity"`
	Rotation float64 `json:"rotation"`
	Pages    []int   `json:"pages"`
}

type Rotate struct {
	Direction transform.Direction `json:"direction"`
	Scope     transform.Scope     `json:"scope"`
}

// Settings are the per-tool parameters.
type Settings struct {
	Compression transform.Level `json:"compression"`
	Watermark   Watermark       `json:"watermark"`
	Rotate      Rotate          `json:"rotate"`
}

// DefaultSettings are the values every session starts from.
func DefaultSettings() Settings {
	return Settings{
		Compression: transform.LevelOptimal,
		Watermark: Watermark{
			Text:     "CONFIDENTIAL",
			FontSize: 48,
			Opacity:  0.3,
			Rotation: -45,
		},
		Rotate: Rotate{Direction: transform.Right, Scope: transform.ScopeAll},
	}
}

// State is a snapshot of the session.
type State struct {
	Tool      transform.Tool              `json:"tool,omitempty"`
	Step      Step                        `json:"step"`
	PrevStep  Step                        `json:"prev_step,omitempty"`
	File      *File                       `json:"file,omitempty"`
	Total     int                         `json:"total_pages"`
	Selection []int                       `json:"selection"`
	RangeText string                      `json:"range_text"`
	Previews  []string                    `json:"previews"`
	Viewer    []string                    `json:"viewer"`
	Settings  Settings                    `json:"settings"`
	Error     string                      `json:"error,omitempty"`
	Output    *Output                     `json:"output,omitempty"`
	Stats     *transform.CompressionStats `json:"stats,omitempty"`
}

// Initial is the state at startup.
func Initial() State {
	return State{
		Step:      StepIdle,
		Selection: []int{},
		Previews:  []string{},
		Viewer:    []string{},
		Settings:  DefaultSettings(),
	}
}

// reset clears everything but the tool.
func (s State) reset() State {
	n := Initial()
	n.Tool = s.Tool
	return n
}

// ConfigStep is the configuration screen for a tool.
func ConfigStep(t transform.Tool) Step {
	switch t {
	case transform.ToolExtract:
		return StepPageSelect
	case transform.ToolCompress:
		return StepCompressOptions
	case transform.ToolWatermark:
		return StepWatermark
	case transform.ToolRotate:
		return StepRotate
	}
	return StepIdle
}

func isConfigStep(s Step) bool {
	switch s {
	case StepPageSelect, StepCompressOptions, StepWatermark, StepRotate:
		return true
	}
	return false
}

// Params builds the transformation parameters for the current tool.
func (s State) Params() (transform.Params, error) {
	switch s.Tool {
	case transform.ToolExtract:
		if len(s.Selection) == 0 {
			return nil, ErrEmptySelection
		}
		return transform.ExtractParams{Pages: append([]int(nil), s.Selection...)}, nil
	case transform.ToolCompress:
		return transform.CompressParams{Level: s.Settings.Compression}, nil
	case transform.ToolWatermark:
		w := s.Settings.Watermark
		return transform.WatermarkParams{
			Text:     w.Text,
			FontSize: w.FontSize,
			Opacity:  w.Opacity,
			Rotation: w.Rotation,
			Pages:    append([]int(nil), w.Pages...),
		}, nil
	case transform.ToolRotate:
		p := transform.RotateParams{Direction: s.Settings.Rotate.Direction, Scope: s.Settings.Rotate.Scope}
		if p.Scope == transform.ScopeSelected {
			if len(s.Selection) == 0 {
				return nil, ErrEmptySelection
			}
			p.Pages = append([]int(nil), s.Selection...)
		}
		return p, nil
	}
	return nil, ErrInvalidTransition
}

// Action is one of the session actions below. ViewerLoaded, PagesLoaded and
// Fail name the file they were produced for and are rejected with ErrStale
// once another file is attached; a nil File matches whatever is attached.
type Action interface{ action() }

type (
	OpenTool     struct{ Tool transform.Tool }
	AttachFile   struct{ File File }
	ViewerLoaded struct {
		File     *File
		Total    int
		Previews []string
	}
	Continue    struct{}
	PagesLoaded struct {
		File     *File
		Total    int
		Previews []string
	}
	Back           struct{}
	SetRange       struct{ Text string }
	TogglePage     struct{ Page int }
	SelectAll      struct{}
	SetCompression struct{ Level transform.Level }
	SetWatermark   struct{ Watermark Watermark }
	SetRotate      struct{ Rotate Rotate }
	Begin          struct{}
	Succeed        struct {
		Output Output
		Stats  *transform.CompressionStats
	}
	Fail struct {
		File    *File
		Message string
	}
	Retry          struct{}
	ProcessAnother struct{}
	OpenAbout      struct{}
	CloseAbout     struct{}
	Close          struct{}
)

func (OpenTool) action()       {}
func (AttachFile) action()     {}
func (ViewerLoaded) action()   {}
func (Continue) action()       {}
func (PagesLoaded) action()    {}
func (Back) action()           {}
func (SetRange) action()       {}
func (TogglePage) action()     {}
func (SelectAll) action()      {}
func (SetCompression) action() {}
func (SetWatermark) action()   {}
func (SetRotate) action()      {}
func (Begin) action()          {}
func (Succeed) action()        {}
func (Fail) action()           {}
func (Retry) action()          {}
func (ProcessAnother) action() {}
func (OpenAbout) action()      {}
func (CloseAbout) action()     {}
func (Close) action()          {}

// Reduce applies a to s. The input state is never modified; on error the
// returned state is s unchanged.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case OpenTool:
		if s.Step != StepIdle {
			return s, ErrInvalidTransition
		}
		if _, err := transform.ParseTool(string(a.Tool)); err != nil {
			return s, err
		}
		n := Initial()
		n.Tool = a.Tool
		n.Step = StepUpload
		return n, nil

	case AttachFile:
		if s.Step != StepUpload {
			return s, ErrInvalidTransition
		}
		if len(a.File.Data) == 0 {
			return s, ErrNoFile
		}
		n := s.reset()
		f := a.File
		n.File = &f
		n.Step = StepViewer
		return n, nil

	case ViewerLoaded:
		if !s.attached(a.File) {
			return s, ErrStale
		}
		if s.Step != StepViewer {
			return s, ErrInvalidTransition
		}
		s.Total = a.Total
		s.Viewer = append([]string{}, a.Previews...)
		s.Selection = pagerange.Normalize(s.Selection, s.Total)
		return s, nil

	case Continue:
		if s.Step != StepViewer {
			return s, ErrInvalidTransition
		}
		if s.File == nil {
			return s, ErrNoFile
		}
		s.Step = ConfigStep(s.Tool)
		if s.Step == StepWatermark {
			s.Settings.Watermark.Pages = nil
		}
		return s, nil

	case PagesLoaded:
		if !s.attached(a.File) {
			return s, ErrStale
		}
		if !isConfigStep(s.Step) {
			return s, ErrInvalidTransition
		}
		s.Total = a.Total
		s.Previews = append([]string{}, a.Previews...)
		s.Selection = pagerange.Normalize(s.Selection, s.Total)
		return s, nil

	case Back:
		switch {
		case isConfigStep(s.Step):
			s.Step = StepViewer
		case s.Step == StepViewer:
			n := s.reset()
			n.Step = StepUpload
			return n, nil
		default:
			return s, ErrInvalidTransition
		}
		return s, nil

	case SetRange:
		if !selectable(s.Step) {
			return s, ErrInvalidTransition
		}
		s.RangeText = a.Text
		// Blank text leaves the selection alone.
		if strings.TrimSpace(a.Text) != "" {
			s.Selection = pagerange.Parse(a.Text, s.Total)
		}
		return s, nil

	case TogglePage:
		if !selectable(s.Step) {
			return s, ErrInvalidTransition
		}
		if a.Page < 1 || a.Page > s.Total {
			return s, nil
		}
		s.Selection = pagerange.Toggle(s.Selection, a.Page)
		return s, nil

	case SelectAll:
		if !selectable(s.Step) {
			return s, ErrInvalidTransition
		}
		s.Selection = pagerange.SelectAll(s.Total)
		s.RangeText = pagerange.SelectAllText(s.Total)
		return s, nil

	case SetCompression:
		if s.Step != StepCompressOptions {
			return s, ErrInvalidTransition
		}
		if _, err := transform.ParseLevel(string(a.Level)); err != nil {
			return s, err
		}
		s.Settings.Compression = a.Level
		return s, nil

	case SetWatermark:
		if s.Step != StepWatermark {
			return s, ErrInvalidTransition
		}
		w := a.Watermark
		if w.Pages != nil {
			w.Pages = pagerange.Normalize(w.Pages, s.Total)
		}
		s.Settings.Watermark = w
		return s, nil

	case SetRotate:
		if s.Step != StepRotate {
			return s, ErrInvalidTransition
		}
		r := s.Settings.Rotate
		if a.Rotate.Direction != "" {
			r.Direction = a.Rotate.Direction
		}
		if a.Rotate.Scope != "" {
			r.Scope = a.Rotate.Scope
		}
		s.Settings.Rotate = r
		return s, nil

	case Begin:
		if !isConfigStep(s.Step) || ConfigStep(s.Tool) != s.Step {
			return s, ErrInvalidTransition
		}
		if s.File == nil {
			return s, ErrNoFile
		}
		if _, err := s.Params(); err != nil {
			return s, err
		}
		s.Step = StepProgress
		return s, nil

	case Succeed:
		if s.Step != StepProgress {
			return s, ErrInvalidTransition
		}
		out := a.Output
		s.Output = &out
		s.Stats = a.Stats
		s.Error = ""
		s.Step = StepSuccess
		return s, nil

	case Fail:
		if !s.attached(a.File) {
			return s, ErrStale
		}
		if s.Step == StepIdle || s.Step == StepSuccess || s.Step == StepError {
			return s, ErrInvalidTransition
		}
		s.Error = a.Message
		s.Step = StepError
		return s, nil

	case Retry:
		if s.Step != StepError {
			return s, ErrInvalidTransition
		}
		n := s.reset()
		n.Step = StepUpload
		return n, nil

	case ProcessAnother:
		if s.Step != StepSuccess {
			return s, ErrInvalidTransition
		}
		n := s.reset()
		n.Step = StepUpload
		return n, nil

	case OpenAbout:
		if s.Step == StepProgress || s.Step == StepAbout {
			return s, ErrInvalidTransition
		}
		s.PrevStep = s.Step
		s.Step = StepAbout
		return s, nil

	case CloseAbout:
		if s.Step != StepAbout {
			return s, ErrInvalidTransition
		}
		s.Step = s.PrevStep
		s.PrevStep = ""
		return s, nil

	case Close:
		switch s.Step {
		case StepProgress:
			return s, ErrInvalidTransition
		case StepSuccess, StepError:
			return Initial(), nil
		}
		s.Step = StepIdle
		return s, nil
	}
	return s, ErrInvalidTransition
}

// selectable reports whether page selection is shown on step.
func selectable(s Step) bool {
	return s == StepPageSelect || s == StepRotate
}

// attached reports whether f is still the session's file.
func (s State) attached(f *File) bool {
	return f == nil || f == s.File
}
