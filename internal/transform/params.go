package transform

import "fmt"

// Tool names a transformation.
type Tool string

const (
	ToolExtract   Tool = "extract"
	ToolCompress  Tool = "compress"
	ToolWatermark Tool = "watermark"
	ToolRotate    Tool = "rotate"
)

// ParseTool maps a tool name to a Tool.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolExtract, ToolCompress, ToolWatermark, ToolRotate:
		return t, nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// Suffix is appended to the output file's base name.
func (t Tool) Suffix() string {
	switch t {
	case ToolExtract:
		return "_extracted"
	case ToolCompress:
		return "_compressed"
	case ToolWatermark:
		return "_watermarked"
	case ToolRotate:
		return "_rotated"
	}
	return "_" + string(t)
}

// Params is one of ExtractParams, CompressParams, WatermarkParams or
// RotateParams.
type Params interface {
	Tool() Tool
	params()
}

// ExtractParams copies Pages into a new document.
type ExtractParams struct {
	Pages []int `json:"pages"`
}

// Level selects a compression save strategy.
type Level string

const (
	LevelOptimal  Level = "optimal"
	LevelSmall    Level = "small"
	LevelLossless Level = "lossless"
)

// ParseLevel maps a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(s); l {
	case LevelOptimal, LevelSmall, LevelLossless:
		return l, nil
	}
	return "", fmt.Errorf("unknown compression level %q", s)
}

type CompressParams struct {
	Level Level `json:"level"`
}

// WatermarkParams stamps Text on Pages, or every page when Pages is nil.
// Rotation is in degrees as previewed on screen, clockwise positive.
type WatermarkParams struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Opacity  float64 `json:"opacity"`
	Rotation float64 `json:"rotation"`
	Pages    []int   `json:"pages,omitempty"`
}

// Direction of a quarter turn.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// Degrees is the rotation delta for d.
func (d Direction) Degrees() int {
	if d == Left {
		return -90
	}
	return 90
}

// Scope selects which pages a rotation applies to.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeSelected Scope = "selected"
)

type RotateParams struct {
	Direction Direction `json:"direction"`
	Scope     Scope     `json:"scope"`
	Pages     []int     `json:"pages,omitempty"`
}

func (ExtractParams) Tool() Tool   { return ToolExtract }
func (CompressParams) Tool() Tool  { return ToolCompress }
func (WatermarkParams) Tool() Tool { return ToolWatermark }
func (RotateParams) Tool() Tool    { return ToolRotate }

func (ExtractParams) params()   {}
func (CompressParams) params()  {}
func (WatermarkParams) params() {}
func (RotateParams) params()    {}
