package transform

import "fmt"

// ExtractionError wraps any failure of an extract run.
type ExtractionError struct{ Err error }

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract pages: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// CompressionError wraps any failure of a compress run.
type CompressionError struct{ Err error }

func (e *CompressionError) Error() string { return fmt.Sprintf("compress: %v", e.Err) }
func (e *CompressionError) Unwrap() error { return e.Err }

// WatermarkError wraps invalid parameters or any failure of a watermark run.
type WatermarkError struct{ Err error }

func (e *WatermarkError) Error() string { return fmt.Sprintf("watermark: %v", e.Err) }
func (e *WatermarkError) Unwrap() error { return e.Err }

// RotationError wraps any failure of a rotate run.
type RotationError struct{ Err error }

func (e *RotationError) Error() string { return fmt.Sprintf("rotate: %v", e.Err) }
func (e *RotationError) Unwrap() error { return e.Err }

func wrap(t Tool, err error) error {
	switch t {
	case ToolExtract:
		return &ExtractionError{Err: err}
	case ToolCompress:
		return &CompressionError{Err: err}
	case ToolWatermark:
		return &WatermarkError{Err: err}
	case ToolRotate:
		return &RotationError{Err: err}
	}
	return err
}
