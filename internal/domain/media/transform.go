package media

import (
	"errors"

	"github.com/backoffice/saas/internal/domain/shared"
)

// OperationType names an image edit
type OperationType string

const (
	OpCrop   OperationType = "crop"
	OpResize OperationType = "resize"
	OpRotate OperationType = "rotate"
	OpFlip   OperationType = "flip"
	OpFilter OperationType = "filter"
)

// ResizeMode controls how resize treats the aspect ratio
type ResizeMode string

const (
	// ResizeFit scales to fit inside the box, keeping the aspect ratio
	ResizeFit ResizeMode = "fit"
	// ResizeFill scales and center-crops to cover the box exactly
	ResizeFill ResizeMode = "fill"
	// ResizeExact stretches to the box; a zero side keeps the ratio
	ResizeExact ResizeMode = "exact"
)

// FilterType names a color or convolution filter
type FilterType string

const (
	FilterGrayscale  FilterType = "grayscale"
	FilterSepia      FilterType = "sepia"
	FilterInvert     FilterType = "invert"
	FilterBlur       FilterType = "blur"
	FilterSharpen    FilterType = "sharpen"
	FilterBrightness FilterType = "brightness"
	FilterContrast   FilterType = "contrast"
	FilterSaturation FilterType = "saturation"
)

// SaveMode decides whether an edit creates a new item or overwrites
type SaveMode string

const (
	SaveAsNew     SaveMode = "new"
	SaveAsReplace SaveMode = "replace"
)

const (
	MaxOperations = 10
	MaxDimension  = 8000
)

// Operation is one step of an edit pipeline
type Operation struct {
	Type OperationType `json:"type"`

	// crop rectangle, and target box for resize
	X      int        `json:"x,omitempty"`
	Y      int        `json:"y,omitempty"`
	Width  int        `json:"width,omitempty"`
	Height int        `json:"height,omitempty"`
	Mode   ResizeMode `json:"mode,omitempty"`

	Degrees   float64 `json:"degrees,omitempty"`
	Direction string  `json:"direction,omitempty"`

	Filter FilterType `json:"filter,omitempty"`
	// Amount is sigma for blur/sharpen and a percentage for
	// brightness/contrast/saturation (-100..100)
	Amount float64 `json:"amount,omitempty"`
}

// Validate checks the parameters of a single operation
func (o Operation) Validate() error {
	switch o.Type {
	case OpCrop:
		if o.Width <= 0 || o.Height <= 0 {
			return shared.InvalidInput("crop needs a positive width and height")
		}
		if o.X < 0 || o.Y < 0 {
			return shared.InvalidInput("crop origin cannot be negative")
		}
	case OpResize:
		if o.Width < 0 || o.Height < 0 || (o.Width == 0 && o.Height == 0) {
			return shared.InvalidInput("resize needs a width or height")
		}
		if o.Width > MaxDimension || o.Height > MaxDimension {
			return shared.InvalidInput("resize cannot exceed %d pixels per side", MaxDimension)
		}
		switch o.Mode {
		case "", ResizeFit, ResizeExact:
		case ResizeFill:
			if o.Width == 0 || o.Height == 0 {
				return shared.InvalidInput("fill resize needs both width and height")
			}
		default:
			return shared.InvalidInput("unknown resize mode %q", o.Mode)
		}
	case OpRotate:
		if o.Degrees < -360 || o.Degrees > 360 {
			return shared.InvalidInput("rotation must be between -360 and 360 degrees")
		}
	case OpFlip:
		if o.Direction != "horizontal" && o.Direction != "vertical" {
			return shared.InvalidInput("flip direction must be horizontal or vertical")
		}
	case OpFilter:
		return o.validateFilter()
	default:
		return shared.InvalidInput("unknown operation %q", o.Type)
	}
	return nil
}

func (o Operation) validateFilter() error {
	switch o.Filter {
	case FilterGrayscale, FilterSepia, FilterInvert:
	case FilterBlur, FilterSharpen:
		if o.Amount <= 0 || o.Amount > 50 {
			return shared.InvalidInput("%s sigma must be in (0, 50]", o.Filter)
		}
	case FilterBrightness, FilterContrast, FilterSaturation:
		if o.Amount < -100 || o.Amount > 100 {
			return shared.InvalidInput("%s must be between -100 and 100", o.Filter)
		}
	default:
		return shared.InvalidInput("unknown filter %q", o.Filter)
	}
	return nil
}

// ValidateOperations checks a whole pipeline
func ValidateOperations(ops []Operation) error {
	if len(ops) == 0 {
		return shared.InvalidInput("at least one operation is required")
	}
	if len(ops) > MaxOperations {
		return shared.InvalidInput("at most %d operations are allowed", MaxOperations)
	}
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) {
				return de.WithDetail("operation", i)
			}
			return err
		}
	}
	return nil
}

// ParseSaveMode defaults to SaveAsNew
func ParseSaveMode(s string) (SaveMode, error) {
	switch SaveMode(s) {
	case "", SaveAsNew:
		return SaveAsNew, nil
	case SaveAsReplace:
		return SaveAsReplace, nil
	}
	return "", shared.InvalidInput("save mode must be new or replace")
}
