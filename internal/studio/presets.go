package studio

import (
	"fmt"
	"strconv"

	"github.com/blacktop/fluxstudio/internal/dropdown"
)

// Dropdown group names.
const (
	GroupModel  = "Model"
	GroupFormat = "Format Enhance"
	GroupStyle  = "Style"
)

// Fallbacks used when a group has no selection.
const (
	DefaultModel         = "Flux Dev"
	DefaultFormatEnhance = "Auto"
	DefaultStyle         = "Dynamic"
)

// Advanced parameter defaults and bounds.
const (
	DefaultSteps         = 50
	DefaultGuidanceScale = 7.5
	DefaultSeed          = -1

	MinSteps    = 10
	MaxSteps    = 60
	MinGuidance = 1.0
	MaxGuidance = 20.0
)

// Dimensions used when no aspect preset is active.
const (
	DefaultWidth  = 1024
	DefaultHeight = 576
)

// MoreCount is the count preset that opens further choices. It never
// counts as a number of images.
const MoreCount = "..."

// tokenCostPerImage is what the service charges for a single image.
const tokenCostPerImage = 0.4

type AspectPreset struct {
	Ratio  string
	Width  int
	Height int
}

// Pixels is the resolution label shown on cards.
func (p AspectPreset) Pixels() string {
	return fmt.Sprintf("%dx%dpx", p.Width, p.Height)
}

var AspectPresets = []AspectPreset{
	{Ratio: "3:4", Width: 768, Height: 1024},
	{Ratio: "1:1", Width: 1024, Height: 1024},
	{Ratio: "16:9", Width: 1024, Height: 576},
}

var CountPresets = []string{"1", "2", "3", "4", MoreCount}

func aspectPreset(ratio string) (AspectPreset, bool) {
	for _, p := range AspectPresets {
		if p.Ratio == ratio {
			return p, true
		}
	}
	return AspectPreset{}, false
}

func countPreset(label string) bool {
	for _, c := range CountPresets {
		if c == label {
			return true
		}
	}
	return false
}

// imageCount resolves a count preset label to a number of images.
func imageCount(label string) int {
	if label == "" || label == MoreCount {
		return 1
	}
	n, err := strconv.Atoi(label)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// DefaultDropdowns builds the model, format enhance and style menus.
func DefaultDropdowns() []*dropdown.Group {
	model := mustGroup(GroupModel,
		dropdown.Option{Value: "Flux Dev", Name: "Flux Dev", Type: "Flux"},
		dropdown.Option{Value: "Flux Schnell", Name: "Flux Schnell", Type: "Flux"},
		dropdown.Option{Value: "FLUX 1.1", Name: "FLUX 1.1 Pro", Type: "Flux"},
		dropdown.Option{Value: "Phoenix 1.0", Name: "Phoenix 1.0", Type: "Leonardo"},
		dropdown.Option{Value: "Lightning XL", Name: "Lightning XL", Type: "SDXL"},
		dropdown.Option{Value: "Kino XL", Name: "Kino XL", Type: "SDXL"},
		dropdown.Option{Value: "Anime XL", Name: "Anime XL", Type: "SDXL"},
	)
	format := mustGroup(GroupFormat,
		dropdown.Option{Value: "Auto", Name: "Auto"},
		dropdown.Option{Value: "Dynamic", Name: "Dynamic"},
		dropdown.Option{Value: "Ultra", Name: "Ultra"},
		dropdown.Option{Value: "Off", Name: "Off"},
	)
	style := mustGroup(GroupStyle,
		dropdown.Option{Value: "Dynamic", Name: "Dynamic"},
		dropdown.Option{Value: "Bokeh", Name: "Bokeh"},
		dropdown.Option{Value: "Cinematic", Name: "Cinematic"},
		dropdown.Option{Value: "Creative", Name: "Creative"},
		dropdown.Option{Value: "Fashion", Name: "Fashion"},
		dropdown.Option{Value: "Film", Name: "Film"},
		dropdown.Option{Value: "Portrait", Name: "Portrait"},
		dropdown.Option{Value: "Vibrant", Name: "Vibrant"},
	)
	return []*dropdown.Group{model, format, style}
}

func mustGroup(name string, options ...dropdown.Option) *dropdown.Group {
	g, err := dropdown.NewGroup(name, options...)
	if err != nil {
		panic(err)
	}
	return g
}
