package generation

import (
	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/workflow"
)

// InpaintContext selects the extra surrounding area fed to the backend
// when the custom inpaint path is active.
type InpaintContext string

const (
	ContextAutomatic   InpaintContext = "automatic"
	ContextMaskBounds  InpaintContext = "mask_bounds"
	ContextEntireImage InpaintContext = "entire_image"
	ContextLayerBounds InpaintContext = "layer_bounds"
)

// CustomInpaint holds the user's custom-inpaint configuration.
type CustomInpaint struct {
	Mode           workflow.InpaintMode
	Fill           workflow.FillMode
	UseInpaint     bool
	UsePromptFocus bool
	Context        InpaintContext
	ContextLayerID string
}

func NewCustomInpaint() *CustomInpaint {
	return &CustomInpaint{
		Mode:       workflow.InpaintAutomatic,
		Fill:       workflow.FillNeutral,
		UseInpaint: true,
		Context:    ContextAutomatic,
	}
}

// Params builds the inpaint parameters for the custom path.
func (c *CustomInpaint) Params(mask *canvas.Mask) *workflow.InpaintParams {
	return &workflow.InpaintParams{
		Mode:             c.Mode,
		TargetBounds:     mask.Bounds,
		Fill:             c.Fill,
		UseInpaintModel:  c.UseInpaint,
		UseConditionMask: c.UsePromptFocus,
	}
}

// ContextBounds resolves the context-region override. Only the custom mode
// has one. A layer_bounds request whose reference layer no longer exists
// yields no override rather than an error.
func (c *CustomInpaint) ContextBounds(doc canvas.Document, mask *canvas.Mask) (canvas.Bounds, bool) {
	if mask == nil || c.Mode != workflow.InpaintCustom {
		return canvas.Bounds{}, false
	}
	switch c.Context {
	case ContextMaskBounds:
		return mask.Bounds, true
	case ContextEntireImage:
		return canvas.FullBounds(doc.Extent()), true
	case ContextLayerBounds:
		if layer := doc.FindLayer(c.ContextLayerID); layer != nil {
			return layer.Bounds().Union(mask.Bounds), true
		}
	}
	return canvas.Bounds{}, false
}

// selectionOptions derives mask-conversion parameters from the inpaint
// mode. Policy constants, not user-tunable per call.
func selectionOptions(mode workflow.InpaintMode, s *Settings) canvas.SelectionOptions {
	grow := float64(s.SelectionGrow) / 100
	feather := float64(s.SelectionFeather) / 100
	padding := float64(s.SelectionPadding) / 100
	invert := false

	if mode == workflow.InpaintRemoveObject {
		// leaving border pixels of the removed object inside the masked
		// area confuses inpaint models
		feather = minf(feather, grow*0.5)
	}
	if mode == workflow.InpaintReplaceBackground {
		// hard transition between foreground and the replaced background
		grow = minf(grow, 0.01)
		feather = minf(feather, 0.01)
		invert = true
	}
	return canvas.SelectionOptions{
		Grow:    grow,
		Feather: feather,
		Padding: padding,
		Invert:  invert,
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
