package generation

import (
	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/workflow"
)

// ControlLayer binds a document layer to a control mode (pose, depth,
// scribble, ...). Its image conditions every generation request, and a
// control-image job can regenerate its content from the canvas.
type ControlLayer struct {
	Mode          string
	LayerID       string
	Strength      float64
	ResultLayerID string // layer created by the last control-image job
}

// PartOfImage reports whether the control layer's pixels belong to the
// picture itself. Layers that do not (pose skeletons, depth maps) are
// excluded when the canvas is projected into a request image.
func (c *ControlLayer) PartOfImage() bool {
	switch c.Mode {
	case "pose", "depth", "normal", "segmentation", "scribble", "line_art":
		return false
	}
	return true
}

func (c *ControlLayer) controlInput(doc canvas.Document, bounds canvas.Bounds) workflow.ControlInput {
	input := workflow.ControlInput{Mode: c.Mode, Strength: c.Strength}
	if layer := doc.FindLayer(c.LayerID); layer != nil {
		input.Image = doc.GetLayerImage(layer, bounds, doc.CurrentTime())
	}
	return input
}
