// Package workflow assembles backend workflow descriptions from resolved
// generation parameters. The orchestrator treats WorkflowInput as a value
// object: it fills in fields and passes the result to the client verbatim.
package workflow

import (
	"math"
	"math/rand"

	"github.com/eikaru/canvasgen/internal/canvas"
)

type Kind string

const (
	KindGenerate      Kind = "generate"
	KindRefine        Kind = "refine"
	KindInpaint       Kind = "inpaint"
	KindRefineRegion  Kind = "refine_region"
	KindUpscaleTiled  Kind = "upscale_tiled"
	KindUpscaleSimple Kind = "upscale_simple"
	KindControlImage  Kind = "control_image"
)

type InpaintMode string

const (
	InpaintAutomatic         InpaintMode = "automatic"
	InpaintFill              InpaintMode = "fill"
	InpaintExpand            InpaintMode = "expand"
	InpaintAddObject         InpaintMode = "add_object"
	InpaintRemoveObject      InpaintMode = "remove_object"
	InpaintReplaceBackground InpaintMode = "replace_background"
	InpaintCustom            InpaintMode = "custom"
)

type FillMode string

const (
	FillNone    FillMode = "none"
	FillNeutral FillMode = "neutral"
	FillBlur    FillMode = "blur"
	FillReplace FillMode = "replace"
	FillInpaint FillMode = "inpaint"
)

// TextInput is the conditioning text for a request.
type TextInput struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
	Style    string `json:"style,omitempty"`
}

// InpaintParams describe how a masked region is filled and blended.
// TargetBounds start out relative to the full canvas and are re-expressed
// relative to the cropped working region before submission.
type InpaintParams struct {
	Mode             InpaintMode   `json:"mode"`
	TargetBounds     canvas.Bounds `json:"target_bounds"`
	Fill             FillMode      `json:"fill"`
	UseInpaintModel  bool          `json:"use_inpaint_model"`
	UseConditionMask bool          `json:"use_condition_mask"`
}

// ControlInput is one auxiliary conditioning image (pose, depth, ...).
type ControlInput struct {
	Mode     string        `json:"mode"`
	Image    *canvas.Image `json:"-"`
	Strength float64       `json:"strength"`
}

// WorkflowInput carries everything the backend needs to run one job.
type WorkflowInput struct {
	Kind          Kind           `json:"kind"`
	Extent        canvas.Extent  `json:"extent"`
	Image         *canvas.Image  `json:"-"`
	Mask          *canvas.Mask   `json:"-"`
	Text          TextInput      `json:"text"`
	Seed          int            `json:"seed"`
	Strength      float64        `json:"strength"`
	Control       []ControlInput `json:"control,omitempty"`
	Inpaint       *InpaintParams `json:"inpaint,omitempty"`
	UpscaleFactor float64        `json:"upscale_factor,omitempty"`
	UpscaleModel  string         `json:"upscale_model,omitempty"`
	ControlMode   string         `json:"control_mode,omitempty"`
	Bounds        *canvas.Bounds `json:"bounds,omitempty"`
	IsLive        bool           `json:"is_live,omitempty"`
}

// PrepareParams is the input to Prepare.
type PrepareParams struct {
	Kind          Kind
	Extent        canvas.Extent
	Image         *canvas.Image
	Text          TextInput
	Seed          int
	Strength      float64
	Mask          *canvas.Mask
	Control       []ControlInput
	Inpaint       *InpaintParams
	UpscaleFactor float64
	UpscaleModel  string
	IsLive        bool
}

// Builder is the workflow-construction collaborator consumed by the
// orchestrator. Tests substitute fakes; Graph is the default.
type Builder interface {
	Prepare(p PrepareParams) (*WorkflowInput, error)
	PrepareUpscale(img *canvas.Image, model string, factor float64) (*WorkflowInput, error)
	PrepareControlImage(img *canvas.Image, mode string, bounds *canvas.Bounds) (*WorkflowInput, error)
	DetectInpaint(mode InpaintMode, bounds canvas.Bounds, prompt string, strength float64) *InpaintParams
	DetectInpaintMode(extent canvas.Extent, bounds canvas.Bounds) InpaintMode
	GenerateSeed() int
}

// Graph is the default Builder.
type Graph struct{}

func (Graph) Prepare(p PrepareParams) (*WorkflowInput, error) {
	input := &WorkflowInput{
		Kind:     p.Kind,
		Extent:   p.Extent,
		Image:    p.Image,
		Mask:     p.Mask,
		Text:     p.Text,
		Seed:     p.Seed,
		Strength: p.Strength,
		Control:  p.Control,
		Inpaint:  p.Inpaint,
		IsLive:   p.IsLive,
	}
	input.UpscaleFactor = p.UpscaleFactor
	input.UpscaleModel = p.UpscaleModel
	if p.Image != nil && input.Extent.IsZero() {
		input.Extent = p.Image.Extent
	}
	return input, nil
}

func (Graph) PrepareUpscale(img *canvas.Image, model string, factor float64) (*WorkflowInput, error) {
	return &WorkflowInput{
		Kind:          KindUpscaleSimple,
		Extent:        img.Extent,
		Image:         img,
		UpscaleFactor: factor,
		UpscaleModel:  model,
		Strength:      1.0,
	}, nil
}

func (Graph) PrepareControlImage(img *canvas.Image, mode string, bounds *canvas.Bounds) (*WorkflowInput, error) {
	return &WorkflowInput{
		Kind:        KindControlImage,
		Extent:      img.Extent,
		Image:       img,
		ControlMode: mode,
		Bounds:      bounds,
	}, nil
}

// DetectInpaint derives inpaint parameters for a non-custom mode.
func (g Graph) DetectInpaint(mode InpaintMode, bounds canvas.Bounds, prompt string, strength float64) *InpaintParams {
	fill := FillNeutral
	switch mode {
	case InpaintFill:
		fill = FillBlur
	case InpaintExpand:
		fill = FillReplace
	case InpaintReplaceBackground:
		fill = FillReplace
	}
	return &InpaintParams{
		Mode:            mode,
		TargetBounds:    bounds,
		Fill:            fill,
		UseInpaintModel: strength > 0.5,
	}
}

// DetectInpaintMode guesses a strategy from mask geometry: selections
// reaching the canvas border expand the image, interior selections fill.
func (Graph) DetectInpaintMode(extent canvas.Extent, bounds canvas.Bounds) InpaintMode {
	touchesBorder := bounds.X <= 0 || bounds.Y <= 0 ||
		bounds.X+bounds.Width >= extent.Width || bounds.Y+bounds.Height >= extent.Height
	if touchesBorder && bounds.Extent().Pixels() < extent.Pixels() {
		return InpaintExpand
	}
	return InpaintFill
}

func (Graph) GenerateSeed() int {
	return rand.Intn(math.MaxInt32)
}
