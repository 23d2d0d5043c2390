package generation

import "github.com/eikaru/canvasgen/internal/canvas"

// UpscaleParams is a snapshot of the upscale configuration at submit time.
type UpscaleParams struct {
	Upscaler     string
	Factor       float64
	UseDiffusion bool
	Strength     float64
	TargetExtent canvas.Extent
	Seed         int
}

// UpscaleWorkspace holds the upscale-mode configuration.
type UpscaleWorkspace struct {
	model *Model

	Upscaler     *Property[string]
	Factor       *Property[float64]
	UseDiffusion *Property[bool]
	Strength     *Property[float64]
}

func NewUpscaleWorkspace(model *Model) *UpscaleWorkspace {
	w := &UpscaleWorkspace{
		model:        model,
		Upscaler:     NewProperty(model.client.DefaultUpscaler()),
		Factor:       NewProperty(2.0),
		UseDiffusion: NewProperty(true),
		Strength:     NewProperty(0.3),
	}
	return w
}

func (w *UpscaleWorkspace) TargetExtent() canvas.Extent {
	return w.model.doc.Extent().Scaled(w.Factor.Value())
}

func (w *UpscaleWorkspace) Params() UpscaleParams {
	upscaler := w.Upscaler.Value()
	if upscaler == "" {
		upscaler = w.model.client.DefaultUpscaler()
	}
	seed := w.model.Seed.Value()
	if !w.model.FixedSeed.Value() {
		seed = w.model.builder.GenerateSeed()
	}
	return UpscaleParams{
		Upscaler:     upscaler,
		Factor:       w.Factor.Value(),
		UseDiffusion: w.UseDiffusion.Value(),
		Strength:     w.Strength.Value(),
		TargetExtent: w.TargetExtent(),
		Seed:         seed,
	}
}
