package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/workflow"
	"github.com/google/uuid"
)

type SamplingQuality string

const (
	QualityFast    SamplingQuality = "fast"
	QualityQuality SamplingQuality = "quality"
)

// AnimationWorkspace generates either a single frame into a designated
// target layer, or a whole per-frame batch across the playback range that
// is collated into one imported animated layer. Batch jobs share an
// animation id; frames the backend reports as cached reuse the previous
// frame's file so the imported sequence has no gaps.
type AnimationWorkspace struct {
	model *Model

	Quality     *Property[SamplingQuality]
	TargetLayer *Property[string]
	BatchMode   *Property[bool]

	mu           sync.Mutex
	framesFolder string
	frames       map[string][]string
}

func NewAnimationWorkspace(model *Model) *AnimationWorkspace {
	w := &AnimationWorkspace{
		model:       model,
		Quality:     NewProperty(QualityFast),
		TargetLayer: NewProperty(""),
		BatchMode:   NewProperty(true),
		frames:      make(map[string][]string),
	}
	model.Jobs.OnFinished(w.handleJobFinished)
	return w
}

func (w *AnimationWorkspace) Generate(ctx context.Context) error {
	if w.BatchMode.Value() {
		return w.generateBatch(ctx)
	}
	return w.generateFrame(ctx)
}

func (w *AnimationWorkspace) generateFrame(ctx context.Context) error {
	m := w.model
	if m.doc.Filename() == "" {
		m.ReportError("document must be saved before generating an animation")
		return ErrDocumentNotSaved
	}

	strength := m.Strength.Value()
	bounds := canvas.FullBounds(m.doc.Extent())
	var image *canvas.Image
	if strength < 1.0 {
		image = m.currentImage(bounds)
	}
	input, err := w.prepare(bounds, image, strength, w.resolveSeed())
	if err != nil {
		return m.reportIfErr(err)
	}

	m.ClearError()
	_, err = m.generateJobs(ctx, input, bounds, 1, jobSpec{
		kind:  JobAnimationFrame,
		frame: FrameRange{Index: m.doc.CurrentTime()},
	})
	return m.reportIfErr(err)
}

func (w *AnimationWorkspace) generateBatch(ctx context.Context) error {
	m := w.model
	doc := m.doc
	strength := m.Strength.Value()
	layer := doc.ActiveLayer()
	if strength < 1.0 && (layer == nil || !layer.Animated()) {
		m.ReportError("the active layer does not contain an animation")
		return fmt.Errorf("active layer is not animated")
	}
	if doc.Filename() == "" {
		m.ReportError("document must be saved before generating an animation")
		return ErrDocumentNotSaved
	}

	folder := strings.TrimSuffix(doc.Filename(), filepath.Ext(doc.Filename())) + ".animation"
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return m.reportIfErr(fmt.Errorf("failed to create animation folder: %w", err))
	}
	w.mu.Lock()
	w.framesFolder = folder
	w.mu.Unlock()

	m.ClearError()
	start, end := doc.PlaybackTimeRange()
	bounds := canvas.FullBounds(doc.Extent())
	animationID := uuid.NewString()
	// all frames of one batch share a seed, or the sequence loses its
	// temporal consistency
	seed := w.resolveSeed()

	for frame := start; frame <= end; frame++ {
		// full regeneration needs no source keyframe
		if strength < 1.0 && !layer.HasKeyframeAt(frame) {
			continue
		}
		var image *canvas.Image
		if strength < 1.0 {
			image = doc.GetLayerImage(layer, bounds, frame)
		}
		input, err := w.prepare(bounds, image, strength, seed)
		if err != nil {
			return m.reportIfErr(err)
		}
		_, err = m.generateJobs(ctx, input, bounds, 1, jobSpec{
			kind:        JobAnimationBatch,
			frame:       FrameRange{Index: frame, Start: start, End: end},
			animationID: animationID,
		})
		if err != nil {
			return m.reportIfErr(err)
		}
	}
	return nil
}

func (w *AnimationWorkspace) resolveSeed() int {
	m := w.model
	if m.FixedSeed.Value() {
		return m.Seed.Value()
	}
	return m.builder.GenerateSeed()
}

func (w *AnimationWorkspace) prepare(bounds canvas.Bounds, image *canvas.Image, strength float64, seed int) (*workflow.WorkflowInput, error) {
	m := w.model
	kind := workflow.KindGenerate
	if strength != 1.0 {
		kind = workflow.KindRefine
	}
	return m.builder.Prepare(workflow.PrepareParams{
		Kind:     kind,
		Extent:   bounds.Extent(),
		Image:    image,
		Text:     m.textInput(),
		Seed:     seed,
		Strength: strength,
		Control:  m.controlInputs(bounds),
		IsLive:   w.Quality.Value() == QualityFast,
	})
}

func (w *AnimationWorkspace) handleJobFinished(job *Job) {
	switch job.Kind {
	case JobAnimationBatch:
		w.collateBatchFrame(job)
	case JobAnimationFrame:
		w.applyFrame(job)
	}
}

// collateBatchFrame saves the frame (or reuses the previous file on a
// cache hit) and triggers the final import when the terminal frame of the
// batch completes.
func (w *AnimationWorkspace) collateBatchFrame(job *Job) {
	m := w.model
	w.mu.Lock()
	folder := w.framesFolder
	frames := w.frames[job.Params.AnimationID]
	w.mu.Unlock()

	if len(job.Results) > 0 {
		path := filepath.Join(folder, fmt.Sprintf("frame-%d.png", job.Params.Frame.Index))
		if err := job.Results[0].Save(path); err != nil {
			m.ReportError(fmt.Sprintf("failed to save animation frame: %s", err))
			return
		}
		frames = append(frames, path)
	} else if len(frames) > 0 {
		// execution was cached, frame content equals the previous one
		frames = append(frames, frames[len(frames)-1])
	}

	w.mu.Lock()
	w.frames[job.Params.AnimationID] = frames
	w.mu.Unlock()

	if job.Params.Frame.Index == job.Params.Frame.End {
		w.importAnimation(job)
	}
}

// applyFrame writes a single-frame result into the target layer, unless
// the playhead moved since the job was submitted.
func (w *AnimationWorkspace) applyFrame(job *Job) {
	m := w.model
	if len(job.Results) == 0 {
		return
	}
	if job.Params.Frame.Index != m.doc.CurrentTime() {
		m.ReportError("generated frame does not match current time")
		return
	}
	layer := m.doc.FindLayer(w.TargetLayer.Value())
	if layer == nil {
		m.ReportError("target layer not found")
		return
	}
	m.doc.SetLayerContent(layer, job.Results[0], job.Params.Bounds, false)
}

func (w *AnimationWorkspace) importAnimation(job *Job) {
	m := w.model
	w.mu.Lock()
	frames := w.frames[job.Params.AnimationID]
	delete(w.frames, job.Params.AnimationID)
	w.mu.Unlock()
	if len(frames) == 0 {
		return
	}

	start, end := job.Params.Frame.Start, job.Params.Frame.End
	if err := m.doc.ImportAnimation(frames, start); err != nil {
		m.ReportError(fmt.Sprintf("failed to import animation: %s", err))
		return
	}
	if layer := m.doc.ActiveLayer(); layer != nil {
		layer.SetName(fmt.Sprintf("[Generated] %d-%d: %s", start, end, job.Params.Prompt))
		w.TargetLayer.Set(layer.ID())
	}
}
