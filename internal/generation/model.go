// Package generation drives image-generation jobs for a single host
// document: it builds workflow requests from the current configuration,
// enqueues them on the backend, and reconciles asynchronous job results
// back into document mutations.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/logger"
	"github.com/eikaru/canvasgen/internal/metrics"
	"github.com/eikaru/canvasgen/internal/pose"
	"github.com/eikaru/canvasgen/internal/workflow"
)

var (
	ErrNoPreviewLayer   = errors.New("no active preview layer")
	ErrInvalidResult    = errors.New("invalid result index")
	ErrDocumentNotSaved = errors.New("document must be saved first")
)

type Workspace string

const (
	WorkspaceGeneration Workspace = "generation"
	WorkspaceUpscaling  Workspace = "upscaling"
	WorkspaceLive       Workspace = "live"
	WorkspaceAnimation  Workspace = "animation"
)

// minimum mask sizes for selection masks; live mode needs a larger square
// working area for stable low-latency results.
const (
	minMaskSize     = 64
	minLiveMaskSize = 512
)

// Model orchestrates diffusion workflows for one document. It stores all
// generation inputs, launches jobs, and listens to server messages to keep
// the job queue and the document in sync.
type Model struct {
	doc      canvas.Document
	client   Client
	builder  workflow.Builder
	settings *Settings
	log      *logger.CustomLogger

	Jobs      *JobQueue
	Inpaint   *CustomInpaint
	Upscale   *UpscaleWorkspace
	Live      *LiveWorkspace
	Animation *AnimationWorkspace

	Workspace      *Property[Workspace]
	Prompt         *Property[string]
	NegativePrompt *Property[string]
	Strength       *Property[float64]
	BatchCount     *Property[int]
	Seed           *Property[int]
	FixedSeed      *Property[bool]
	QueueFront     *Property[bool]
	Progress       *Property[float64]
	Error          *Property[string]

	mu           sync.Mutex
	control      []*ControlLayer
	previewLayer canvas.Layer
}

func NewModel(doc canvas.Document, client Client, builder workflow.Builder, settings *Settings) *Model {
	m := &Model{
		doc:      doc,
		client:   client,
		builder:  builder,
		settings: settings,
		log:      logger.NewCustomLogger().With("document", doc.Filename()),

		Jobs:    NewJobQueue(),
		Inpaint: NewCustomInpaint(),

		Workspace:      NewProperty(WorkspaceGeneration),
		Prompt:         NewProperty(""),
		NegativePrompt: NewProperty(""),
		Strength:       NewProperty(1.0),
		BatchCount:     NewProperty(1),
		Seed:           NewProperty(builder.GenerateSeed()),
		FixedSeed:      NewProperty(false),
		QueueFront:     NewProperty(false),
		Progress:       NewProperty(0.0),
		Error:          NewProperty(""),
	}
	m.Upscale = NewUpscaleWorkspace(m)
	m.Live = NewLiveWorkspace(m)
	m.Animation = NewAnimationWorkspace(m)

	m.Jobs.OnSelectionChanged(m.updatePreview)
	m.Progress.Subscribe(func(v float64) { metrics.Progress.Set(v) })
	return m
}

// Generate enqueues a one-shot generation burst for the current setup.
// It returns once every job of the batch is acknowledged by the backend;
// completion arrives later through HandleMessage.
func (m *Model) Generate(ctx context.Context) error {
	if ok, msg := m.doc.CheckColorMode(); !ok && msg != "" {
		m.ReportError(msg)
		return errors.New(msg)
	}

	strength := m.Strength.Value()
	kind := workflow.KindGenerate
	if strength != 1.0 {
		kind = workflow.KindRefine
	}

	extent := m.doc.Extent()
	opts := selectionOptions(m.Inpaint.Mode, m.settings)
	opts.MinSize = minMaskSize
	mask := m.doc.CreateMaskFromSelection(opts)

	var maskBounds *canvas.Bounds
	if mask != nil {
		b := mask.Bounds
		maskBounds = &b
	}
	bounds := canvas.ResolveRegion(extent, maskBounds, strength, float64(m.settings.SelectionPadding)/100)
	if override, ok := m.Inpaint.ContextBounds(m.doc, mask); ok {
		bounds = override
	}

	control := m.controlInputs(bounds)
	var image *canvas.Image
	if mask != nil || strength < 1.0 {
		image = m.currentImage(bounds)
	}

	var inpaint *workflow.InpaintParams
	if mask != nil {
		switch kind {
		case workflow.KindGenerate:
			kind = workflow.KindInpaint
		case workflow.KindRefine:
			kind = workflow.KindRefineRegion
		}
		if mode := m.ResolveInpaintMode(); mode == workflow.InpaintCustom {
			inpaint = m.Inpaint.Params(mask)
		} else {
			inpaint = m.builder.DetectInpaint(mode, mask.Bounds, m.Prompt.Value(), strength)
		}
	}

	seed := m.Seed.Value()
	if !m.FixedSeed.Value() {
		seed = m.builder.GenerateSeed()
	}
	input, err := m.builder.Prepare(workflow.PrepareParams{
		Kind:     kind,
		Extent:   bounds.Extent(),
		Image:    image,
		Text:     m.textInput(),
		Seed:     seed,
		Strength: strength,
		Mask:     mask,
		Control:  control,
		Inpaint:  inpaint,
	})
	if err != nil {
		return m.reportIfErr(err)
	}

	m.ClearError()
	_, err = m.generateJobs(ctx, input, bounds, m.BatchCount.Value(), jobSpec{kind: JobDiffusion})
	return m.reportIfErr(err)
}

// GenerateLive enqueues a single low-latency preview generation.
func (m *Model) GenerateLive(ctx context.Context) error {
	strength := m.Live.Strength.Value()
	kind := workflow.KindGenerate
	if strength != 1.0 {
		kind = workflow.KindRefine
	}

	// no grow in live mode, and always a square working area
	mask := m.doc.CreateMaskFromSelection(canvas.SelectionOptions{
		Grow:    float64(m.settings.SelectionFeather) / 200,
		Feather: float64(m.settings.SelectionFeather) / 100,
		Padding: float64(m.settings.SelectionPadding) / 100,
		MinSize: minLiveMaskSize,
		Square:  true,
	})
	bounds := canvas.FullBounds(m.doc.Extent())
	var inpaint *workflow.InpaintParams
	if mask != nil {
		kind = workflow.KindRefineRegion
		bounds = mask.Bounds
		inpaint = &workflow.InpaintParams{Mode: workflow.InpaintFill, TargetBounds: mask.Bounds}
	}
	var image *canvas.Image
	if mask != nil || strength < 1.0 {
		image = m.currentImage(bounds)
	}

	input, err := m.builder.Prepare(workflow.PrepareParams{
		Kind:     kind,
		Extent:   bounds.Extent(),
		Image:    image,
		Text:     m.textInput(),
		Seed:     m.Seed.Value(),
		Strength: strength,
		Mask:     mask,
		Control:  m.controlInputs(bounds),
		Inpaint:  inpaint,
		IsLive:   true,
	})
	if err != nil {
		return m.reportIfErr(err)
	}

	m.ClearError()
	_, err = m.generateJobs(ctx, input, bounds, 1, jobSpec{kind: JobLivePreview})
	return m.reportIfErr(err)
}

// UpscaleImage enqueues an upscale of the whole canvas. The job's target
// bounds are the scaled canvas size.
func (m *Model) UpscaleImage(ctx context.Context) error {
	params := m.Upscale.Params()
	image := m.doc.GetImage(canvas.FullBounds(m.doc.Extent()), nil)

	var input *workflow.WorkflowInput
	var err error
	if params.UseDiffusion {
		input, err = m.builder.Prepare(workflow.PrepareParams{
			Kind:          workflow.KindUpscaleTiled,
			Image:         image,
			Text:          workflow.TextInput{Positive: "4k uhd"},
			Seed:          params.Seed,
			Strength:      params.Strength,
			UpscaleFactor: params.Factor,
			UpscaleModel:  params.Upscaler,
		})
	} else {
		input, err = m.builder.PrepareUpscale(image, params.Upscaler, params.Factor)
	}
	if err != nil {
		return m.reportIfErr(err)
	}

	m.ClearError()
	_, err = m.generateJobs(ctx, input, canvas.FullBounds(params.TargetExtent), 1, jobSpec{kind: JobUpscaling})
	return m.reportIfErr(err)
}

// GenerateControlLayer produces a single auxiliary image (pose, depth, ...)
// for a control input.
func (m *Model) GenerateControlLayer(ctx context.Context, control *ControlLayer) (*Job, error) {
	if ok, msg := m.doc.CheckColorMode(); !ok && msg != "" {
		m.ReportError(msg)
		return nil, errors.New(msg)
	}

	image := m.doc.GetImage(canvas.FullBounds(m.doc.Extent()), nil)
	mask := m.doc.CreateMaskFromSelection(canvas.SelectionOptions{Padding: 0.25, Multiple: 64})
	var bounds *canvas.Bounds
	if mask != nil {
		b := mask.Bounds
		bounds = &b
	}
	input, err := m.builder.PrepareControlImage(image, control.Mode, bounds)
	if err != nil {
		return nil, m.reportIfErr(err)
	}

	m.ClearError()
	jobs, err := m.generateJobs(ctx, input, canvas.FullBounds(image.Extent), 1,
		jobSpec{kind: JobControlLayer, control: control})
	if err != nil {
		return nil, m.reportIfErr(err)
	}
	return jobs[0], nil
}

// jobSpec carries kind-specific job metadata that must be in place before
// the enqueue is acknowledged, since messages may arrive immediately after.
type jobSpec struct {
	kind        JobKind
	frame       FrameRange
	animationID string
	control     *ControlLayer
}

// generateJobs fans a prepared workflow input out into count jobs sharing
// the same resolved region. Batch member i gets seed base+i*batchSize so
// fixed-seed batches stay deterministic without colliding.
func (m *Model) generateJobs(ctx context.Context, input *workflow.WorkflowInput, bounds canvas.Bounds, count int, spec jobSpec) ([]*Job, error) {
	if input.Inpaint != nil {
		// the workflow wants mask bounds relative to the cropped working
		// region; the job keeps the absolute bounds for inserting results
		b := input.Inpaint.TargetBounds
		input.Inpaint.TargetBounds = b.Relative(bounds)
		bounds = b
	}

	if !m.Jobs.AnyExecuting() {
		m.Progress.Set(0)
	}

	baseSeed := input.Seed
	jobs := make([]*Job, 0, count)
	for i := 0; i < count; i++ {
		in := *input
		in.Seed = baseSeed + i*m.settings.BatchSize
		job := m.Jobs.Add(spec.kind, JobParams{
			Prompt:         input.Text.Positive,
			NegativePrompt: input.Text.Negative,
			Bounds:         bounds,
			Strength:       input.Strength,
			Seed:           in.Seed,
			Frame:          spec.frame,
			AnimationID:    spec.animationID,
		})
		job.Control = spec.control
		if err := m.enqueueJob(ctx, job, &in); err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// enqueueJob is the single chokepoint through which every job reaches the
// backend. On failure the job stays queued with no id; the caller surfaces
// the error.
func (m *Model) enqueueJob(ctx context.Context, job *Job, input *workflow.WorkflowInput) error {
	id, err := m.client.Enqueue(ctx, input, m.QueueFront.Value())
	if err != nil {
		return err
	}
	m.Jobs.SetID(job, id)
	metrics.JobsEnqueued.WithLabelValues(string(job.Kind)).Inc()
	m.log.Infof("enqueued %s job %s, seed %d, bounds %s", job.Kind, id, job.Params.Seed, job.Params.Bounds)
	return nil
}

// Cancel drops queued jobs locally (requesting backend-side removal in one
// batch) and/or asks the backend to interrupt the running job. Running jobs
// stay in the queue until the backend confirms with an interrupted message.
func (m *Model) Cancel(ctx context.Context, active, queued bool) error {
	if queued {
		toRemove := m.Jobs.QueuedJobs()
		if len(toRemove) > 0 {
			if err := m.client.ClearQueue(ctx); err != nil {
				return m.reportIfErr(err)
			}
			for _, job := range toRemove {
				m.Jobs.Remove(job)
			}
		}
	}
	if active && m.Jobs.AnyExecuting() {
		if err := m.client.Interrupt(ctx); err != nil {
			return m.reportIfErr(err)
		}
	}
	return nil
}

// HandleMessage is the entry point for asynchronous backend events. It
// maps each event onto a job-queue transition and runs the kind-specific
// completion effect. Unknown job ids are logged and dropped.
func (m *Model) HandleMessage(msg ClientMessage) {
	job := m.Jobs.Find(msg.JobID)
	if job == nil {
		m.log.Errorf("received %s message for unknown job %q", msg.Event, msg.JobID)
		return
	}

	switch msg.Event {
	case EventProgress:
		m.Jobs.NotifyStarted(job)
		m.Progress.Set(msg.Progress)

	case EventFinished:
		if len(msg.Images) > 0 {
			m.Jobs.SetResults(job, msg.Images)
		}
		switch job.Kind {
		case JobControlLayer:
			if layer := m.addControlLayer(job, msg.Result); layer != nil && job.Control != nil {
				job.Control.ResultLayerID = layer.ID()
			}
		case JobUpscaling:
			m.addUpscaleLayer(job)
		}
		m.Progress.Set(1)
		m.Jobs.NotifyFinished(job)
		metrics.JobsFinished.WithLabelValues(string(job.Kind)).Inc()
		if job.Kind != JobDiffusion {
			m.Jobs.Remove(job)
		} else if m.settings.AutoPreview && m.preview() == nil && job.ID != "" {
			m.Jobs.Select(job.ID, 0)
		}

	case EventInterrupted:
		m.Jobs.NotifyCancelled(job)
		metrics.JobsCancelled.WithLabelValues(string(job.Kind)).Inc()
		m.Progress.Set(0)

	case EventError:
		m.Jobs.NotifyCancelled(job)
		metrics.JobsCancelled.WithLabelValues(string(job.Kind)).Inc()
		m.ReportError(fmt.Sprintf("server execution error: %s", msg.Error))
	}
}

func (m *Model) updatePreview(sel *JobSelection) {
	if sel != nil {
		m.showPreview(sel.JobID, sel.Index)
	} else {
		m.hidePreview()
	}
}

func (m *Model) showPreview(jobID string, index int) {
	job := m.Jobs.Find(jobID)
	if job == nil || index >= len(job.Results) {
		m.log.Errorf("cannot show preview for job %q, result %d", jobID, index)
		return
	}
	name := "[Preview] " + job.Params.Prompt

	layer := m.preview()
	if layer != nil && m.doc.FindLayer(layer.ID()) == nil {
		// preview layer was removed by the user
		layer = nil
		m.setPreview(nil)
	}
	if layer != nil {
		layer.SetName(name)
		m.doc.SetLayerContent(layer, job.Results[index], job.Params.Bounds, true)
		m.doc.MoveToTop(layer)
		return
	}
	layer = m.doc.InsertLayer(name, job.Results[index], job.Params.Bounds)
	layer.SetLocked(true)
	m.setPreview(layer)
}

func (m *Model) hidePreview() {
	if layer := m.preview(); layer != nil {
		m.doc.HideLayer(layer)
	}
}

// ApplyResult promotes the previewed result into a regular document layer.
func (m *Model) ApplyResult(jobID string, index int) error {
	job := m.Jobs.Find(jobID)
	if job == nil || index >= len(job.Results) {
		return ErrInvalidResult
	}
	m.Jobs.Select(jobID, index)

	layer := m.preview()
	if layer == nil {
		return ErrNoPreviewLayer
	}
	m.setPreview(nil)
	layer.SetLocked(false)
	layer.SetName(strings.Replace(layer.Name(), "[Preview]", "[Generated]", 1))
	m.doc.SetActiveLayer(layer)
	m.Jobs.ClearSelection()
	m.Jobs.NotifyUsed(jobID, index)
	return nil
}

func (m *Model) addControlLayer(job *Job, result json.RawMessage) canvas.Layer {
	if job.Control != nil && job.Control.Mode == "pose" && len(result) > 0 {
		svg, err := pose.ToSVG(result, job.Params.Bounds.Extent())
		if err != nil {
			m.log.Errorf("failed to render pose result for job %s: %s", job.ID, err)
		} else {
			return m.doc.InsertVectorLayer(job.Params.Prompt, svg)
		}
	}
	if len(job.Results) > 0 {
		return m.doc.InsertLayer(job.Params.Prompt, job.Results[0], job.Params.Bounds)
	}
	// execution was cached and no image was produced
	return m.doc.ActiveLayer()
}

func (m *Model) addUpscaleLayer(job *Job) {
	if len(job.Results) == 0 {
		m.ReportError("upscaling did not produce an image")
		return
	}
	if layer := m.preview(); layer != nil {
		m.doc.RemoveLayer(layer)
		m.setPreview(nil)
	}
	m.doc.Resize(job.Params.Bounds.Extent())
	m.doc.InsertLayer(job.Params.Prompt, job.Results[0], job.Params.Bounds)
}

// ResolveInpaintMode maps the automatic mode to a concrete strategy; fill
// when there is no selection, otherwise detection from mask geometry.
func (m *Model) ResolveInpaintMode() workflow.InpaintMode {
	if m.Inpaint.Mode != workflow.InpaintAutomatic {
		return m.Inpaint.Mode
	}
	if bounds, ok := m.doc.SelectionBounds(); ok {
		return m.builder.DetectInpaintMode(m.doc.Extent(), bounds)
	}
	return workflow.InpaintFill
}

// SetWorkspace switches the generation mode. Leaving the live workspace
// deactivates the live loop.
func (m *Model) SetWorkspace(ws Workspace) {
	if m.Workspace.Value() == WorkspaceLive && ws != WorkspaceLive {
		m.Live.Toggle(context.Background(), false)
	}
	m.Workspace.Set(ws)
}

func (m *Model) AddControl(control *ControlLayer) {
	m.mu.Lock()
	m.control = append(m.control, control)
	m.mu.Unlock()
}

func (m *Model) Controls() []*ControlLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ControlLayer, len(m.control))
	copy(out, m.control)
	return out
}

func (m *Model) controlInputs(bounds canvas.Bounds) []workflow.ControlInput {
	controls := m.Controls()
	inputs := make([]workflow.ControlInput, 0, len(controls))
	for _, c := range controls {
		inputs = append(inputs, c.controlInput(m.doc, bounds))
	}
	return inputs
}

// currentImage projects the canvas at the given bounds, excluding control
// layers that are not part of the picture and the preview layer.
func (m *Model) currentImage(bounds canvas.Bounds) *canvas.Image {
	var exclude []string
	for _, c := range m.Controls() {
		if !c.PartOfImage() && c.LayerID != "" {
			exclude = append(exclude, c.LayerID)
		}
	}
	if layer := m.preview(); layer != nil {
		exclude = append(exclude, layer.ID())
	}
	return m.doc.GetImage(bounds, exclude)
}

func (m *Model) textInput() workflow.TextInput {
	return workflow.TextInput{
		Positive: m.Prompt.Value(),
		Negative: m.NegativePrompt.Value(),
	}
}

// GenerateSeed draws a fresh random seed.
func (m *Model) GenerateSeed() {
	m.Seed.Set(m.builder.GenerateSeed())
}

// ReportError surfaces a message on the user-visible error property and
// stops the live loop.
func (m *Model) ReportError(message string) {
	m.log.Errorf("%s", message)
	m.Error.Set(message)
	m.Live.deactivate()
}

// ClearError resets the error property. Called at the start of every
// generation operation so stale errors do not outlive a successful submit.
func (m *Model) ClearError() {
	m.Error.Set("")
}

// reportIfErr converts an operation failure into the user-visible error
// property. Transport errors keep their URL and status code.
func (m *Model) reportIfErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		m.ReportError(fmt.Sprintf("%s [url=%s, code=%d]", err.Error(), netErr.URL, netErr.Code))
	} else {
		m.ReportError(err.Error())
	}
	return err
}

func (m *Model) Document() canvas.Document {
	return m.doc
}

func (m *Model) preview() canvas.Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previewLayer
}

func (m *Model) setPreview(layer canvas.Layer) {
	m.mu.Lock()
	m.previewLayer = layer
	m.mu.Unlock()
}

// History returns all finished jobs in submission order, as snapshots so
// callers on other goroutines never see a job mid-transition.
func (m *Model) History() []Job {
	var out []Job
	for _, job := range m.Jobs.Snapshot() {
		if job.State == JobFinished {
			out = append(out, job)
		}
	}
	return out
}
