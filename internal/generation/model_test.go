package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/workflow"
)

func TestGenerateBatchSeedSequence(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.FixedSeed.Set(true)
	m.Seed.Set(100)
	m.BatchCount.Set(4)

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// batch member i gets base + i*batchSize
	want := []int{100, 104, 108, 112}
	if client.enqueueCount() != len(want) {
		t.Fatalf("enqueued = %d jobs, want %d", client.enqueueCount(), len(want))
	}
	for i, input := range client.enqueued {
		if input.Seed != want[i] {
			t.Errorf("input %d seed = %d, want %d", i, input.Seed, want[i])
		}
	}
	for i, job := range m.Jobs.Jobs() {
		if job.Params.Seed != want[i] {
			t.Errorf("job %d seed = %d, want %d", i, job.Params.Seed, want[i])
		}
		if job.ID == "" {
			t.Errorf("job %d has no acknowledged id", i)
		}
	}
}

func TestGenerateDrawsFreshSeed(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.Seed.Set(7)
	m.FixedSeed.Set(false)

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := client.lastInput().Seed; got != 4242 {
		t.Errorf("seed = %d, want the freshly generated 4242", got)
	}
}

func TestGenerateFullCanvas(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	input := client.lastInput()
	if input.Kind != workflow.KindGenerate {
		t.Errorf("kind = %s, want %s", input.Kind, workflow.KindGenerate)
	}
	if input.Image != nil {
		t.Error("full-strength generation without a mask should not send an image")
	}
	want := canvas.Bounds{X: 0, Y: 0, Width: 1024, Height: 1024}
	if got := m.Jobs.Jobs()[0].Params.Bounds; got != want {
		t.Errorf("job bounds = %s, want %s", got, want)
	}
}

func TestGenerateRefinesWithPartialStrength(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.Strength.Set(0.6)

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	input := client.lastInput()
	if input.Kind != workflow.KindRefine {
		t.Errorf("kind = %s, want %s", input.Kind, workflow.KindRefine)
	}
	if input.Image == nil {
		t.Error("refinement needs the current canvas image")
	}
	if input.Strength != 0.6 {
		t.Errorf("strength = %v, want 0.6", input.Strength)
	}
}

func TestGenerateInpaintRegion(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)
	doc.SetSelection(&canvas.Bounds{X: 100, Y: 100, Width: 200, Height: 200})

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	input := client.lastInput()
	if input.Kind != workflow.KindInpaint {
		t.Errorf("kind = %s, want %s", input.Kind, workflow.KindInpaint)
	}
	if input.Inpaint == nil {
		t.Fatal("inpaint params missing")
	}
	// selection grown by 5% to (90,90 220x220); the workflow sees the mask
	// relative to the padded working region starting at (75,75)
	if want := (canvas.Bounds{X: 15, Y: 15, Width: 220, Height: 220}); input.Inpaint.TargetBounds != want {
		t.Errorf("workflow mask bounds = %s, want %s", input.Inpaint.TargetBounds, want)
	}
	job := m.Jobs.Jobs()[0]
	if want := (canvas.Bounds{X: 90, Y: 90, Width: 220, Height: 220}); job.Params.Bounds != want {
		t.Errorf("job bounds = %s, want %s", job.Params.Bounds, want)
	}
	// interior selection resolves to the fill strategy
	if input.Inpaint.Mode != workflow.InpaintFill {
		t.Errorf("inpaint mode = %s, want %s", input.Inpaint.Mode, workflow.InpaintFill)
	}
	if !input.Inpaint.UseInpaintModel {
		t.Error("full strength should use the inpaint model")
	}
}

func TestGenerateRejectsBadColorMode(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)
	doc.SetColorMode(false, "incompatible color mode: CMYK")

	err := m.Generate(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unsupported color mode")
	}
	if client.enqueueCount() != 0 {
		t.Errorf("enqueued = %d jobs, want 0", client.enqueueCount())
	}
	if got := m.Error.Value(); got != "incompatible color mode: CMYK" {
		t.Errorf("error property = %q", got)
	}
}

func TestGenerateReportsNetworkError(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	client.failWith = &NetworkError{
		URL:  "http://backend:8188/prompt",
		Code: 503,
		Err:  errors.New("service unavailable"),
	}

	if err := m.Generate(context.Background()); err == nil {
		t.Fatal("expected enqueue failure to propagate")
	}
	got := m.Error.Value()
	if !strings.Contains(got, "url=http://backend:8188/prompt") || !strings.Contains(got, "code=503") {
		t.Errorf("error property = %q, want url and status code included", got)
	}
	// the job stays queued without an id; no message will ever match it
	jobs := m.Jobs.Jobs()
	if len(jobs) != 1 || jobs[0].ID != "" || jobs[0].State != JobQueued {
		t.Errorf("jobs after failed enqueue = %+v", jobs)
	}
}

func TestClearErrorOnNextGeneration(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestModel(t)
	m.ReportError("previous failure")

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.Error.Value(); got != "" {
		t.Errorf("error property = %q, want cleared", got)
	}
}

func TestHandleMessageLifecycle(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)
	m.Prompt.Set("a forest")

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := client.ids[0]
	job := m.Jobs.Find(id)

	m.HandleMessage(ClientMessage{Event: EventProgress, JobID: id, Progress: 0.4})
	if job.State != JobRunning {
		t.Errorf("state after progress = %s, want %s", job.State, JobRunning)
	}
	if got := m.Progress.Value(); got != 0.4 {
		t.Errorf("progress = %v, want 0.4", got)
	}

	finishJob(m, id, testImage("result"))
	if job.State != JobFinished {
		t.Errorf("state after finish = %s, want %s", job.State, JobFinished)
	}
	if got := m.Progress.Value(); got != 1 {
		t.Errorf("progress = %v, want 1", got)
	}
	if len(job.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(job.Results))
	}

	// auto-preview selects the first finished result
	sel := m.Jobs.Selection()
	if sel == nil || sel.JobID != id || sel.Index != 0 {
		t.Fatalf("selection = %+v, want job %s index 0", sel, id)
	}
	layers := doc.Layers()
	if len(layers) != 1 {
		t.Fatalf("layers = %d, want 1 preview layer", len(layers))
	}
	preview := layers[0].(*canvas.MemLayer)
	if preview.Name() != "[Preview] a forest" {
		t.Errorf("preview layer name = %q", preview.Name())
	}
	if !preview.Locked() {
		t.Error("preview layer should be locked")
	}
}

func TestHandleMessageUnknownJob(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestModel(t)

	m.HandleMessage(ClientMessage{Event: EventFinished, JobID: "nope", Images: []*canvas.Image{testImage("x")}})
	if got := m.Error.Value(); got != "" {
		t.Errorf("unknown job id set the error property: %q", got)
	}
	if m.Jobs.Count() != 0 {
		t.Errorf("queue count = %d, want 0", m.Jobs.Count())
	}
}

func TestHandleMessageInterrupted(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := client.ids[0]
	job := m.Jobs.Find(id)

	m.HandleMessage(ClientMessage{Event: EventProgress, JobID: id, Progress: 0.5})
	m.HandleMessage(ClientMessage{Event: EventInterrupted, JobID: id})

	if job.State != JobCancelled {
		t.Errorf("state = %s, want %s", job.State, JobCancelled)
	}
	if got := m.Progress.Value(); got != 0 {
		t.Errorf("progress = %v, want reset to 0", got)
	}
}

func TestHandleMessageServerError(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := client.ids[0]

	m.HandleMessage(ClientMessage{Event: EventError, JobID: id, Error: "out of memory"})

	if job := m.Jobs.Find(id); job.State != JobCancelled {
		t.Errorf("state = %s, want %s", job.State, JobCancelled)
	}
	if got := m.Error.Value(); got != "server execution error: out of memory" {
		t.Errorf("error property = %q", got)
	}
}

func TestCancelQueued(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.BatchCount.Set(2)
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if err := m.Cancel(context.Background(), false, true); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if client.clearCalls != 1 {
		t.Errorf("ClearQueue calls = %d, want 1", client.clearCalls)
	}
	if m.Jobs.Count() != 0 {
		t.Errorf("queue count = %d, want 0", m.Jobs.Count())
	}

	// nothing queued anymore, no backend round trip
	if err := m.Cancel(context.Background(), false, true); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if client.clearCalls != 1 {
		t.Errorf("ClearQueue calls = %d, want still 1", client.clearCalls)
	}
}

func TestCancelActive(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)

	// no executing job, interrupt is skipped
	if err := m.Cancel(context.Background(), true, false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if client.interruptCalls != 0 {
		t.Errorf("Interrupt calls = %d, want 0", client.interruptCalls)
	}

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	m.HandleMessage(ClientMessage{Event: EventProgress, JobID: client.ids[0], Progress: 0.2})

	if err := m.Cancel(context.Background(), true, false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if client.interruptCalls != 1 {
		t.Errorf("Interrupt calls = %d, want 1", client.interruptCalls)
	}
	// the job stays until the backend confirms the interruption
	if m.Jobs.Count() != 1 {
		t.Errorf("queue count = %d, want 1", m.Jobs.Count())
	}
}

func TestApplyResult(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)
	m.Prompt.Set("a castle")
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := client.ids[0]
	finishJob(m, id, testImage("result"))

	if err := m.ApplyResult(id, 0); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}

	layer := doc.ActiveLayer().(*canvas.MemLayer)
	if layer.Name() != "[Generated] a castle" {
		t.Errorf("layer name = %q", layer.Name())
	}
	if layer.Locked() {
		t.Error("applied layer should be unlocked")
	}
	if m.Jobs.Selection() != nil {
		t.Error("selection should be cleared after apply")
	}

	if err := m.ApplyResult(id, 5); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("out-of-range index error = %v, want %v", err, ErrInvalidResult)
	}
	if err := m.ApplyResult("missing", 0); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("unknown job error = %v, want %v", err, ErrInvalidResult)
	}
}

func TestApplyResultRecordsUsage(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	var usedJob string
	var usedIndex int
	m.Jobs.OnUsed(func(jobID string, index int) { usedJob, usedIndex = jobID, index })

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := client.ids[0]
	finishJob(m, id, testImage("a"), testImage("b"))

	if err := m.ApplyResult(id, 1); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if usedJob != id || usedIndex != 1 {
		t.Errorf("used event = (%q, %d), want (%q, 1)", usedJob, usedIndex, id)
	}
}

func TestUpscaleImage(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)

	if err := m.UpscaleImage(context.Background()); err != nil {
		t.Fatalf("UpscaleImage: %v", err)
	}
	input := client.lastInput()
	if input.Kind != workflow.KindUpscaleTiled {
		t.Errorf("kind = %s, want %s", input.Kind, workflow.KindUpscaleTiled)
	}
	if input.UpscaleFactor != 2.0 {
		t.Errorf("factor = %v, want 2.0", input.UpscaleFactor)
	}

	job := m.Jobs.Jobs()[0]
	if want := (canvas.Bounds{X: 0, Y: 0, Width: 2048, Height: 2048}); job.Params.Bounds != want {
		t.Errorf("job bounds = %s, want %s", job.Params.Bounds, want)
	}

	finishJob(m, client.ids[0], testImage("upscaled"))
	if got := doc.Extent(); got != (canvas.Extent{Width: 2048, Height: 2048}) {
		t.Errorf("document extent = %s, want 2048x2048", got)
	}
	if len(doc.Layers()) != 1 {
		t.Errorf("layers = %d, want the upscaled layer", len(doc.Layers()))
	}
	// upscale jobs leave the queue once applied
	if m.Jobs.Count() != 0 {
		t.Errorf("queue count = %d, want 0", m.Jobs.Count())
	}
}

func TestUpscaleImageWithoutDiffusion(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.Upscale.UseDiffusion.Set(false)
	m.Upscale.Factor.Set(4.0)

	if err := m.UpscaleImage(context.Background()); err != nil {
		t.Fatalf("UpscaleImage: %v", err)
	}
	input := client.lastInput()
	if input.Kind != workflow.KindUpscaleSimple {
		t.Errorf("kind = %s, want %s", input.Kind, workflow.KindUpscaleSimple)
	}
	if input.UpscaleModel != "test-upscaler" {
		t.Errorf("upscale model = %q, want the client default", input.UpscaleModel)
	}
	if input.UpscaleFactor != 4.0 {
		t.Errorf("factor = %v, want 4.0", input.UpscaleFactor)
	}
}

func TestGenerateControlLayer(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)
	control := &ControlLayer{Mode: "scribble", Strength: 1.0}
	m.AddControl(control)

	job, err := m.GenerateControlLayer(context.Background(), control)
	if err != nil {
		t.Fatalf("GenerateControlLayer: %v", err)
	}
	if job.Kind != JobControlLayer {
		t.Errorf("job kind = %s, want %s", job.Kind, JobControlLayer)
	}
	if input := client.lastInput(); input.ControlMode != "scribble" {
		t.Errorf("control mode = %q, want scribble", input.ControlMode)
	}

	finishJob(m, job.ID, testImage("scribble-map"))

	layers := doc.Layers()
	if len(layers) != 1 {
		t.Fatalf("layers = %d, want 1", len(layers))
	}
	if control.ResultLayerID != layers[0].ID() {
		t.Error("control layer should reference the inserted result layer")
	}
	if m.Jobs.Count() != 0 {
		t.Errorf("queue count = %d, want control job removed", m.Jobs.Count())
	}
}

func TestControlInputsConditionGeneration(t *testing.T) {
	t.Parallel()
	m, doc, client := newTestModel(t)
	layer := doc.InsertLayer("sketch", testImage("sketch"), canvas.FullBounds(doc.Extent()))
	m.AddControl(&ControlLayer{Mode: "scribble", LayerID: layer.ID(), Strength: 0.8})

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	input := client.lastInput()
	if len(input.Control) != 1 {
		t.Fatalf("control inputs = %d, want 1", len(input.Control))
	}
	if input.Control[0].Mode != "scribble" || input.Control[0].Strength != 0.8 {
		t.Errorf("control input = %+v", input.Control[0])
	}
	if input.Control[0].Image == nil {
		t.Error("control input should carry the layer image")
	}
}

func TestResolveInpaintMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mode      workflow.InpaintMode
		selection *canvas.Bounds
		want      workflow.InpaintMode
	}{
		{
			name: "explicit mode passes through",
			mode: workflow.InpaintRemoveObject,
			want: workflow.InpaintRemoveObject,
		},
		{
			name: "automatic without selection fills",
			mode: workflow.InpaintAutomatic,
			want: workflow.InpaintFill,
		},
		{
			name:      "automatic interior selection fills",
			mode:      workflow.InpaintAutomatic,
			selection: &canvas.Bounds{X: 200, Y: 200, Width: 100, Height: 100},
			want:      workflow.InpaintFill,
		},
		{
			name:      "automatic border selection expands",
			mode:      workflow.InpaintAutomatic,
			selection: &canvas.Bounds{X: 0, Y: 0, Width: 100, Height: 100},
			want:      workflow.InpaintExpand,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, doc, _ := newTestModel(t)
			m.Inpaint.Mode = tt.mode
			doc.SetSelection(tt.selection)
			if got := m.ResolveInpaintMode(); got != tt.want {
				t.Errorf("mode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetWorkspaceStopsLive(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestModel(t)
	m.SetWorkspace(WorkspaceLive)
	if err := m.Live.Toggle(context.Background(), true); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	m.SetWorkspace(WorkspaceGeneration)
	if m.Live.IsActive() {
		t.Error("leaving the live workspace should deactivate the loop")
	}
}

func TestProgressResetsForNewBurst(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	finishJob(m, client.ids[0], testImage("a"))
	if got := m.Progress.Value(); got != 1 {
		t.Fatalf("progress = %v, want 1", got)
	}

	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.Progress.Value(); got != 0 {
		t.Errorf("progress = %v, want reset to 0 for a fresh burst", got)
	}
}

func TestSnapshotReadsDuringMessageHandling(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.BatchCount.Set(16)
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// drive the full lifecycle from one goroutine while another reads job
	// state the way the HTTP job listing does
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, id := range client.ids {
			m.HandleMessage(ClientMessage{Event: EventProgress, JobID: id, Progress: 0.5})
			m.HandleMessage(ClientMessage{Event: EventFinished, JobID: id, Images: []*canvas.Image{testImage(id)}})
		}
	}()

	for pumping := true; pumping; {
		for _, job := range m.Jobs.Snapshot() {
			if job.State == JobFinished && len(job.Results) == 0 {
				t.Error("finished job observed without results")
			}
		}
		select {
		case <-done:
			pumping = false
		default:
		}
	}

	var finished int
	for _, job := range m.Jobs.Snapshot() {
		if job.State == JobFinished {
			finished++
		}
	}
	if finished != 16 {
		t.Errorf("finished jobs = %d, want 16", finished)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()
	m, _, client := newTestModel(t)
	m.BatchCount.Set(2)
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	finishJob(m, client.ids[0], testImage("a"))

	history := m.History()
	if len(history) != 1 {
		t.Fatalf("history = %d jobs, want 1", len(history))
	}
	if history[0].ID != client.ids[0] {
		t.Errorf("history job = %s, want %s", history[0].ID, client.ids[0])
	}
}
