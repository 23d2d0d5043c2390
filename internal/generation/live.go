package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eikaru/canvasgen/internal/canvas"
)

// LiveWorkspace runs the continuous low-latency feedback loop: while the
// active flag is set, each finished live job immediately triggers the next
// one. Only toggling off, a reported error, or the document losing focus
// stops the loop. Results can optionally be recorded to disk frame by
// frame and imported as an animated layer when recording stops.
type LiveWorkspace struct {
	model *Model

	Strength  *Property[float64]
	HasResult *Property[bool]

	mu           sync.Mutex
	active       bool
	recording    bool
	result       *canvas.Image
	resultBounds canvas.Bounds
	framesFolder string
	frameStart   int
	frameIndex   int
	frames       []string
}

func NewLiveWorkspace(model *Model) *LiveWorkspace {
	w := &LiveWorkspace{
		model:     model,
		Strength:  NewProperty(0.3),
		HasResult: NewProperty(false),
	}
	model.Jobs.OnFinished(w.handleJobFinished)
	return w
}

func (w *LiveWorkspace) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *LiveWorkspace) IsRecording() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recording
}

// Toggle starts or stops the live loop. Turning on immediately submits one
// live generation; turning off also stops any in-progress recording.
func (w *LiveWorkspace) Toggle(ctx context.Context, active bool) error {
	w.mu.Lock()
	if w.active == active {
		w.mu.Unlock()
		return nil
	}
	w.active = active
	w.mu.Unlock()

	if active {
		return w.model.GenerateLive(ctx)
	}
	return w.ToggleRecord(ctx, false)
}

// ToggleRecord starts or stops frame recording. Recording implies an
// active loop; it requires a saved document for the frames folder.
// Stopping imports all accumulated frames as one animated layer.
func (w *LiveWorkspace) ToggleRecord(ctx context.Context, active bool) error {
	w.mu.Lock()
	if w.recording == active {
		w.mu.Unlock()
		return nil
	}
	if active && !w.startRecordingLocked() {
		w.mu.Unlock()
		w.model.ReportError("cannot save recorded frames, document must be saved first")
		return ErrDocumentNotSaved
	}
	w.recording = active
	w.mu.Unlock()

	if active {
		return w.Toggle(ctx, true)
	}
	w.importRecording()
	return w.Toggle(ctx, false)
}

// deactivate stops the loop without submitting anything. Used on reported
// errors so a failing backend does not keep re-triggering itself.
func (w *LiveWorkspace) deactivate() {
	w.mu.Lock()
	wasActive := w.active
	w.active = false
	w.mu.Unlock()
	if wasActive {
		w.ToggleRecord(context.Background(), false)
	}
}

// handleJobFinished stores the live result and, while still active and the
// document still focused, submits the next generation.
func (w *LiveWorkspace) handleJobFinished(job *Job) {
	if job.Kind != JobLivePreview {
		return
	}
	var gotResult bool
	w.mu.Lock()
	if len(job.Results) > 0 {
		w.result = job.Results[0]
		w.resultBounds = job.Params.Bounds
		gotResult = true
	}
	wasActive := w.active
	active := w.active && w.model.doc.IsActive()
	w.active = active
	recording := w.recording
	w.mu.Unlock()

	if gotResult {
		w.HasResult.Set(true)
		if recording {
			w.saveFrame(job.Results[0])
		}
	}
	if active {
		w.model.GenerateLive(context.Background())
	} else if wasActive {
		w.ToggleRecord(context.Background(), false)
	}
}

// Result returns the last live image and the canvas region it covers.
func (w *LiveWorkspace) Result() (*canvas.Image, canvas.Bounds, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result, w.resultBounds, w.result != nil
}

// CopyResultToLayer inserts the current live result as a document layer.
func (w *LiveWorkspace) CopyResultToLayer() error {
	result, bounds, ok := w.Result()
	if !ok {
		return ErrInvalidResult
	}
	name := "[Live] " + w.model.Prompt.Value()
	w.model.doc.InsertLayer(name, result, bounds)
	if w.model.settings.NewSeedAfterApply {
		w.model.GenerateSeed()
	}
	return nil
}

// startRecordingLocked prepares the frames folder next to the document
// file, resuming numbering after frames left by earlier sessions.
func (w *LiveWorkspace) startRecordingLocked() bool {
	filename := w.model.doc.Filename()
	if filename == "" {
		return false
	}
	folder := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".live-frames"
	if err := os.MkdirAll(folder, 0o755); err != nil {
		w.model.log.Errorf("failed to create live frames folder %s: %s", folder, err)
		return false
	}
	w.framesFolder = folder
	for {
		path := filepath.Join(folder, fmt.Sprintf("frame-%d.webp", w.frameIndex))
		if _, err := os.Stat(path); err != nil {
			break
		}
		w.frameIndex++
	}
	w.frameStart = w.frameIndex
	return true
}

func (w *LiveWorkspace) saveFrame(img *canvas.Image) {
	w.mu.Lock()
	folder := w.framesFolder
	index := w.frameIndex
	w.frameIndex++
	w.mu.Unlock()

	path := filepath.Join(folder, fmt.Sprintf("frame-%d.webp", index))
	if err := img.Save(path); err != nil {
		w.model.log.Errorf("failed to save live frame %s: %s", path, err)
		return
	}
	w.mu.Lock()
	w.frames = append(w.frames, path)
	w.mu.Unlock()
}

// importRecording turns the accumulated frames into a new animated layer
// spanning the recorded range and clears the in-memory frame list.
func (w *LiveWorkspace) importRecording() {
	w.mu.Lock()
	frames := w.frames
	start := w.frameStart
	w.frames = nil
	w.mu.Unlock()
	if len(frames) == 0 {
		return
	}

	doc := w.model.doc
	if err := doc.ImportAnimation(frames, start); err != nil {
		w.model.ReportError(fmt.Sprintf("failed to import recorded frames: %s", err))
		return
	}
	if layer := doc.ActiveLayer(); layer != nil {
		name := fmt.Sprintf("[Rec] %d-%d: %s", start, start+len(frames), w.model.Prompt.Value())
		layer.SetName(name)
	}
}
