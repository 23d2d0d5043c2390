package generation

import (
	"sync"
	"time"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/logger"
)

type JobKind string

const (
	JobDiffusion      JobKind = "diffusion"
	JobLivePreview    JobKind = "live_preview"
	JobUpscaling      JobKind = "upscaling"
	JobControlLayer   JobKind = "control_layer"
	JobAnimationFrame JobKind = "animation_frame"
	JobAnimationBatch JobKind = "animation_batch"
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobFinished  JobState = "finished"
	JobCancelled JobState = "cancelled"
)

// FrameRange places an animation job inside a playback range.
type FrameRange struct {
	Index int
	Start int
	End   int
}

type JobParams struct {
	Prompt         string
	NegativePrompt string
	Bounds         canvas.Bounds
	Strength       float64
	Seed           int
	Frame          FrameRange
	AnimationID    string
}

// Job is one tracked request/response cycle with the backend. ID stays
// empty until the enqueue is acknowledged.
type Job struct {
	ID        string
	Kind      JobKind
	State     JobState
	Params    JobParams
	Results   []*canvas.Image
	Control   *ControlLayer
	Timestamp time.Time
}

// JobSelection marks the single previewed result of the queue.
type JobSelection struct {
	JobID string
	Index int
}

// JobQueue is the ordered collection of jobs, insertion order = submission
// order. queued -> running -> finished | cancelled; the last two are
// terminal. All state transitions go through the Notify* methods so that
// observers see consistent state when their callbacks fire.
type JobQueue struct {
	mu        sync.Mutex
	jobs      []*Job
	selection *JobSelection

	startedSubs   []func(*Job)
	finishedSubs  []func(*Job)
	cancelledSubs []func(*Job)
	selectionSubs []func(*JobSelection)
	usedSubs      []func(jobID string, index int)
}

func NewJobQueue() *JobQueue {
	return &JobQueue{}
}

func (q *JobQueue) Add(kind JobKind, params JobParams) *Job {
	job := &Job{
		Kind:      kind,
		State:     JobQueued,
		Params:    params,
		Timestamp: time.Now(),
	}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return job
}

// SetID stores the backend-assigned id once the enqueue is acknowledged.
func (q *JobQueue) SetID(job *Job, id string) {
	q.mu.Lock()
	job.ID = id
	q.mu.Unlock()
}

// Find returns the job with the given backend id, or nil. Jobs whose
// enqueue has not been acknowledged have no id and are never matched.
func (q *JobQueue) Find(id string) *Job {
	if id == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// Jobs returns the live job records. State and results of a live job are
// mutated under the queue lock by the message-handling goroutine, so
// concurrent readers must use Snapshot instead.
func (q *JobQueue) Jobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Snapshot returns value copies of all jobs, taken under the queue lock.
// Safe to read from any goroutine while messages are being handled.
func (q *JobQueue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
		out[i].Results = append([]*canvas.Image(nil), job.Results...)
	}
	return out
}

// QueuedJobs returns the jobs still waiting to start. State is read under
// the queue lock.
func (q *JobQueue) QueuedJobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Job
	for _, job := range q.jobs {
		if job.State == JobQueued {
			out = append(out, job)
		}
	}
	return out
}

func (q *JobQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// AnyExecuting reports whether at least one job is queued or running.
func (q *JobQueue) AnyExecuting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.State == JobQueued || job.State == JobRunning {
			return true
		}
	}
	return false
}

// Remove deletes the job regardless of state. A selection pointing at the
// removed job is cleared.
func (q *JobQueue) Remove(job *Job) {
	var cleared bool
	q.mu.Lock()
	for i, j := range q.jobs {
		if j == job {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			break
		}
	}
	if q.selection != nil && q.selection.JobID == job.ID && job.ID != "" {
		q.selection = nil
		cleared = true
	}
	q.mu.Unlock()
	if cleared {
		q.notifySelection(nil)
	}
}

// NotifyStarted moves a queued job to running. Idempotent: repeated
// progress messages do not re-fire the started event.
func (q *JobQueue) NotifyStarted(job *Job) {
	q.mu.Lock()
	if job.State != JobQueued {
		q.mu.Unlock()
		return
	}
	job.State = JobRunning
	subs := q.startedSubs
	q.mu.Unlock()
	for _, fn := range subs {
		fn(job)
	}
}

// SetResults attaches produced images to a job. Called before
// NotifyFinished so observers of the finished event always see results.
func (q *JobQueue) SetResults(job *Job, images []*canvas.Image) {
	q.mu.Lock()
	job.Results = images
	q.mu.Unlock()
}

func (q *JobQueue) NotifyFinished(job *Job) {
	q.mu.Lock()
	if job.State == JobFinished || job.State == JobCancelled {
		q.mu.Unlock()
		logger.Warnf("job %s already in terminal state %s, ignoring finish", job.ID, job.State)
		return
	}
	job.State = JobFinished
	subs := q.finishedSubs
	q.mu.Unlock()
	for _, fn := range subs {
		fn(job)
	}
}

func (q *JobQueue) NotifyCancelled(job *Job) {
	q.mu.Lock()
	if job.State == JobFinished || job.State == JobCancelled {
		q.mu.Unlock()
		return
	}
	job.State = JobCancelled
	subs := q.cancelledSubs
	q.mu.Unlock()
	for _, fn := range subs {
		fn(job)
	}
}

// NotifyUsed marks a result as applied to the document. Informational
// only, no state change.
func (q *JobQueue) NotifyUsed(jobID string, index int) {
	q.mu.Lock()
	subs := q.usedSubs
	q.mu.Unlock()
	for _, fn := range subs {
		fn(jobID, index)
	}
}

// Select makes (jobID, index) the active selection. At most one result is
// selected; selecting the same pair again does not re-notify.
func (q *JobQueue) Select(jobID string, index int) {
	sel := &JobSelection{JobID: jobID, Index: index}
	q.mu.Lock()
	if q.selection != nil && *q.selection == *sel {
		q.mu.Unlock()
		return
	}
	q.selection = sel
	q.mu.Unlock()
	q.notifySelection(sel)
}

func (q *JobQueue) ClearSelection() {
	q.mu.Lock()
	if q.selection == nil {
		q.mu.Unlock()
		return
	}
	q.selection = nil
	q.mu.Unlock()
	q.notifySelection(nil)
}

func (q *JobQueue) Selection() *JobSelection {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.selection == nil {
		return nil
	}
	sel := *q.selection
	return &sel
}

func (q *JobQueue) notifySelection(sel *JobSelection) {
	q.mu.Lock()
	subs := q.selectionSubs
	q.mu.Unlock()
	for _, fn := range subs {
		fn(sel)
	}
}

func (q *JobQueue) OnStarted(fn func(*Job)) {
	q.mu.Lock()
	q.startedSubs = append(q.startedSubs, fn)
	q.mu.Unlock()
}

func (q *JobQueue) OnFinished(fn func(*Job)) {
	q.mu.Lock()
	q.finishedSubs = append(q.finishedSubs, fn)
	q.mu.Unlock()
}

func (q *JobQueue) OnCancelled(fn func(*Job)) {
	q.mu.Lock()
	q.cancelledSubs = append(q.cancelledSubs, fn)
	q.mu.Unlock()
}

func (q *JobQueue) OnSelectionChanged(fn func(*JobSelection)) {
	q.mu.Lock()
	q.selectionSubs = append(q.selectionSubs, fn)
	q.mu.Unlock()
}

func (q *JobQueue) OnUsed(fn func(jobID string, index int)) {
	q.mu.Lock()
	q.usedSubs = append(q.usedSubs, fn)
	q.mu.Unlock()
}
