package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/workflow"
)

type ClientEvent string

const (
	EventProgress    ClientEvent = "progress"
	EventFinished    ClientEvent = "finished"
	EventInterrupted ClientEvent = "interrupted"
	EventError       ClientEvent = "error"
)

// ClientMessage is one asynchronous event pushed by the backend transport.
// Messages for a job arrive in the order progress* (finished | interrupted
// | error); duplicates are tolerated by the handler.
type ClientMessage struct {
	Event    ClientEvent
	JobID    string
	Progress float64
	Images   []*canvas.Image
	Result   json.RawMessage
	Error    string
}

// Client is the compute-backend collaborator.
type Client interface {
	Enqueue(ctx context.Context, input *workflow.WorkflowInput, front bool) (string, error)
	ClearQueue(ctx context.Context) error
	Interrupt(ctx context.Context) error
	DefaultUpscaler() string
}

// NetworkError is a transport failure during enqueue or polling.
type NetworkError struct {
	URL  string
	Code int
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %v", e.URL, e.Code, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
