package generation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/workflow"
)

// fakeClient records enqueued workflows and hands out sequential job ids.
type fakeClient struct {
	mu             sync.Mutex
	enqueued       []*workflow.WorkflowInput
	ids            []string
	nextID         int
	failWith       error
	clearCalls     int
	interruptCalls int
}

func (c *fakeClient) Enqueue(ctx context.Context, input *workflow.WorkflowInput, front bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return "", c.failWith
	}
	c.nextID++
	id := fmt.Sprintf("job-%d", c.nextID)
	in := *input
	c.enqueued = append(c.enqueued, &in)
	c.ids = append(c.ids, id)
	return id, nil
}

func (c *fakeClient) ClearQueue(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCalls++
	return nil
}

func (c *fakeClient) Interrupt(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptCalls++
	return nil
}

func (c *fakeClient) DefaultUpscaler() string { return "test-upscaler" }

func (c *fakeClient) enqueueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enqueued)
}

func (c *fakeClient) lastInput() *workflow.WorkflowInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.enqueued) == 0 {
		return nil
	}
	return c.enqueued[len(c.enqueued)-1]
}

// fakeBuilder is the default graph builder with a deterministic seed.
type fakeBuilder struct {
	workflow.Graph
	seed int
}

func (b fakeBuilder) GenerateSeed() int { return b.seed }

func newTestModel(t *testing.T) (*Model, *canvas.MemDocument, *fakeClient) {
	t.Helper()
	doc := canvas.NewMemDocument(canvas.Extent{Width: 1024, Height: 1024})
	client := &fakeClient{}
	model := NewModel(doc, client, fakeBuilder{seed: 4242}, DefaultSettings())
	return model, doc, client
}

func finishJob(m *Model, id string, images ...*canvas.Image) {
	m.HandleMessage(ClientMessage{Event: EventFinished, JobID: id, Images: images})
}

func testImage(tag string) *canvas.Image {
	return &canvas.Image{
		Extent: canvas.Extent{Width: 1024, Height: 1024},
		Data:   []byte("test-image-" + tag),
	}
}
