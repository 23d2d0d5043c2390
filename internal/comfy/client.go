// Package comfy talks to the diffusion backend: jobs are enqueued over
// HTTP, lifecycle events stream back over a websocket and are pushed into
// the orchestrator's message sink.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/generation"
	"github.com/eikaru/canvasgen/internal/logger"
	"github.com/eikaru/canvasgen/internal/workflow"
)

type Config struct {
	URL             string `mapstructure:"url"`
	DefaultUpscaler string `mapstructure:"defaultUpscaler"`
}

type Client struct {
	baseURL         string
	wsURL           string
	defaultUpscaler string
	httpClient      *http.Client
	conn            *websocket.Conn
	log             *logger.CustomLogger
}

func NewClient(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.URL, "/")
	wsURL := strings.Replace(base, "http", "ws", 1) + "/ws"
	return &Client{
		baseURL:         base,
		wsURL:           wsURL,
		defaultUpscaler: cfg.DefaultUpscaler,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		log:             logger.NewCustomLogger().With("backend", base),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return &generation.NetworkError{URL: c.wsURL, Err: err}
	}
	c.conn = conn
	c.log.Infof("connected to backend event stream")
	return nil
}

// wsEvent is the wire format of one backend event.
type wsEvent struct {
	Type     string          `json:"type"`
	JobID    string          `json:"job_id"`
	Progress float64         `json:"progress"`
	Images   []wsImage       `json:"images"`
	Result   json.RawMessage `json:"result"`
	Error    string          `json:"error"`
}

type wsImage struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

// Listen pumps backend events into the sink until the connection drops or
// the context is cancelled. It blocks; run it on its own goroutine.
func (c *Client) Listen(ctx context.Context, sink func(generation.ClientMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var event wsEvent
		if err := c.conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("backend event stream closed: %w", err)
		}
		msg, ok := convertEvent(event)
		if !ok {
			c.log.Warnf("ignoring unknown backend event type %q", event.Type)
			continue
		}
		sink(msg)
	}
}

func convertEvent(event wsEvent) (generation.ClientMessage, bool) {
	msg := generation.ClientMessage{
		JobID:    event.JobID,
		Progress: event.Progress,
		Result:   event.Result,
		Error:    event.Error,
	}
	switch event.Type {
	case "progress":
		msg.Event = generation.EventProgress
	case "finished":
		msg.Event = generation.EventFinished
	case "interrupted":
		msg.Event = generation.EventInterrupted
	case "error":
		msg.Event = generation.EventError
	default:
		return msg, false
	}
	for _, img := range event.Images {
		msg.Images = append(msg.Images, &canvas.Image{
			Extent: canvas.Extent{Width: img.Width, Height: img.Height},
			Data:   img.Data,
		})
	}
	return msg, true
}

type enqueueRequest struct {
	Workflow *workflow.WorkflowInput `json:"workflow"`
	Front    bool                    `json:"front"`
}

type enqueueResponse struct {
	JobID string `json:"job_id"`
}

// Enqueue submits one workflow and returns the backend-assigned job id.
func (c *Client) Enqueue(ctx context.Context, input *workflow.WorkflowInput, front bool) (string, error) {
	var resp enqueueResponse
	if err := c.post(ctx, "/prompt", enqueueRequest{Workflow: input, Front: front}, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (c *Client) ClearQueue(ctx context.Context) error {
	return c.post(ctx, "/queue", map[string]bool{"clear": true}, nil)
}

func (c *Client) Interrupt(ctx context.Context) error {
	return c.post(ctx, "/interrupt", struct{}{}, nil)
}

func (c *Client) DefaultUpscaler() string {
	return c.defaultUpscaler
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	url := c.baseURL + path
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &generation.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &generation.NetworkError{URL: url, Code: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &generation.NetworkError{URL: url, Code: resp.StatusCode, Err: err}
		}
	}
	return nil
}
