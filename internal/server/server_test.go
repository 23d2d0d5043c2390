package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/generation"
	"github.com/eikaru/canvasgen/internal/workflow"
)

const testAPIKey = "test-key"

// stubClient acknowledges every enqueue with a sequential id.
type stubClient struct {
	mu     sync.Mutex
	nextID int
}

func (c *stubClient) Enqueue(ctx context.Context, input *workflow.WorkflowInput, front bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return fmt.Sprintf("job-%d", c.nextID), nil
}

func (c *stubClient) ClearQueue(ctx context.Context) error { return nil }
func (c *stubClient) Interrupt(ctx context.Context) error  { return nil }
func (c *stubClient) DefaultUpscaler() string              { return "stub-upscaler" }

func newTestRouter(t *testing.T) (*gin.Engine, *generation.Model) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	doc := canvas.NewMemDocument(canvas.Extent{Width: 512, Height: 512})
	model := generation.NewModel(doc, &stubClient{}, workflow.Graph{}, generation.DefaultSettings())
	return InitRouter(testAPIKey, model), model
}

func doRequest(router *gin.Engine, method, path, body string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withKey {
		req.Header.Set("API-KEY", testAPIKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPermissionCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doRequest(router, http.MethodGet, "/state", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/state", "", true); w.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", w.Code)
	}
}

func TestMetricsEndpointNeedsNoKey(t *testing.T) {
	router, _ := newTestRouter(t)
	if w := doRequest(router, http.MethodGet, "/metrics", "", false); w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
}

func TestPprofEndpointRegistered(t *testing.T) {
	router, _ := newTestRouter(t)
	if w := doRequest(router, http.MethodGet, "/debug/pprof/", "", false); w.Code != http.StatusOK {
		t.Errorf("pprof index status = %d, want 200", w.Code)
	}
}

func TestUpdateAndGetState(t *testing.T) {
	router, model := newTestRouter(t)

	body := `{"prompt": "a cabin", "strength": 0.7, "seed": 99, "fixed_seed": true}`
	if w := doRequest(router, http.MethodPut, "/state", body, true); w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body)
	}

	if got := model.Prompt.Value(); got != "a cabin" {
		t.Errorf("prompt = %q", got)
	}
	if got := model.Strength.Value(); got != 0.7 {
		t.Errorf("strength = %v", got)
	}
	if got := model.Seed.Value(); got != 99 {
		t.Errorf("seed = %d", got)
	}

	w := doRequest(router, http.MethodGet, "/state", "", true)
	var state map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state["prompt"] != "a cabin" || state["fixed_seed"] != true {
		t.Errorf("state = %v", state)
	}
}

func TestGenerateAndListJobs(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doRequest(router, http.MethodPost, "/generate", "", true); w.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", w.Code, w.Body)
	}

	w := doRequest(router, http.MethodGet, "/jobs", "", true)
	var resp struct {
		Jobs []struct {
			ID    string `json:"id"`
			Kind  string `json:"kind"`
			State string `json:"state"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(resp.Jobs))
	}
	if resp.Jobs[0].ID != "job-1" || resp.Jobs[0].Kind != "diffusion" || resp.Jobs[0].State != "queued" {
		t.Errorf("job = %+v", resp.Jobs[0])
	}
}

func TestToggleLiveValidation(t *testing.T) {
	router, model := newTestRouter(t)

	if w := doRequest(router, http.MethodPost, "/live", `{}`, true); w.Code != http.StatusBadRequest {
		t.Errorf("status for missing field = %d, want 400", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/live", `{"active": true}`, true); w.Code != http.StatusOK {
		t.Errorf("toggle status = %d: %s", w.Code, w.Body)
	}
	if !model.Live.IsActive() {
		t.Error("live loop should be active")
	}
}

func TestApplyResultNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodPost, "/results/apply", `{"job_id": "nope"}`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "failed" {
		t.Errorf("response = %v", resp)
	}
}

func TestWorkspaceSwitchStopsLive(t *testing.T) {
	router, model := newTestRouter(t)

	doRequest(router, http.MethodPut, "/state", `{"workspace": "live"}`, true)
	doRequest(router, http.MethodPost, "/live", `{"active": true}`, true)
	if !model.Live.IsActive() {
		t.Fatal("live loop should be active")
	}

	doRequest(router, http.MethodPut, "/state", `{"workspace": "generation"}`, true)
	if model.Live.IsActive() {
		t.Error("switching workspaces should stop the live loop")
	}
}
