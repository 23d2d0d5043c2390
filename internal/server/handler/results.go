package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eikaru/canvasgen/internal/generation"
)

type resultRequest struct {
	JobID string `json:"job_id" binding:"required"`
	Index int    `json:"index"`
}

func (h *Handler) ApplyResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	if err := h.model.ApplyResult(req.JobID, req.Index); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}

func (h *Handler) SaveResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	if err := h.model.SaveResult(req.JobID, req.Index); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}

type jobResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	State   string `json:"state"`
	Prompt  string `json:"prompt"`
	Seed    int    `json:"seed"`
	Results int    `json:"results"`
	Frame   int    `json:"frame,omitempty"`
}

// ListJobs reads job snapshots; the live records are concurrently mutated
// by the backend message pump.
func (h *Handler) ListJobs(c *gin.Context) {
	jobs := h.model.Jobs.Snapshot()
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobResponse{
			ID:      job.ID,
			Kind:    string(job.Kind),
			State:   string(job.State),
			Prompt:  job.Params.Prompt,
			Seed:    job.Params.Seed,
			Results: len(job.Results),
			Frame:   job.Params.Frame.Index,
		})
	}
	var selection *generation.JobSelection
	if sel := h.model.Jobs.Selection(); sel != nil {
		selection = sel
	}
	c.JSON(200, gin.H{"jobs": out, "selection": selection})
}
