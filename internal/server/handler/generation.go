package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eikaru/canvasgen/internal/generation"
)

// Generate enqueues a one-shot generation burst. The request returns once
// all jobs are acknowledged; completion is observable through /jobs.
func (h *Handler) Generate(c *gin.Context) {
	if err := h.model.Generate(c.Request.Context()); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}

type controlLayerRequest struct {
	Mode     string  `json:"mode" binding:"required"`
	LayerID  string  `json:"layer_id"`
	Strength float64 `json:"strength"`
}

func (h *Handler) GenerateControlLayer(c *gin.Context) {
	var req controlLayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	control := &generation.ControlLayer{
		Mode:     req.Mode,
		LayerID:  req.LayerID,
		Strength: req.Strength,
	}
	h.model.AddControl(control)
	job, err := h.model.GenerateControlLayer(c.Request.Context(), control)
	if err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	c.JSON(200, gin.H{"status": "ok", "job_id": job.ID})
}

func (h *Handler) Upscale(c *gin.Context) {
	if err := h.model.UpscaleImage(c.Request.Context()); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}

type cancelRequest struct {
	Active bool `json:"active"`
	Queued bool `json:"queued"`
}

func (h *Handler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	if err := h.model.Cancel(c.Request.Context(), req.Active, req.Queued); err != nil {
		failWithMessage(c, 502, err.Error())
		return
	}
	okStatus(c)
}

func (h *Handler) GenerateAnimation(c *gin.Context) {
	if err := h.model.Animation.Generate(c.Request.Context()); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}
