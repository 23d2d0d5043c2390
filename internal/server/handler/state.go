package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eikaru/canvasgen/internal/generation"
)

type stateResponse struct {
	Workspace      string  `json:"workspace"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Strength       float64 `json:"strength"`
	BatchCount     int     `json:"batch_count"`
	Seed           int     `json:"seed"`
	FixedSeed      bool    `json:"fixed_seed"`
	Progress       float64 `json:"progress"`
	Error          string  `json:"error"`
	LiveActive     bool    `json:"live_active"`
	LiveRecording  bool    `json:"live_recording"`
}

func (h *Handler) GetState(c *gin.Context) {
	m := h.model
	c.JSON(200, stateResponse{
		Workspace:      string(m.Workspace.Value()),
		Prompt:         m.Prompt.Value(),
		NegativePrompt: m.NegativePrompt.Value(),
		Strength:       m.Strength.Value(),
		BatchCount:     m.BatchCount.Value(),
		Seed:           m.Seed.Value(),
		FixedSeed:      m.FixedSeed.Value(),
		Progress:       m.Progress.Value(),
		Error:          m.Error.Value(),
		LiveActive:     m.Live.IsActive(),
		LiveRecording:  m.Live.IsRecording(),
	})
}

type stateUpdateRequest struct {
	Workspace      *string  `json:"workspace"`
	Prompt         *string  `json:"prompt"`
	NegativePrompt *string  `json:"negative_prompt"`
	Strength       *float64 `json:"strength"`
	BatchCount     *int     `json:"batch_count"`
	Seed           *int     `json:"seed"`
	FixedSeed      *bool    `json:"fixed_seed"`
	QueueFront     *bool    `json:"queue_front"`
	LiveStrength   *float64 `json:"live_strength"`
	UpscaleFactor  *float64 `json:"upscale_factor"`
	AnimationBatch *bool    `json:"animation_batch"`
	TargetLayer    *string  `json:"target_layer"`
}

func (h *Handler) UpdateState(c *gin.Context) {
	var req stateUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	m := h.model
	if req.Workspace != nil {
		m.SetWorkspace(generation.Workspace(*req.Workspace))
	}
	if req.Prompt != nil {
		m.Prompt.Set(*req.Prompt)
	}
	if req.NegativePrompt != nil {
		m.NegativePrompt.Set(*req.NegativePrompt)
	}
	if req.Strength != nil {
		m.Strength.Set(*req.Strength)
	}
	if req.BatchCount != nil {
		m.BatchCount.Set(*req.BatchCount)
	}
	if req.Seed != nil {
		m.Seed.Set(*req.Seed)
	}
	if req.FixedSeed != nil {
		m.FixedSeed.Set(*req.FixedSeed)
	}
	if req.QueueFront != nil {
		m.QueueFront.Set(*req.QueueFront)
	}
	if req.LiveStrength != nil {
		m.Live.Strength.Set(*req.LiveStrength)
	}
	if req.UpscaleFactor != nil {
		m.Upscale.Factor.Set(*req.UpscaleFactor)
	}
	if req.AnimationBatch != nil {
		m.Animation.BatchMode.Set(*req.AnimationBatch)
	}
	if req.TargetLayer != nil {
		m.Animation.TargetLayer.Set(*req.TargetLayer)
	}
	okStatus(c)
}
