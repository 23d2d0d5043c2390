package handler

import "github.com/gin-gonic/gin"

type toggleRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) ToggleLive(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	if err := h.model.Live.Toggle(c.Request.Context(), *req.Active); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}

func (h *Handler) ToggleRecord(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	if err := h.model.Live.ToggleRecord(c.Request.Context(), *req.Active); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}

func (h *Handler) CopyLiveResult(c *gin.Context) {
	if err := h.model.Live.CopyResultToLayer(); err != nil {
		failWithMessage(c, 400, err.Error())
		return
	}
	okStatus(c)
}
