package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eikaru/canvasgen/internal/generation"
)

// Handler binds the HTTP surface to one document model.
type Handler struct {
	model *generation.Model
}

func New(model *generation.Model) *Handler {
	return &Handler{model: model}
}

func failWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  "failed",
		"message": message,
	})
}

func okStatus(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
