package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lettera/lettera/internal/common"
)

type publishInput struct {
	Title   string `json:"title" binding:"required"`
	Content struct {
		HTML string `json:"html"`
		Text string `json:"text"`
	} `json:"content" binding:"required"`
}

func (s *Server) handlePublish(c *gin.Context) {
	var input publishInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.newsletters.Publish(c.Request.Context(), input.Title, input.Content.HTML, input.Content.Text)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error(c.Request.Context(), "publish failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "newsletter published"})
}
