package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lettera/lettera/internal/common"
)

type subscribeInput struct {
	Name  string `json:"name" form:"name" binding:"required"`
	Email string `json:"email" form:"email" binding:"required"`
}

func (s *Server) handleSubscribe(c *gin.Context) {
	var input subscribeInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.subscriptions.Subscribe(c.Request.Context(), input.Name, input.Email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, common.ErrAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email is already subscribed"})
		default:
			s.logger.Error(c.Request.Context(), "subscribe failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "confirmation email sent"})
}

func (s *Server) handleConfirm(c *gin.Context) {
	token := c.Query("subscription_token")

	err := s.subscriptions.Confirm(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, common.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown subscription token"})
		default:
			s.logger.Error(c.Request.Context(), "confirm failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "subscription confirmed"})
}
