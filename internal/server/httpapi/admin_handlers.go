package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lettera/lettera/internal/common"
)

func (s *Server) setSessionCookie(c *gin.Context, sessionID string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, sessionID, maxAge, "/", "", s.cookieSecure, true)
}

// handleAdminLogin opens a server-side session. Logging in while already
// holding a session rotates the id, so a fixated cookie dies here.
func (s *Server) handleAdminLogin(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oldSessionID, _ := c.Cookie(common.SessionCookieName)

	record, err := s.users.SessionLogin(c.Request.Context(), input.Username, input.Password, oldSessionID)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredential) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		s.logger.Error(c.Request.Context(), "session login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	s.setSessionCookie(c, record.ID, int(s.sessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"message": "logged in"})
}

func (s *Server) handleAdminLogout(c *gin.Context) {
	sessionID, _ := c.Cookie(common.SessionCookieName)

	if err := s.users.Logout(c.Request.Context(), sessionID); err != nil {
		s.logger.Error(c.Request.Context(), "logout failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	s.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (s *Server) handleDashboard(c *gin.Context) {
	principal := currentPrincipal(c)

	username, err := s.users.GetUsername(c.Request.Context(), principal.UserID)
	if err != nil {
		s.logger.Error(c.Request.Context(), "dashboard lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": username})
}

type changePasswordInput struct {
	CurrentPassword  string `json:"current_password" binding:"required"`
	NewPassword      string `json:"new_password" binding:"required"`
	NewPasswordCheck string `json:"new_password_check" binding:"required"`
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var input changePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.NewPassword != input.NewPasswordCheck {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new passwords do not match"})
		return
	}

	principal := currentPrincipal(c)

	err := s.users.ChangePassword(c.Request.Context(), principal.UserID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, common.ErrInvalidCredential):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		default:
			s.logger.Error(c.Request.Context(), "password change failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
