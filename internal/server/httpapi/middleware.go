package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/server/auth"
)

const principalKey = "principal"

// requireAuth collects every credential carrier from the request and
// hands them to the authenticator. A backend outage is a 500, never a
// 401: the client's credential may well be valid.
func (s *Server) requireAuth(c *gin.Context) {
	carriers := auth.Carriers{
		Authorization: c.GetHeader(common.AuthorizationHeaderName),
	}
	if cookie, err := c.Cookie(common.TokenCookieName); err == nil {
		carriers.TokenCookie = cookie
	}
	if cookie, err := c.Cookie(common.SessionCookieName); err == nil {
		carriers.SessionID = cookie
	}

	principal, err := s.authenticator.Authenticate(c.Request.Context(), carriers)
	if err != nil {
		if errors.Is(err, common.ErrBackend) {
			s.logger.Error(c.Request.Context(), "authentication backend failure", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.Set(principalKey, principal)
	c.Next()
}

func currentPrincipal(c *gin.Context) auth.Principal {
	return c.MustGet(principalKey).(auth.Principal)
}
