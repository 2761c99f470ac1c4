// Package httpapi exposes the application over HTTP: the JSON API under
// /api/v1 and the session-backed admin surface under /admin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lettera/lettera/internal/logging"
	"github.com/lettera/lettera/internal/server/auth"
	"github.com/lettera/lettera/internal/server/newsletters"
	"github.com/lettera/lettera/internal/server/subscriptions"
	"github.com/lettera/lettera/internal/server/users"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address       string
	logger        logging.Logger
	engine        *gin.Engine
	authenticator *auth.Authenticator

	users         *users.Service
	subscriptions *subscriptions.Service
	newsletters   *newsletters.Service

	sessionTTL   time.Duration
	cookieSecure bool
}

func NewServer(
	address string,
	logger logging.Logger,
	authenticator *auth.Authenticator,
	us *users.Service,
	ss *subscriptions.Service,
	ns *newsletters.Service,
	sessionTTL time.Duration,
	cookieSecure bool,
) *Server {
	s := &Server{
		address:       address,
		logger:        logger.With("module", "http_server"),
		authenticator: authenticator,
		users:         us,
		subscriptions: ss,
		newsletters:   ns,
		sessionTTL:    sessionTTL,
		cookieSecure:  cookieSecure,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	s.registerRoutes(engine)
	s.engine = engine

	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/health_check", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := engine.Group("/api/v1")
	{
		api.POST("/users", s.handleRegister)
		api.POST("/users/login", s.handleLogin)
		api.GET("/whoami", s.requireAuth, s.handleWhoami)

		api.POST("/subscriptions", s.handleSubscribe)
		api.GET("/subscriptions/confirm", s.handleConfirm)

		api.POST("/newsletters", s.requireAuth, s.handlePublish)
	}

	admin := engine.Group("/admin")
	{
		admin.POST("/login", s.handleAdminLogin)
		admin.POST("/logout", s.requireAuth, s.handleAdminLogout)
		admin.GET("/dashboard", s.requireAuth, s.handleDashboard)
		admin.POST("/password", s.requireAuth, s.handleChangePassword)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.engine}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
