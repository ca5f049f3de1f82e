// Package rest exposes the blog over HTTP/JSON using gin. Routes are
// protected by the Guard predicates; ownership of posts and comments is
// checked by the services against the stored record.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address string
	engine  *gin.Engine
	logger  logging.Logger
}

// NewServer builds the router. In production gin runs in release mode and
// error responses carry no trace.
func NewServer(address string, production bool, secretKey string, svc Services, l logging.Logger) *Server {
	logger := l.With("module", "http_server")

	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	resp := &responder{production: production, logger: logger}
	h := &handlers{svc: svc, resp: resp}
	registerRoutes(engine, NewGuard(secretKey, resp), h)

	return &Server{address: address, engine: engine, logger: logger}
}

func registerRoutes(r *gin.Engine, g *Guard, h *handlers) {
	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/:userId/verify/:token", h.verify)
	}

	password := api.Group("/password")
	{
		password.POST("/reset-password-link", h.sendResetLink)
		password.GET("/reset-password/:userId/:token", h.checkResetLink)
		password.POST("/reset-password/:userId/:token", h.resetPassword)
	}

	users := api.Group("/users")
	{
		users.GET("/profile", g.AdminOnly(), h.listUsers)
		users.GET("/count", g.AdminOnly(), h.countUsers)
		users.POST("/profile/profile-photo-upload", g.Authenticated(), h.uploadProfilePhoto)
		users.GET("/profile/:id", h.getUserProfile)
		users.PUT("/profile/:id", g.SelfOnly("id"), h.updateUserProfile)
		users.DELETE("/profile/:id", g.SelfOrAdmin("id"), h.deleteUser)
	}

	posts := api.Group("/posts")
	{
		posts.POST("", g.Authenticated(), h.createPost)
		posts.GET("", h.listPosts)
		posts.GET("/count", h.countPosts)
		posts.GET("/:id", h.getPost)
		posts.PUT("/:id", g.Authenticated(), h.updatePost)
		posts.PUT("/update-image/:id", g.Authenticated(), h.updatePostImage)
		posts.PUT("/like/:id", g.Authenticated(), h.toggleLike)
		posts.DELETE("/:id", g.Authenticated(), h.deletePost)
	}

	comments := api.Group("/comments")
	{
		comments.POST("", g.Authenticated(), h.createComment)
		comments.GET("", g.AdminOnly(), h.listComments)
		comments.PUT("/:id", g.Authenticated(), h.updateComment)
		comments.DELETE("/:id", g.Authenticated(), h.deleteComment)
	}

	categories := api.Group("/categories")
	{
		categories.POST("", g.AdminOnly(), h.createCategory)
		categories.GET("", h.listCategories)
		categories.DELETE("/:id", g.AdminOnly(), h.deleteCategory)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Message: "not found - " + c.Request.URL.Path})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
