package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/database"
	"github.com/emilythestrangee/post-voting/backend/internal/handlers"
	"github.com/emilythestrangee/post-voting/backend/internal/middleware"
)

type Server struct {
	db        database.Service
	handler   *handlers.Handler
	jwtSecret []byte
}

// NewServer builds the HTTP server around an already connected database and
// the handler dependencies.
func NewServer(cfg config.Config, db database.Service, deps handlers.Deps) *http.Server {
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		db:        db,
		handler:   handlers.NewHandler(deps),
		jwtSecret: deps.JWTSecret,
	}

	return &http.Server{
		Addr:        fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:     s.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// SSE streams stay open, so there is no write timeout.
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	h := s.handler
	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", h.Auth.Register)
		api.POST("/login", h.Auth.Login)

		// Public reads
		api.GET("/posts", h.Post.GetPosts)
		api.GET("/posts/:id", h.Post.GetPost)
		api.GET("/posts/:id/voters", h.Vote.Voters)
		api.GET("/posts/:id/comments", middleware.OptionalAuthMiddleware(s.jwtSecret), h.Comment.GetComments)
		api.GET("/users/:id", h.User.GetUserProfile)
		api.GET("/events", h.Events.Stream)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.jwtSecret))
		{
			protected.GET("/me", h.Auth.GetMe)

			protected.POST("/posts", h.Post.CreatePost)
			protected.DELETE("/posts/:id", h.Post.DeletePost)

			protected.POST("/posts/:id/comments", h.Comment.CreateComment)
			protected.PUT("/comments/:commentId", h.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", h.Comment.DeleteComment)

			protected.POST("/votes", h.Vote.Vote)
			protected.DELETE("/votes", h.Vote.Unvote)
			protected.DELETE("/users/:id/votes", h.User.PurgeVotes)
		}
	}

	return r
}
