// Package devserver is an in-memory implementation of the feed REST API and
// its websocket push channel, for local development and integration tests.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config configures a Server
type Config struct {
	Addr       string
	JWTSecret  []byte
	TokenTTL   time.Duration
	BcryptCost int
}

// ConfigFromConfig reads the server.* keys
func ConfigFromConfig() Config {
	return Config{
		Addr:      config.GetString("server.addr"),
		JWTSecret: []byte(config.GetString("server.jwt_secret")),
	}
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":4000"
	}
	if len(c.JWTSecret) == 0 {
		c.JWTSecret = []byte("feedsync-dev-secret")
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	return c
}

// Server serves the API from memory
type Server struct {
	cfg    Config
	log    *zap.Logger
	docs   *documents
	hub    *Hub
	router *gin.Engine
}

// New creates a server with an empty database
func New(cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	metrics.Initialize()

	s := &Server{
		cfg:  cfg.withDefaults(),
		log:  log,
		docs: newDocuments(),
		hub:  newHub(log),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(requestMetrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": s.hub.Connections()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/signup", s.signup)
		authGroup.POST("/login", s.login)

		authed := apiGroup.Group("")
		authed.Use(s.authMiddleware())

		authed.GET("/ws", s.hub.serve)

		posts := authed.Group("/posts")
		posts.GET("", s.listPosts)
		posts.POST("", s.createPost)
		posts.GET("/:id", s.getPost)
		posts.PATCH("/:id", s.updatePost)
		posts.DELETE("/:id", s.deletePost)
		posts.POST("/:id/like", s.likePost)
		posts.GET("/:id/comments", s.listComments)
		posts.POST("/:id/comments", s.createComment)
		posts.PATCH("/:id/comments/:commentId", s.updateComment)
		posts.DELETE("/:id/comments/:commentId", s.deleteComment)

		chats := authed.Group("/chats")
		chats.GET("", s.listChats)
		chats.POST("", s.openChat)
		chats.GET("/:id/messages", s.listMessages)
		chats.POST("/:id/messages", s.sendMessage)

		users := authed.Group("/users")
		users.GET("/me", s.getMe)
		users.PATCH("/me", s.updateMe)
		users.GET("/search", s.searchUsers)
		users.GET("/:id", s.getUser)
		users.POST("/:id/follow", s.toggleFollow)
	}

	return r
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Dev server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down dev server")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
