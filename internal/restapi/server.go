// Package restapi is the optional gin-gonic HTTP façade over pkg/synapse.
// It exposes memory CRUD, hybrid search, user context, maintenance, and
// stats routes under /api/v1, wrapped in a uniform Response envelope with
// optional API-key auth, CORS, and per-route rate limiting.
package restapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/internal/ratelimit"
	"github.com/synapsegraph/synapse/pkg/config"
	"github.com/synapsegraph/synapse/pkg/synapse"
)

// Server is the REST façade over a single *synapse.Engine.
type Server struct {
	router     *gin.Engine
	engine     *synapse.Engine
	config     *config.Config
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds a Server wired to an already-Initialize'd engine.
func NewServer(engine *synapse.Engine, cfg *config.Config) *Server {
	log := logging.GetLogger("restapi")
	log.Info("initializing REST API server")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			MaxAge:        12 * time.Hour,
		}

		switch {
		case len(cfg.RestAPI.AllowOrigins) > 0:
			corsConfig.AllowOrigins = cfg.RestAPI.AllowOrigins
		case cfg.RestAPI.APIKey != "":
			corsConfig.AllowOrigins = []string{
				"http://localhost:*",
				"http://127.0.0.1:*",
				"https://localhost:*",
				"https://127.0.0.1:*",
			}
			corsConfig.AllowWildcard = true
		default:
			corsConfig.AllowAllOrigins = true
		}

		router.Use(cors.New(corsConfig))
	}

	if cfg.RestAPI.APIKey != "" {
		log.Info("API key authentication enabled")
		router.Use(APIKeyAuthMiddleware(cfg.RestAPI.APIKey))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		rlCfg := &ratelimit.Config{
			Enabled: cfg.RateLimit.Enabled,
			Global: ratelimit.LimitConfig{
				RequestsPerSecond: cfg.RateLimit.Global.RequestsPerSecond,
				BurstSize:         cfg.RateLimit.Global.BurstSize,
			},
		}
		for _, tool := range cfg.RateLimit.Tools {
			if tool.Name == "embedder" {
				// The embedder's bucket belongs to the engine facade, not
				// the REST layer's per-route limiter.
				continue
			}
			rlCfg.Tools = append(rlCfg.Tools, ratelimit.ToolLimit{
				Name:              tool.Name,
				RequestsPerSecond: tool.RequestsPerSecond,
				BurstSize:         tool.BurstSize,
			})
		}
		limiter := ratelimit.NewLimiter(rlCfg)
		router.Use(RateLimitMiddleware(limiter))
	}

	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	s := &Server{
		router: router,
		engine: engine,
		config: cfg,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.health)

		api.POST("/memories", s.createMemory)
		api.GET("/memories", s.listMemories)
		api.GET("/memories/search", s.searchMemoriesGET)
		api.POST("/memories/search", s.searchMemoriesPOST)
		api.GET("/memories/:id", s.getMemory)
		api.PUT("/memories/:id", s.updateMemory)
		api.DELETE("/memories/:id", s.deleteMemory)
		api.GET("/memories/:id/related", s.getRelated)

		api.GET("/users/:userID/context", s.getUserContext)

		api.POST("/maintenance/consolidate", s.consolidate)
		api.POST("/maintenance/decay", s.decay)
		api.POST("/maintenance/prune", s.prune)

		api.GET("/stats", s.stats)
	}
}

// Start opens a listener and serves until it fails.
func (s *Server) Start() error {
	addr, err := s.resolveAddr()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("starting REST API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr, err := s.resolveAddr()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown error", "error", err)
		return err
	}
	s.log.Info("REST API server stopped")
	return nil
}

// Router exposes the underlying gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) resolveAddr() (string, error) {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		p, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return "", fmt.Errorf("failed to find available port: %w", err)
		}
		port = p
	}
	return fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port), nil
}

func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}
