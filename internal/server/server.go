// Package server exposes the coordinator process's operator-facing HTTP
// API: health and readiness probes, a prometheus scrape endpoint, read-only
// assignment status, JWT+RBAC-gated mutating endpoints to trigger a
// rebalance or submit an operator move, and a websocket feed of the
// rebalances and moves completed through this API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brooklin-io/taskassign/internal/assignment/app/orchestrator"
	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/internal/assignment/ports"
	"github.com/brooklin-io/taskassign/internal/server/auth"
	"github.com/brooklin-io/taskassign/pkg/config"
	"github.com/brooklin-io/taskassign/pkg/database"
	"github.com/brooklin-io/taskassign/pkg/logger"
	"github.com/brooklin-io/taskassign/pkg/telemetry"
)

// Server wraps the orchestrator with an HTTP front end.
type Server struct {
	config     *config.Config
	log        logger.Logger
	httpServer *http.Server

	orch     *orchestrator.Orchestrator
	streams  ports.StreamRegistry
	store    ports.CoordinationStore
	enforcer *auth.Enforcer
	jwt      *auth.Manager
	tel      *telemetry.Telemetry
	limiter  *perSubjectLimiter
	dbMonitor *database.DBMonitor

	hub *hub
}

func New(
	cfg *config.Config,
	log logger.Logger,
	orch *orchestrator.Orchestrator,
	streams ports.StreamRegistry,
	store ports.CoordinationStore,
	enforcer *auth.Enforcer,
	jwtManager *auth.Manager,
	tel *telemetry.Telemetry,
	dbMonitor *database.DBMonitor,
) *Server {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	s := &Server{
		config:    cfg,
		log:       log,
		orch:      orch,
		streams:   streams,
		store:     store,
		enforcer:  enforcer,
		jwt:       jwtManager,
		tel:       tel,
		dbMonitor: dbMonitor,
		limiter:   newPerSubjectLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		hub:       newHub(),
	}

	router := s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware())
	router.Use(s.tel.HTTPMiddleware())

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/health/host", s.getHostHealth)
	if s.dbMonitor != nil {
		router.GET("/health/db", s.getDBHealth)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1/clusters/:cluster")
	v1.GET("/groups/:group/assignment", s.authMiddleware(), s.requirePermission(auth.ResourceAssignment, auth.ActionRead), s.getAssignment)
	v1.POST("/rebalance", s.authMiddleware(), s.requirePermission(auth.ResourceRebalance, auth.ActionWrite), s.rateLimitMiddleware(), s.postRebalance)
	v1.POST("/groups/:group/move", s.authMiddleware(), s.requirePermission(auth.ResourceMove, auth.ActionWrite), s.rateLimitMiddleware(), s.postMove)

	router.GET("/ws/rebalances", s.authMiddleware(), s.requirePermission(auth.ResourceAssignment, auth.ActionRead), s.serveWebsocket)

	return router
}

func (s *Server) Start() error {
	s.log.Info("starting coordinator HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down coordinator HTTP server")
	s.hub.closeAll()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// findGroup looks up a group by its task prefix among everything the
// registry knows about for cluster.
func (s *Server) findGroup(ctx context.Context, cluster, taskPrefix string) (*domain.DatastreamGroup, error) {
	groups, err := s.streams.Groups(ctx, cluster)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.TaskPrefix == taskPrefix {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group %q not found in cluster %q", taskPrefix, cluster)
}
