// Package api exposes the engine over HTTP: plan creation/listing/execution
// and agent status/health. Server and its gin.Context handlers follow the
// shape of the teacher's earlier gin-based API (Server wrapping collaborator
// services, gin.H{} JSON error envelopes, a dedicated request struct per
// POST body) before it moved to echo.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loopagent/core/pkg/lifecycle"
	"github.com/loopagent/core/pkg/planner"
)

// Server wires the HTTP surface to the Planner and Lifecycle Controller.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	planner   *planner.Planner
	lifecycle *lifecycle.Controller
}

// NewServer builds a Server with its routes registered. ginMode is passed
// straight to gin.SetMode ("debug", "release", or "test").
func NewServer(p *planner.Planner, c *lifecycle.Controller, ginMode string) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	s := &Server{
		engine:    gin.Default(),
		planner:   p,
		lifecycle: c,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/status", s.status)

	plans := s.engine.Group("/plans")
	plans.GET("", s.listPlans)
	plans.POST("", s.createPlan)
	plans.GET("/:id", s.getPlan)
	plans.POST("/:id/execute", s.executePlan)
	plans.POST("/:id/cancel", s.cancelPlan)
}

// Start listens and serves on addr, blocking until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	slog.Info("api: listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"agent":  s.lifecycle.IsRunning(),
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.lifecycle.Status())
}

type createPlanRequest struct {
	Goal    string            `json:"goal" binding:"required"`
	Context map[string]string `json:"context"`
}

func (s *Server) createPlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	plan, err := s.planner.CreatePlan(ctx, req.Goal, req.Context)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, s.planner.ListPlans())
}

func (s *Server) getPlan(c *gin.Context) {
	plan := s.planner.GetPlan(c.Param("id"))
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) executePlan(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	execution, err := s.planner.ExecutePlan(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, execution)
}

func (s *Server) cancelPlan(c *gin.Context) {
	if err := s.planner.CancelPlan(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
