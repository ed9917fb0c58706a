// Package api exposes rule parsing and backtesting over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwtly10/tradedsl/internal/backtest"
	"github.com/jwtly10/tradedsl/internal/store"
)

// RunStore is the persistence the server needs. *store.Store implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run store.Run) (string, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Server wires HTTP endpoints around the rule pipeline.
type Server struct {
	Router *gin.Engine

	// Store is optional; without it runs are not persisted and lookups return 503.
	Store    RunStore
	Defaults backtest.Config
}

func NewServer(runs RunStore, defaults backtest.Config) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())        // Panic recovery (first)
	r.Use(RequestIDMiddleware()) // Request ID tracking
	r.Use(RequestLogger())       // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(newIPLimiters(rate.Limit(20), 50)))

	s := &Server{
		Router:   r,
		Store:    runs,
		Defaults: defaults,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.POST("/rules/parse", s.parseRules)
		api.POST("/rules/format", s.formatRules)

		api.POST("/backtests", s.createBacktest)
		api.GET("/backtests", s.listBacktests)
		api.GET("/backtests/:id", s.getBacktest)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
