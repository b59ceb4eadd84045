package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"referral-ledger-go/internal/api"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/push"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP adapter over the referral service
type Server struct {
	referrals *api.ReferralService
	hub       *push.Hub
	router    *gin.Engine
	cfg       models.ServerConfig
}

// New builds the router. hub may be nil, in which case the push channel
// answers 503.
func New(referrals *api.ReferralService, hub *push.Hub, cfg models.ServerConfig) *Server {
	s := &Server{
		referrals: referrals,
		hub:       hub,
		router:    gin.New(),
		cfg:       cfg,
	}

	s.router.Use(gin.Recovery(), requestLogger(), requestMetrics())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/users", s.registerUser)
		v1.GET("/users/:id", s.getUser)
		v1.GET("/users/:id/referrals", s.getReferrals)
		v1.GET("/users/:id/stats", s.getStats)
		v1.GET("/users/:id/tree", s.getTree)
		v1.GET("/users/:id/earnings", s.getEarnings)
		v1.GET("/users/:id/purchases", s.getPurchases)
		v1.GET("/users/:id/updates", s.getUpdates)
		v1.POST("/users/:id/updates/read", s.markAllRead)
		v1.GET("/users/:id/ws", s.subscribe)
		v1.POST("/purchases", s.createPurchase)
		v1.GET("/purchases/:id", s.getPurchase)
		v1.POST("/updates/:id/read", s.markRead)
	}
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
