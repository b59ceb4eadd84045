package server

import (
	"net/http"
	"strconv"

	"referral-ledger-go/internal/api"
	"referral-ledger-go/internal/graph"
	"referral-ledger-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type purchaseRequest struct {
	UserId string          `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.referrals.HealthCheck(c.Request.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) registerUser(c *gin.Context) {
	var req models.RegisterUserParams
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, err := s.referrals.RegisterUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.referrals.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getReferrals(c *gin.Context) {
	referrals, err := s.referrals.GetUserReferrals(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, referrals)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.referrals.GetReferralStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getTree answers null for an unknown root
func (s *Server) getTree(c *gin.Context) {
	depth, ok := intQuery(c, "depth", graph.DefaultTreeDepth)
	if !ok {
		return
	}

	tree, err := s.referrals.GetReferralTree(c.Request.Context(), c.Param("id"), depth)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (s *Server) getEarnings(c *gin.Context) {
	earnings, err := s.referrals.GetEarnings(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, earnings)
}

func (s *Server) getPurchases(c *gin.Context) {
	purchases, err := s.referrals.GetPurchases(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

func (s *Server) getPurchase(c *gin.Context) {
	detail, err := s.referrals.GetPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) getUpdates(c *gin.Context) {
	limit, ok := intQuery(c, "limit", api.DefaultUpdateLimit)
	if !ok {
		return
	}

	updates, err := s.referrals.GetUnreadUpdates(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updates)
}

func (s *Server) markRead(c *gin.Context) {
	if err := s.referrals.MarkUpdateRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllRead(c *gin.Context) {
	marked, err := s.referrals.MarkAllRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (s *Server) createPurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	result, err := s.referrals.ProcessPurchase(c.Request.Context(), req.UserId, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) subscribe(c *gin.Context) {
	if s.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody("PUSH_DISABLED", "push channel not available"))
		return
	}

	userId := c.Param("id")
	if _, err := s.referrals.GetUser(c.Request.Context(), userId); err != nil {
		respondError(c, err)
		return
	}

	if err := s.hub.Serve(c, userId); err != nil {
		// The upgrader has already answered the client
		zap.L().Warn("Push subscription failed", zap.String("user_id", userId), zap.Error(err))
	}
}

func intQuery(c *gin.Context, key string, defaultValue int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		respondBadRequest(c, "invalid "+key+": "+raw)
		return 0, false
	}
	return value, true
}
