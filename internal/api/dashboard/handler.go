// Package dashboard provides REST API handlers for the engagement engine:
// session logging, user stats, badges, and leaderboards.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/strumly/practice-engine/internal/apperr"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/internal/service/engagement"
	"github.com/strumly/practice-engine/internal/service/leaderboard"
	"github.com/strumly/practice-engine/pkg/logger"
)

// EngagementService interface for the session pipeline.
type EngagementService interface {
	LogSession(ctx context.Context, userID uint, input engagement.SessionInput) (*engagement.Result, error)
	GetStats(userID uint) (*models.UserStats, error)
	ListSessions(userID uint, limit, offset int) ([]models.PracticeSession, error)
	ListGems(userID uint) ([]models.GemsTransaction, error)
	PurchaseShield(ctx context.Context, userID uint) (*models.UserStats, error)
}

// BadgeService interface for badge reads.
type BadgeService interface {
	ListUserBadges(userID uint) ([]models.UserBadge, error)
	Catalog() ([]models.BadgeDefinition, error)
}

// LeaderboardService interface for leaderboard reads.
type LeaderboardService interface {
	Get(ctx context.Context, metric string, limit int) ([]leaderboard.Entry, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	engagementService  EngagementService
	badgeService       BadgeService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(engagementService EngagementService, badgeService BadgeService, leaderboardService LeaderboardService, log *logger.Logger) *Handler {
	return &Handler{
		engagementService:  engagementService,
		badgeService:       badgeService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// RegisterRoutes mounts the API under /api/v1.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/users/:id/sessions", h.LogSession)
		v1.GET("/users/:id/sessions", h.ListSessions)
		v1.GET("/users/:id/stats", h.GetStats)
		v1.GET("/users/:id/badges", h.GetUserBadges)
		v1.GET("/users/:id/gems", h.GetGemsLedger)
		v1.POST("/users/:id/shields", h.PurchaseShield)
		v1.GET("/badges", h.GetBadgeCatalog)
		v1.GET("/leaderboard", h.GetLeaderboard)
	}
}

// LogSession logs a practice session and runs the engagement pipeline.
// POST /api/v1/users/:id/sessions.
func (h *Handler) LogSession(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var input engagement.SessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := h.engagementService.LogSession(c.Request.Context(), userID, input)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListSessions returns a user's session history, newest first.
// GET /api/v1/users/:id/sessions?limit=20&offset=0.
func (h *Handler) ListSessions(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parseQueryInt(c, "limit", 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := h.parseQueryInt(c, "offset", 0)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.engagementService.ListSessions(userID, limit, offset)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// GetStats returns a user's engagement stats.
// GET /api/v1/users/:id/stats.
func (h *Handler) GetStats(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.engagementService.GetStats(userID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetUserBadges returns the badges a user has earned.
// GET /api/v1/users/:id/badges.
func (h *Handler) GetUserBadges(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	badges, err := h.badgeService.ListUserBadges(userID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges, "count": len(badges)})
}

// GetGemsLedger returns a user's gems ledger, newest first.
// GET /api/v1/users/:id/gems.
func (h *Handler) GetGemsLedger(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.engagementService.ListGems(userID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

// PurchaseShield spends gems for one streak shield.
// POST /api/v1/users/:id/shields.
func (h *Handler) PurchaseShield(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.engagementService.PurchaseShield(c.Request.Context(), userID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetBadgeCatalog returns the active badge catalog.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	catalog, err := h.badgeService.Catalog()
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": catalog, "count": len(catalog)})
}

// GetLeaderboard returns the leaderboard for a metric.
// GET /api/v1/leaderboard?metric=total_xp&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	metric := c.DefaultQuery("metric", leaderboard.MetricTotalXP)
	if !leaderboard.ValidMetric(metric) {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("unsupported metric: %s", metric))
		return
	}
	limit, err := h.parseQueryInt(c, "limit", 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.Get(c.Request.Context(), metric, limit)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "metric": metric})
}

func (h *Handler) parseUserID(c *gin.Context) (uint, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}

func (h *Handler) parseQueryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}

// mapServiceError translates the error taxonomy into HTTP statuses. User
// input errors surface as 400, missing entities as 404, everything else as
// an opaque 500.
func (h *Handler) mapServiceError(c *gin.Context, err error) {
	var validation *apperr.ValidationError
	if errors.As(err, &validation) {
		h.errorResponse(c, http.StatusBadRequest, validation.Error())
		return
	}
	var notFound *apperr.NotFoundError
	if errors.As(err, &notFound) {
		h.errorResponse(c, http.StatusNotFound, notFound.Error())
		return
	}

	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	h.errorResponse(c, http.StatusInternalServerError, "internal error")
}

func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
