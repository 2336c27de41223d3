package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/agriassist/internal/domain"
)

// Service is the admin operations the handler exposes
type Service interface {
	GetUsageStats(ctx context.Context, userID string) (*domain.UsageStats, error)
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	ImportKnowledge(ctx context.Context, entries []domain.KnowledgeEntry) (int, error)
	SearchKnowledge(ctx context.Context, query string) (*domain.KnowledgeEntry, error)
}

// Handler handles admin API requests
type Handler struct {
	adminService Service
}

// NewHandler creates a new admin handler
func NewHandler(adminService Service) *Handler {
	return &Handler{adminService: adminService}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("/:user_id/stats", h.GetUsageStats)
		users.GET("/:user_id/sessions", h.ListSessions)
	}

	knowledge := r.Group("/knowledge")
	{
		knowledge.POST("", h.ImportKnowledge)
		knowledge.GET("/search", h.SearchKnowledge)
	}
}

// User handlers

func (h *Handler) GetUsageStats(c *gin.Context) {
	stats, err := h.adminService.GetUsageStats(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user has no usage yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.adminService.ListSessions(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Knowledge base handlers

type importRequest struct {
	Entries []domain.KnowledgeEntry `json:"entries" binding:"required,min=1"`
}

func (h *Handler) ImportKnowledge(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.adminService.ImportKnowledge(c.Request.Context(), req.Entries)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func (h *Handler) SearchKnowledge(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	entry, err := h.adminService.SearchKnowledge(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrNoKnowledgeMatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no match"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entry)
}
