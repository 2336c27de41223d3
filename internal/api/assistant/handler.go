// Package assistant serves the public endpoints used by the web client:
// chat, risk assessment, recommendations and session history.
package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/agriassist/internal/domain"
)

// ChatService answers chat messages
type ChatService interface {
	Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error)
}

// Recommender produces plan recommendations for a location
type Recommender interface {
	Recommend(ctx context.Context, loc domain.Location) (*domain.RecommendationResult, error)
}

// Assessor produces a risk assessment for a location
type Assessor interface {
	Assess(ctx context.Context, loc domain.Location) (*domain.RiskAssessment, error)
}

// SessionReader loads a session with its messages
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
}

// Handler handles assistant API requests
type Handler struct {
	chat        ChatService
	recommender Recommender
	assessor    Assessor
	sessions    SessionReader
}

// NewHandler creates a new assistant handler
func NewHandler(chat ChatService, recommender Recommender, assessor Assessor, sessions SessionReader) *Handler {
	return &Handler{
		chat:        chat,
		recommender: recommender,
		assessor:    assessor,
		sessions:    sessions,
	}
}

// RegisterRoutes registers assistant routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
	r.POST("/recommendations", h.Recommend)
	r.GET("/risk", h.Risk)
	r.GET("/sessions/:id", h.GetSession)
}

// locationRequest requires coordinates to be present; zero is a valid value
type locationRequest struct {
	Lat      *float64 `json:"lat" form:"lat" binding:"required"`
	Lon      *float64 `json:"lon" form:"lon" binding:"required"`
	District string   `json:"district" form:"district"`
}

func (r locationRequest) location() domain.Location {
	return domain.Location{Lat: *r.Lat, Lon: *r.Lon, District: r.District}
}

// Chat handles a chat message
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Recommend returns ranked insurance recommendations for a location
func (h *Handler) Recommend(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.recommender.Recommend(c.Request.Context(), req.location())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Risk returns the classified risk signals for a location
func (h *Handler) Risk(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assessment, err := h.assessor.Assess(c.Request.Context(), req.location())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// GetSession returns a session with its messages
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request cancelled"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
