package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/competition-api/internal/handler/dto"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service"
)

// ChallengeHandler serves the weekly challenge endpoints.
type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

// NewChallengeHandler creates a new challenge handler.
func NewChallengeHandler(challengeService *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// CreateChallengeRequest is the payload for challenge creation.
type CreateChallengeRequest struct {
	Title        string    `json:"title" binding:"required,min=3,max=100"`
	Description  string    `json:"description" binding:"omitempty,max=500"`
	TargetMetric string    `json:"target_metric" binding:"required,max=50"`
	TargetValue  int       `json:"target_value" binding:"required,min=1"`
	PointReward  int       `json:"point_reward" binding:"omitempty,min=0"`
	StartDate    time.Time `json:"start_date"`
}

// CreateChallenge handles POST /api/challenges (admin).
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challengeService.CreateChallenge(c.Request.Context(), service.CreateChallengeInput{
		Title:        req.Title,
		Description:  req.Description,
		TargetMetric: req.TargetMetric,
		TargetValue:  req.TargetValue,
		PointReward:  req.PointReward,
		StartDate:    req.StartDate,
	})
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewChallengeResponse(challenge))
}

// ListActiveChallenges handles GET /api/challenges.
func (h *ChallengeHandler) ListActiveChallenges(c *gin.Context) {
	challenges, err := h.challengeService.ListActive()
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges": dto.NewListChallengeResponse(challenges),
		"total":      len(challenges),
	})
}

// GetChallenge handles GET /api/challenges/:id.
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	challengeID := c.MustGet("challengeID").(uint)

	challenge, err := h.challengeService.GetChallenge(challengeID)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewChallengeResponse(challenge))
}

// JoinChallenge handles POST /api/challenges/:id/join.
func (h *ChallengeHandler) JoinChallenge(c *gin.Context) {
	challengeID := c.MustGet("challengeID").(uint)
	userID := c.MustGet("user_id").(uint)

	if err := h.challengeService.JoinChallenge(c.Request.Context(), challengeID, userID); err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Joined challenge"})
}

// RecordProgressRequest is one metric reading from an upstream system.
type RecordProgressRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Metric string `json:"metric" binding:"required,max=50"`
	Value  int    `json:"value" binding:"required,min=1"`
}

// RecordProgress handles POST /api/challenges/progress.
func (h *ChallengeHandler) RecordProgress(c *gin.Context) {
	var req RecordProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.challengeService.RecordProgress(c.Request.Context(), req.UserID, req.Metric, req.Value)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Progress recorded"})
}

// handleChallengeError maps service errors to HTTP responses.
func (h *ChallengeHandler) handleChallengeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in ChallengeHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
