package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/competition-api/internal/handler/dto"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service"
)

// TeamHandler serves the team endpoints.
type TeamHandler struct {
	teamService *service.TeamService
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(teamService *service.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// CreateTeamRequest is the payload for team creation.
type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Color       string `json:"color" binding:"omitempty,max=20"`
}

// CreateTeam handles POST /api/teams. The authenticated caller becomes the
// captain.
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), service.CreateTeamInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		CaptainID:   userID,
	})
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewTeamResponse(team, true))
}

// GetTeam handles GET /api/teams/:id.
func (h *TeamHandler) GetTeam(c *gin.Context) {
	teamID := c.MustGet("teamID").(uint)

	team, err := h.teamService.GetTeam(teamID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTeamResponse(team, true))
}

// ListTeams handles GET /api/teams.
func (h *TeamHandler) ListTeams(c *gin.Context) {
	page, pageSize := paginationParams(c)

	teams, total, err := h.teamService.ListTeams(pageSize, (page-1)*pageSize)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"teams": dto.NewListTeamResponse(teams),
		"total": total,
		"page":  page,
		"size":  pageSize,
	})
}

// JoinTeam handles POST /api/teams/:id/join.
func (h *TeamHandler) JoinTeam(c *gin.Context) {
	teamID := c.MustGet("teamID").(uint)
	userID := c.MustGet("user_id").(uint)

	member, err := h.teamService.JoinTeam(c.Request.Context(), teamID, userID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.TeamMemberResponse{
		UserID:       member.UserID,
		Role:         member.Role,
		Contribution: member.Contribution,
		JoinedAt:     member.JoinedAt,
	})
}

// handleTeamError maps service errors to HTTP responses.
func (h *TeamHandler) handleTeamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAlreadyMember), errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in TeamHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
