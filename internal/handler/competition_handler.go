package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
	"github.com/yourusername/competition-api/internal/handler/dto"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service"
)

// CompetitionHandler serves the competition endpoints.
type CompetitionHandler struct {
	competitionService *service.CompetitionService
}

// NewCompetitionHandler creates a new competition handler.
func NewCompetitionHandler(competitionService *service.CompetitionService) *CompetitionHandler {
	return &CompetitionHandler{competitionService: competitionService}
}

// CreateCompetitionRequest is the payload for competition creation.
type CreateCompetitionRequest struct {
	Title       string    `json:"title" binding:"required,min=3,max=100"`
	Description string    `json:"description" binding:"omitempty,max=500"`
	Type        string    `json:"type" binding:"omitempty,oneof=individual team"`
	Category    string    `json:"category" binding:"omitempty,max=50"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`

	Settings struct {
		AutoJoin              bool   `json:"auto_join"`
		MaxParticipants       int    `json:"max_participants" binding:"omitempty,min=0"`
		NotificationFrequency string `json:"notification_frequency" binding:"omitempty,oneof=realtime daily none"`
	} `json:"settings"`

	Prizes []struct {
		Rank    int    `json:"rank" binding:"required,min=1"`
		Title   string `json:"title" binding:"required,max=100"`
		Points  int    `json:"points" binding:"omitempty,min=0"`
		BadgeID string `json:"badge_id" binding:"omitempty,max=50"`
	} `json:"prizes" binding:"omitempty,dive"`
}

// CreateCompetition handles POST /api/competitions.
func (h *CompetitionHandler) CreateCompetition(c *gin.Context) {
	var req CreateCompetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateCompetitionInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Settings: entity.CompetitionSettings{
			AutoJoin:              req.Settings.AutoJoin,
			MaxParticipants:       req.Settings.MaxParticipants,
			NotificationFrequency: req.Settings.NotificationFrequency,
		},
	}
	for _, p := range req.Prizes {
		input.Prizes = append(input.Prizes, entity.Prize{
			Rank:    p.Rank,
			Title:   p.Title,
			Points:  p.Points,
			BadgeID: p.BadgeID,
		})
	}

	competition, err := h.competitionService.CreateCompetition(c.Request.Context(), input)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewCompetitionResponse(competition, false))
}

// PublishCompetition handles POST /api/competitions/:id/publish.
func (h *CompetitionHandler) PublishCompetition(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	if err := h.competitionService.Publish(c.Request.Context(), competitionID); err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Competition published"})
}

// GetCompetition handles GET /api/competitions/:id.
func (h *CompetitionHandler) GetCompetition(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	competition, err := h.competitionService.GetCompetition(competitionID)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCompetitionResponse(competition, true))
}

// ListCompetitions handles GET /api/competitions with pagination and filters.
func (h *CompetitionHandler) ListCompetitions(c *gin.Context) {
	page, pageSize := paginationParams(c)

	filter := repository.CompetitionFilter{
		Category: c.Query("category"),
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []string{status}
	}
	if mineStr := c.Query("participant_id"); mineStr != "" {
		if id, err := strconv.ParseUint(mineStr, 10, 32); err == nil {
			uid := uint(id)
			filter.ParticipantUserID = &uid
		}
	}

	competitions, total, err := h.competitionService.ListCompetitions(filter, pageSize, (page-1)*pageSize)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competitions": dto.NewListCompetitionResponse(competitions),
		"total":        total,
		"page":         page,
		"size":         pageSize,
	})
}

// JoinCompetitionRequest is the payload for joining a competition.
type JoinCompetitionRequest struct {
	TeamID *uint `json:"team_id"`
}

// JoinCompetition handles POST /api/competitions/:id/join.
func (h *CompetitionHandler) JoinCompetition(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)
	userID := c.MustGet("user_id").(uint)

	// The body is optional; an absent or empty body is an individual join.
	var req JoinCompetitionRequest
	_ = c.ShouldBindJSON(&req)

	participant, err := h.competitionService.Join(c.Request.Context(), competitionID, userID, req.TeamID)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewParticipantResponse(participant))
}

// StartCompetition handles POST /api/competitions/:id/start (admin).
func (h *CompetitionHandler) StartCompetition(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	if err := h.competitionService.Start(c.Request.Context(), competitionID); err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Competition started"})
}

// EndCompetition handles POST /api/competitions/:id/end (admin).
func (h *CompetitionHandler) EndCompetition(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	if err := h.competitionService.End(c.Request.Context(), competitionID); err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Competition ended"})
}

// UpdateScoreRequest is one score event from an upstream system.
type UpdateScoreRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"omitempty,max=100"`
}

// UpdateScore handles POST /api/competitions/:id/score. Stale events are
// acknowledged and dropped, so upstream callers never need to track
// competition lifecycles.
func (h *CompetitionHandler) UpdateScore(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	var req UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.competitionService.UpdateScore(c.Request.Context(), competitionID, req.UserID, req.Delta, req.Reason)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Score event accepted"})
}

// GetLeaderboard handles GET /api/competitions/:id/leaderboard.
func (h *CompetitionHandler) GetLeaderboard(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	entries, err := h.competitionService.GetLeaderboard(competitionID)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competition_id": competitionID,
		"leaderboard":    dto.NewLeaderboardResponse(entries),
		"total":          len(entries),
	})
}

// ExportLeaderboard handles GET /api/competitions/:id/leaderboard/export?format=csv|xlsx.
func (h *CompetitionHandler) ExportLeaderboard(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)
	format := c.DefaultQuery("format", "csv")

	competition, err := h.competitionService.GetCompetition(competitionID)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}
	entries, err := h.competitionService.GetLeaderboard(competitionID)
	if err != nil {
		h.handleCompetitionError(c, err)
		return
	}

	filename := fmt.Sprintf("competition_%d_leaderboard_%s", competitionID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, competition, entries, filename)
	default:
		h.exportCSV(c, entries, filename)
	}
}

func (h *CompetitionHandler) exportCSV(c *gin.Context, entries []entity.LeaderboardEntry, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// UTF-8 BOM so Excel renders the file correctly.
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Rank", "User ID", "Team ID", "Score", "Delta", "Computed At"})
	for _, e := range entries {
		teamID := ""
		if e.TeamID != nil {
			teamID = strconv.FormatUint(uint64(*e.TeamID), 10)
		}
		writer.Write([]string{
			strconv.Itoa(e.Rank),
			strconv.FormatUint(uint64(e.UserID), 10),
			teamID,
			strconv.Itoa(e.Score),
			strconv.Itoa(e.Delta),
			e.ComputedAt.Format(time.RFC3339),
		})
	}
}

func (h *CompetitionHandler) exportXLSX(c *gin.Context, competition *entity.Competition, entries []entity.LeaderboardEntry, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Leaderboard"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[CompetitionHandler] failed to create stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Rank", "User ID", "Team ID", "Score", "Delta", "Computed At"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[CompetitionHandler] failed to write headers: %v", err)
	}

	for i, e := range entries {
		cell := fmt.Sprintf("A%d", i+2)
		teamID := ""
		if e.TeamID != nil {
			teamID = strconv.FormatUint(uint64(*e.TeamID), 10)
		}
		row := []interface{}{e.Rank, e.UserID, teamID, e.Score, e.Delta, e.ComputedAt.Format(time.RFC3339)}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[CompetitionHandler] failed to write row %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[CompetitionHandler] stream writer flush failed: %v", err)
	}
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[CompetitionHandler] failed to write Excel to response: %v", err)
	}
}

// paginationParams reads page/page_size query parameters with sane bounds.
func paginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// handleCompetitionError maps service errors to HTTP responses.
func (h *CompetitionHandler) handleCompetitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAlreadyJoined),
		errors.Is(err, apperrors.ErrCompetitionFull),
		errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in CompetitionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
