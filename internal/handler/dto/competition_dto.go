package dto

import (
	"time"

	"github.com/yourusername/competition-api/internal/domain/entity"
)

// CompetitionResponse is the API shape of a competition.
type CompetitionResponse struct {
	ID          uint                       `json:"id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description,omitempty"`
	Type        string                     `json:"type"`
	Category    string                     `json:"category,omitempty"`
	Status      string                     `json:"status"`
	StartDate   time.Time                  `json:"start_date"`
	EndDate     time.Time                  `json:"end_date"`
	Settings    entity.CompetitionSettings `json:"settings"`

	ParticipantCount int                 `json:"participant_count"`
	Participants     []ParticipantResponse `json:"participants,omitempty"`
	Prizes           []PrizeResponse       `json:"prizes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ParticipantResponse is the API shape of a participant.
type ParticipantResponse struct {
	UserID   uint      `json:"user_id"`
	TeamID   *uint     `json:"team_id,omitempty"`
	Score    int       `json:"score"`
	Rank     int       `json:"rank"`
	JoinedAt time.Time `json:"joined_at"`
}

// PrizeResponse is the API shape of a prize definition.
type PrizeResponse struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	Points  int    `json:"points"`
	BadgeID string `json:"badge_id,omitempty"`
}

// LeaderboardEntryResponse is the API shape of one leaderboard row.
type LeaderboardEntryResponse struct {
	UserID     uint      `json:"user_id"`
	TeamID     *uint     `json:"team_id,omitempty"`
	Score      int       `json:"score"`
	Rank       int       `json:"rank"`
	Delta      int       `json:"delta"`
	ComputedAt time.Time `json:"computed_at"`
}

// NewCompetitionResponse converts a competition entity. Participants are
// included only when detailed is set.
func NewCompetitionResponse(c *entity.Competition, detailed bool) *CompetitionResponse {
	resp := &CompetitionResponse{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		Type:             c.Type,
		Category:         c.Category,
		Status:           c.Status,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		Settings:         c.Settings,
		ParticipantCount: len(c.Participants),
		CreatedAt:        c.CreatedAt,
	}

	for i := range c.Prizes {
		resp.Prizes = append(resp.Prizes, PrizeResponse{
			Rank:    c.Prizes[i].Rank,
			Title:   c.Prizes[i].Title,
			Points:  c.Prizes[i].Points,
			BadgeID: c.Prizes[i].BadgeID,
		})
	}

	if detailed {
		for i := range c.Participants {
			resp.Participants = append(resp.Participants, NewParticipantResponse(&c.Participants[i]))
		}
	}
	return resp
}

// NewParticipantResponse converts a participant entity.
func NewParticipantResponse(p *entity.Participant) ParticipantResponse {
	return ParticipantResponse{
		UserID:   p.UserID,
		TeamID:   p.TeamID,
		Score:    p.Score,
		Rank:     p.Rank,
		JoinedAt: p.JoinedAt,
	}
}

// NewListCompetitionResponse converts a competition slice.
func NewListCompetitionResponse(competitions []entity.Competition) []CompetitionResponse {
	out := make([]CompetitionResponse, 0, len(competitions))
	for i := range competitions {
		out = append(out, *NewCompetitionResponse(&competitions[i], false))
	}
	return out
}

// NewLeaderboardResponse converts leaderboard entries.
func NewLeaderboardResponse(entries []entity.LeaderboardEntry) []LeaderboardEntryResponse {
	out := make([]LeaderboardEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, LeaderboardEntryResponse{
			UserID:     entries[i].UserID,
			TeamID:     entries[i].TeamID,
			Score:      entries[i].Score,
			Rank:       entries[i].Rank,
			Delta:      entries[i].Delta,
			ComputedAt: entries[i].ComputedAt,
		})
	}
	return out
}
