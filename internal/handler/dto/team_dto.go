package dto

import (
	"time"

	"github.com/yourusername/competition-api/internal/domain/entity"
)

// TeamResponse is the API shape of a team.
type TeamResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CaptainID   uint   `json:"captain_id"`

	TotalPoints   int `json:"total_points"`
	Wins          int `json:"wins"`
	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`

	MemberCount int                  `json:"member_count"`
	Members     []TeamMemberResponse `json:"members,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TeamMemberResponse is the API shape of a roster entry.
type TeamMemberResponse struct {
	UserID       uint      `json:"user_id"`
	Role         string    `json:"role"`
	Contribution int       `json:"contribution"`
	JoinedAt     time.Time `json:"joined_at"`
}

// NewTeamResponse converts a team entity. Members are included only when
// detailed is set.
func NewTeamResponse(t *entity.Team, detailed bool) *TeamResponse {
	resp := &TeamResponse{
		ID:            t.ID,
		Name:          t.Name,
		Description:   t.Description,
		Color:         t.Color,
		CaptainID:     t.CaptainID,
		TotalPoints:   t.TotalPoints,
		Wins:          t.Wins,
		CurrentStreak: t.CurrentStreak,
		BestStreak:    t.BestStreak,
		MemberCount:   len(t.Members),
		CreatedAt:     t.CreatedAt,
	}

	if detailed {
		for i := range t.Members {
			m := &t.Members[i]
			resp.Members = append(resp.Members, TeamMemberResponse{
				UserID:       m.UserID,
				Role:         m.Role,
				Contribution: m.Contribution,
				JoinedAt:     m.JoinedAt,
			})
		}
	}
	return resp
}

// NewListTeamResponse converts a team slice.
func NewListTeamResponse(teams []entity.Team) []TeamResponse {
	out := make([]TeamResponse, 0, len(teams))
	for i := range teams {
		out = append(out, *NewTeamResponse(&teams[i], false))
	}
	return out
}

// ChallengeResponse is the API shape of a weekly challenge.
type ChallengeResponse struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	TargetMetric string    `json:"target_metric"`
	TargetValue  int       `json:"target_value"`
	PointReward  int       `json:"point_reward"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Active       bool      `json:"active"`

	ParticipantCount int `json:"participant_count"`
}

// NewChallengeResponse converts a challenge entity.
func NewChallengeResponse(w *entity.WeeklyChallenge) *ChallengeResponse {
	return &ChallengeResponse{
		ID:               w.ID,
		Title:            w.Title,
		Description:      w.Description,
		TargetMetric:     w.TargetMetric,
		TargetValue:      w.TargetValue,
		PointReward:      w.PointReward,
		StartDate:        w.StartDate,
		EndDate:          w.EndDate,
		Active:           w.Active,
		ParticipantCount: len(w.ParticipantIDs),
	}
}

// NewListChallengeResponse converts a challenge slice.
func NewListChallengeResponse(challenges []entity.WeeklyChallenge) []ChallengeResponse {
	out := make([]ChallengeResponse, 0, len(challenges))
	for i := range challenges {
		out = append(out, *NewChallengeResponse(&challenges[i]))
	}
	return out
}
