package repository

import (
	"github.com/yourusername/competition-api/internal/domain/entity"
)

// CompetitionFilter defines search filters for competitions.
type CompetitionFilter struct {
	Statuses          []string // filter by status (draft, upcoming, active, completed)
	Category          string   // filter by category
	ParticipantUserID *uint    // only competitions the user participates in
}

// CompetitionRepository is the durable store for competitions and their
// participant, prize and leaderboard rows. Implementations must support
// partial-field updates so the engine can persist a status flip or a
// leaderboard swap without rewriting the whole aggregate.
type CompetitionRepository interface {
	Create(competition *entity.Competition) error
	// GetByID loads the competition with participants, prizes and the
	// current leaderboard preloaded.
	GetByID(id uint) (*entity.Competition, error)
	List(filter CompetitionFilter, limit, offset int) ([]entity.Competition, int64, error)
	// GetByStatuses returns competitions in any of the given statuses,
	// participants preloaded. Used by the scheduler's sweep and refresh.
	GetByStatuses(statuses ...string) ([]entity.Competition, error)
	// UpdateFields applies a partial update to the competition row.
	UpdateFields(id uint, fields map[string]interface{}) error
	UpdateStatus(id uint, status string) error

	AddParticipant(participant *entity.Participant) error
	GetParticipants(competitionID uint) ([]entity.Participant, error)
	// SaveParticipants persists score/rank changes for the given rows.
	SaveParticipants(participants []entity.Participant) error

	// ReplaceLeaderboard swaps the stored leaderboard for the competition in
	// one transaction.
	ReplaceLeaderboard(competitionID uint, entries []entity.LeaderboardEntry) error
	GetLeaderboard(competitionID uint) ([]entity.LeaderboardEntry, error)
}

// TeamRepository is the durable store for teams and their rosters.
type TeamRepository interface {
	Create(team *entity.Team) error
	// GetByID loads the team with members preloaded.
	GetByID(id uint) (*entity.Team, error)
	List(limit, offset int) ([]entity.Team, int64, error)
	AddMember(member *entity.TeamMember) error
	// UpdateFields applies a partial update to the team row (aggregate stats).
	UpdateFields(id uint, fields map[string]interface{}) error
	// IncrementStats rolls a competition result into the team aggregates:
	// points are added, a win bumps wins and the streak.
	IncrementStats(id uint, points int, win bool) error
}

// ChallengeRepository is the durable store for weekly challenges.
type ChallengeRepository interface {
	Create(challenge *entity.WeeklyChallenge) error
	GetByID(id uint) (*entity.WeeklyChallenge, error)
	// GetActive returns challenges whose active flag is still set.
	GetActive() ([]entity.WeeklyChallenge, error)
	Update(challenge *entity.WeeklyChallenge) error
	Deactivate(id uint) error
}
