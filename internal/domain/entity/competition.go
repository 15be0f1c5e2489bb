package entity

import (
	"time"
)

// Competition status constants. Transitions are monotonic:
// draft -> upcoming -> active -> completed.
const (
	CompetitionStatusDraft     = "draft"
	CompetitionStatusUpcoming  = "upcoming"
	CompetitionStatusActive    = "active"
	CompetitionStatusCompleted = "completed"
)

// Competition type constants.
const (
	CompetitionTypeIndividual = "individual"
	CompetitionTypeTeam       = "team"
)

// Competition represents a timed contest with participants, a ranked
// leaderboard and a fixed prize list.
type Competition struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Title       string              `gorm:"size:100;not null" json:"title"`
	Description string              `gorm:"size:500;not null;default:''" json:"description"`
	Type        string              `gorm:"size:20;not null;default:'individual'" json:"type"`
	Category    string              `gorm:"size:50;not null;default:''" json:"category"`
	StartDate   time.Time           `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time           `gorm:"not null;index" json:"end_date"`
	Status      string              `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Settings    CompetitionSettings `gorm:"type:jsonb;not null" json:"settings"`

	Participants []Participant      `gorm:"foreignKey:CompetitionID" json:"participants,omitempty"`
	Prizes       []Prize            `gorm:"foreignKey:CompetitionID" json:"prizes,omitempty"`
	Leaderboard  []LeaderboardEntry `gorm:"foreignKey:CompetitionID" json:"leaderboard,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the GORM table name.
func (Competition) TableName() string {
	return "competitions"
}

// IsDraft reports whether the competition has not been published yet.
func (c *Competition) IsDraft() bool {
	return c.Status == CompetitionStatusDraft
}

// IsUpcoming reports whether the competition is published but not started.
func (c *Competition) IsUpcoming() bool {
	return c.Status == CompetitionStatusUpcoming
}

// IsActive reports whether the competition is running.
func (c *Competition) IsActive() bool {
	return c.Status == CompetitionStatusActive
}

// IsCompleted reports whether the competition has ended.
func (c *Competition) IsCompleted() bool {
	return c.Status == CompetitionStatusCompleted
}

// IsFull reports whether the participant limit is reached.
// A zero MaxParticipants means unlimited.
func (c *Competition) IsFull() bool {
	return c.Settings.MaxParticipants > 0 && len(c.Participants) >= c.Settings.MaxParticipants
}

// HasParticipant reports whether the user already holds a participant record.
func (c *Competition) HasParticipant(userID uint) bool {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return true
		}
	}
	return false
}

// CanTransitionTo validates the monotonic status chain.
func (c *Competition) CanTransitionTo(status string) bool {
	switch c.Status {
	case CompetitionStatusDraft:
		return status == CompetitionStatusUpcoming
	case CompetitionStatusUpcoming:
		return status == CompetitionStatusActive
	case CompetitionStatusActive:
		return status == CompetitionStatusCompleted
	default:
		return false
	}
}

// Participant is a user's membership and score record within one competition.
// Unique per (competition, user). Rank always reflects the last leaderboard
// recompute for the competition.
type Participant struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CompetitionID uint      `gorm:"not null;index;uniqueIndex:idx_competition_user" json:"competition_id"`
	UserID        uint      `gorm:"not null;index;uniqueIndex:idx_competition_user" json:"user_id"`
	TeamID        *uint     `gorm:"index" json:"team_id,omitempty"`
	JoinedAt      time.Time `gorm:"not null" json:"joined_at"`
	Score         int       `gorm:"not null;default:0" json:"score"`
	Rank          int       `gorm:"not null;default:0" json:"rank"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName sets the GORM table name.
func (Participant) TableName() string {
	return "participants"
}

// LeaderboardEntry is a derived, ranked view of a participant's score at a
// point in time. Entries are only ever produced by the ranking engine and are
// replaced wholesale on each recompute.
type LeaderboardEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CompetitionID uint      `gorm:"not null;index" json:"competition_id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	TeamID        *uint     `json:"team_id,omitempty"`
	Score         int       `gorm:"not null;default:0" json:"score"`
	Rank          int       `gorm:"not null;default:0;index:idx_leaderboard_rank" json:"rank"`
	Delta         int       `gorm:"not null;default:0" json:"delta"`
	ComputedAt    time.Time `gorm:"not null" json:"computed_at"`
}

// TableName sets the GORM table name.
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}

// Prize is a rank-indexed reward definition. Prizes are immutable once the
// competition is created and are consumed read-only during prize award.
type Prize struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	CompetitionID uint   `gorm:"not null;index" json:"competition_id"`
	Rank          int    `gorm:"not null" json:"rank"`
	Title         string `gorm:"size:100;not null" json:"title"`
	Points        int    `gorm:"not null;default:0" json:"points"`
	BadgeID       string `gorm:"size:50;not null;default:''" json:"badge_id,omitempty"`
}

// TableName sets the GORM table name.
func (Prize) TableName() string {
	return "prizes"
}
