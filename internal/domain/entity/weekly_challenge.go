package entity

import (
	"time"
)

// ChallengeWindow is the fixed duration of a weekly challenge.
const ChallengeWindow = 7 * 24 * time.Hour

// WeeklyChallenge is a fixed 7-day, metric-targeted mini-competition.
// It is created once per challenge definition and becomes inactive when its
// window elapses; the scheduler's status sweep owns the deactivation.
type WeeklyChallenge struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:100;not null" json:"title"`
	Description  string    `gorm:"size:500;not null;default:''" json:"description"`
	TargetMetric string    `gorm:"size:50;not null" json:"target_metric"`
	TargetValue  int       `gorm:"not null" json:"target_value"`
	PointReward  int       `gorm:"not null;default:0" json:"point_reward"`
	StartDate    time.Time `gorm:"not null" json:"start_date"`
	EndDate      time.Time `gorm:"not null;index" json:"end_date"`

	// ParticipantIDs are the users enrolled in the challenge.
	ParticipantIDs UintArray `gorm:"type:jsonb;not null" json:"participant_ids"`

	// AwardedIDs tracks users whose reward was already granted, so progress
	// events arriving after the target was met never award twice.
	AwardedIDs UintArray `gorm:"type:jsonb;not null" json:"-"`

	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the GORM table name.
func (WeeklyChallenge) TableName() string {
	return "weekly_challenges"
}

// IsExpired reports whether the challenge window has elapsed.
func (w *WeeklyChallenge) IsExpired(now time.Time) bool {
	return !now.Before(w.EndDate)
}
