package entity

import (
	"time"
)

// Team member role constants. Exactly one member per team holds the captain
// role, and its user id equals the team's CaptainID.
const (
	TeamRoleCaptain = "captain"
	TeamRoleMember  = "member"
)

// Team is a named group of users competing together.
type Team struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:500;not null;default:''" json:"description"`
	Color       string `gorm:"size:20;not null;default:''" json:"color"`
	CaptainID   uint   `gorm:"not null;index" json:"captain_id"`

	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`

	// Aggregate stats, updated when a member finishes a competition.
	TotalPoints   int `gorm:"not null;default:0" json:"total_points"`
	Wins          int `gorm:"not null;default:0" json:"wins"`
	CurrentStreak int `gorm:"not null;default:0" json:"current_streak"`
	BestStreak    int `gorm:"not null;default:0" json:"best_streak"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the GORM table name.
func (Team) TableName() string {
	return "teams"
}

// HasMember reports whether the user is already on the roster.
func (t *Team) HasMember(userID uint) bool {
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			return true
		}
	}
	return false
}

// Captain returns the member holding the captain role, or nil.
func (t *Team) Captain() *TeamMember {
	for i := range t.Members {
		if t.Members[i].Role == TeamRoleCaptain {
			return &t.Members[i]
		}
	}
	return nil
}

// TeamMember is a user's membership record within a team.
type TeamMember struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TeamID       uint      `gorm:"not null;index;uniqueIndex:idx_team_user" json:"team_id"`
	UserID       uint      `gorm:"not null;index;uniqueIndex:idx_team_user" json:"user_id"`
	Role         string    `gorm:"size:20;not null;default:'member'" json:"role"`
	JoinedAt     time.Time `gorm:"not null" json:"joined_at"`
	Contribution int       `gorm:"not null;default:0" json:"contribution"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName sets the GORM table name.
func (TeamMember) TableName() string {
	return "team_members"
}
