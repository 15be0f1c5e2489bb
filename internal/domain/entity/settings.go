package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Notification frequency constants for competition settings.
const (
	NotificationFrequencyRealtime = "realtime"
	NotificationFrequencyDaily    = "daily"
	NotificationFrequencyNone     = "none"
)

// CompetitionSettings is the per-competition configuration blob, stored as
// JSONB alongside the competition row.
type CompetitionSettings struct {
	// AutoJoin admits users on their first score event instead of requiring
	// an explicit join call.
	AutoJoin bool `json:"auto_join"`

	// MaxParticipants caps admissions. Zero means unlimited.
	MaxParticipants int `json:"max_participants"`

	// NotificationFrequency controls how often participants are notified of
	// leaderboard movement.
	NotificationFrequency string `json:"notification_frequency"`
}

// Scan implements sql.Scanner so GORM can read the JSONB column.
func (s *CompetitionSettings) Scan(value interface{}) error {
	if value == nil {
		*s = CompetitionSettings{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*s = CompetitionSettings{}
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer so GORM can write the JSONB column.
func (s CompetitionSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// UintArray is a JSONB-backed list of identifiers.
type UintArray []uint

// Scan implements sql.Scanner for UintArray.
func (a *UintArray) Scan(value interface{}) error {
	if value == nil {
		*a = UintArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*a = UintArray{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Value implements driver.Valuer for UintArray.
func (a UintArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Contains reports whether id is present in the array.
func (a UintArray) Contains(id uint) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}
