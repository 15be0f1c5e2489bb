package events

import (
	"time"
)

// Kind identifies a lifecycle or ranking event emitted by the engine.
type Kind string

// Event kinds emitted by the competition engine.
const (
	KindCompetitionCreated Kind = "competition:created"
	KindCompetitionStarted Kind = "competition:started"
	KindCompetitionEnded   Kind = "competition:ended"
	KindParticipantJoined  Kind = "participant:joined"
	KindLeaderboardUpdated Kind = "leaderboard:updated"
	KindTeamCreated        Kind = "team:created"
)

// Event is a single engine occurrence delivered to every registered listener.
// Payload carries the kind-specific data, e.g. the fresh leaderboard for
// KindLeaderboardUpdated.
type Event struct {
	ID            string      `json:"id"`
	Kind          Kind        `json:"kind"`
	CompetitionID uint        `json:"competition_id"`
	OccurredAt    time.Time   `json:"occurred_at"`
	Payload       interface{} `json:"payload,omitempty"`
}
