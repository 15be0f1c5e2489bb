package competitionmanager

import (
	"context"
	"time"

	"github.com/yourusername/competition-api/internal/domain/repository"
)

// Default scheduler intervals.
const (
	DefaultSweepInterval   = 60 * time.Second
	DefaultRefreshInterval = 300 * time.Second
)

// Clock supplies the engine's notion of "now". Injected so lifecycle
// comparisons and scheduler tests run deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Config holds the tunables for the engine components.
type Config struct {
	// SweepInterval is how often the status sweep looks for due transitions.
	SweepInterval time.Duration

	// RefreshInterval is how often active leaderboards are recomputed
	// regardless of score activity, bounding staleness from out-of-band
	// score mutations.
	RefreshInterval time.Duration

	// CacheTTL bounds the advisory entity cache.
	CacheTTL time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		SweepInterval:   DefaultSweepInterval,
		RefreshInterval: DefaultRefreshInterval,
		CacheTTL:        5 * time.Minute,
	}
}

// Lifecycle is the slice of the competition state machine the scheduler
// drives. Both methods share the caller-facing entry points, so a sweep and
// an explicit operator call are idempotent with respect to each other.
type Lifecycle interface {
	Start(ctx context.Context, competitionID uint) error
	End(ctx context.Context, competitionID uint) error
	RefreshLeaderboard(ctx context.Context, competitionID uint) error
}

// ChallengeSweeper deactivates weekly challenges whose window elapsed.
type ChallengeSweeper interface {
	DeactivateExpired(ctx context.Context) error
}

// Dependencies wires the scheduler to the rest of the engine.
type Dependencies struct {
	CompetitionRepo  repository.CompetitionRepository
	Lifecycle        Lifecycle
	ChallengeSweeper ChallengeSweeper
	Clock            Clock
}
