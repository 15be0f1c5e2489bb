package competitionmanager

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/yourusername/competition-api/internal/domain/entity"
)

// Scheduler runs the engine's two periodic tasks: the status sweep that
// applies due lifecycle transitions, and the leaderboard refresh that bounds
// ranking staleness for active competitions. Both run on independent fixed
// intervals from construction until Stop, and every per-competition failure
// is logged and contained so one broken competition never halts a tick or
// blocks the others.
type Scheduler struct {
	config *Config
	deps   *Dependencies

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a scheduler; call Start to begin ticking.
func NewScheduler(config *Config, deps *Dependencies) *Scheduler {
	return &Scheduler{
		config: config,
		deps:   deps,
	}
}

// Start launches both periodic tasks. Starting an already-started scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runStatusSweep(runCtx)
	go s.runLeaderboardRefresh(runCtx)

	log.Printf("[Scheduler] started (sweep every %v, refresh every %v)",
		s.config.SweepInterval, s.config.RefreshInterval)
}

// Stop cancels both tasks and waits for the current ticks to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	log.Println("[Scheduler] stopped")
}

func (s *Scheduler) runStatusSweep(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Scheduler] status sweep cancelled")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Scheduler) runLeaderboardRefresh(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Scheduler] leaderboard refresh cancelled")
			return
		case <-ticker.C:
			s.RefreshOnce(ctx)
		}
	}
}

// SweepOnce loads all upcoming and active competitions and applies the
// lifecycle transitions whose time condition holds. Exported so tests and
// operator tooling can trigger a sweep without waiting for the ticker.
func (s *Scheduler) SweepOnce(ctx context.Context) {
	now := s.deps.Clock.Now()

	competitions, err := s.deps.CompetitionRepo.GetByStatuses(
		entity.CompetitionStatusUpcoming,
		entity.CompetitionStatusActive,
	)
	if err != nil {
		log.Printf("[Scheduler] sweep: failed to load competitions: %v", err)
	} else {
		for i := range competitions {
			s.sweepCompetition(ctx, &competitions[i], now)
		}
	}

	if s.deps.ChallengeSweeper != nil {
		if err := s.deps.ChallengeSweeper.DeactivateExpired(ctx); err != nil {
			log.Printf("[Scheduler] sweep: challenge deactivation failed: %v", err)
		}
	}
}

func (s *Scheduler) sweepCompetition(ctx context.Context, competition *entity.Competition, now time.Time) {
	switch {
	case competition.IsUpcoming() && !competition.StartDate.After(now):
		if err := s.deps.Lifecycle.Start(ctx, competition.ID); err != nil {
			log.Printf("[Scheduler] sweep: start of competition #%d failed: %v", competition.ID, err)
		}
	case competition.IsActive() && !competition.EndDate.After(now):
		if err := s.deps.Lifecycle.End(ctx, competition.ID); err != nil {
			log.Printf("[Scheduler] sweep: end of competition #%d failed: %v", competition.ID, err)
		}
	}
}

// RefreshOnce forces a leaderboard recompute for every active competition,
// independent of whether any score changed. Exported for tests and tooling.
func (s *Scheduler) RefreshOnce(ctx context.Context) {
	competitions, err := s.deps.CompetitionRepo.GetByStatuses(entity.CompetitionStatusActive)
	if err != nil {
		log.Printf("[Scheduler] refresh: failed to load active competitions: %v", err)
		return
	}

	for i := range competitions {
		if err := s.deps.Lifecycle.RefreshLeaderboard(ctx, competitions[i].ID); err != nil {
			log.Printf("[Scheduler] refresh: leaderboard recompute for competition #%d failed: %v",
				competitions[i].ID, err)
		}
	}
}
