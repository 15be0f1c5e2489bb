package competitionmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
)

// ============================================================================
// Mocks and fakes for the scheduler
// ============================================================================

// MockCompetitionRepoForScheduler implements repository.CompetitionRepository.
type MockCompetitionRepoForScheduler struct {
	mock.Mock
}

func (m *MockCompetitionRepoForScheduler) Create(c *entity.Competition) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockCompetitionRepoForScheduler) GetByID(id uint) (*entity.Competition, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Competition), args.Error(1)
}

func (m *MockCompetitionRepoForScheduler) List(filter repository.CompetitionFilter, limit, offset int) ([]entity.Competition, int64, error) {
	args := m.Called(filter, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Competition), args.Get(1).(int64), args.Error(2)
}

func (m *MockCompetitionRepoForScheduler) GetByStatuses(statuses ...string) ([]entity.Competition, error) {
	args := m.Called(statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Competition), args.Error(1)
}

func (m *MockCompetitionRepoForScheduler) UpdateFields(id uint, fields map[string]interface{}) error {
	args := m.Called(id, fields)
	return args.Error(0)
}

func (m *MockCompetitionRepoForScheduler) UpdateStatus(id uint, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}

func (m *MockCompetitionRepoForScheduler) AddParticipant(p *entity.Participant) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockCompetitionRepoForScheduler) GetParticipants(competitionID uint) ([]entity.Participant, error) {
	args := m.Called(competitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Participant), args.Error(1)
}

func (m *MockCompetitionRepoForScheduler) SaveParticipants(ps []entity.Participant) error {
	args := m.Called(ps)
	return args.Error(0)
}

func (m *MockCompetitionRepoForScheduler) ReplaceLeaderboard(competitionID uint, entries []entity.LeaderboardEntry) error {
	args := m.Called(competitionID, entries)
	return args.Error(0)
}

func (m *MockCompetitionRepoForScheduler) GetLeaderboard(competitionID uint) ([]entity.LeaderboardEntry, error) {
	args := m.Called(competitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LeaderboardEntry), args.Error(1)
}

// recordingLifecycle records which state-machine entry points the sweep hit.
type recordingLifecycle struct {
	mu        sync.Mutex
	started   []uint
	ended     []uint
	refreshed []uint
	startErr  error
}

func (l *recordingLifecycle) Start(ctx context.Context, id uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, id)
	return l.startErr
}

func (l *recordingLifecycle) End(ctx context.Context, id uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, id)
	return nil
}

func (l *recordingLifecycle) RefreshLeaderboard(ctx context.Context, id uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshed = append(l.refreshed, id)
	return nil
}

// fixedClock pins "now" for deterministic time comparisons.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestScheduler(repo repository.CompetitionRepository, lifecycle Lifecycle, now time.Time) *Scheduler {
	cfg := DefaultConfig()
	deps := &Dependencies{
		CompetitionRepo: repo,
		Lifecycle:       lifecycle,
		Clock:           fixedClock{now: now},
	}
	return NewScheduler(cfg, deps)
}

// ============================================================================
// Tests
// ============================================================================

func TestScheduler_SweepStartsDueUpcomingCompetition(t *testing.T) {
	// Arrange
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := new(MockCompetitionRepoForScheduler)
	lifecycle := &recordingLifecycle{}

	due := entity.Competition{
		ID:        1,
		Status:    entity.CompetitionStatusUpcoming,
		StartDate: now.Add(-time.Minute),
		EndDate:   now.Add(time.Hour),
	}
	notYet := entity.Competition{
		ID:        2,
		Status:    entity.CompetitionStatusUpcoming,
		StartDate: now.Add(time.Hour),
		EndDate:   now.Add(2 * time.Hour),
	}
	repo.On("GetByStatuses", mock.Anything).Return([]entity.Competition{due, notYet}, nil)

	s := newTestScheduler(repo, lifecycle, now)

	// Act
	s.SweepOnce(context.Background())

	// Assert
	assert.Equal(t, []uint{1}, lifecycle.started, "only the due competition starts")
	assert.Empty(t, lifecycle.ended)
}

func TestScheduler_SweepEndsDueActiveCompetition(t *testing.T) {
	// Arrange
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := new(MockCompetitionRepoForScheduler)
	lifecycle := &recordingLifecycle{}

	expired := entity.Competition{
		ID:        3,
		Status:    entity.CompetitionStatusActive,
		StartDate: now.Add(-2 * time.Hour),
		EndDate:   now.Add(-time.Minute),
	}
	running := entity.Competition{
		ID:        4,
		Status:    entity.CompetitionStatusActive,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
	}
	repo.On("GetByStatuses", mock.Anything).Return([]entity.Competition{expired, running}, nil)

	s := newTestScheduler(repo, lifecycle, now)

	// Act
	s.SweepOnce(context.Background())

	// Assert
	assert.Equal(t, []uint{3}, lifecycle.ended, "only the expired competition ends")
	assert.Empty(t, lifecycle.started)
}

func TestScheduler_SweepBoundaryInstantCountsAsDue(t *testing.T) {
	// StartDate == now must transition (spec condition startDate <= now).
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := new(MockCompetitionRepoForScheduler)
	lifecycle := &recordingLifecycle{}

	boundary := entity.Competition{
		ID:        5,
		Status:    entity.CompetitionStatusUpcoming,
		StartDate: now,
		EndDate:   now.Add(time.Hour),
	}
	repo.On("GetByStatuses", mock.Anything).Return([]entity.Competition{boundary}, nil)

	s := newTestScheduler(repo, lifecycle, now)
	s.SweepOnce(context.Background())

	assert.Equal(t, []uint{5}, lifecycle.started)
}

func TestScheduler_SweepErrorOnOneCompetitionDoesNotHaltOthers(t *testing.T) {
	// Arrange: the lifecycle fails every Start, both due competitions must
	// still be attempted.
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := new(MockCompetitionRepoForScheduler)
	lifecycle := &recordingLifecycle{startErr: errors.New("store unavailable")}

	a := entity.Competition{ID: 1, Status: entity.CompetitionStatusUpcoming, StartDate: now.Add(-time.Minute), EndDate: now.Add(time.Hour)}
	b := entity.Competition{ID: 2, Status: entity.CompetitionStatusUpcoming, StartDate: now.Add(-time.Minute), EndDate: now.Add(time.Hour)}
	repo.On("GetByStatuses", mock.Anything).Return([]entity.Competition{a, b}, nil)

	s := newTestScheduler(repo, lifecycle, now)

	// Act: must not panic or stop early
	s.SweepOnce(context.Background())

	// Assert
	assert.Equal(t, []uint{1, 2}, lifecycle.started)
}

func TestScheduler_RefreshRecomputesEveryActiveCompetition(t *testing.T) {
	// Arrange
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := new(MockCompetitionRepoForScheduler)
	lifecycle := &recordingLifecycle{}

	active := []entity.Competition{
		{ID: 10, Status: entity.CompetitionStatusActive},
		{ID: 11, Status: entity.CompetitionStatusActive},
	}
	repo.On("GetByStatuses", mock.Anything).Return(active, nil)

	s := newTestScheduler(repo, lifecycle, now)

	// Act
	s.RefreshOnce(context.Background())

	// Assert
	assert.Equal(t, []uint{10, 11}, lifecycle.refreshed)
}

func TestScheduler_StartAndStop(t *testing.T) {
	// Arrange: very short intervals so both tickers fire at least once.
	repo := new(MockCompetitionRepoForScheduler)
	lifecycle := &recordingLifecycle{}
	repo.On("GetByStatuses", mock.Anything).Return([]entity.Competition{}, nil)

	cfg := &Config{
		SweepInterval:   5 * time.Millisecond,
		RefreshInterval: 5 * time.Millisecond,
		CacheTTL:        time.Minute,
	}
	deps := &Dependencies{
		CompetitionRepo: repo,
		Lifecycle:       lifecycle,
		Clock:           SystemClock(),
	}
	s := NewScheduler(cfg, deps)

	// Act
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	// Assert: Stop returned, so both goroutines exited; the repo was polled.
	require.NotEmpty(t, repo.Calls, "tickers must have fired before Stop")

	// Stopping twice must be safe.
	assert.NotPanics(t, func() { s.Stop() })
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	repo := new(MockCompetitionRepoForScheduler)
	repo.On("GetByStatuses", mock.Anything).Return([]entity.Competition{}, nil)

	cfg := &Config{SweepInterval: time.Hour, RefreshInterval: time.Hour}
	s := NewScheduler(cfg, &Dependencies{
		CompetitionRepo: repo,
		Lifecycle:       &recordingLifecycle{},
		Clock:           SystemClock(),
	})

	s.Start(context.Background())
	assert.NotPanics(t, func() { s.Start(context.Background()) })
	s.Stop()
}
