package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
)

// ============================================================================
// Repository mocks
// ============================================================================

// MockCompetitionRepo implements repository.CompetitionRepository.
type MockCompetitionRepo struct {
	mock.Mock
}

func (m *MockCompetitionRepo) Create(c *entity.Competition) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockCompetitionRepo) GetByID(id uint) (*entity.Competition, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Competition), args.Error(1)
}

func (m *MockCompetitionRepo) List(filter repository.CompetitionFilter, limit, offset int) ([]entity.Competition, int64, error) {
	args := m.Called(filter, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Competition), args.Get(1).(int64), args.Error(2)
}

func (m *MockCompetitionRepo) GetByStatuses(statuses ...string) ([]entity.Competition, error) {
	args := m.Called(statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Competition), args.Error(1)
}

func (m *MockCompetitionRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	args := m.Called(id, fields)
	return args.Error(0)
}

func (m *MockCompetitionRepo) UpdateStatus(id uint, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}

func (m *MockCompetitionRepo) AddParticipant(p *entity.Participant) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockCompetitionRepo) GetParticipants(competitionID uint) ([]entity.Participant, error) {
	args := m.Called(competitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Participant), args.Error(1)
}

func (m *MockCompetitionRepo) SaveParticipants(ps []entity.Participant) error {
	args := m.Called(ps)
	return args.Error(0)
}

func (m *MockCompetitionRepo) ReplaceLeaderboard(competitionID uint, entries []entity.LeaderboardEntry) error {
	args := m.Called(competitionID, entries)
	return args.Error(0)
}

func (m *MockCompetitionRepo) GetLeaderboard(competitionID uint) ([]entity.LeaderboardEntry, error) {
	args := m.Called(competitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LeaderboardEntry), args.Error(1)
}

// MockTeamRepo implements repository.TeamRepository.
type MockTeamRepo struct {
	mock.Mock
}

func (m *MockTeamRepo) Create(team *entity.Team) error {
	args := m.Called(team)
	return args.Error(0)
}

func (m *MockTeamRepo) GetByID(id uint) (*entity.Team, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Team), args.Error(1)
}

func (m *MockTeamRepo) List(limit, offset int) ([]entity.Team, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Team), args.Get(1).(int64), args.Error(2)
}

func (m *MockTeamRepo) AddMember(member *entity.TeamMember) error {
	args := m.Called(member)
	return args.Error(0)
}

func (m *MockTeamRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	args := m.Called(id, fields)
	return args.Error(0)
}

func (m *MockTeamRepo) IncrementStats(id uint, points int, win bool) error {
	args := m.Called(id, points, win)
	return args.Error(0)
}

// MockChallengeRepo implements repository.ChallengeRepository.
type MockChallengeRepo struct {
	mock.Mock
}

func (m *MockChallengeRepo) Create(challenge *entity.WeeklyChallenge) error {
	args := m.Called(challenge)
	return args.Error(0)
}

func (m *MockChallengeRepo) GetByID(id uint) (*entity.WeeklyChallenge, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.WeeklyChallenge), args.Error(1)
}

func (m *MockChallengeRepo) GetActive() ([]entity.WeeklyChallenge, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.WeeklyChallenge), args.Error(1)
}

func (m *MockChallengeRepo) Update(challenge *entity.WeeklyChallenge) error {
	args := m.Called(challenge)
	return args.Error(0)
}

func (m *MockChallengeRepo) Deactivate(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

// ============================================================================
// Gateway fake
// ============================================================================

// recordedAction captures one RecordUserAction call.
type recordedAction struct {
	UserID uint
	Kind   string
	Data   map[string]interface{}
}

// recordedNotification captures one SendNotification call.
type recordedNotification struct {
	UserID       uint
	Notification Notification
}

// recordingGateway records every gateway call for assertions.
type recordingGateway struct {
	mu            sync.Mutex
	actions       []recordedAction
	notifications []recordedNotification
}

func (g *recordingGateway) RecordUserAction(ctx context.Context, userID uint, actionKind string, data map[string]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actions = append(g.actions, recordedAction{UserID: userID, Kind: actionKind, Data: data})
	return nil
}

func (g *recordingGateway) SendNotification(ctx context.Context, userID uint, n Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifications = append(g.notifications, recordedNotification{UserID: userID, Notification: n})
	return nil
}

func (g *recordingGateway) actionsFor(userID uint) []recordedAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []recordedAction
	for _, a := range g.actions {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (g *recordingGateway) notificationFor(userID uint) *recordedNotification {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.notifications {
		if g.notifications[i].UserID == userID {
			return &g.notifications[i]
		}
	}
	return nil
}

// ============================================================================
// Clock fake
// ============================================================================

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
