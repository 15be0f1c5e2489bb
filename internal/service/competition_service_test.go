package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
	"github.com/yourusername/competition-api/internal/events"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service/competitionmanager"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCompetitionService(repo *MockCompetitionRepo, teamRepo *MockTeamRepo, gateway *recordingGateway) (*CompetitionService, *events.Dispatcher) {
	var teams repository.TeamRepository
	if teamRepo != nil {
		teams = teamRepo
	}
	dispatcher := events.NewDispatcher()
	svc := NewCompetitionService(
		repo, teams, nil, dispatcher, nil,
		gateway, fixedClock{now: testNow}, competitionmanager.DefaultConfig(),
	)
	return svc, dispatcher
}

func activeCompetition(id uint, participants ...entity.Participant) *entity.Competition {
	return &entity.Competition{
		ID:           id,
		Title:        "Spring Sprint",
		Type:         entity.CompetitionTypeIndividual,
		Status:       entity.CompetitionStatusActive,
		StartDate:    testNow.Add(-time.Hour),
		EndDate:      testNow.Add(time.Hour),
		Participants: participants,
	}
}

// ----------------------------------------------------------------------------
// CreateCompetition
// ----------------------------------------------------------------------------

func TestCompetitionService_CreateValidatesDates(t *testing.T) {
	// Arrange
	repo := new(MockCompetitionRepo)
	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	// Act
	_, err := svc.CreateCompetition(context.Background(), CreateCompetitionInput{
		Title:     "Backwards",
		StartDate: testNow.Add(time.Hour),
		EndDate:   testNow,
	})

	// Assert: invalid input never reaches the store
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestCompetitionService_CreateStartsAsDraft(t *testing.T) {
	// Arrange
	repo := new(MockCompetitionRepo)
	repo.On("Create", mock.Anything).Return(nil)
	svc, dispatcher := newTestCompetitionService(repo, nil, &recordingGateway{})

	var got []events.Event
	dispatcher.Subscribe(func(e events.Event) { got = append(got, e) })

	// Act
	competition, err := svc.CreateCompetition(context.Background(), CreateCompetitionInput{
		Title:     "Spring Sprint",
		StartDate: testNow,
		EndDate:   testNow.Add(24 * time.Hour),
		Prizes:    []entity.Prize{{Rank: 1, Title: "Gold", Points: 100}},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.CompetitionStatusDraft, competition.Status)
	assert.Equal(t, entity.CompetitionTypeIndividual, competition.Type, "type defaults to individual")
	require.Len(t, got, 1)
	assert.Equal(t, events.KindCompetitionCreated, got[0].Kind)
}

// ----------------------------------------------------------------------------
// Publish
// ----------------------------------------------------------------------------

func TestCompetitionService_PublishMovesDraftToUpcoming(t *testing.T) {
	repo := new(MockCompetitionRepo)
	draft := &entity.Competition{
		ID:        1,
		Status:    entity.CompetitionStatusDraft,
		StartDate: testNow.Add(time.Hour),
		EndDate:   testNow.Add(2 * time.Hour),
	}
	repo.On("GetByID", uint(1)).Return(draft, nil)
	repo.On("UpdateStatus", uint(1), entity.CompetitionStatusUpcoming).Return(nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	require.NoError(t, svc.Publish(context.Background(), 1))
	repo.AssertCalled(t, "UpdateStatus", uint(1), entity.CompetitionStatusUpcoming)
}

func TestCompetitionService_PublishRejectsElapsedDraft(t *testing.T) {
	repo := new(MockCompetitionRepo)
	draft := &entity.Competition{
		ID:        1,
		Status:    entity.CompetitionStatusDraft,
		StartDate: testNow.Add(-2 * time.Hour),
		EndDate:   testNow.Add(-time.Hour),
	}
	repo.On("GetByID", uint(1)).Return(draft, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	err := svc.Publish(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestCompetitionService_PublishRejectsUnreachablePrizeRank(t *testing.T) {
	// Arrange: a prize for rank 5 in a competition capped at 3 participants.
	repo := new(MockCompetitionRepo)
	draft := &entity.Competition{
		ID:        1,
		Status:    entity.CompetitionStatusDraft,
		StartDate: testNow.Add(time.Hour),
		EndDate:   testNow.Add(2 * time.Hour),
		Settings:  entity.CompetitionSettings{MaxParticipants: 3},
		Prizes:    []entity.Prize{{CompetitionID: 1, Rank: 5, Title: "Gold"}},
	}
	repo.On("GetByID", uint(1)).Return(draft, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	// Act
	err := svc.Publish(context.Background(), 1)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestCompetitionService_PublishTwiceIsNoop(t *testing.T) {
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Competition{ID: 1, Status: entity.CompetitionStatusUpcoming}, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	require.NoError(t, svc.Publish(context.Background(), 1))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestCompetitionService_PublishCompletedIsConflict(t *testing.T) {
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Competition{ID: 1, Status: entity.CompetitionStatusCompleted}, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	err := svc.Publish(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ----------------------------------------------------------------------------
// Join
// ----------------------------------------------------------------------------

func TestCompetitionService_JoinRejectsWhenFull(t *testing.T) {
	// Arrange: limit 2, two already in, a third tries to join.
	repo := new(MockCompetitionRepo)
	competition := activeCompetition(1,
		entity.Participant{CompetitionID: 1, UserID: 10, JoinedAt: testNow.Add(-time.Minute)},
		entity.Participant{CompetitionID: 1, UserID: 11, JoinedAt: testNow.Add(-time.Second)},
	)
	competition.Settings.MaxParticipants = 2
	repo.On("GetByID", uint(1)).Return(competition, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	// Act
	_, err := svc.Join(context.Background(), 1, 12, nil)

	// Assert: rejected without any mutation
	assert.ErrorIs(t, err, apperrors.ErrCompetitionFull)
	repo.AssertNotCalled(t, "AddParticipant", mock.Anything)
}

func TestCompetitionService_JoinRejectsDuplicate(t *testing.T) {
	repo := new(MockCompetitionRepo)
	competition := activeCompetition(1,
		entity.Participant{CompetitionID: 1, UserID: 10, JoinedAt: testNow.Add(-time.Minute)},
	)
	repo.On("GetByID", uint(1)).Return(competition, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	_, err := svc.Join(context.Background(), 1, 10, nil)

	assert.ErrorIs(t, err, apperrors.ErrAlreadyJoined)
	repo.AssertNotCalled(t, "AddParticipant", mock.Anything)
}

func TestCompetitionService_JoinAdmitsAndRecomputes(t *testing.T) {
	// Arrange
	repo := new(MockCompetitionRepo)
	competition := activeCompetition(1,
		entity.Participant{CompetitionID: 1, UserID: 10, Score: 30, JoinedAt: testNow.Add(-time.Minute)},
	)
	repo.On("GetByID", uint(1)).Return(competition, nil)
	repo.On("AddParticipant", mock.Anything).Return(nil)
	repo.On("GetParticipants", uint(1)).Return([]entity.Participant{
		{CompetitionID: 1, UserID: 10, Score: 30, JoinedAt: testNow.Add(-time.Minute)},
		{CompetitionID: 1, UserID: 12, Score: 0, JoinedAt: testNow},
	}, nil)
	repo.On("SaveParticipants", mock.Anything).Return(nil)
	repo.On("ReplaceLeaderboard", uint(1), mock.Anything).Return(nil)

	svc, dispatcher := newTestCompetitionService(repo, nil, &recordingGateway{})

	var kinds []events.Kind
	dispatcher.Subscribe(func(e events.Event) { kinds = append(kinds, e.Kind) })

	// Act
	participant, err := svc.Join(context.Background(), 1, 12, nil)

	// Assert: admitted at the bottom of the board, then recomputed
	require.NoError(t, err)
	assert.Equal(t, uint(12), participant.UserID)
	assert.Equal(t, 2, participant.Rank, "new participant ranks last provisionally")
	repo.AssertCalled(t, "ReplaceLeaderboard", uint(1), mock.Anything)
	assert.Contains(t, kinds, events.KindLeaderboardUpdated)
	assert.Contains(t, kinds, events.KindParticipantJoined)
}

// ----------------------------------------------------------------------------
// Start / End
// ----------------------------------------------------------------------------

func TestCompetitionService_StartIsIdempotent(t *testing.T) {
	// The scheduler and an operator may race on the same competition; the
	// second start must succeed without touching the store again.
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(activeCompetition(1), nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	require.NoError(t, svc.Start(context.Background(), 1))
	repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestCompetitionService_StartDraftIsConflict(t *testing.T) {
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Competition{ID: 1, Status: entity.CompetitionStatusDraft}, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	err := svc.Start(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCompetitionService_StartNotifiesParticipants(t *testing.T) {
	// Arrange
	repo := new(MockCompetitionRepo)
	competition := &entity.Competition{
		ID:        1,
		Title:     "Spring Sprint",
		Status:    entity.CompetitionStatusUpcoming,
		StartDate: testNow,
		EndDate:   testNow.Add(time.Hour),
		Participants: []entity.Participant{
			{CompetitionID: 1, UserID: 10},
			{CompetitionID: 1, UserID: 11},
		},
	}
	repo.On("GetByID", uint(1)).Return(competition, nil)
	repo.On("UpdateFields", uint(1), mock.Anything).Return(nil)

	gateway := &recordingGateway{}
	svc, _ := newTestCompetitionService(repo, nil, gateway)

	// Act
	require.NoError(t, svc.Start(context.Background(), 1))

	// Assert: actual start time stamped, both participants notified
	repo.AssertCalled(t, "UpdateFields", uint(1), mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == entity.CompetitionStatusActive && fields["start_date"] == testNow
	}))
	require.NotNil(t, gateway.notificationFor(10))
	require.NotNil(t, gateway.notificationFor(11))
}

func TestCompetitionService_EndAwardsPrizesByFinalRank(t *testing.T) {
	// Arrange: three participants, B leads at the end, one rank-1 prize.
	repo := new(MockCompetitionRepo)
	competition := activeCompetition(1)
	competition.Prizes = []entity.Prize{{CompetitionID: 1, Rank: 1, Title: "Gold", Points: 100}}
	repo.On("GetByID", uint(1)).Return(competition, nil)
	repo.On("GetParticipants", uint(1)).Return([]entity.Participant{
		{CompetitionID: 1, UserID: 10, Score: 50, JoinedAt: testNow.Add(-3 * time.Minute)}, // A
		{CompetitionID: 1, UserID: 11, Score: 80, JoinedAt: testNow.Add(-2 * time.Minute)}, // B
		{CompetitionID: 1, UserID: 12, Score: 20, JoinedAt: testNow.Add(-time.Minute)},     // C
	}, nil)
	repo.On("SaveParticipants", mock.Anything).Return(nil)
	repo.On("ReplaceLeaderboard", uint(1), mock.Anything).Return(nil)
	repo.On("UpdateStatus", uint(1), entity.CompetitionStatusCompleted).Return(nil)

	gateway := &recordingGateway{}
	svc, _ := newTestCompetitionService(repo, nil, gateway)

	// Act
	require.NoError(t, svc.End(context.Background(), 1))

	// Assert: winner gets the prize action and a prize-naming message
	actions := gateway.actionsFor(11)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionCompetitionPrize, actions[0].Kind)
	assert.Equal(t, 100, actions[0].Data["points"])

	winnerNote := gateway.notificationFor(11)
	require.NotNil(t, winnerNote)
	assert.Contains(t, winnerNote.Notification.Message, "Gold")

	// Non-winners get a generic final-rank message and no prize action
	assert.Empty(t, gateway.actionsFor(10))
	loserNote := gateway.notificationFor(10)
	require.NotNil(t, loserNote)
	assert.Contains(t, loserNote.Notification.Message, "#2")
	require.NotNil(t, gateway.notificationFor(12))
}

func TestCompetitionService_EndIsIdempotent(t *testing.T) {
	// Ending a completed competition must not re-award or re-notify.
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Competition{ID: 1, Status: entity.CompetitionStatusCompleted}, nil)

	gateway := &recordingGateway{}
	svc, _ := newTestCompetitionService(repo, nil, gateway)

	require.NoError(t, svc.End(context.Background(), 1))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	assert.Empty(t, gateway.actions)
	assert.Empty(t, gateway.notifications)
}

func TestCompetitionService_EndRecordsWinningTeamStats(t *testing.T) {
	// Arrange: the rank-1 participant competed for team 7.
	repo := new(MockCompetitionRepo)
	teamID := uint(7)
	competition := activeCompetition(1)
	competition.Type = entity.CompetitionTypeTeam
	repo.On("GetByID", uint(1)).Return(competition, nil)
	repo.On("GetParticipants", uint(1)).Return([]entity.Participant{
		{CompetitionID: 1, UserID: 10, TeamID: &teamID, Score: 90, JoinedAt: testNow.Add(-time.Minute)},
		{CompetitionID: 1, UserID: 11, Score: 40, JoinedAt: testNow},
	}, nil)
	repo.On("SaveParticipants", mock.Anything).Return(nil)
	repo.On("ReplaceLeaderboard", uint(1), mock.Anything).Return(nil)
	repo.On("UpdateStatus", uint(1), entity.CompetitionStatusCompleted).Return(nil)

	teamRepo := new(MockTeamRepo)
	teamRepo.On("IncrementStats", teamID, 90, true).Return(nil)

	svc, _ := newTestCompetitionService(repo, teamRepo, &recordingGateway{})

	// Act
	require.NoError(t, svc.End(context.Background(), 1))

	// Assert
	teamRepo.AssertCalled(t, "IncrementStats", teamID, 90, true)
}

// ----------------------------------------------------------------------------
// UpdateScore
// ----------------------------------------------------------------------------

func TestCompetitionService_UpdateScoreDropsStaleEvents(t *testing.T) {
	// Score events against a completed competition are expected late arrivals
	// and must be dropped silently.
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Competition{ID: 1, Status: entity.CompetitionStatusCompleted}, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	err := svc.UpdateScore(context.Background(), 1, 10, 25, "quiz")

	require.NoError(t, err)
	repo.AssertNotCalled(t, "GetParticipants", mock.Anything)
	repo.AssertNotCalled(t, "SaveParticipants", mock.Anything)
}

func TestCompetitionService_UpdateScoreDropsUnknownParticipant(t *testing.T) {
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(activeCompetition(1), nil)
	repo.On("GetParticipants", uint(1)).Return([]entity.Participant{
		{CompetitionID: 1, UserID: 10, JoinedAt: testNow},
	}, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	err := svc.UpdateScore(context.Background(), 1, 99, 25, "quiz")

	require.NoError(t, err)
	repo.AssertNotCalled(t, "AddParticipant", mock.Anything)
	repo.AssertNotCalled(t, "SaveParticipants", mock.Anything)
}

func TestCompetitionService_UpdateScoreAutoJoinsWhenEnabled(t *testing.T) {
	// Arrange: auto-join on, unknown user's first score event admits them.
	repo := new(MockCompetitionRepo)
	competition := activeCompetition(1)
	competition.Settings.AutoJoin = true
	repo.On("GetByID", uint(1)).Return(competition, nil)
	repo.On("GetParticipants", uint(1)).Return([]entity.Participant{}, nil)
	repo.On("AddParticipant", mock.Anything).Return(nil)
	repo.On("SaveParticipants", mock.Anything).Return(nil)
	repo.On("ReplaceLeaderboard", uint(1), mock.Anything).Return(nil)

	gateway := &recordingGateway{}
	svc, _ := newTestCompetitionService(repo, nil, gateway)

	// Act
	err := svc.UpdateScore(context.Background(), 1, 42, 25, "quiz")

	// Assert: admitted, delta applied, score action forwarded
	require.NoError(t, err)
	repo.AssertCalled(t, "AddParticipant", mock.MatchedBy(func(p *entity.Participant) bool {
		return p.UserID == 42 && p.CompetitionID == 1
	}))
	actions := gateway.actionsFor(42)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionCompetitionScore, actions[0].Kind)
	assert.Equal(t, 25, actions[0].Data["total"])
}

func TestCompetitionService_UpdateScoreRecomputesRanks(t *testing.T) {
	// B overtakes A: persisted ranks must reflect the new order.
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(activeCompetition(1), nil)
	repo.On("GetParticipants", uint(1)).Return([]entity.Participant{
		{CompetitionID: 1, UserID: 10, Score: 50, Rank: 1, JoinedAt: testNow.Add(-2 * time.Minute)}, // A
		{CompetitionID: 1, UserID: 11, Score: 30, Rank: 2, JoinedAt: testNow.Add(-time.Minute)},     // B
	}, nil)

	var savedRanks map[uint]int
	repo.On("SaveParticipants", mock.Anything).Run(func(args mock.Arguments) {
		savedRanks = map[uint]int{}
		for _, p := range args.Get(0).([]entity.Participant) {
			savedRanks[p.UserID] = p.Rank
		}
	}).Return(nil)

	var board []entity.LeaderboardEntry
	repo.On("ReplaceLeaderboard", uint(1), mock.Anything).Run(func(args mock.Arguments) {
		board = args.Get(1).([]entity.LeaderboardEntry)
	}).Return(nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	// Act: B scores +30 and overtakes A 60 to 50
	require.NoError(t, svc.UpdateScore(context.Background(), 1, 11, 30, "quiz"))

	// Assert
	assert.Equal(t, 1, savedRanks[11])
	assert.Equal(t, 2, savedRanks[10])
	require.Len(t, board, 2)
	assert.Equal(t, uint(11), board[0].UserID)
	assert.Equal(t, 1, board[0].Delta, "B moved up one rank")
	assert.Equal(t, -1, board[1].Delta, "A moved down one rank")
}

// ----------------------------------------------------------------------------
// RefreshLeaderboard / reads
// ----------------------------------------------------------------------------

func TestCompetitionService_RefreshSkipsNonActive(t *testing.T) {
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Competition{ID: 1, Status: entity.CompetitionStatusUpcoming}, nil)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	require.NoError(t, svc.RefreshLeaderboard(context.Background(), 1))
	repo.AssertNotCalled(t, "GetParticipants", mock.Anything)
}

func TestCompetitionService_GetLeaderboardUnknownCompetition(t *testing.T) {
	repo := new(MockCompetitionRepo)
	repo.On("GetByID", uint(404)).Return(nil, apperrors.ErrNotFound)

	svc, _ := newTestCompetitionService(repo, nil, &recordingGateway{})

	_, err := svc.GetLeaderboard(404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
