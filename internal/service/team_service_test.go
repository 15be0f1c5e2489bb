package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/events"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
)

func newTestTeamService(repo *MockTeamRepo, gateway *recordingGateway) (*TeamService, *events.Dispatcher) {
	dispatcher := events.NewDispatcher()
	svc := NewTeamService(repo, nil, dispatcher, nil, gateway, fixedClock{now: testNow}, time.Minute)
	return svc, dispatcher
}

func TestTeamService_CreateMakesCreatorCaptain(t *testing.T) {
	// Arrange
	repo := new(MockTeamRepo)
	repo.On("Create", mock.Anything).Return(nil)

	svc, dispatcher := newTestTeamService(repo, &recordingGateway{})

	var got []events.Event
	dispatcher.Subscribe(func(e events.Event) { got = append(got, e) })

	// Act
	team, err := svc.CreateTeam(context.Background(), CreateTeamInput{
		Name:      "Night Owls",
		CaptainID: 10,
	})

	// Assert: the creator is the sole member and holds the captain role
	require.NoError(t, err)
	assert.Equal(t, uint(10), team.CaptainID)
	require.Len(t, team.Members, 1)
	assert.Equal(t, uint(10), team.Members[0].UserID)
	assert.Equal(t, entity.TeamRoleCaptain, team.Members[0].Role)

	require.Len(t, got, 1)
	assert.Equal(t, events.KindTeamCreated, got[0].Kind)
}

func TestTeamService_CreateRequiresNameAndCaptain(t *testing.T) {
	repo := new(MockTeamRepo)
	svc, _ := newTestTeamService(repo, &recordingGateway{})

	_, err := svc.CreateTeam(context.Background(), CreateTeamInput{CaptainID: 10})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateTeam(context.Background(), CreateTeamInput{Name: "Night Owls"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestTeamService_JoinRejectsExistingMember(t *testing.T) {
	// Arrange
	repo := new(MockTeamRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Team{
		ID:        1,
		Name:      "Night Owls",
		CaptainID: 10,
		Members: []entity.TeamMember{
			{TeamID: 1, UserID: 10, Role: entity.TeamRoleCaptain},
			{TeamID: 1, UserID: 11, Role: entity.TeamRoleMember},
		},
	}, nil)

	svc, _ := newTestTeamService(repo, &recordingGateway{})

	// Act
	_, err := svc.JoinTeam(context.Background(), 1, 11)

	// Assert: rejected without touching the roster
	assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)
	repo.AssertNotCalled(t, "AddMember", mock.Anything)
}

func TestTeamService_JoinNotifiesCaptain(t *testing.T) {
	// Arrange
	repo := new(MockTeamRepo)
	repo.On("GetByID", uint(1)).Return(&entity.Team{
		ID:        1,
		Name:      "Night Owls",
		CaptainID: 10,
		Members: []entity.TeamMember{
			{TeamID: 1, UserID: 10, Role: entity.TeamRoleCaptain},
		},
	}, nil)
	repo.On("AddMember", mock.Anything).Return(nil)

	gateway := &recordingGateway{}
	svc, _ := newTestTeamService(repo, gateway)

	// Act
	member, err := svc.JoinTeam(context.Background(), 1, 12)

	// Assert: new member joins with the plain role, captain is notified
	require.NoError(t, err)
	assert.Equal(t, entity.TeamRoleMember, member.Role)
	assert.Equal(t, testNow, member.JoinedAt)

	note := gateway.notificationFor(10)
	require.NotNil(t, note, "captain must be notified")
	assert.Equal(t, "team_member_joined", note.Notification.Kind)
	assert.Nil(t, gateway.notificationFor(12), "the joiner is not notified")
}

func TestTeamService_JoinUnknownTeam(t *testing.T) {
	repo := new(MockTeamRepo)
	repo.On("GetByID", uint(404)).Return(nil, apperrors.ErrNotFound)

	svc, _ := newTestTeamService(repo, &recordingGateway{})

	_, err := svc.JoinTeam(context.Background(), 404, 12)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
