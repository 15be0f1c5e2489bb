package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
	"github.com/yourusername/competition-api/internal/events"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service/competitionmanager"
)

// TeamService manages teams and rosters.
type TeamService struct {
	teamRepo   repository.TeamRepository
	cacheRepo  repository.CacheRepository // optional
	dispatcher *events.Dispatcher
	feed       events.ChangeFeed // optional
	gateway    RewardGateway
	clock      competitionmanager.Clock
	cacheTTL   time.Duration
}

// NewTeamService creates a new team service.
func NewTeamService(
	teamRepo repository.TeamRepository,
	cacheRepo repository.CacheRepository,
	dispatcher *events.Dispatcher,
	feed events.ChangeFeed,
	gateway RewardGateway,
	clock competitionmanager.Clock,
	cacheTTL time.Duration,
) *TeamService {
	if gateway == nil {
		gateway = &LogGateway{}
	}
	if clock == nil {
		clock = competitionmanager.SystemClock()
	}
	return &TeamService{
		teamRepo:   teamRepo,
		cacheRepo:  cacheRepo,
		dispatcher: dispatcher,
		feed:       feed,
		gateway:    gateway,
		clock:      clock,
		cacheTTL:   cacheTTL,
	}
}

// CreateTeamInput carries the fields for CreateTeam.
type CreateTeamInput struct {
	Name        string
	Description string
	Color       string
	CaptainID   uint
}

// CreateTeam creates a team whose sole initial member is the captain.
func (s *TeamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*entity.Team, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: team name is required", apperrors.ErrValidation)
	}
	if input.CaptainID == 0 {
		return nil, fmt.Errorf("%w: captain is required", apperrors.ErrValidation)
	}

	team := &entity.Team{
		Name:        input.Name,
		Description: input.Description,
		Color:       input.Color,
		CaptainID:   input.CaptainID,
		Members: []entity.TeamMember{
			{
				UserID:   input.CaptainID,
				Role:     entity.TeamRoleCaptain,
				JoinedAt: s.clock.Now(),
				Active:   true,
			},
		},
	}

	if err := s.teamRepo.Create(team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.announceChange(events.ChangeInsert, team.ID)
	if s.dispatcher != nil {
		s.dispatcher.Publish(events.Event{
			ID:         uuid.NewString(),
			Kind:       events.KindTeamCreated,
			OccurredAt: s.clock.Now(),
			Payload:    team,
		})
	}

	log.Printf("[TeamService] team #%d %q created by user %d", team.ID, team.Name, input.CaptainID)
	return team, nil
}

// JoinTeam adds the user to the roster and notifies the captain. Joining a
// team the user is already on fails with ErrAlreadyMember without mutating
// the roster.
func (s *TeamService) JoinTeam(ctx context.Context, teamID, userID uint) (*entity.TeamMember, error) {
	team, err := s.teamRepo.GetByID(teamID)
	if err != nil {
		return nil, err
	}

	if team.HasMember(userID) {
		return nil, apperrors.ErrAlreadyMember
	}

	member := &entity.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		Role:     entity.TeamRoleMember,
		JoinedAt: s.clock.Now(),
		Active:   true,
	}
	if err := s.teamRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member to team #%d: %w", teamID, err)
	}

	s.announceChange(events.ChangeUpdate, teamID)

	notifyErr := s.gateway.SendNotification(ctx, team.CaptainID, Notification{
		Kind:    "team_member_joined",
		Title:   team.Name,
		Message: fmt.Sprintf("A new member joined %s.", team.Name),
		Icon:    "users",
	})
	if notifyErr != nil {
		log.Printf("[TeamService] captain notification for team #%d failed: %v", teamID, notifyErr)
	}

	log.Printf("[TeamService] user %d joined team #%d", userID, teamID)
	return member, nil
}

// GetTeam returns the team with roster, serving from the cache when possible.
func (s *TeamService) GetTeam(teamID uint) (*entity.Team, error) {
	if s.cacheRepo != nil {
		var cached entity.Team
		if err := s.cacheRepo.GetJSON(teamCacheKey(teamID), &cached); err == nil {
			return &cached, nil
		}
	}

	team, err := s.teamRepo.GetByID(teamID)
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(teamCacheKey(teamID), team, s.cacheTTL); err != nil {
			log.Printf("[TeamService] cache write for team #%d failed: %v", teamID, err)
		}
	}
	return team, nil
}

// ListTeams returns teams ordered by total points with total count.
func (s *TeamService) ListTeams(limit, offset int) ([]entity.Team, int64, error) {
	return s.teamRepo.List(limit, offset)
}

func (s *TeamService) announceChange(op string, teamID uint) {
	if s.cacheRepo != nil {
		if err := s.cacheRepo.Delete(teamCacheKey(teamID)); err != nil {
			log.Printf("[TeamService] cache invalidation for team #%d failed: %v", teamID, err)
		}
	}
	if s.feed != nil {
		err := s.feed.Publish(events.Change{
			Op:       op,
			Entity:   events.EntityTeam,
			EntityID: teamID,
			At:       s.clock.Now(),
		})
		if err != nil {
			log.Printf("[TeamService] change feed publish for team #%d failed: %v", teamID, err)
		}
	}
}

func teamCacheKey(id uint) string {
	return fmt.Sprintf("team:%d", id)
}
