package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service/competitionmanager"
)

// ChallengeService manages weekly challenges. Challenges are lighter than
// competitions: enrollment and the award ledger live in the challenge row
// itself, and progress events are evaluated against a fixed target instead of
// a leaderboard.
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	gateway       RewardGateway
	clock         competitionmanager.Clock
}

// NewChallengeService creates a new challenge service.
func NewChallengeService(
	challengeRepo repository.ChallengeRepository,
	gateway RewardGateway,
	clock competitionmanager.Clock,
) *ChallengeService {
	if gateway == nil {
		gateway = &LogGateway{}
	}
	if clock == nil {
		clock = competitionmanager.SystemClock()
	}
	return &ChallengeService{
		challengeRepo: challengeRepo,
		gateway:       gateway,
		clock:         clock,
	}
}

// CreateChallengeInput carries the fields for CreateChallenge.
type CreateChallengeInput struct {
	Title        string
	Description  string
	TargetMetric string
	TargetValue  int
	PointReward  int
	StartDate    time.Time
}

// CreateChallenge creates an active challenge spanning exactly one week from
// the start date.
func (s *ChallengeService) CreateChallenge(ctx context.Context, input CreateChallengeInput) (*entity.WeeklyChallenge, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if input.TargetMetric == "" {
		return nil, fmt.Errorf("%w: target metric is required", apperrors.ErrValidation)
	}
	if input.TargetValue <= 0 {
		return nil, fmt.Errorf("%w: target value must be positive", apperrors.ErrValidation)
	}
	if input.StartDate.IsZero() {
		input.StartDate = s.clock.Now()
	}

	challenge := &entity.WeeklyChallenge{
		Title:          input.Title,
		Description:    input.Description,
		TargetMetric:   input.TargetMetric,
		TargetValue:    input.TargetValue,
		PointReward:    input.PointReward,
		StartDate:      input.StartDate,
		EndDate:        input.StartDate.Add(entity.ChallengeWindow),
		ParticipantIDs: entity.UintArray{},
		AwardedIDs:     entity.UintArray{},
		Active:         true,
	}

	if err := s.challengeRepo.Create(challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	log.Printf("[ChallengeService] challenge #%d %q created (ends %s)",
		challenge.ID, challenge.Title, challenge.EndDate.Format(time.RFC3339))
	return challenge, nil
}

// JoinChallenge enrolls the user in an active challenge. Joining twice is a
// no-op; joining an inactive or expired challenge fails with ErrConflict.
func (s *ChallengeService) JoinChallenge(ctx context.Context, challengeID, userID uint) error {
	challenge, err := s.challengeRepo.GetByID(challengeID)
	if err != nil {
		return err
	}

	if !challenge.Active || challenge.IsExpired(s.clock.Now()) {
		return fmt.Errorf("%w: challenge #%d is no longer open", apperrors.ErrConflict, challengeID)
	}
	if challenge.ParticipantIDs.Contains(userID) {
		return nil
	}

	challenge.ParticipantIDs = append(challenge.ParticipantIDs, userID)
	if err := s.challengeRepo.Update(challenge); err != nil {
		return fmt.Errorf("failed to enroll user %d in challenge #%d: %w", userID, challengeID, err)
	}

	log.Printf("[ChallengeService] user %d joined challenge #%d", userID, challengeID)
	return nil
}

// RecordProgress evaluates a metric reading against every active challenge
// the user is enrolled in, awarding the point reward at most once per
// challenge. A failure on one challenge never blocks evaluation of the rest.
func (s *ChallengeService) RecordProgress(ctx context.Context, userID uint, metric string, value int) error {
	challenges, err := s.challengeRepo.GetActive()
	if err != nil {
		return fmt.Errorf("failed to load active challenges: %w", err)
	}

	now := s.clock.Now()
	for i := range challenges {
		challenge := &challenges[i]
		if challenge.TargetMetric != metric || challenge.IsExpired(now) {
			continue
		}
		if !challenge.ParticipantIDs.Contains(userID) {
			continue
		}
		if value < challenge.TargetValue {
			continue
		}
		if challenge.AwardedIDs.Contains(userID) {
			continue
		}

		challenge.AwardedIDs = append(challenge.AwardedIDs, userID)
		if err := s.challengeRepo.Update(challenge); err != nil {
			log.Printf("[ChallengeService] award ledger update for challenge #%d failed: %v", challenge.ID, err)
			continue
		}

		err := s.gateway.RecordUserAction(ctx, userID, ActionChallengeReward, map[string]interface{}{
			"challenge_id": challenge.ID,
			"metric":       metric,
			"points":       challenge.PointReward,
		})
		if err != nil {
			log.Printf("[ChallengeService] reward forwarding for challenge #%d failed: %v", challenge.ID, err)
		}

		notifyErr := s.gateway.SendNotification(ctx, userID, Notification{
			Kind:    "challenge_completed",
			Title:   challenge.Title,
			Message: fmt.Sprintf("Challenge complete! You earned %d points.", challenge.PointReward),
			Icon:    "star",
		})
		if notifyErr != nil {
			log.Printf("[ChallengeService] completion notification for challenge #%d failed: %v", challenge.ID, notifyErr)
		}

		log.Printf("[ChallengeService] user %d completed challenge #%d (%s >= %d)",
			userID, challenge.ID, metric, challenge.TargetValue)
	}
	return nil
}

// DeactivateExpired flips the active flag off for every challenge whose
// window has elapsed. The scheduler calls this on its sweep tick.
func (s *ChallengeService) DeactivateExpired(ctx context.Context) error {
	challenges, err := s.challengeRepo.GetActive()
	if err != nil {
		return fmt.Errorf("failed to load active challenges: %w", err)
	}

	now := s.clock.Now()
	for i := range challenges {
		if !challenges[i].IsExpired(now) {
			continue
		}
		if err := s.challengeRepo.Deactivate(challenges[i].ID); err != nil {
			log.Printf("[ChallengeService] deactivation of challenge #%d failed: %v", challenges[i].ID, err)
			continue
		}
		log.Printf("[ChallengeService] challenge #%d expired and deactivated", challenges[i].ID)
	}
	return nil
}

// ListActive returns challenges whose active flag is still set.
func (s *ChallengeService) ListActive() ([]entity.WeeklyChallenge, error) {
	return s.challengeRepo.GetActive()
}

// GetChallenge returns a challenge by id.
func (s *ChallengeService) GetChallenge(challengeID uint) (*entity.WeeklyChallenge, error) {
	return s.challengeRepo.GetByID(challengeID)
}
