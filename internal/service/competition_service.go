package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
	"github.com/yourusername/competition-api/internal/events"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
	"github.com/yourusername/competition-api/internal/service/competitionmanager"
)

// CompetitionService is the lifecycle state machine. It exclusively owns
// mutation of competition and participant state; every mutating operation on
// one competition is serialized through a per-competition mutex, because the
// explicit caller path and the scheduler's implicit path can otherwise
// interleave on the same id. Within one operation the leaderboard recompute
// always happens before the persisted write and before event emission.
type CompetitionService struct {
	competitionRepo repository.CompetitionRepository
	teamRepo        repository.TeamRepository
	cacheRepo       repository.CacheRepository // optional; nil disables caching
	dispatcher      *events.Dispatcher
	feed            events.ChangeFeed // optional; nil disables the change feed
	gateway         RewardGateway
	clock           competitionmanager.Clock
	config          *competitionmanager.Config

	locks sync.Map // map[uint]*sync.Mutex, one per competition id
}

// NewCompetitionService creates the lifecycle state machine.
func NewCompetitionService(
	competitionRepo repository.CompetitionRepository,
	teamRepo repository.TeamRepository,
	cacheRepo repository.CacheRepository,
	dispatcher *events.Dispatcher,
	feed events.ChangeFeed,
	gateway RewardGateway,
	clock competitionmanager.Clock,
	config *competitionmanager.Config,
) *CompetitionService {
	if gateway == nil {
		gateway = &LogGateway{}
	}
	if clock == nil {
		clock = competitionmanager.SystemClock()
	}
	if config == nil {
		config = competitionmanager.DefaultConfig()
	}
	return &CompetitionService{
		competitionRepo: competitionRepo,
		teamRepo:        teamRepo,
		cacheRepo:       cacheRepo,
		dispatcher:      dispatcher,
		feed:            feed,
		gateway:         gateway,
		clock:           clock,
		config:          config,
	}
}

// lockCompetition serializes mutating operations on one competition id and
// returns the unlock function.
func (s *CompetitionService) lockCompetition(id uint) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateCompetitionInput carries the fields for CreateCompetition.
type CreateCompetitionInput struct {
	Title       string
	Description string
	Type        string
	Category    string
	StartDate   time.Time
	EndDate     time.Time
	Settings    entity.CompetitionSettings
	Prizes      []entity.Prize
}

// CreateCompetition creates a competition in the draft status with its
// immutable prize list.
func (s *CompetitionService) CreateCompetition(ctx context.Context, input CreateCompetitionInput) (*entity.Competition, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if input.Type == "" {
		input.Type = entity.CompetitionTypeIndividual
	}
	if input.Type != entity.CompetitionTypeIndividual && input.Type != entity.CompetitionTypeTeam {
		return nil, fmt.Errorf("%w: unknown competition type %q", apperrors.ErrValidation, input.Type)
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", apperrors.ErrValidation)
	}
	if input.Settings.MaxParticipants < 0 {
		return nil, fmt.Errorf("%w: max participants cannot be negative", apperrors.ErrValidation)
	}
	if input.Settings.NotificationFrequency == "" {
		input.Settings.NotificationFrequency = entity.NotificationFrequencyRealtime
	}

	competition := &entity.Competition{
		Title:       input.Title,
		Description: input.Description,
		Type:        input.Type,
		Category:    input.Category,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      entity.CompetitionStatusDraft,
		Settings:    input.Settings,
		Prizes:      input.Prizes,
	}

	if err := s.competitionRepo.Create(competition); err != nil {
		return nil, fmt.Errorf("failed to create competition: %w", err)
	}

	s.announceChange(events.ChangeInsert, competition.ID)
	s.emit(events.KindCompetitionCreated, competition.ID, competition)

	log.Printf("[CompetitionService] competition #%d %q created", competition.ID, competition.Title)
	return competition, nil
}

// Publish moves a draft competition into the upcoming status, making it
// visible to the scheduler's sweep. Publishing an already-published
// competition is a no-op.
func (s *CompetitionService) Publish(ctx context.Context, competitionID uint) error {
	unlock := s.lockCompetition(competitionID)
	defer unlock()

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return err
	}

	if competition.IsUpcoming() {
		return nil
	}
	if !competition.CanTransitionTo(entity.CompetitionStatusUpcoming) {
		return fmt.Errorf("%w: cannot publish a %s competition", apperrors.ErrConflict, competition.Status)
	}
	if !competition.EndDate.After(s.clock.Now()) {
		return fmt.Errorf("%w: end date is already in the past", apperrors.ErrValidation)
	}
	if max := competition.Settings.MaxParticipants; max > 0 {
		for i := range competition.Prizes {
			if competition.Prizes[i].Rank > max {
				return fmt.Errorf("%w: prize rank %d exceeds the participant limit %d",
					apperrors.ErrValidation, competition.Prizes[i].Rank, max)
			}
		}
	}

	if err := s.competitionRepo.UpdateStatus(competitionID, entity.CompetitionStatusUpcoming); err != nil {
		return fmt.Errorf("failed to publish competition #%d: %w", competitionID, err)
	}
	s.announceChange(events.ChangeUpdate, competitionID)

	log.Printf("[CompetitionService] competition #%d published", competitionID)
	return nil
}

// Join admits a user into the competition. It fails with ErrAlreadyJoined if
// the user already holds a participant record and with ErrCompetitionFull
// once the participant limit is reached; neither failure mutates any state.
func (s *CompetitionService) Join(ctx context.Context, competitionID, userID uint, teamID *uint) (*entity.Participant, error) {
	unlock := s.lockCompetition(competitionID)
	defer unlock()

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return nil, err
	}

	if competition.HasParticipant(userID) {
		return nil, apperrors.ErrAlreadyJoined
	}
	if competition.IsFull() {
		return nil, apperrors.ErrCompetitionFull
	}

	participant := &entity.Participant{
		CompetitionID: competitionID,
		UserID:        userID,
		TeamID:        teamID,
		JoinedAt:      s.clock.Now(),
		Score:         0,
		// Provisional rank until the recompute below runs.
		Rank: len(competition.Participants) + 1,
	}
	if err := s.competitionRepo.AddParticipant(participant); err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}

	if _, err := s.recomputeAndPersist(competitionID); err != nil {
		return nil, err
	}

	s.emit(events.KindParticipantJoined, competitionID, participant)
	log.Printf("[CompetitionService] user %d joined competition #%d", userID, competitionID)
	return participant, nil
}

// Start transitions the competition to active, stamps the actual start time
// and notifies every current participant. Both the operator path and the
// scheduler sweep call this entry point; starting an already-active or
// already-completed competition is a successful no-op, which guards against
// the double-invocation race between the two paths.
func (s *CompetitionService) Start(ctx context.Context, competitionID uint) error {
	unlock := s.lockCompetition(competitionID)
	defer unlock()

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return err
	}

	if competition.IsActive() || competition.IsCompleted() {
		return nil
	}
	if !competition.CanTransitionTo(entity.CompetitionStatusActive) {
		return fmt.Errorf("%w: cannot start a %s competition", apperrors.ErrConflict, competition.Status)
	}

	now := s.clock.Now()
	err = s.competitionRepo.UpdateFields(competitionID, map[string]interface{}{
		"status":     entity.CompetitionStatusActive,
		"start_date": now,
	})
	if err != nil {
		return fmt.Errorf("failed to start competition #%d: %w", competitionID, err)
	}
	s.announceChange(events.ChangeUpdate, competitionID)

	for i := range competition.Participants {
		s.notify(ctx, competition.Participants[i].UserID, Notification{
			Kind:    "competition_started",
			Title:   competition.Title,
			Message: fmt.Sprintf("%s has started. Good luck!", competition.Title),
			Icon:    "flag",
		})
	}

	s.emit(events.KindCompetitionStarted, competitionID, competition)
	log.Printf("[CompetitionService] competition #%d started", competitionID)
	return nil
}

// End transitions the competition to completed, forces a final leaderboard
// recompute, awards prizes and notifies every participant with their final
// rank. Ending an already-completed competition is a successful no-op and
// never re-awards or re-notifies.
func (s *CompetitionService) End(ctx context.Context, competitionID uint) error {
	unlock := s.lockCompetition(competitionID)
	defer unlock()

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return err
	}

	if competition.IsCompleted() {
		return nil
	}
	if !competition.CanTransitionTo(entity.CompetitionStatusCompleted) {
		return fmt.Errorf("%w: cannot end a %s competition", apperrors.ErrConflict, competition.Status)
	}

	// Final board first, so prize award and notifications see final ranks.
	entries, err := s.recomputeAndPersist(competitionID)
	if err != nil {
		return err
	}

	if err := s.competitionRepo.UpdateStatus(competitionID, entity.CompetitionStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete competition #%d: %w", competitionID, err)
	}
	s.announceChange(events.ChangeUpdate, competitionID)

	s.awardPrizes(ctx, competition, entries)
	s.recordTeamResult(entries)

	s.emit(events.KindCompetitionEnded, competitionID, entries)
	log.Printf("[CompetitionService] competition #%d completed with %d participants", competitionID, len(entries))
	return nil
}

// awardPrizes walks the immutable prize list, forwards a point award for
// every rank that has a holder and notifies all participants. A prize with
// no participant at its rank is simply not awarded. Gateway failures are
// logged and contained: they must never corrupt the completed state.
func (s *CompetitionService) awardPrizes(ctx context.Context, competition *entity.Competition, entries []entity.LeaderboardEntry) {
	byRank := make(map[int]*entity.LeaderboardEntry, len(entries))
	for i := range entries {
		byRank[entries[i].Rank] = &entries[i]
	}

	won := make(map[uint]*entity.Prize)
	for i := range competition.Prizes {
		prize := &competition.Prizes[i]
		entry, ok := byRank[prize.Rank]
		if !ok {
			continue
		}
		won[entry.UserID] = prize

		err := s.gateway.RecordUserAction(ctx, entry.UserID, ActionCompetitionPrize, map[string]interface{}{
			"competition_id": competition.ID,
			"rank":           prize.Rank,
			"points":         prize.Points,
			"badge_id":       prize.BadgeID,
		})
		if err != nil {
			log.Printf("[CompetitionService] prize award for user %d in competition #%d failed: %v",
				entry.UserID, competition.ID, err)
		}
	}

	for i := range entries {
		entry := &entries[i]
		if prize, ok := won[entry.UserID]; ok {
			s.notify(ctx, entry.UserID, Notification{
				Kind:    "competition_ended",
				Title:   competition.Title,
				Message: fmt.Sprintf("You finished #%d and won %s (+%d points)!", entry.Rank, prize.Title, prize.Points),
				Icon:    "trophy",
			})
			continue
		}
		s.notify(ctx, entry.UserID, Notification{
			Kind:    "competition_ended",
			Title:   competition.Title,
			Message: fmt.Sprintf("%s has ended. You finished #%d.", competition.Title, entry.Rank),
			Icon:    "flag",
		})
	}
}

// recordTeamResult rolls the winner's points into the team aggregate stats
// when the rank-1 participant competed for a team.
func (s *CompetitionService) recordTeamResult(entries []entity.LeaderboardEntry) {
	if s.teamRepo == nil {
		return
	}
	for i := range entries {
		if entries[i].Rank != 1 || entries[i].TeamID == nil {
			continue
		}
		if err := s.teamRepo.IncrementStats(*entries[i].TeamID, entries[i].Score, true); err != nil {
			log.Printf("[CompetitionService] team stats update for team #%d failed: %v", *entries[i].TeamID, err)
		}
		return
	}
}

// UpdateScore applies a score delta for a participant. Score events against a
// non-active competition or an unknown participant are expected late arrivals
// and are silently dropped rather than raised: stale events from ended
// competitions must not corrupt final results. When the competition has the
// auto-join setting, an unknown user is admitted on their first score event.
func (s *CompetitionService) UpdateScore(ctx context.Context, competitionID, userID uint, delta int, reason string) error {
	unlock := s.lockCompetition(competitionID)
	defer unlock()

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[CompetitionService] dropping score event for unknown competition #%d", competitionID)
			return nil
		}
		return err
	}

	if !competition.IsActive() {
		log.Printf("[CompetitionService] dropping stale score event for %s competition #%d (user %d, delta %d)",
			competition.Status, competitionID, userID, delta)
		return nil
	}

	participants, err := s.competitionRepo.GetParticipants(competitionID)
	if err != nil {
		return fmt.Errorf("failed to load participants for competition #%d: %w", competitionID, err)
	}

	idx := -1
	for i := range participants {
		if participants[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		if !competition.Settings.AutoJoin || competition.IsFull() {
			log.Printf("[CompetitionService] dropping score event for non-participant %d in competition #%d",
				userID, competitionID)
			return nil
		}
		participant := &entity.Participant{
			CompetitionID: competitionID,
			UserID:        userID,
			JoinedAt:      s.clock.Now(),
			Rank:          len(participants) + 1,
		}
		if err := s.competitionRepo.AddParticipant(participant); err != nil {
			return fmt.Errorf("failed to auto-join user %d: %w", userID, err)
		}
		participants = append(participants, *participant)
		idx = len(participants) - 1
		s.emit(events.KindParticipantJoined, competitionID, participant)
	}

	participants[idx].Score += delta

	if _, err := s.recomputeWith(competitionID, participants); err != nil {
		return err
	}

	err = s.gateway.RecordUserAction(ctx, userID, ActionCompetitionScore, map[string]interface{}{
		"competition_id": competitionID,
		"delta":          delta,
		"total":          participants[idx].Score,
		"reason":         reason,
	})
	if err != nil {
		log.Printf("[CompetitionService] score action forwarding for user %d failed: %v", userID, err)
	}
	return nil
}

// RefreshLeaderboard forces a recompute for an active competition. The
// scheduler calls this on its refresh tick to bound staleness caused by
// out-of-band score mutations; refreshing a non-active competition is a no-op.
func (s *CompetitionService) RefreshLeaderboard(ctx context.Context, competitionID uint) error {
	unlock := s.lockCompetition(competitionID)
	defer unlock()

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return err
	}
	if !competition.IsActive() {
		return nil
	}

	_, err = s.recomputeAndPersist(competitionID)
	return err
}

// GetCompetition returns the competition aggregate, serving from the advisory
// cache when possible.
func (s *CompetitionService) GetCompetition(competitionID uint) (*entity.Competition, error) {
	if s.cacheRepo != nil {
		var cached entity.Competition
		if err := s.cacheRepo.GetJSON(competitionCacheKey(competitionID), &cached); err == nil {
			return &cached, nil
		}
	}

	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(competitionCacheKey(competitionID), competition, s.config.CacheTTL); err != nil {
			log.Printf("[CompetitionService] cache write for competition #%d failed: %v", competitionID, err)
		}
	}
	return competition, nil
}

// GetLeaderboard returns the stored leaderboard ordered by rank.
func (s *CompetitionService) GetLeaderboard(competitionID uint) ([]entity.LeaderboardEntry, error) {
	if _, err := s.competitionRepo.GetByID(competitionID); err != nil {
		return nil, err
	}
	return s.competitionRepo.GetLeaderboard(competitionID)
}

// ListCompetitions returns competitions matching the filter with total count.
func (s *CompetitionService) ListCompetitions(filter repository.CompetitionFilter, limit, offset int) ([]entity.Competition, int64, error) {
	return s.competitionRepo.List(filter, limit, offset)
}

// recomputeAndPersist loads the current participants and runs the ranking
// engine over them.
func (s *CompetitionService) recomputeAndPersist(competitionID uint) ([]entity.LeaderboardEntry, error) {
	participants, err := s.competitionRepo.GetParticipants(competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants for competition #%d: %w", competitionID, err)
	}
	return s.recomputeWith(competitionID, participants)
}

// recomputeWith runs the ranking engine over the given participants, persists
// ranks and the fresh board, then emits the leaderboard event. The recompute
// happens-before the persisted write, which happens-before the emission.
func (s *CompetitionService) recomputeWith(competitionID uint, participants []entity.Participant) ([]entity.LeaderboardEntry, error) {
	entries := competitionmanager.ComputeLeaderboard(competitionID, participants, s.clock.Now())

	if err := s.competitionRepo.SaveParticipants(participants); err != nil {
		return nil, fmt.Errorf("failed to persist participant ranks for competition #%d: %w", competitionID, err)
	}
	if err := s.competitionRepo.ReplaceLeaderboard(competitionID, entries); err != nil {
		return nil, fmt.Errorf("failed to persist leaderboard for competition #%d: %w", competitionID, err)
	}

	s.announceChange(events.ChangeUpdate, competitionID)
	s.emit(events.KindLeaderboardUpdated, competitionID, entries)
	return entries, nil
}

// notify sends through the gateway, logging instead of propagating failures.
func (s *CompetitionService) notify(ctx context.Context, userID uint, n Notification) {
	if err := s.gateway.SendNotification(ctx, userID, n); err != nil {
		log.Printf("[CompetitionService] notification to user %d failed: %v", userID, err)
	}
}

// emit publishes an engine event to the dispatcher.
func (s *CompetitionService) emit(kind events.Kind, competitionID uint, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(events.Event{
		ID:            uuid.NewString(),
		Kind:          kind,
		CompetitionID: competitionID,
		OccurredAt:    s.clock.Now(),
		Payload:       payload,
	})
}

// announceChange drops the cached aggregate and announces the mutation on the
// change feed. Both are advisory; failures are logged only.
func (s *CompetitionService) announceChange(op string, competitionID uint) {
	if s.cacheRepo != nil {
		if err := s.cacheRepo.Delete(competitionCacheKey(competitionID)); err != nil {
			log.Printf("[CompetitionService] cache invalidation for competition #%d failed: %v", competitionID, err)
		}
	}
	if s.feed != nil {
		err := s.feed.Publish(events.Change{
			Op:       op,
			Entity:   events.EntityCompetition,
			EntityID: competitionID,
			At:       s.clock.Now(),
		})
		if err != nil {
			log.Printf("[CompetitionService] change feed publish for competition #%d failed: %v", competitionID, err)
		}
	}
}

func competitionCacheKey(id uint) string {
	return fmt.Sprintf("competition:%d", id)
}
