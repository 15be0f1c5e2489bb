package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/competition-api/internal/domain/entity"
	"github.com/yourusername/competition-api/internal/domain/repository"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
)

// CompetitionRepo implements repository.CompetitionRepository on PostgreSQL.
type CompetitionRepo struct {
	db *gorm.DB
}

// NewCompetitionRepo creates a new competition repository.
func NewCompetitionRepo(db *gorm.DB) *CompetitionRepo {
	return &CompetitionRepo{db: db}
}

// Create inserts the competition together with its prize list.
func (r *CompetitionRepo) Create(competition *entity.Competition) error {
	return r.db.Create(competition).Error
}

// GetByID returns the competition with participants, prizes and leaderboard
// preloaded.
func (r *CompetitionRepo) GetByID(id uint) (*entity.Competition, error) {
	var competition entity.Competition
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		Preload("Prizes", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		Preload("Leaderboard", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		First(&competition, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &competition, nil
}

// List returns competitions matching the filter, with total count.
func (r *CompetitionRepo) List(filter repository.CompetitionFilter, limit, offset int) ([]entity.Competition, int64, error) {
	var competitions []entity.Competition
	var total int64

	query := r.db.Model(&entity.Competition{})

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.ParticipantUserID != nil {
		query = query.Where(
			"id IN (?)",
			r.db.Model(&entity.Participant{}).
				Select("competition_id").
				Where("user_id = ?", *filter.ParticipantUserID),
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).
		Order("start_date DESC, id DESC").
		Find(&competitions).Error
	if err != nil {
		return nil, 0, err
	}
	return competitions, total, nil
}

// GetByStatuses returns competitions in any of the given statuses with
// participants preloaded. Used by the scheduler's sweep and refresh ticks.
func (r *CompetitionRepo) GetByStatuses(statuses ...string) ([]entity.Competition, error) {
	var competitions []entity.Competition
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		Where("status IN ?", statuses).
		Order("start_date ASC").
		Find(&competitions).Error
	return competitions, err
}

// UpdateFields applies a partial update to the competition row.
func (r *CompetitionRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&entity.Competition{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateStatus updates only the status column.
func (r *CompetitionRepo) UpdateStatus(id uint, status string) error {
	return r.db.Model(&entity.Competition{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// AddParticipant inserts a participant row. The (competition_id, user_id)
// unique index backs the AlreadyJoined invariant at the storage level.
func (r *CompetitionRepo) AddParticipant(participant *entity.Participant) error {
	return r.db.Create(participant).Error
}

// GetParticipants returns the competition's participants ordered by join time.
func (r *CompetitionRepo) GetParticipants(competitionID uint) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.Where("competition_id = ?", competitionID).
		Order("joined_at ASC, id ASC").
		Find(&participants).Error
	return participants, err
}

// SaveParticipants persists score and rank changes for the given rows.
func (r *CompetitionRepo) SaveParticipants(participants []entity.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	tx := r.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	for i := range participants {
		err := tx.Model(&entity.Participant{}).
			Where("id = ?", participants[i].ID).
			Updates(map[string]interface{}{
				"score": participants[i].Score,
				"rank":  participants[i].Rank,
			}).Error
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// ReplaceLeaderboard swaps the stored leaderboard for the competition in a
// single transaction so readers never observe a half-written board.
func (r *CompetitionRepo) ReplaceLeaderboard(competitionID uint, entries []entity.LeaderboardEntry) error {
	tx := r.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Where("competition_id = ?", competitionID).
		Delete(&entity.LeaderboardEntry{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(entries) > 0 {
		if err := tx.Create(&entries).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// GetLeaderboard returns the stored leaderboard ordered by rank.
func (r *CompetitionRepo) GetLeaderboard(competitionID uint) ([]entity.LeaderboardEntry, error) {
	var entries []entity.LeaderboardEntry
	err := r.db.Where("competition_id = ?", competitionID).
		Order("rank ASC").
		Find(&entries).Error
	return entries, err
}
