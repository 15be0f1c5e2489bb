package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/competition-api/internal/domain/entity"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
)

// TeamRepo implements repository.TeamRepository on PostgreSQL.
type TeamRepo struct {
	db *gorm.DB
}

// NewTeamRepo creates a new team repository.
func NewTeamRepo(db *gorm.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// Create inserts the team together with its initial roster.
func (r *TeamRepo) Create(team *entity.Team) error {
	return r.db.Create(team).Error
}

// GetByID returns the team with members preloaded.
func (r *TeamRepo) GetByID(id uint) (*entity.Team, error) {
	var team entity.Team
	err := r.db.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		First(&team, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// List returns teams with total count.
func (r *TeamRepo) List(limit, offset int) ([]entity.Team, int64, error) {
	var teams []entity.Team
	var total int64

	if err := r.db.Model(&entity.Team{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Limit(limit).Offset(offset).
		Order("total_points DESC, id ASC").
		Find(&teams).Error
	if err != nil {
		return nil, 0, err
	}
	return teams, total, nil
}

// AddMember inserts a roster row. The (team_id, user_id) unique index backs
// the AlreadyMember invariant at the storage level.
func (r *TeamRepo) AddMember(member *entity.TeamMember) error {
	return r.db.Create(member).Error
}

// UpdateFields applies a partial update to the team row, typically the
// aggregate stats columns.
func (r *TeamRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&entity.Team{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// IncrementStats rolls a competition result into the team aggregates in one
// atomic update. A win extends the current streak and keeps the best streak
// in sync; a loss resets the current streak.
func (r *TeamRepo) IncrementStats(id uint, points int, win bool) error {
	fields := map[string]interface{}{
		"total_points": gorm.Expr("total_points + ?", points),
	}
	if win {
		fields["wins"] = gorm.Expr("wins + 1")
		fields["current_streak"] = gorm.Expr("current_streak + 1")
		fields["best_streak"] = gorm.Expr("GREATEST(best_streak, current_streak + 1)")
	} else {
		fields["current_streak"] = 0
	}

	result := r.db.Model(&entity.Team{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
