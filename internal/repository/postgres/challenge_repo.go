package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/competition-api/internal/domain/entity"
	apperrors "github.com/yourusername/competition-api/internal/pkg/errors"
)

// ChallengeRepo implements repository.ChallengeRepository on PostgreSQL.
type ChallengeRepo struct {
	db *gorm.DB
}

// NewChallengeRepo creates a new weekly challenge repository.
func NewChallengeRepo(db *gorm.DB) *ChallengeRepo {
	return &ChallengeRepo{db: db}
}

// Create inserts a new challenge definition.
func (r *ChallengeRepo) Create(challenge *entity.WeeklyChallenge) error {
	return r.db.Create(challenge).Error
}

// GetByID returns a challenge by id.
func (r *ChallengeRepo) GetByID(id uint) (*entity.WeeklyChallenge, error) {
	var challenge entity.WeeklyChallenge
	err := r.db.First(&challenge, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// GetActive returns challenges whose active flag is still set.
func (r *ChallengeRepo) GetActive() ([]entity.WeeklyChallenge, error) {
	var challenges []entity.WeeklyChallenge
	err := r.db.Where("active = ?", true).
		Order("end_date ASC").
		Find(&challenges).Error
	return challenges, err
}

// Update saves the full challenge row (participant and award lists).
func (r *ChallengeRepo) Update(challenge *entity.WeeklyChallenge) error {
	return r.db.Save(challenge).Error
}

// Deactivate clears the active flag.
func (r *ChallengeRepo) Deactivate(id uint) error {
	return r.db.Model(&entity.WeeklyChallenge{}).
		Where("id = ?", id).
		Update("active", false).Error
}
