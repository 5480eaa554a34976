package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
)

type SyncStateRepository struct {
	db *gorm.DB
}

func NewSyncStateRepository(db *gorm.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// LastSyncTime returns the zero time when no sync has run yet or the
// stored timestamp cannot be parsed.
func (r *SyncStateRepository) LastSyncTime(key string) (time.Time, error) {
	var st models.SyncState
	err := r.db.First(&st, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, st.Value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (r *SyncStateRepository) SetSyncTime(key string, t time.Time) error {
	st := models.SyncState{
		Key:       key,
		Value:     t.UTC().Format(time.RFC3339),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&st).Error
}
