package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Upsert stores a verification result. Results that carry an external
// reference are keyed on it, so re-verifying the same payment replaces
// the earlier outcome instead of accumulating rows. Results without a
// reference are always inserted.
func (r *VerificationRepository) Upsert(v *models.VerificationResult) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.ExternalReference == nil {
		return r.db.Create(v).Error
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_reference"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount", "donor_name", "date", "status", "currency",
			"payment_channel", "checks_passed", "checks_failed",
			"check_details", "sheet_row",
		}),
	}).Create(v).Error
}

func (r *VerificationRepository) GetByID(id uuid.UUID) (*models.VerificationResult, error) {
	var v models.VerificationResult
	if err := r.db.First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByExternalReference returns nil without error when no result with
// that reference exists.
func (r *VerificationRepository) FindByExternalReference(ref string) (*models.VerificationResult, error) {
	var v models.VerificationResult
	err := r.db.First(&v, "external_reference = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListFilter narrows the verification listing. Empty fields are
// ignored.
type ListFilter struct {
	Status    string
	DonorName string
	DateFrom  string
	DateTo    string
	Limit     int
}

func (r *VerificationRepository) List(f ListFilter) ([]models.VerificationResult, error) {
	q := r.db.Model(&models.VerificationResult{})

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DonorName != "" {
		q = q.Where("LOWER(donor_name) LIKE ?", "%"+strings.ToLower(f.DonorName)+"%")
	}
	if f.DateFrom != "" {
		q = q.Where("date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		q = q.Where("date <= ?", f.DateTo+" 23:59:59")
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []models.VerificationResult
	err := q.Order("created_at DESC").Limit(limit).Find(&results).Error
	return results, err
}
