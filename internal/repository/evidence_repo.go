package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
)

type EvidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// UpsertForVerification links an evidence file to a verification
// result. A record that already reached the verified status is
// immutable: it is returned unchanged and the new file is ignored.
func (r *EvidenceRepository) UpsertForVerification(verificationID uuid.UUID, storagePath, status string) (*models.EvidenceRecord, error) {
	var existing models.EvidenceRecord
	err := r.db.First(&existing, "verification_id = ?", verificationID).Error
	switch {
	case err == nil:
		if existing.Status == models.EvidenceVerified {
			return &existing, nil
		}
		existing.StoragePath = storagePath
		existing.Status = status
		if err := r.db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec := models.EvidenceRecord{
			ID:             uuid.New(),
			VerificationID: &verificationID,
			StoragePath:    storagePath,
			Status:         status,
		}
		if err := r.db.Create(&rec).Error; err != nil {
			return nil, err
		}
		return &rec, nil
	default:
		return nil, err
	}
}

// FindByDonationID returns nil without error when the donation has no
// evidence on file.
func (r *EvidenceRepository) FindByDonationID(donationID string) (*models.EvidenceRecord, error) {
	var rec models.EvidenceRecord
	err := r.db.First(&rec, "donation_id = ?", donationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertInbox stores a standalone evidence upload keyed by donation id,
// before any verification has taken place.
func (r *EvidenceRepository) InsertInbox(donationID, storagePath string) (*models.EvidenceRecord, error) {
	rec := models.EvidenceRecord{
		ID:          uuid.New(),
		DonationID:  &donationID,
		StoragePath: storagePath,
		Status:      models.EvidenceNotVerified,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
