package models

import (
	"time"

	"github.com/google/uuid"
)

// Evidence statuses.
const (
	EvidenceVerified    = "verified"
	EvidenceNotVerified = "not_verified"
)

// EvidenceRecord ties an uploaded payment screenshot to a verification
// result. VerificationID stays nil until the evidence is linked. Once the
// status reaches verified the record is immutable; later writes for the same
// verification return it unchanged.
type EvidenceRecord struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	VerificationID *uuid.UUID `gorm:"index"`
	DonationID     *string    `gorm:"index"`
	StoragePath    string
	Status         string
	SheetRow       *int
	UploadedAt     time.Time `gorm:"autoCreateTime"`
}
