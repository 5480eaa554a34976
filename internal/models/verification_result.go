package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Verification statuses.
const (
	StatusVerified       = "verified"
	StatusNotFound       = "not_found"
	StatusWrongReceiver  = "wrong_receiver"
	StatusDateParseError = "date_parse_error"
)

// VerificationResult is the persisted verdict of one slip verification
// attempt. Re-verification with the same external reference overwrites the
// prior row; last write wins.
type VerificationResult struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Amount            *decimal.Decimal `gorm:"type:numeric(15,2)"`
	DonorName         string
	Date              string
	ExternalReference *string `gorm:"uniqueIndex"`
	Status            string  `gorm:"index"`
	Currency          string
	PaymentChannel    string
	ChecksPassed      int
	ChecksFailed      int
	CheckDetails      datatypes.JSON
	SheetRow          *int
	CreatedAt         time.Time
}
