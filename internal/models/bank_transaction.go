package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WebhookSheetRow marks ledger rows that arrived via the bank webhook rather
// than the spreadsheet export. Spreadsheet rows carry their absolute sheet
// position (>= 0), which doubles as the sync watermark.
const WebhookSheetRow = -1

// BankTransaction is one bank-reported movement of funds. Dates are stored in
// canonical string form ("YYYY-MM-DD" or "YYYY-MM-DD HH:MM:SS") so the
// date-only vs datetime distinction survives storage.
type BankTransaction struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingDate      *string
	ValueDate        *string
	DocID            *string `gorm:"uniqueIndex"`
	Stan             string
	Description      string
	Debit            *decimal.Decimal `gorm:"type:numeric(15,2)"`
	Credit           *decimal.Decimal `gorm:"type:numeric(15,2);index"`
	AvailableBalance *decimal.Decimal `gorm:"type:numeric(15,2)"`
	SheetRow         int              `gorm:"index"`
	CreatedAt        time.Time
}

// StatementDate returns the date used for calendar-day matching: the value
// date when present, otherwise the booking date.
func (t *BankTransaction) StatementDate() string {
	if t.ValueDate != nil && *t.ValueDate != "" {
		return *t.ValueDate
	}
	if t.BookingDate != nil {
		return *t.BookingDate
	}
	return ""
}
