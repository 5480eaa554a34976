package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

// InsertWebhookTransaction stores a record built from a bank alert. The
// unique index on doc_id arbitrates races: a conflicting insert is
// silently skipped and reported as a duplicate.
func (r *BankTransactionRepository) InsertWebhookTransaction(tx *models.BankTransaction) (inserted bool, err error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.SheetRow = models.WebhookSheetRow

	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_id"}},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// StanByDocID returns the stored stan for a statement document, or
// ("", false) when no row with that doc id exists.
func (r *BankTransactionRepository) StanByDocID(docID string) (string, bool, error) {
	var tx models.BankTransaction
	err := r.db.Select("stan").Where("doc_id = ?", docID).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tx.Stan, true, nil
}

// SetStanByDocID backfills the stan on an existing row that was stored
// without one.
func (r *BankTransactionRepository) SetStanByDocID(docID, stan string) error {
	return r.db.Model(&models.BankTransaction{}).
		Where("doc_id = ?", docID).
		Update("stan", stan).Error
}

// BulkInsert stores a batch of sheet rows in one statement. Rows whose
// doc_id already exists are skipped rather than failing the batch.
func (r *BankTransactionRepository) BulkInsert(txs []models.BankTransaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	for i := range txs {
		if txs[i].ID == uuid.Nil {
			txs[i].ID = uuid.New()
		}
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_id"}},
		DoNothing: true,
	}).Create(&txs)
	return int(res.RowsAffected), res.Error
}

// MaxSheetRow returns the highest spreadsheet position stored so far.
// Webhook rows carry a sentinel position and never advance it.
func (r *BankTransactionRepository) MaxSheetRow() (int, error) {
	var max *int
	err := r.db.Model(&models.BankTransaction{}).
		Where("sheet_row > ?", models.WebhookSheetRow).
		Select("MAX(sheet_row)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// ListCredits returns every row with a positive credit, newest value
// date first. This is the candidate order the matcher scans in.
func (r *BankTransactionRepository) ListCredits() ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.
		Where("credit IS NOT NULL AND credit > 0").
		Order("value_date DESC, booking_date DESC").
		Find(&txs).Error
	return txs, err
}

// SearchFilter holds the optional filters for the admin transaction
// search. Zero values mean the filter is not applied.
type SearchFilter struct {
	Description string
	Amount      *decimal.Decimal
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Date        string
	DateFrom    string
	DateTo      string
	Limit       int
}

func (r *BankTransactionRepository) Search(f SearchFilter) ([]models.BankTransaction, error) {
	q := r.db.Model(&models.BankTransaction{})

	if f.Description != "" {
		q = q.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(f.Description)+"%")
	}
	if f.Amount != nil {
		q = q.Where("credit = ?", f.Amount)
	}
	if f.MinAmount != nil {
		q = q.Where("credit >= ?", f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("credit <= ?", f.MaxAmount)
	}
	if f.Date != "" {
		q = q.Where("value_date LIKE ? OR booking_date LIKE ?", f.Date+"%", f.Date+"%")
	}
	if f.DateFrom != "" {
		q = q.Where("value_date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		// Canonical dates sort lexicographically, so padding with the
		// end of day makes the bound inclusive for datetime values.
		q = q.Where("value_date <= ?", f.DateTo+" 23:59:59")
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var txs []models.BankTransaction
	err := q.Order("value_date DESC, booking_date DESC").Limit(limit).Find(&txs).Error
	return txs, err
}
