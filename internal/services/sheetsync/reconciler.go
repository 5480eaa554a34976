package sheetsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/dates"
)

// Row is one spreadsheet data row. Position is the absolute row number
// in the sheet and Cells maps header names to cell text.
type Row struct {
	Position int
	Cells    map[string]string
}

// Source produces a full snapshot of the statement spreadsheet.
type Source interface {
	Fetch(ctx context.Context) ([]Row, error)
}

// SourceUnavailableError marks a failure to reach the spreadsheet, as
// opposed to a storage failure. Callers report it as a non-fatal
// operator message rather than a server error.
type SourceUnavailableError struct{ Err error }

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("Google Sheets API error: %v. Check your service account permissions and spreadsheet access.", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Ledger is the slice of transaction storage the reconciler needs.
type Ledger interface {
	BulkInsert(txs []models.BankTransaction) (int, error)
	MaxSheetRow() (int, error)
}

// StateStore persists the last successful sync timestamp.
type StateStore interface {
	LastSyncTime(key string) (time.Time, error)
	SetSyncTime(key string, t time.Time) error
}

// Reconciler pulls new statement rows from the spreadsheet into the
// ledger. Rows are identified by their absolute sheet position, so
// only positions past the stored high-water mark are inserted.
type Reconciler struct {
	source   Source
	ledger   Ledger
	state    StateStore
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewReconciler(source Source, ledger Ledger, state StateStore, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		source:   source,
		ledger:   ledger,
		state:    state,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Sync fetches the sheet and inserts rows beyond the high-water mark.
// Unless force is set, a sync that ran within the configured interval
// is skipped. The returned message is operator-facing.
func (r *Reconciler) Sync(ctx context.Context, force bool) (synced bool, msg string, err error) {
	last, err := r.state.LastSyncTime(models.SyncStateKeyLastSheetSync)
	if err != nil {
		return false, "", fmt.Errorf("reading last sync time: %w", err)
	}
	if !force && !last.IsZero() && r.now().Sub(last) < r.interval {
		next := last.Add(r.interval).UTC().Format("2006-01-02 15:04:05")
		return false, fmt.Sprintf("Bank transactions already synced. Next sync after %s UTC.", next), nil
	}

	rows, err := r.source.Fetch(ctx)
	if err != nil {
		// Transport failure: neither the watermark nor the timestamp
		// may advance, or rows would be lost silently.
		return false, "", &SourceUnavailableError{Err: err}
	}
	if len(rows) == 0 {
		return false, "Google Sheet returned no data to sync.", nil
	}

	watermark, err := r.ledger.MaxSheetRow()
	if err != nil {
		return false, "", fmt.Errorf("reading sheet watermark: %w", err)
	}

	var txs []models.BankTransaction
	for _, row := range rows {
		if row.Position <= watermark {
			continue
		}
		if tx, ok := transformRow(row); ok {
			txs = append(txs, tx)
		}
	}

	if len(txs) == 0 {
		if err := r.state.SetSyncTime(models.SyncStateKeyLastSheetSync, r.now()); err != nil {
			return false, "", fmt.Errorf("recording sync time: %w", err)
		}
		return false, "No new rows to sync from Google Sheet.", nil
	}

	inserted, err := r.ledger.BulkInsert(txs)
	if err != nil {
		return false, "", fmt.Errorf("inserting sheet rows: %w", err)
	}
	if err := r.state.SetSyncTime(models.SyncStateKeyLastSheetSync, r.now()); err != nil {
		return false, "", fmt.Errorf("recording sync time: %w", err)
	}

	r.log.Info().Int("inserted", inserted).Int("watermark", watermark).Msg("sheet sync completed")
	return true, fmt.Sprintf("Synced %d new transactions from Google Sheet.", inserted), nil
}

// sheet headers, matched case-insensitively; a "stan" column belongs to
// another consumer and is ignored
const (
	colBookingDate      = "booking date"
	colValueDate        = "value date"
	colDocNo            = "doc no"
	colDescription      = "description"
	colDebit            = "debit"
	colCredit           = "credit"
	colAvailableBalance = "available balance"
)

func transformRow(row Row) (models.BankTransaction, bool) {
	cells := make(map[string]string, len(row.Cells))
	empty := true
	for header, value := range row.Cells {
		value = strings.TrimSpace(value)
		if value != "" {
			empty = false
		}
		cells[strings.ToLower(strings.TrimSpace(header))] = value
	}
	if empty {
		return models.BankTransaction{}, false
	}

	tx := models.BankTransaction{
		BookingDate:      normalizeDateCell(cells[colBookingDate]),
		ValueDate:        normalizeDateCell(cells[colValueDate]),
		Description:      cells[colDescription],
		Debit:            parseNumericCell(cells[colDebit]),
		Credit:           parseNumericCell(cells[colCredit]),
		AvailableBalance: parseNumericCell(cells[colAvailableBalance]),
		SheetRow:         row.Position,
	}
	if doc := cells[colDocNo]; doc != "" {
		tx.DocID = &doc
	}
	return tx, true
}

func normalizeDateCell(value string) *string {
	if value == "" {
		return nil
	}
	c := dates.Normalize(value)
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

// parseNumericCell strips currency markers and separators before
// parsing. Unparseable cells become NULL rather than failing the row.
func parseNumericCell(value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	cleaned := strings.NewReplacer("PKR", "", "pkr", "", ",", "", " ", "").Replace(value)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &d
}
