package models

import "time"

// SyncStateKeyLastSheetSync is the fixed key for the spreadsheet sync
// timestamp row.
const SyncStateKeyLastSheetSync = "bank_transactions_last_sync"

// SyncState is a keyed piece of sync bookkeeping, currently only the
// timestamp of the last successful spreadsheet sync.
type SyncState struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
