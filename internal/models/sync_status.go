package models

import "time"

// Reasons recorded when a sync attempt does not push anything.
const (
	ReasonUnreachable  = "unreachable"
	ReasonUnconfigured = "unconfigured"
)

// SyncStatus is the persisted outcome of the most recent sync attempt.
type SyncStatus struct {
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	Success       bool       `json:"success"`
	RowsSynced    int        `json:"rows_synced"`
	TotalSynced   int64      `json:"total_synced"`
	Pending       int64      `json:"pending"`
	Reason        string     `json:"reason,omitempty"`
}

// NeverSynced reports whether no attempt has ever been recorded.
func (s SyncStatus) NeverSynced() bool {
	return s.LastAttemptAt == nil
}
