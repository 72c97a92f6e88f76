// Package memory implements every rewards repository in process memory.
// It enforces the same contracts as the PostgreSQL store, including the
// per-user idempotency key and the snapshot version check, and backs tests
// and APP_STORAGE=memory development runs.
package memory

// Store bundles the in-memory repositories.
type Store struct {
	Reports   *ReportStore
	Ledger    *LedgerStore
	Snapshots *SnapshotStore
	Directory *DirectoryStore
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		Reports:   NewReportStore(),
		Ledger:    NewLedgerStore(),
		Snapshots: NewSnapshotStore(),
		Directory: NewDirectoryStore(),
	}
}
