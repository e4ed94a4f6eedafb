package index

import (
	"context"

	"github.com/starford/ansuz/internal/project"
)

// SnapshotStore persists whole-project snapshots.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s project.Snapshot) error
	LoadSnapshot(ctx context.Context, projectID string) (project.Snapshot, error)
}

// ImportLedger remembers which file produced which transcript and at what
// checksum, so re-imports only touch changed files.
type ImportLedger interface {
	ImportRecords(ctx context.Context, projectID string) (map[string]ImportRecord, error)
	RecordImport(ctx context.Context, projectID string, rec ImportRecord) error
	ForgetImport(ctx context.Context, projectID, path string) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ SnapshotStore = (*DB)(nil)
	_ ImportLedger  = (*DB)(nil)
)
