package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Document is one parsed transcript file ready to be applied to a project.
type Document struct {
	Path       string
	Checksum   string
	Title      string
	Case       string
	Attributes map[string]string
	Content    string
}

// Target applies imported documents to a project. previousID is the
// transcript the ledger last linked to doc.Path, or empty for a new file.
// It returns the id of the transcript now holding the document.
type Target interface {
	ImportDocument(ctx context.Context, previousID string, doc Document) (string, error)
}

// SyncStats summarises one import pass.
type SyncStats struct {
	Imported  int `json:"imported"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Frozen    int `json:"frozen"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Importer keeps a project in step with a transcripts folder.
type Importer struct {
	mu        sync.Mutex
	ledger    ImportLedger
	store     storage.Provider
	target    Target
	projectID string
	include   []string
	logger    *slog.Logger
}

// NewImporter creates an Importer for the files of store matching include.
func NewImporter(ledger ImportLedger, store storage.Provider, target Target, projectID string, include []string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		ledger:    ledger,
		store:     store,
		target:    target,
		projectID: projectID,
		include:   include,
		logger:    logger,
	}
}

// Root returns the watched transcripts directory.
func (im *Importer) Root() string { return im.store.Root() }

// Include returns the include globs.
func (im *Importer) Include() []string { return im.include }

// Sync walks the folder and brings the project up to date:
//   - new files become transcripts
//   - changed files replace the content of uncoded transcripts
//   - changed files of coded transcripts are skipped, since codings pin the content
//   - files removed from disk leave their transcript in place and are dropped from the ledger
func (im *Importer) Sync(ctx context.Context) (SyncStats, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var stats SyncStats
	metas, err := im.store.List(im.include)
	if err != nil {
		return stats, err
	}
	records, err := im.ledger.ImportRecords(ctx, im.projectID)
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		disk[m.Path] = struct{}{}

		rec, known := records[m.Path]
		if known && rec.Checksum == m.Checksum {
			stats.Unchanged++
			continue
		}

		data, err := im.store.Read(m.Path)
		if err != nil {
			im.logger.Warn("import: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		doc, err := parseDocument(m.Path, data)
		if err != nil {
			im.logger.Warn("import: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}

		id, err := im.target.ImportDocument(ctx, rec.TranscriptID, doc)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			// Remember the checksum so the conflict is reported once per change.
			im.logger.Warn("import: transcript is coded, file change ignored",
				slog.String("path", m.Path), slog.String("transcript_id", rec.TranscriptID))
			stats.Frozen++
			id = rec.TranscriptID
		case err != nil:
			im.logger.Warn("import: apply failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		case known:
			im.logger.Debug("import: updated", slog.String("path", m.Path), slog.String("transcript_id", id))
			stats.Updated++
		default:
			im.logger.Debug("import: imported", slog.String("path", m.Path), slog.String("transcript_id", id))
			stats.Imported++
		}

		if err := im.ledger.RecordImport(ctx, im.projectID, ImportRecord{
			Path:         m.Path,
			Checksum:     m.Checksum,
			TranscriptID: id,
		}); err != nil {
			return stats, err
		}
	}

	for p := range records {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := im.ledger.ForgetImport(ctx, im.projectID, p); err != nil {
			im.logger.Warn("import: forget failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		im.logger.Debug("import: file removed, transcript kept", slog.String("path", p))
		stats.Removed++
	}

	im.logger.Info("import: synced",
		slog.Int("imported", stats.Imported),
		slog.Int("updated", stats.Updated),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("frozen", stats.Frozen),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed),
	)
	return stats, nil
}

// parseDocument parses a transcript file into a Document.
func parseDocument(path string, data []byte) (Document, error) {
	res, err := parser.Parse(path, data)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Path:       path,
		Checksum:   checksum.Sum(data),
		Title:      res.Title,
		Case:       res.Meta.Case,
		Attributes: res.Meta.Attributes,
		Content:    res.Body,
	}, nil
}
