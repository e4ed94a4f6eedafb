package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/service"
	"github.com/starford/ansuz/internal/storage"
)

// workspace bundles the components every entry point needs.
type workspace struct {
	db       *index.DB
	svc      *service.Service
	importer *index.Importer
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// openWorkspace opens the index, restores the project and imports the
// transcripts folder once.
func openWorkspace(ctx context.Context, cfg *Config, logger *slog.Logger) (*workspace, error) {
	if err := os.MkdirAll(cfg.Workspace.TranscriptsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcripts dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Workspace.TranscriptsDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc, err := service.Open(ctx, db, cfg.Project.ID, cfg.Project.Name,
		service.WithLogger(logger),
		service.WithPreviewLimit(cfg.Autocode.PreviewLimit),
		service.WithSegmentation(cfg.Reliability.Segmentation),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open project: %w", err)
	}

	im := index.NewImporter(db, store, svc, cfg.Project.ID, cfg.Workspace.Include, logger)
	if _, err := im.Sync(ctx); err != nil {
		logger.Warn("initial import failed", slog.String("error", err.Error()))
	}

	return &workspace{db: db, svc: svc, importer: im}, nil
}

func (ws *workspace) Close() error {
	return ws.db.Close()
}
