package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/coverage"
	"github.com/starford/ansuz/internal/export"
	"github.com/starford/ansuz/internal/segment"
	"github.com/starford/ansuz/internal/storage"
)

// Report kinds.
const (
	ReportCoverage    = "coverage"
	ReportReliability = "reliability"
)

// ReportRequest describes one report run from the command line.
type ReportRequest struct {
	Kind        string
	Format      string
	Descendants bool
	// CodeA and CodeB are required for reliability reports.
	CodeA, CodeB string
	Mode         string
	Transcripts  []string
	// OutDir, when set, receives the report as a file instead of the output writer.
	OutDir string
}

// Validate checks the request.
func (r ReportRequest) Validate() error {
	reliabilityReq := r.Kind == ReportReliability
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(ReportCoverage, ReportReliability)),
		validation.Field(&r.Format, validation.Required, validation.In("json", export.FormatCSV, export.FormatText)),
		validation.Field(&r.CodeA, validation.When(reliabilityReq, validation.Required)),
		validation.Field(&r.CodeB, validation.When(reliabilityReq, validation.Required)),
		validation.Field(&r.Mode, validation.In(string(segment.Paragraph), string(segment.Sentence))),
	)
}

// RunReport computes a coverage or reliability report and writes it either
// to the configured output or into req.OutDir.
func RunReport(ctx context.Context, req ReportRequest, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid report request: %w", err)
	}

	logger := newLogger(os.Stderr, app.config.App.LogLevel)

	ws, err := openWorkspace(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	var buf bytes.Buffer
	if err := renderReport(ctx, ws, req, &buf); err != nil {
		return err
	}

	if req.OutDir == "" {
		_, err := app.out.Write(buf.Bytes())
		return err
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(req.OutDir)
	if err != nil {
		return fmt.Errorf("init output storage: %w", err)
	}
	name := reportFileName(req, time.Now())
	if err := out.Write(name, buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("Report written", slog.String("kind", req.Kind), slog.String("path", name))
	return nil
}

func renderReport(ctx context.Context, ws *workspace, req ReportRequest, buf *bytes.Buffer) error {
	switch req.Kind {
	case ReportCoverage:
		rep, err := ws.svc.Coverage(ctx, coverage.Options{IncludeDescendants: req.Descendants})
		if err != nil {
			return fmt.Errorf("coverage: %w", err)
		}
		switch req.Format {
		case export.FormatCSV:
			return export.TranscriptCoverageCSV(buf, rep)
		case export.FormatText:
			return export.CoverageText(buf, rep)
		default:
			return writeIndented(buf, rep)
		}
	default:
		rep, err := ws.svc.Reliability(ctx, req.CodeA, req.CodeB, req.Mode, req.Transcripts)
		if err != nil {
			return fmt.Errorf("reliability: %w", err)
		}
		switch req.Format {
		case export.FormatCSV:
			return export.ReliabilityCSV(buf, rep)
		case export.FormatText:
			return export.ReliabilityText(buf, rep, codeLabel(ws, req.CodeA), codeLabel(ws, req.CodeB))
		default:
			return writeIndented(buf, rep)
		}
	}
}

func codeLabel(ws *workspace, id string) string {
	if c, err := ws.svc.Project().Code(id); err == nil {
		return c.Text
	}
	return ""
}

func writeIndented(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reportFileName(req ReportRequest, now time.Time) string {
	ext := req.Format
	if ext == export.FormatText {
		ext = "txt"
	}
	return fmt.Sprintf("%s-%s.%s", req.Kind, now.UTC().Format("20060102-150405"), ext)
}
