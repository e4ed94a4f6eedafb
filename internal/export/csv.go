// Package export renders coverage and reliability reports as CSV or plain text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/starford/ansuz/internal/coverage"
	"github.com/starford/ansuz/internal/reliability"
)

// Format names accepted by Write.
const (
	FormatCSV  = "csv"
	FormatText = "text"
)

// TranscriptCoverageCSV writes one row per transcript.
func TranscriptCoverageCSV(w io.Writer, r coverage.Report) error {
	rows := [][]string{{"transcript_id", "title", "case_id", "coded_chars", "total_chars", "coverage_percent", "codings", "distinct_codes"}}
	for _, t := range r.Transcripts {
		rows = append(rows, []string{
			t.TranscriptID,
			t.Title,
			t.CaseID,
			strconv.Itoa(t.CodedChars),
			strconv.Itoa(t.TotalChars),
			pct(t.CoveragePercent),
			strconv.Itoa(t.CodingCount),
			strconv.Itoa(t.DistinctCodeCount),
		})
	}
	return writeAll(w, rows)
}

// CodeCoverageCSV writes one row per code.
func CodeCoverageCSV(w io.Writer, r coverage.Report) error {
	rows := [][]string{{"code_id", "text", "parent_id", "frequency", "transcripts", "coded_chars", "coverage_percent"}}
	for _, c := range r.Codes {
		rows = append(rows, []string{
			c.CodeID,
			c.Text,
			c.ParentID,
			strconv.Itoa(c.Frequency),
			strconv.Itoa(c.TranscriptCount),
			strconv.Itoa(c.CodedChars),
			pct(c.CoveragePercent),
		})
	}
	return writeAll(w, rows)
}

// ReliabilityCSV writes the per-transcript breakdown followed by a total row.
func ReliabilityCSV(w io.Writer, r reliability.Report) error {
	rows := [][]string{{"transcript_id", "title", "units", "a11", "a10", "a01", "a00", "po", "pe", "kappa", "band"}}
	for _, t := range r.Transcripts {
		rows = append(rows, reliabilityRow(t.TranscriptID, t.Title, t.Units, t.Table, t.Agreement))
	}
	rows = append(rows, reliabilityRow("TOTAL", "", r.Table.N(), r.Table, r.Agreement))
	return writeAll(w, rows)
}

func reliabilityRow(id, title string, units int, t reliability.Table, a reliability.Agreement) []string {
	return []string{
		id,
		title,
		strconv.Itoa(units),
		strconv.Itoa(t.Both),
		strconv.Itoa(t.OnlyA),
		strconv.Itoa(t.OnlyB),
		strconv.Itoa(t.Neither),
		ratio(a.Po),
		ratio(a.Pe),
		ratio(a.Kappa),
		string(a.Band),
	}
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
