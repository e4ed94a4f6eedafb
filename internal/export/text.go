package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/starford/ansuz/internal/coverage"
	"github.com/starford/ansuz/internal/reliability"
)

// CoverageText writes a human-readable coverage summary.
func CoverageText(w io.Writer, r coverage.Report) error {
	ew := &errWriter{w: w}
	s := r.Summary
	ew.printf("Coverage: %s%% of %s characters coded (%s codings, %d codes, %d transcripts)\n\n",
		pct(s.CoveragePercent), humanize.Comma(int64(s.TotalChars)), humanize.Comma(int64(s.CodingCount)), s.Codes, s.Transcripts)

	tw := tabwriter.NewWriter(ew, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSCRIPT\tCODED\tTOTAL\tCOVERAGE\tCODINGS\tCODES")
	for _, t := range r.Transcripts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%d\t%d\n", label(t.Title, t.TranscriptID),
			humanize.Comma(int64(t.CodedChars)), humanize.Comma(int64(t.TotalChars)),
			pct(t.CoveragePercent), t.CodingCount, t.DistinctCodeCount)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("export: write text: %w", err)
	}

	ew.printf("\n")
	tw = tabwriter.NewWriter(ew, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tFREQUENCY\tTRANSCRIPTS\tCOVERAGE")
	for _, c := range r.Codes {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s%%\n", label(c.Text, c.CodeID), c.Frequency, c.TranscriptCount, pct(c.CoveragePercent))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("export: write text: %w", err)
	}
	return ew.err
}

// ReliabilityText writes a human-readable agreement summary.
func ReliabilityText(w io.Writer, r reliability.Report, labelA, labelB string) error {
	ew := &errWriter{w: w}
	a := r.Agreement
	ew.printf("Cohen's Kappa: %s vs %s (%s units)\n", label(labelA, r.CodeA), label(labelB, r.CodeB), r.Mode)
	ew.printf("kappa = %s (%s), observed agreement %s%%, expected %s%%, n = %s\n\n",
		ratio(a.Kappa), a.Band, pct(100*a.Po), pct(100*a.Pe), humanize.Comma(int64(a.N)))

	tw := tabwriter.NewWriter(ew, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSCRIPT\tUNITS\tBOTH\tONLY A\tONLY B\tNEITHER\tKAPPA\tBAND")
	for _, t := range r.Transcripts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n", label(t.Title, t.TranscriptID), t.Units,
			t.Table.Both, t.Table.OnlyA, t.Table.OnlyB, t.Table.Neither, ratio(t.Agreement.Kappa), t.Agreement.Band)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("export: write text: %w", err)
	}
	return ew.err
}

func label(name, id string) string {
	if strings.TrimSpace(name) == "" {
		return id
	}
	return name
}

// errWriter remembers the first write error so formatting code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}
