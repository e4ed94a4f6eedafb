package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/reliability"
)

// kappaBandsURI names the resource describing kappa interpretation bands.
const kappaBandsURI = "ansuz://kappa-bands"

// KappaBands renders the interpretation bands used by reliability reports
// as Markdown, so LLM consumers describe agreement the same way the
// reports do.
func KappaBands() string {
	var b strings.Builder
	b.WriteString("# Cohen's Kappa interpretation\n\n")
	b.WriteString("Kappa compares observed agreement between two codes with the agreement\n")
	b.WriteString("expected by chance, over paragraph or sentence units of each transcript.\n\n")
	b.WriteString("| Kappa | Band |\n|---|---|\n")
	fmt.Fprintf(&b, "| < 0 | %s |\n", reliability.Poor)
	lower := 0.0
	for i, band := range reliability.Bands {
		op := "<"
		if i == 0 {
			op = "≤"
		}
		fmt.Fprintf(&b, "| %.2f %s k ≤ %.2f | %s |\n", lower, op, band.Upper, band.Band)
		lower = band.Upper
	}
	b.WriteString("\nAn empty table yields kappa 0. When chance agreement is certain\n")
	b.WriteString("(every unit classified the same way by both codes) kappa is 1.\n")
	return b.String()
}
