package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fossawork/fossawork/internal/calculator"
)

// RenderText formats a calculation result as a plain-text report suitable
// for an email body or terminal output.
func RenderText(result *calculator.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Filter requirements calculated %s\n",
		result.Metadata.CalculatedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "%d jobs across %d stores: %d filters, %d boxes\n\n",
		result.Metadata.JobCount, result.Metadata.StoreCount,
		result.TotalFilters, result.TotalBoxes)

	if len(result.Summary) > 0 {
		b.WriteString("ORDER SUMMARY\n")
		fmt.Fprintf(&b, "  %-10s %-40s %5s %5s %6s\n", "PART", "DESCRIPTION", "QTY", "BOXES", "STORES")
		for _, row := range result.Summary {
			fmt.Fprintf(&b, "  %-10s %-40s %5d %5d %6d\n",
				row.PartNumber, row.Description, row.Quantity, row.Boxes, row.StoreCount)
		}
		b.WriteString("\n")
	}

	b.WriteString("PER-JOB BREAKDOWN\n")
	for _, d := range result.Details {
		fmt.Fprintf(&b, "  %s  %s (store %s, %s)", d.JobID, d.CustomerName, d.StoreNumber, d.Chain)
		if len(d.Filters) == 0 {
			b.WriteString(": no filters needed\n")
			continue
		}
		b.WriteString(":")
		for _, part := range sortedParts(d.Filters) {
			fmt.Fprintf(&b, " %s x%d", part, d.Filters[part])
		}
		if d.IsEdited {
			b.WriteString(" (manually adjusted)")
		}
		b.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\nWARNINGS\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  [%d] %s: %s\n", w.Severity, w.Type, w.Message)
			for _, s := range w.Suggestions {
				fmt.Fprintf(&b, "      - %s\n", s)
			}
		}
	}

	return b.String()
}

func sortedParts(filters map[string]int) []string {
	parts := make([]string, 0, len(filters))
	for part := range filters {
		parts = append(parts, part)
	}
	sort.Strings(parts)
	return parts
}
