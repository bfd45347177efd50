package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jbweber/winvm/internal/vm"
)

// TableFormatter formats entries as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatEntry formats a single entry as a table row.
func (f *TableFormatter) FormatEntry(e vm.Entry) (string, error) {
	return f.FormatEntryList([]vm.Entry{e})
}

// FormatEntryList formats a list of entries as a table.
func (f *TableFormatter) FormatEntryList(entries []vm.Entry) (string, error) {
	if len(entries) == 0 {
		return "No VMs found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	// Write header unless NoHeaders is set
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tDISK\tUSED\tLAST WRITE")
	}

	for _, e := range entries {
		diskState := "missing"
		used := "-"
		age := "-"
		if e.DiskExists {
			diskState = "present"
			used = humanize.IBytes(uint64(e.DiskBytes))
			if !e.DiskModified.IsZero() {
				age = formatAge(time.Since(e.DiskModified))
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, diskState, used, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	if years := days / 365; years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
