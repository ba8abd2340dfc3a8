// Package report renders run summaries for the console and the CI step summary
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// Title heads the Markdown report
const Title = "## Linear → Notion sync"

// Console prints the one line summary
type Console struct {
	W io.Writer
}

// Report implements domain.Reporter
func (c Console) Report(_ context.Context, s domain.RunSummary) error {
	w := c.W
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, Line(s))
	return err
}

// StepSummary appends the Markdown report to a file, typically $GITHUB_STEP_SUMMARY.
// An empty path disables it
type StepSummary struct {
	Path string
}

// Report implements domain.Reporter
func (r StepSummary) Report(_ context.Context, s domain.RunSummary) error {
	if r.Path == "" {
		return nil
	}
	f, err := os.OpenFile(r.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "open step summary %s", r.Path)
	}
	if _, err := f.WriteString(Markdown(s)); err != nil {
		_ = f.Close()
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "write step summary %s", r.Path)
	}
	return f.Close()
}

// Multi fans a summary out to several reporters and joins their errors
type Multi []domain.Reporter

// Report implements domain.Reporter
func (m Multi) Report(ctx context.Context, s domain.RunSummary) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Line renders the console summary
func Line(s domain.RunSummary) string {
	if s.LeaseHeld {
		return fmt.Sprintf("Sync skipped: another run holds the lease (label %q)", s.Label)
	}
	line := fmt.Sprintf("Sync done: processed=%d created=%d updated=%d skipped=%d errors=%d (label %q, %s)",
		s.Processed, s.Created, s.Updated, s.Skipped, s.Errors, s.Label, s.Elapsed().Round(time.Millisecond))
	if s.Aborted != "" {
		line += " aborted: " + s.Aborted
	}
	return line
}

// Markdown renders the step summary section
func Markdown(s domain.RunSummary) string {
	var b strings.Builder
	b.WriteString(Title + "\n\n")
	fmt.Fprintf(&b, "**Label filter:** `%s`\n\n", s.Label)
	if !s.Since.IsZero() {
		fmt.Fprintf(&b, "**Changed since:** %s\n\n", s.Since.UTC().Format(time.RFC3339))
	}
	if s.LeaseHeld {
		b.WriteString("> Skipped: another run holds the lease.\n\n")
	}
	if s.Aborted != "" {
		fmt.Fprintf(&b, "> Aborted: %s\n\n", s.Aborted)
	}

	b.WriteString("| Processed | Created | Updated | Skipped | Errors |\n")
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", s.Processed, s.Created, s.Updated, s.Skipped, s.Errors)

	fmt.Fprintf(&b, "<details><summary>Log (%d)</summary>\n\n", len(s.Log))
	if len(s.Log) == 0 {
		b.WriteString("_no records_\n")
	} else {
		b.WriteString("```\n")
		for _, l := range s.Log {
			b.WriteString(l + "\n")
		}
		b.WriteString("```\n")
	}
	b.WriteString("\n</details>\n\n")
	return b.String()
}
