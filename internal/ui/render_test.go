package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/desertthunder/itx/internal/models"
)

func TestRender(t *testing.T) {
	p := Plain()

	tc := []struct {
		name  string
		entry models.LogEntry
		want  string
	}{
		{"matched", models.NewEntry(models.EntryMatched, "Matched A - B").WithProgress(1, 3).WithScore(88), "✓ [1/3] Matched A - B (score 88.00)"},
		{"unmatched", models.NewEntry(models.EntryUnmatched, "No match for A - C").WithProgress(2, 3), "✗ [2/3] No match for A - C"},
		{"failed", models.NewEntry(models.EntryFailed, "Error: boom"), "Error: boom"},
		{"received", models.NewEntry(models.EntryReceived, "Received file: lib.xml"), "Received file: lib.xml"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Render(tt.entry); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPrinterDrain(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, Plain())

	ch := make(chan models.LogEntry, 3)
	ch <- models.NewEntry(models.EntryReceived, "Received file: lib.xml")
	ch <- models.NewEntry(models.EntryParsed, "Parsed 0 tracks")
	ch <- models.NewEntry(models.EntryCompleted, "done")
	close(ch)

	last, err := printer.Drain(ch)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !last.Terminal() {
		t.Errorf("expected terminal last entry, got %+v", last)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 3 {
		t.Errorf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
}
