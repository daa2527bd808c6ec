package ui

import (
	"fmt"
	"io"

	"github.com/desertthunder/itx/internal/formatter"
	"github.com/desertthunder/itx/internal/models"
)

// Render styles a single entry with p.
func (p *Palette) Render(e models.LogEntry) string {
	line := formatter.EntryLine(e)
	switch e.Kind {
	case models.EntryMatched:
		return p.ok.Render("✓ ") + line
	case models.EntryUnmatched:
		return p.warn.Render("✗ " + line)
	case models.EntryCompleted:
		return p.ok.Render(line)
	case models.EntryFailed:
		return p.err.Render(line)
	case models.EntryFlushed, models.EntryInfo:
		return p.help.Render(line)
	default:
		return p.title.Render(line)
	}
}

// Printer writes styled entries to a terminal.
type Printer struct {
	w       io.Writer
	palette *Palette
}

// NewPrinter creates a [Printer]. A nil palette uses the default colors.
func NewPrinter(w io.Writer, palette *Palette) *Printer {
	if palette == nil {
		palette = styles
	}
	return &Printer{w: w, palette: palette}
}

// Print writes e on its own line.
func (p *Printer) Print(e models.LogEntry) error {
	_, err := fmt.Fprintln(p.w, p.palette.Render(e))
	return err
}

// Drain prints entries until ch is closed and returns the last one seen.
func (p *Printer) Drain(ch <-chan models.LogEntry) (models.LogEntry, error) {
	var last models.LogEntry
	for e := range ch {
		last = e
		if err := p.Print(e); err != nil {
			return last, err
		}
	}
	return last, nil
}
