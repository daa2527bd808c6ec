// Package ui renders migration progress for the terminal with lipgloss styles.
//
// Each [models.LogEntry] kind maps to a style: matches and completion in
// green, misses in orange, failures in red and stage changes in the title
// color. [Printer] writes one styled line per entry as a run streams.
package ui
