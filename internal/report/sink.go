// Package report implements the Position & Reporting cross-cutting
// concern: a severity-and-position-aware sink through which every fatal,
// warning, and informational condition in the core is surfaced.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xpd-go/xpd/internal/lexer"
)

// Severity classifies a report. Error severity is always fatal.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

// Sink is the interface the core depends on; CLI option parsing, help
// text, and file opening are deliberately not part of it (they are
// external collaborators per the package's scope).
type Sink interface {
	// Report emits a message at the given severity, attributed to zero or
	// more positions (sorted and deduplicated before printing). Error
	// severity terminates the run; the core never attempts recovery
	// afterwards.
	Report(sev Severity, positions []lexer.Position, format string, args ...any)

	// ReportOrdered is like Report but preserves the given position order
	// instead of sorting — used only for the expansion-depth-exceeded
	// error, whose call sites must be listed in nesting (i.e. call) order
	// rather than lexical order.
	ReportOrdered(sev Severity, positions []lexer.Position, format string, args ...any)
}

// LogrusSink implements Sink on top of a logrus.FieldLogger, the way
// vippsas/sqlcode's CLI commands take a logrus.FieldLogger (or fall back
// to logrus.StandardLogger()) rather than a bespoke logging type.
type LogrusSink struct {
	Logger logrus.FieldLogger
	// Exit is called after an Error-severity report. Defaults to os.Exit;
	// tests substitute a function that records the call instead of
	// terminating the process.
	Exit func(code int)
	// SkipInfo suppresses Info-severity reports entirely, mirroring the
	// original's global SKIP_INFO flag.
	SkipInfo bool
}

// NewLogrusSink builds a LogrusSink around logger, defaulting Exit to
// os.Exit.
func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return &LogrusSink{Logger: logger, Exit: os.Exit}
}

func (s *LogrusSink) Report(sev Severity, positions []lexer.Position, format string, args ...any) {
	s.report(sev, sortDedup(positions), format, args...)
}

func (s *LogrusSink) ReportOrdered(sev Severity, positions []lexer.Position, format string, args ...any) {
	s.report(sev, positions, format, args...)
}

func (s *LogrusSink) report(sev Severity, positions []lexer.Position, format string, args ...any) {
	if sev == Info && s.SkipInfo {
		return
	}

	msg := fmt.Sprintf(format, args...)
	entry := s.Logger
	if loc := formatPositions(positions); loc != "" {
		entry = entry.WithField("at", loc)
	}

	switch sev {
	case Warning:
		entry.Warn(msg)
	case Info:
		entry.Info(msg)
	default:
		entry.Error(msg)
		exit := s.Exit
		if exit == nil {
			exit = os.Exit
		}
		exit(1)
	}
}

// sortDedup sorts positions by the data model's total order and removes
// consecutive duplicates, matching the original's sort()+unduplicate().
func sortDedup(positions []lexer.Position) []lexer.Position {
	if len(positions) == 0 {
		return nil
	}
	out := make([]lexer.Position, len(positions))
	copy(out, positions)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	deduped := out[:0:0]
	var last *lexer.Position
	for i := range out {
		if last != nil && last.Equal(out[i]) {
			continue
		}
		deduped = append(deduped, out[i])
		last = &out[i]
	}
	return deduped
}

// formatPositions joins the positions' own String forms (each already
// reading "at line N", with file and column when known) as "X",
// "X and Y", or "X, Y, and Z".
func formatPositions(positions []lexer.Position) string {
	switch len(positions) {
	case 0:
		return ""
	case 1:
		return positions[0].String()
	case 2:
		return fmt.Sprintf("%s and %s", positions[0], positions[1])
	default:
		strs := make([]string, len(positions))
		for i, p := range positions {
			strs[i] = p.String()
		}
		return fmt.Sprintf("%s, and %s", strings.Join(strs[:len(strs)-1], ", "), strs[len(strs)-1])
	}
}
