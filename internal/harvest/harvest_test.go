package harvest

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpd-go/xpd/internal/lexer"
	"github.com/xpd-go/xpd/internal/report"
)

type recordingSink struct {
	warnings []string
	fatal    []string
}

func (s *recordingSink) Report(sev report.Severity, positions []lexer.Position, format string, args ...any) {
	switch sev {
	case report.Warning:
		s.warnings = append(s.warnings, format)
	case report.Error:
		s.fatal = append(s.fatal, format)
	}
}

func (s *recordingSink) ReportOrdered(sev report.Severity, positions []lexer.Position, format string, args ...any) {
	s.Report(sev, positions, format, args...)
}

func collectText(t *testing.T, pieces []lexer.Piece) string {
	t.Helper()
	var b strings.Builder
	for _, p := range pieces {
		if p.Kind != lexer.EndOfFile {
			b.WriteString(p.Text())
		}
	}
	return b.String()
}

func TestHarvestRegistersNullaryMacro(t *testing.T) {
	fs := afero.NewMemMapFs()
	macros := MacroTable{}
	sink := &recordingSink{}

	var pieces []lexer.Piece
	for p := range HarvestStdin(strings.NewReader("define G\nhello\nendmacro\nafter\n"), fs, macros, sink) {
		pieces = append(pieces, p)
	}

	require.Empty(t, sink.fatal)
	require.Contains(t, macros, "G")
	assert.Equal(t, "hello", collectText(t, macros["G"].Content))
	// The newline ending the `endmacro` line is ordinary passthrough text.
	assert.Equal(t, "\nafter\n", collectText(t, pieces))
}

func TestHarvestIncludeWithRedefinitionWarning(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.x", []byte("define M\nA\nendmacro\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.x", []byte(
		"include \"a.x\"\ndefine M\nB\nendmacro\nM()\n"), 0o644))

	macros := MacroTable{}
	sink := &recordingSink{}

	var pieces []lexer.Piece
	for p := range HarvestFile(fs, "b.x", macros, sink) {
		pieces = append(pieces, p)
	}

	require.Empty(t, sink.fatal)
	require.NotEmpty(t, sink.warnings, "redefining M must warn")
	require.Contains(t, macros, "M")
	assert.Equal(t, "B", collectText(t, macros["M"].Content))
}

func TestHarvestNestedDefineIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	macros := MacroTable{}
	sink := &recordingSink{}

	for range HarvestStdin(strings.NewReader("define A\ndefine B\nendmacro\nendmacro\n"), fs, macros, sink) {
	}
	assert.NotEmpty(t, sink.fatal)
}

func TestHarvestEndmacroWithoutDefineIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	macros := MacroTable{}
	sink := &recordingSink{}

	for range HarvestStdin(strings.NewReader("endmacro\n"), fs, macros, sink) {
	}
	assert.NotEmpty(t, sink.fatal)
}

func TestHarvestEOFInsideDefineIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	macros := MacroTable{}
	sink := &recordingSink{}

	for range HarvestStdin(strings.NewReader("define A\nbody with no end"), fs, macros, sink) {
	}
	assert.NotEmpty(t, sink.fatal)
}

func TestHarvestEOFRightAfterNullaryDefineHeaderIsFatal(t *testing.T) {
	// A file ending exactly `define foo`, with no trailing newline and no
	// endmacro at all, must not panic and must not be silently dropped:
	// it is still a definition left open with nothing to close it.
	fs := afero.NewMemMapFs()
	macros := MacroTable{}
	sink := &recordingSink{}

	for range HarvestStdin(strings.NewReader("define foo"), fs, macros, sink) {
	}
	assert.NotEmpty(t, sink.fatal)
	assert.NotContains(t, macros, "foo")
}

func TestHarvestIncludeDepthExceeded(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Build a chain of 12 files, each including the next — deeper than
	// MaxIncludeLevel.
	for i := 0; i < 12; i++ {
		name := includeChainName(i)
		var body string
		if i == 11 {
			body = "tail\n"
		} else {
			body = "include \"" + includeChainName(i+1) + "\"\n"
		}
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}

	macros := MacroTable{}
	sink := &recordingSink{}
	for range HarvestFile(fs, includeChainName(0), macros, sink) {
	}
	assert.NotEmpty(t, sink.fatal)
}

func includeChainName(i int) string {
	return strings.Repeat("x", 1) + "_" + string(rune('a'+i)) + ".x"
}

func TestHarvestPassesThroughWhenNoDirectives(t *testing.T) {
	fs := afero.NewMemMapFs()
	macros := MacroTable{}
	sink := &recordingSink{}

	var pieces []lexer.Piece
	input := "plain text, nothing special\n"
	for p := range HarvestStdin(strings.NewReader(input), fs, macros, sink) {
		pieces = append(pieces, p)
	}
	assert.Equal(t, input, collectText(t, pieces))
}
