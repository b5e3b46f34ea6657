// Package harvest implements the definition harvester and include
// resolver: it folds Define...EndMacro spans out of the recognizer's
// mixed stream into a macro table, splices Include directives by
// recursively re-invoking the lexer and recognizer on the named file, and
// passes every other piece straight through.
package harvest

import (
	"io"
	"iter"

	"github.com/spf13/afero"

	"github.com/xpd-go/xpd/internal/directive"
	"github.com/xpd-go/xpd/internal/lexer"
	"github.com/xpd-go/xpd/internal/report"
)

// MaxIncludeLevel bounds include recursion; exceeding it is fatal.
const MaxIncludeLevel = 10

// MacroTable maps a macro name to its definition. Shared by reference
// across an entire run, including all recursively included files.
type MacroTable map[string]*directive.DefineRecord

// IncludeFrame records one step of the include chain, used only to size
// the MaxIncludeLevel bound (the frames themselves are not currently
// reported, but are threaded through for future diagnostics).
type IncludeFrame struct {
	Pos      lexer.Position
	Filename string
}

// HarvestFile opens fileName on fs, lexes, recognizes, and harvests it,
// registering definitions into macros and yielding every non-directive
// piece.
func HarvestFile(fs afero.Fs, fileName string, macros MacroTable, sink report.Sink) iter.Seq[lexer.Piece] {
	return func(yield func(lexer.Piece) bool) {
		harvestNamedFile(fs, fileName, macros, nil, sink, yield)
	}
}

// HarvestStdin lexes, recognizes, and harvests r (with no associated file
// name, as standard input has none), registering definitions into macros
// and yielding every non-directive piece. Includes encountered while
// processing standard input are still resolved against fs.
func HarvestStdin(r io.Reader, fs afero.Fs, macros MacroTable, sink report.Sink) iter.Seq[lexer.Piece] {
	return func(yield func(lexer.Piece) bool) {
		pieces := lexer.New(r).All()
		recognized := directive.Recognize(pieces, sink)
		run(recognized, fs, macros, nil, sink, yield)
	}
}

func harvestNamedFile(fs afero.Fs, fileName string, macros MacroTable, includeStack []IncludeFrame, sink report.Sink, yield func(lexer.Piece) bool) bool {
	f, err := fs.Open(fileName)
	if err != nil {
		sink.Report(report.Error, nil, "cannot open %q: %v", fileName, err)
		return false
	}
	defer f.Close()

	pieces := lexer.NewNamed(f, fileName).All()
	recognized := directive.Recognize(pieces, sink)
	return run(recognized, fs, macros, includeStack, sink, yield)
}

// run drives one file's worth of recognized items. It returns false if
// yield asked for early termination or a fatal report was issued (the
// core never attempts recovery after an error report), true if the
// stream was fully consumed.
func run(recognized iter.Seq[any], fs afero.Fs, macros MacroTable, includeStack []IncludeFrame, sink report.Sink, yield func(lexer.Piece) bool) bool {
	var current *directive.DefineRecord

	for item := range recognized {
		switch v := item.(type) {
		case *directive.DefineRecord:
			if current != nil {
				sink.Report(report.Error, []lexer.Position{v.Pos, current.Pos},
					"Cannot define a nested macro, perhaps a missing 'endmacro'?")
				return false
			}
			if prev, ok := macros[v.Name]; ok {
				sink.Report(report.Warning, []lexer.Position{v.Pos, prev.Pos},
					"Macro '%s' is already defined, overwriting the previous definition!", v.Name)
			}
			current = v

		case *directive.IncludeRecord:
			if current != nil {
				sink.Report(report.Error, []lexer.Position{v.Pos}, "Cannot include a file in a macro definition")
				return false
			}
			if len(includeStack) >= MaxIncludeLevel {
				sink.Report(report.Error, []lexer.Position{v.Pos}, "Too many includes (infinite recursion?)")
				return false
			}
			nested := make([]IncludeFrame, len(includeStack), len(includeStack)+1)
			copy(nested, includeStack)
			nested = append(nested, IncludeFrame{Pos: v.Pos, Filename: v.Filename})
			if !harvestNamedFile(fs, v.Filename, macros, nested, sink, yield) {
				return false
			}

		case *directive.EndMacroRecord:
			if current == nil {
				sink.Report(report.Error, []lexer.Position{v.Pos}, "Found 'endmacro' keyword without matching 'define'")
				return false
			}
			current.Content = trimTrailingWhitespace(current.Content)
			macros[current.Name] = current
			current = nil

		case lexer.Piece:
			if current == nil {
				if !yield(v) {
					return false
				}
				continue
			}
			if (v.Kind == lexer.Whitespace || v.Kind == lexer.Newline) && len(current.Content) == 0 {
				continue // leading whitespace/newline stripped from the body
			}
			if v.Kind == lexer.EndOfFile {
				sink.Report(report.Error, []lexer.Position{v.Pos, current.Pos},
					"Encountered end of file while reading a macro definition, perhaps a missing 'endmacro'?")
				return false
			}
			current.Content = append(current.Content, v)
		}
	}
	return true
}

func trimTrailingWhitespace(content []lexer.Piece) []lexer.Piece {
	end := len(content)
	for end > 0 && (content[end-1].Kind == lexer.Whitespace || content[end-1].Kind == lexer.Newline) {
		end--
	}
	return content[:end]
}
