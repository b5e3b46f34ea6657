// Package expand implements the expander: it scans a piece stream for
// identifiers, resolves them against parameter bindings, the macro
// table, or the reserved `glue` built-in, substitutes arguments, and
// recurses with a bounded expansion depth.
package expand

import (
	"iter"
	"strings"

	"github.com/xpd-go/xpd/internal/directive"
	"github.com/xpd-go/xpd/internal/harvest"
	"github.com/xpd-go/xpd/internal/lexer"
	"github.com/xpd-go/xpd/internal/report"
)

// MaxExpandLevel bounds expansion recursion; exceeding it is fatal.
const MaxExpandLevel = 10

// reservedGlue is the built-in pseudo-macro name: it never resolves via
// the macro table, even if a definition happens to exist under that
// name — it always performs literal argument concatenation.
const reservedGlue = "glue"

// Getter pulls one piece at a time, the way the recognizer and harvester
// do, reporting ok=false at end of sequence. iter.Pull produces this
// shape directly; listGetter wraps a buffered slice with the same shape
// for re-scanning already-collected argument and macro-body pieces.
type Getter func() (lexer.Piece, bool)

func listGetter(items []lexer.Piece) Getter {
	i := 0
	return func() (lexer.Piece, bool) {
		if i >= len(items) {
			return lexer.Piece{}, false
		}
		p := items[i]
		i++
		return p, true
	}
}

// Frame is one entry of the expansion-nesting stack: the call site that
// pushed it, and the macro definition being expanded.
type Frame struct {
	CallSite lexer.Position
	Def      *directive.DefineRecord
}

// Expander resolves identifiers against macros and expands macro calls.
type Expander struct {
	Macros harvest.MacroTable
	Sink   report.Sink
}

// New builds an Expander over macros, reporting through sink.
func New(macros harvest.MacroTable, sink report.Sink) *Expander {
	return &Expander{Macros: macros, Sink: sink}
}

// Expand drives get to completion, yielding the expanded piece stream.
func (e *Expander) Expand(get Getter, params map[string][]lexer.Piece, nesting []Frame) iter.Seq[lexer.Piece] {
	return func(yield func(lexer.Piece) bool) {
		e.run(get, params, nesting, yield)
	}
}

// ExpandTop is the entry point used by the CLI: it pulls from a lazy
// harvester stream via iter.Pull and expands it with no bound parameters
// and an empty nesting stack.
func (e *Expander) ExpandTop(pieces iter.Seq[lexer.Piece]) iter.Seq[lexer.Piece] {
	return func(yield func(lexer.Piece) bool) {
		next, stop := iter.Pull(pieces)
		defer stop()
		e.run(Getter(next), nil, nil, yield)
	}
}

// run returns false if yield requested early termination or a fatal
// report was issued; the core does not attempt recovery after an error
// report, so callers must stop as soon as run returns false.
func (e *Expander) run(get Getter, params map[string][]lexer.Piece, nesting []Frame, yield func(lexer.Piece) bool) bool {
	for {
		piece, ok := get()
		if !ok {
			return true
		}

		if piece.Kind != lexer.Identifier {
			if !yield(piece) {
				return false
			}
			continue
		}

		name := piece.Text()
		if bound, isParam := params[name]; isParam {
			for _, p := range bound {
				if !yield(p) {
					return false
				}
			}
			continue
		}

		if name == reservedGlue {
			args, ok := e.findArguments(get, piece.Pos, reservedGlue)
			if !ok {
				return false
			}
			var b strings.Builder
			for _, arg := range args {
				for _, p := range arg {
					b.WriteString(p.Text())
				}
			}
			if !yield(lexer.NewPiece(lexer.Text, piece.Pos, b.String())) {
				return false
			}
			continue
		}

		def, isMacro := e.Macros[name]
		if !isMacro {
			if !yield(piece) {
				return false
			}
			continue
		}

		args, ok := e.findArguments(get, piece.Pos, name)
		if !ok {
			return false
		}

		if len(def.Parameters) != len(args) {
			e.Sink.Report(report.Error, []lexer.Position{def.Pos, piece.Pos},
				"Incorrect number of argument for expanding macro '%s' (expected %d found %d arguments)",
				def.Name, len(def.Parameters), len(args))
			return false
		}

		nesting = append(nesting, Frame{CallSite: piece.Pos, Def: def})
		if len(nesting) > MaxExpandLevel {
			positions := make([]lexer.Position, len(nesting))
			for i, f := range nesting {
				positions[i] = f.CallSite
			}
			e.Sink.ReportOrdered(report.Error, positions, "Too many macro expansions, infinite recursion?")
			return false
		}

		argTable := make(map[string][]lexer.Piece, len(args))
		for i, paramPiece := range def.Parameters {
			var expanded []lexer.Piece
			collect := func(p lexer.Piece) bool {
				expanded = append(expanded, p)
				return true
			}
			if !e.run(listGetter(args[i]), params, nesting, collect) {
				return false
			}
			argTable[paramPiece.Text()] = expanded
		}

		if !e.run(listGetter(def.Content), argTable, nesting, yield) {
			return false
		}
		nesting = nesting[:len(nesting)-1]
	}
}

// findArguments parses a macro call's parenthesized argument list after
// the identifier has already been consumed.
func (e *Expander) findArguments(get Getter, callPos lexer.Position, macroName string) ([][]lexer.Piece, bool) {
	for {
		piece, ok := get()
		if !ok || piece.Kind != lexer.ParenOpen {
			if ok && piece.Kind == lexer.Whitespace {
				continue
			}
			e.Sink.Report(report.Error, []lexer.Position{callPos}, "Missing open parentheses for macro call '%s'", macroName)
			return nil, false
		}
		break
	}

	var arguments [][]lexer.Piece
	for {
		argument, stripped, closer, ok := e.storeArgument(get)
		if !ok {
			e.Sink.Report(report.Error, []lexer.Position{callPos}, "Missing closing parentheses for macro call '%s'", macroName)
			return nil, false
		}

		if closer.Kind == lexer.ParenClose {
			if len(arguments) == 0 && len(argument) == 0 && !stripped {
				return arguments, true // the empty call "(    )"
			}
			arguments = append(arguments, argument)
			return arguments, true
		}
		arguments = append(arguments, argument)
	}
}

// storeArgument collects one argument's pieces up to the next top-level
// comma or closing parenthesis, stripping leading/trailing whitespace and
// unwrapping a single outermost parenthesis pair that spans the whole
// argument.
func (e *Expander) storeArgument(get Getter) (argument []lexer.Piece, stripped bool, closer lexer.Piece, ok bool) {
	firstClose := -1
	strippingLeading := true

	for {
		piece, got := get()
		if !got || piece.Kind == lexer.EndOfFile {
			return nil, false, lexer.Piece{}, false
		}

		if piece.Kind == lexer.Comma || piece.Kind == lexer.ParenClose {
			for len(argument) > 0 {
				last := argument[len(argument)-1]
				if last.Kind != lexer.Whitespace && last.Kind != lexer.Newline {
					break
				}
				argument = argument[:len(argument)-1]
			}
			if firstClose >= 0 && len(argument) > 0 && argument[0].Kind == lexer.ParenOpen && len(argument)-1 == firstClose {
				return argument[1 : len(argument)-1], true, piece, true
			}
			return argument, false, piece, true
		}

		if !strippingLeading {
			argument = append(argument, piece)
		} else if piece.Kind != lexer.Whitespace && piece.Kind != lexer.Newline {
			argument = append(argument, piece)
			strippingLeading = false
		}

		if piece.Kind == lexer.ParenOpen {
			if !e.storeTilMatchingClose(get, &argument) {
				return nil, false, lexer.Piece{}, false
			}
			if firstClose < 0 {
				firstClose = len(argument) - 1
			}
		}
	}
}

// storeTilMatchingClose appends pieces into *pieces until the matching
// close of a paren already opened at level 1, transparently balancing any
// further nested pairs.
func (e *Expander) storeTilMatchingClose(get Getter, pieces *[]lexer.Piece) bool {
	level := 1
	for level > 0 {
		piece, got := get()
		if !got || piece.Kind == lexer.EndOfFile {
			return false
		}
		*pieces = append(*pieces, piece)
		switch piece.Kind {
		case lexer.ParenOpen:
			level++
		case lexer.ParenClose:
			level--
		}
	}
	return true
}
