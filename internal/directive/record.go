// Package directive implements the directive recognizer: a table-driven
// deterministic state machine that lifts "define"/"include"/"endmacro"
// lines out of a piece stream into structured records, passing everything
// else through unchanged.
package directive

import (
	"fmt"
	"strings"

	"github.com/xpd-go/xpd/internal/lexer"
)

// DefineRecord accumulates a `define NAME` or `define NAME(P1, P2, ...)`
// directive. Name and Parameters are filled in by the recognizer as the
// header is matched; Content is filled in afterwards by the definition
// harvester, which owns the record once the recognizer emits it.
type DefineRecord struct {
	Pos        lexer.Position
	Name       string
	Parameters []lexer.Piece // parameter-name pieces, in declaration order
	Content    []lexer.Piece
}

func (d *DefineRecord) String() string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Text()
	}
	return fmt.Sprintf("Define %s (%s)", d.Name, strings.Join(names, ", "))
}

// IncludeRecord is a fully-matched `include "PATH"` directive.
type IncludeRecord struct {
	Pos      lexer.Position
	Filename string // unescaped path
}

func (r *IncludeRecord) String() string { return fmt.Sprintf("Include %q", r.Filename) }

// EndMacroRecord closes the most recently opened DefineRecord.
type EndMacroRecord struct {
	Pos lexer.Position
}

func (r *EndMacroRecord) String() string { return "EndMacro" }

// unescapeEscapes maps the backslash-escape characters recognized inside an
// include filename string literal to their translated value.
var unescapeEscapes = map[byte]byte{'n': '\n', 't': '\t'}

// unescape strips the surrounding quotes from a string-literal piece's text
// and resolves its backslash escapes: \n and \t translate to their control
// character, any other \x translates to a literal x.
func unescape(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	var b strings.Builder
	inner := s[1 : len(s)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			if repl, ok := unescapeEscapes[inner[i+1]]; ok {
				b.WriteByte(repl)
			} else {
				b.WriteByte(inner[i+1])
			}
			i++
			continue
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}
