package lexer

import (
	"bufio"
	"io"
	"iter"
	"regexp"
	"strings"
)

var (
	reSpaces = regexp.MustCompile(`[ \t]+`)
	reString = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	reIdent  = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*`)
)

// candidate tags used only while picking the earliest match; the block vs.
// line comment distinction collapses to Kind Comment once a Piece is built.
type candidateTag int

const (
	tagWhitespace candidateTag = iota
	tagString
	tagIdentifier
	tagBlockCommentStart
	tagLineCommentStart
	tagParenOpen
	tagParenClose
	tagComma
)

// findIdentifierMatch finds the first identifier match at or after col. It
// matches against the whole line (not line[col:]) so that the pattern's
// leading \b word-boundary assertion sees the real character before col,
// instead of spuriously treating col as a string boundary.
func findIdentifierMatch(line string, col int) (start, end int, ok bool) {
	for _, loc := range reIdent.FindAllStringIndex(line, -1) {
		if loc[0] >= col {
			return loc[0], loc[1], true
		}
	}
	return 0, 0, false
}

// findBestMatch scans line[col:] for the earliest-starting match among all
// patterns in §4.1's priority table, breaking ties (equal start column) by
// the order the patterns are listed here. Returns ok=false if nothing in
// the line from col onward matches any pattern.
func findBestMatch(line string, col int) (start, end int, tag candidateTag, ok bool) {
	rest := line[col:]
	tryRegex := func(re *regexp.Regexp, t candidateTag) bool {
		loc := re.FindStringIndex(rest)
		if loc == nil {
			return false
		}
		s, e := col+loc[0], col+loc[1]
		if !ok || s < start {
			start, end, tag, ok = s, e, t, true
		}
		return ok && start == col
	}
	tryLiteral := func(lit string, t candidateTag) bool {
		i := strings.Index(rest, lit)
		if i < 0 {
			return false
		}
		s, e := col+i, col+i+len(lit)
		if !ok || s < start {
			start, end, tag, ok = s, e, t, true
		}
		return ok && start == col
	}

	if tryRegex(reSpaces, tagWhitespace) {
		return
	}
	if tryRegex(reString, tagString) {
		return
	}
	if s, e, found := findIdentifierMatch(line, col); found {
		if !ok || s < start {
			start, end, tag, ok = s, e, tagIdentifier, true
		}
		if ok && start == col {
			return
		}
	}
	if tryLiteral("/*", tagBlockCommentStart) {
		return
	}
	if tryLiteral("//", tagLineCommentStart) {
		return
	}
	if tryLiteral("(", tagParenOpen) {
		return
	}
	if tryLiteral(")", tagParenClose) {
		return
	}
	if tryLiteral(",", tagComma) {
		return
	}
	return
}

// findEndOfBlockComment locates the end of a block-comment piece starting
// (or continuing) at searchStart within line. If "*/" is found, the comment
// ends right after it and eoc is true; otherwise it runs to just before the
// line's newline (or to the end of line, if there is none) and eoc is false.
func findEndOfBlockComment(line string, searchStart int) (end int, eoc bool) {
	if i := strings.Index(line[searchStart:], "*/"); i >= 0 {
		return searchStart + i + 2, true
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		return n - 1, false
	}
	return len(line), false
}

// Lexer converts a byte stream into pieces. Construct with New or NewNamed.
type Lexer struct {
	r        *bufio.Reader
	fileName string
	hasFile  bool
}

// New builds a Lexer reading from r, with no associated file name (used for
// standard input).
func New(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r)}
}

// NewNamed builds a Lexer reading from r and attributing positions to
// fileName.
func NewNamed(r io.Reader, fileName string) *Lexer {
	return &Lexer{r: bufio.NewReader(r), fileName: fileName, hasFile: true}
}

func (lx *Lexer) pos(line, col int) Position {
	p := Position{Line: line}
	if lx.hasFile {
		p.FileName = lx.fileName
		p.HasFile = true
	}
	return p.WithColumn(col)
}

// All returns a lazy sequence of pieces terminated by a single EndOfFile
// piece, mirroring the teacher's AllTokens() iter.Seq[Token] shape.
func (lx *Lexer) All() iter.Seq[Piece] {
	return func(yield func(Piece) bool) {
		lineNo := 1
		commentMode := false

		emit := func(kind Kind, line, col int, text string) bool {
			return yield(NewPiece(kind, lx.pos(line, col), text))
		}

		for {
			line, err := lx.r.ReadString('\n')
			if len(line) == 0 && err != nil {
				break
			}

			col := 0
			for col < len(line) {
				if line[col] == '\n' {
					if !emit(Newline, lineNo, col, "\n") {
						return
					}
					col++
					continue
				}

				if commentMode {
					end, eoc := findEndOfBlockComment(line, col)
					if !emit(Comment, lineNo, col, line[col:end]) {
						return
					}
					col = end
					if eoc {
						commentMode = false
					}
					continue
				}

				start, matchEnd, tag, ok := findBestMatch(line, col)
				if !ok {
					end := len(line)
					if end > 0 && line[end-1] == '\n' {
						end--
					}
					if end > col {
						if !emit(Text, lineNo, col, line[col:end]) {
							return
						}
					}
					col = end
					continue
				}

				if start > col {
					if !emit(Text, lineNo, col, line[col:start]) {
						return
					}
					col = start
				}

				switch tag {
				case tagBlockCommentStart:
					end, eoc := findEndOfBlockComment(line, col+2)
					if !emit(Comment, lineNo, col, line[col:end]) {
						return
					}
					col = end
					if !eoc {
						commentMode = true
					}
				case tagLineCommentStart:
					end := len(line)
					if end > 0 && line[end-1] == '\n' {
						end--
					}
					if !emit(Comment, lineNo, col, line[col:end]) {
						return
					}
					col = end
				case tagWhitespace:
					if !emit(Whitespace, lineNo, col, line[start:matchEnd]) {
						return
					}
					col = matchEnd
				case tagString:
					if !emit(String, lineNo, col, line[start:matchEnd]) {
						return
					}
					col = matchEnd
				case tagIdentifier:
					if !emit(Identifier, lineNo, col, line[start:matchEnd]) {
						return
					}
					col = matchEnd
				case tagParenOpen:
					if !emit(ParenOpen, lineNo, col, "(") {
						return
					}
					col = matchEnd
				case tagParenClose:
					if !emit(ParenClose, lineNo, col, ")") {
						return
					}
					col = matchEnd
				case tagComma:
					if !emit(Comma, lineNo, col, ",") {
						return
					}
					col = matchEnd
				}
			}

			lineNo++
			if err == io.EOF {
				break
			}
		}

		yield(NewPiece(EndOfFile, lx.pos(lineNo, 0), ""))
	}
}
