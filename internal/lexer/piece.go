package lexer

import "fmt"

// Kind classifies a Piece. The set is closed and must contain exactly ten
// variants — the directive recognizer's self-check depends on that count.
type Kind int

const (
	Whitespace Kind = iota
	Newline
	Comment
	Identifier
	String
	ParenOpen
	ParenClose
	Comma
	Text
	EndOfFile

	numKinds // sentinel, not a real piece kind
)

// NumKinds is the size of the closed PieceKind enumeration (must be 10).
const NumKinds = int(numKinds)

func (k Kind) String() string {
	switch k {
	case Whitespace:
		return "whitespace"
	case Newline:
		return "newline"
	case Comment:
		return "comment"
	case Identifier:
		return "identifier"
	case String:
		return "string"
	case ParenOpen:
		return "paropen"
	case ParenClose:
		return "parclose"
	case Comma:
		return "comma"
	case Text:
		return "text"
	case EndOfFile:
		return "eof"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AllKinds returns every variant of the closed enumeration, in declaration
// order. The directive recognizer's exhaustiveness check counts kinds
// against NumKinds instead.
func AllKinds() []Kind {
	return []Kind{Whitespace, Newline, Comment, Identifier, String, ParenOpen, ParenClose, Comma, Text, EndOfFile}
}

// Piece is one classified, positioned atom of input. Pieces are immutable
// after construction; identity is given by (Kind, Pos), equality is not
// required by callers.
type Piece struct {
	Kind Kind
	Pos  Position
	text string
}

// NewPiece builds a Piece. The text is copied into the piece at construction
// (design option (a) from the port's design notes): simpler than sharing
// the owning line buffer, at the cost of one extra allocation per piece.
func NewPiece(kind Kind, pos Position, text string) Piece {
	return Piece{Kind: kind, Pos: pos, text: text}
}

// Text returns the piece's source text.
func (p Piece) Text() string { return p.text }

func (p Piece) String() string {
	return fmt.Sprintf("Piece(%s, %s): %q", p.Kind, p.Pos, p.text)
}
