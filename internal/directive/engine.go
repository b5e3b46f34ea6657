package directive

import (
	"fmt"
	"iter"

	"github.com/xpd-go/xpd/internal/lexer"
	"github.com/xpd-go/xpd/internal/report"
)

// accumulator is the single open DefineRecord/IncludeRecord/EndMacroRecord,
// plus the pieces consumed into it that must be flushed to the output
// stream verbatim if it turns out the accumulator never completes (e.g. a
// `define` line is abandoned mid-header because a newline arrives first).
type accumulator struct {
	define   *DefineRecord
	include  *IncludeRecord
	endMacro *EndMacroRecord
	storeds  []lexer.Piece
}

func newAccumulator(action Action) *accumulator {
	switch action {
	case ActionDefine:
		return &accumulator{define: &DefineRecord{}}
	case ActionInclude:
		return &accumulator{include: &IncludeRecord{}}
	case ActionEndMacro:
		return &accumulator{endMacro: &EndMacroRecord{}}
	default:
		panic(fmt.Sprintf("directive: newAccumulator called with action %d", action))
	}
}

func (a *accumulator) record() any {
	switch {
	case a.define != nil:
		return a.define
	case a.include != nil:
		return a.include
	default:
		return a.endMacro
	}
}

func (a *accumulator) applyStore(piece lexer.Piece, store Store, sink report.Sink) {
	switch store {
	case StorePosition:
		switch {
		case a.define != nil:
			a.define.Pos = piece.Pos
		case a.include != nil:
			a.include.Pos = piece.Pos
		default:
			a.endMacro.Pos = piece.Pos
		}
	case StoreName:
		a.define.Name = piece.Text()
	case StoreParameter:
		name := piece.Text()
		for _, p := range a.define.Parameters {
			if p.Text() == name {
				sink.Report(report.Error, []lexer.Position{piece.Pos, p.Pos},
					"Macro definition parameter '%s' is listed more than once", name)
			}
		}
		a.define.Parameters = append(a.define.Parameters, piece)
	case StoreFilename:
		a.include.Filename = unescape(piece.Text())
	}
}

// Recognize drives the directive DFA over pieces, yielding a mixed stream
// whose elements are either a passthrough lexer.Piece, or one of
// *DefineRecord, *IncludeRecord, *EndMacroRecord. sink receives the fatal
// duplicate-parameter-name report, should one occur while scanning a
// parameter list.
func Recognize(pieces iter.Seq[lexer.Piece], sink report.Sink) iter.Seq[any] {
	byID := setupStates()

	return func(yield func(any) bool) {
		next, stop := iter.Pull(pieces)
		defer stop()

		cur := byID[State1]
		var seq *accumulator

		flush := func() bool {
			if seq == nil {
				return true
			}
			for _, p := range seq.storeds {
				if !yield(p) {
					return false
				}
			}
			return true
		}

		for {
			if cur.IsMatch {
				piece, ok := next()
				if !ok {
					panic("directive: piece stream ended before the recognizer reached its terminal state")
				}

				var sel *Edge
				for i := range cur.Edges {
					e := &cur.Edges[i]
					if e.Kind == piece.Kind && (!e.HasText || e.Text == piece.Text()) {
						sel = e
						break
					}
				}
				if sel == nil {
					panic(fmt.Sprintf("directive: no edge in state %d matches piece %s", cur.ID, piece))
				}

				forceSend := false
				switch sel.Action {
				case ActionNone:
				case ActionDefine, ActionInclude, ActionEndMacro:
					if !flush() {
						return
					}
					seq = newAccumulator(sel.Action)
				case ActionDiscard:
					if !flush() {
						return
					}
					seq = nil
				case ActionFinish:
					if seq != nil {
						if !yield(seq.record()) {
							return
						}
					}
					seq = nil
				case ActionSend:
					forceSend = true
				}

				if !forceSend && seq != nil {
					seq.storeds = append(seq.storeds, piece)
				} else if !yield(piece) {
					return
				}

				if sel.Store != StoreNone {
					seq.applyStore(piece, sel.Store, sink)
				}

				if sel.Goto != 0 {
					cur = byID[sel.Goto]
				}
				continue
			}

			// FinishState: close the accumulator by emitting the record
			// itself (not its buffered storeds, which are discarded), then
			// transition.
			if seq != nil {
				if !yield(seq.record()) {
					return
				}
			}
			seq = nil

			if !cur.HasFinishGoto {
				return
			}
			cur = byID[cur.FinishGoto]
		}
	}
}
