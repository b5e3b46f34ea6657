package directive

import (
	"fmt"

	"github.com/xpd-go/xpd/internal/lexer"
)

// Sequence identifies which accumulator kind a state expects to be open
// when it is entered.
type Sequence int

const (
	SeqNone Sequence = iota
	SeqDefine
	SeqInclude
	SeqEndMacro
)

// Action is the per-edge sequence_action: what happens to the current
// accumulator when the edge fires.
type Action int

const (
	ActionNone Action = iota
	ActionDefine
	ActionInclude
	ActionEndMacro
	ActionDiscard
	ActionSend
	// ActionFinish closes the current accumulator in place by emitting its
	// record (not its buffered storeds), without opening a replacement —
	// unlike ActionDiscard, the accumulator is closed as a completed
	// record rather than abandoned. The piece that triggered the edge is
	// then disposed of normally (forwarded to output, since no
	// accumulator remains open to buffer it into). Used only for State12's
	// Newline and EndOfFile edges: see the doc comment on `states`.
	ActionFinish
)

// Store is the per-edge store action: what, if anything, gets copied out
// of the matched piece into the open accumulator.
type Store int

const (
	StoreNone Store = iota
	StorePosition
	StoreName
	StoreParameter
	StoreFilename
)

// StateID names a state the way the ported table does: by its original
// numeric label, preserved for traceability against the source this was
// ported from.
type StateID int

const (
	State1  StateID = 1
	State2  StateID = 2
	State11 StateID = 11
	State12 StateID = 12
	State13 StateID = 13
	State14 StateID = 14
	State15 StateID = 15
	State18 StateID = 18
	State21 StateID = 21
	State22 StateID = 22
	State28 StateID = 28
	State29 StateID = 29
	State31 StateID = 31
	State99 StateID = 99
)

// Edge matches one piece kind (optionally constrained to a literal text)
// and says what to do when it fires.
type Edge struct {
	Kind    lexer.Kind
	Text    string
	HasText bool
	Goto    StateID // zero means "stay in the current state"
	Action  Action
	Store   Store
}

func edge(kind lexer.Kind, opts ...func(*Edge)) Edge {
	e := Edge{Kind: kind}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func withText(text string) func(*Edge) { return func(e *Edge) { e.Text, e.HasText = text, true } }
func withGoto(to StateID) func(*Edge)   { return func(e *Edge) { e.Goto = to } }
func withAction(a Action) func(*Edge)   { return func(e *Edge) { e.Action = a } }
func withStore(s Store) func(*Edge)     { return func(e *Edge) { e.Store = s } }

// State is either a MatchState (IsMatch true, consumes one piece per
// visit and follows the first matching edge) or a FinishState (consumes
// nothing, closes the open accumulator by emitting it, and transitions
// unconditionally).
type State struct {
	ID       StateID
	IsMatch  bool
	Expected Sequence

	Edges []Edge // MatchState only

	HasFinishGoto bool // FinishState only
	FinishGoto    StateID
}

func matchState(id StateID, expected Sequence, edges ...Edge) State {
	return State{ID: id, IsMatch: true, Expected: expected, Edges: edges}
}

func finishState(id StateID, expected Sequence, goTo StateID, terminal bool) State {
	s := State{ID: id, IsMatch: false, Expected: expected}
	if !terminal {
		s.HasFinishGoto = true
		s.FinishGoto = goTo
	}
	return s
}

// states is the directive recognizer's transition table. It mirrors the
// state machine this was ported from edge for edge, with one deliberate
// change: STATE12's end-of-line and end-of-file edges finish the define
// header instead of discarding it, so that a bare `define NAME` with no
// parameter list — valid per the external interface's nullary-macro
// form — actually produces a DefineRecord instead of silently becoming
// plain text. Both use ActionFinish rather than a goto to STATE18:
// STATE18 hands control to STATE2, which treats the following pieces as
// the rest of the header line, whereas the end-of-line edge has already
// consumed that line's newline and the end-of-file edge has no further
// piece at all. ActionFinish closes the DefineRecord and forwards the
// consumed piece itself in the same step. After a newline the machine
// goes to STATE1, so the next line is scanned from line start; the
// harvester drops the forwarded newline as leading body whitespace.
// After EndOfFile it goes to STATE99, so the harvester receives the
// still-open DefineRecord before the EndOfFile piece and reports
// "missing endmacro" per §4.3, rather than the recognizer panicking on
// an exhausted stream or the harvester never learning the definition
// was left open. See DESIGN.md.
var states = []State{
	matchState(State1, SeqNone,
		edge(lexer.Comma, withGoto(State2)),
		edge(lexer.Comment, withGoto(State2)),
		edge(lexer.EndOfFile, withGoto(State99)),
		edge(lexer.Newline),
		edge(lexer.Identifier, withText("define"), withAction(ActionDefine), withStore(StorePosition), withGoto(State11)),
		edge(lexer.Identifier, withText("include"), withAction(ActionInclude), withStore(StorePosition), withGoto(State21)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withGoto(State2)),
		edge(lexer.ParenClose, withGoto(State2)),
		edge(lexer.ParenOpen, withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withGoto(State2)),
		edge(lexer.Text, withGoto(State2)),
	),

	finishState(State31, SeqEndMacro, State2, false),

	matchState(State2, SeqNone,
		edge(lexer.Comma),
		edge(lexer.Comment),
		edge(lexer.EndOfFile, withGoto(State99)),
		edge(lexer.Newline, withGoto(State1)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier),
		edge(lexer.ParenClose),
		edge(lexer.ParenOpen),
		edge(lexer.Whitespace),
		edge(lexer.String),
		edge(lexer.Text),
	),

	matchState(State11, SeqDefine,
		edge(lexer.Comma, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.EndOfFile, withAction(ActionDiscard), withGoto(State99)),
		edge(lexer.Newline, withAction(ActionDiscard), withGoto(State1)),
		edge(lexer.Identifier, withText("define"), withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Identifier, withText("include"), withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withStore(StoreName), withGoto(State12)),
		edge(lexer.ParenClose, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenOpen, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	matchState(State12, SeqDefine,
		edge(lexer.Comma, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		// Deviation from the literal source: finish the nullary define
		// instead of discarding it (see the doc comment on `states`).
		edge(lexer.EndOfFile, withAction(ActionFinish), withGoto(State99)),
		edge(lexer.Newline, withAction(ActionFinish), withGoto(State1)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenClose, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenOpen, withGoto(State13)),
		edge(lexer.Whitespace),
		edge(lexer.String, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	matchState(State13, SeqDefine,
		edge(lexer.Comma, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.EndOfFile, withAction(ActionDiscard), withGoto(State99)),
		edge(lexer.Newline, withAction(ActionDiscard), withGoto(State1)),
		edge(lexer.Identifier, withText("define"), withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Identifier, withText("include"), withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withStore(StoreParameter), withGoto(State14)),
		edge(lexer.ParenClose, withGoto(State18)),
		edge(lexer.ParenOpen, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	matchState(State14, SeqDefine,
		edge(lexer.Comma, withGoto(State15)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.EndOfFile, withAction(ActionDiscard), withGoto(State99)),
		edge(lexer.Newline, withAction(ActionDiscard), withGoto(State1)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenClose, withGoto(State18)),
		edge(lexer.ParenOpen, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	matchState(State15, SeqDefine,
		edge(lexer.Comma, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.EndOfFile, withAction(ActionDiscard), withGoto(State99)),
		edge(lexer.Newline, withAction(ActionDiscard), withGoto(State1)),
		edge(lexer.Identifier, withText("define"), withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Identifier, withText("include"), withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withStore(StoreParameter), withGoto(State14)),
		edge(lexer.ParenClose, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenOpen, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	finishState(State18, SeqDefine, State2, false),

	matchState(State21, SeqInclude,
		edge(lexer.Comma, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.EndOfFile, withAction(ActionDiscard), withGoto(State99)),
		edge(lexer.Newline, withAction(ActionDiscard), withGoto(State1)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenClose, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenOpen, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withStore(StoreFilename), withGoto(State22)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	matchState(State22, SeqInclude,
		edge(lexer.Comma, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Comment, withAction(ActionDiscard), withGoto(State2)),
		// The EOF piece itself must survive to the output stream (the
		// top-level EOF the lexer promises); 'send' forces that instead
		// of burying it in the accumulator.
		edge(lexer.EndOfFile, withAction(ActionSend), withGoto(State29)),
		edge(lexer.Newline, withGoto(State28)),
		edge(lexer.Identifier, withText("endmacro"), withAction(ActionEndMacro), withStore(StorePosition), withGoto(State31)),
		edge(lexer.Identifier, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenClose, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.ParenOpen, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Whitespace),
		edge(lexer.String, withAction(ActionDiscard), withGoto(State2)),
		edge(lexer.Text, withAction(ActionDiscard), withGoto(State2)),
	),

	finishState(State28, SeqInclude, State1, false),
	finishState(State29, SeqInclude, State99, false),
	finishState(State99, SeqNone, 0, true),
}

// setupStates indexes states by ID and performs the recognizer's startup
// self-check: state uniqueness, goto validity, ten-kind exhaustiveness per
// MatchState, and sequence_action/expected_sequence coherence. It panics
// on violation — these are structural bugs in the table, not user errors.
func setupStates() map[StateID]State {
	byID := make(map[StateID]State, len(states))
	for _, s := range states {
		if _, dup := byID[s.ID]; dup {
			panic(fmt.Sprintf("directive: state %d defined more than once", s.ID))
		}
		byID[s.ID] = s
	}

	resolve := func(from State, goTo StateID, hasGoto bool) State {
		if !hasGoto {
			return from
		}
		next, ok := byID[goTo]
		if !ok {
			panic(fmt.Sprintf("directive: goto %d in state %d does not exist", goTo, from.ID))
		}
		return next
	}

	for _, s := range byID {
		if !s.IsMatch {
			if s.HasFinishGoto {
				next := resolve(s, s.FinishGoto, true)
				if next.Expected != SeqNone {
					panic(fmt.Sprintf("directive: finish state %d cannot finish due to next state", s.ID))
				}
			}
			continue
		}

		covered := make(map[lexer.Kind]bool, lexer.NumKinds)
		for _, e := range s.Edges {
			if !e.HasText {
				covered[e.Kind] = true
			}
			if e.Goto != 0 {
				if _, ok := byID[e.Goto]; !ok {
					panic(fmt.Sprintf("directive: goto %d in state %d does not exist", e.Goto, s.ID))
				}
			}
		}
		if len(covered) != lexer.NumKinds {
			panic(fmt.Sprintf("directive: edges do not cover all piece kinds in state %d", s.ID))
		}

		for _, e := range s.Edges {
			next := resolve(s, e.Goto, e.Goto != 0)
			switch e.Action {
			case ActionDefine:
				if next.Expected != SeqDefine {
					panic(fmt.Sprintf("directive: state %d, kind %s makes incorrect new sequence", s.ID, e.Kind))
				}
			case ActionInclude:
				if next.Expected != SeqInclude {
					panic(fmt.Sprintf("directive: state %d, kind %s makes incorrect new sequence", s.ID, e.Kind))
				}
			case ActionEndMacro:
				if next.Expected != SeqEndMacro {
					panic(fmt.Sprintf("directive: state %d, kind %s makes incorrect new sequence", s.ID, e.Kind))
				}
			case ActionNone, ActionSend:
				if next.Expected != s.Expected {
					panic(fmt.Sprintf("directive: state %d, kind %s passes wrong sequence to next state", s.ID, e.Kind))
				}
			case ActionDiscard:
				if s.Expected == SeqNone {
					panic(fmt.Sprintf("directive: state %d, kind %s discards nothing", s.ID, e.Kind))
				}
				if next.Expected != SeqNone {
					panic(fmt.Sprintf("directive: state %d, kind %s incorrectly discards for next state", s.ID, e.Kind))
				}
			case ActionFinish:
				if s.Expected == SeqNone {
					panic(fmt.Sprintf("directive: state %d, kind %s finishes nothing", s.ID, e.Kind))
				}
				if next.Expected != SeqNone {
					panic(fmt.Sprintf("directive: state %d, kind %s incorrectly finishes for next state", s.ID, e.Kind))
				}
			}
		}
	}

	return byID
}
