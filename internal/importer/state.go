package importer

// State is a session lifecycle stage.
type State string

const (
	StateIdle      State = "idle"
	StateParsed    State = "parsed"
	StateMapped    State = "mapped"
	StateMatched   State = "matched"
	StateValidated State = "validated"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

func (s State) in(states ...State) bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}
