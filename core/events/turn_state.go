package events

const (
	// KindTurnCompleted identifies the service's end-of-turn signal.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnInterrupted identifies the service's interruption signal.
	KindTurnInterrupted Kind = "turn_state.interrupted"
)

// TurnCompleted marks the end of a turn.
type TurnCompleted struct{ Base }

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted() TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted)}
}

// TurnInterrupted marks that the user cut the assistant off.
type TurnInterrupted struct{ Base }

// NewTurnInterrupted creates a turn interrupted event.
func NewTurnInterrupted() TurnInterrupted {
	return TurnInterrupted{Base: NewBase(KindTurnInterrupted)}
}
