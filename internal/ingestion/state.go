package ingestion

type State int32

const (
	StateConnecting State = iota
	StateConsuming
	StateMessageFailed
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConsuming:
		return "consuming"
	case StateMessageFailed:
		return "message_failed"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one delivery.
type Outcome int

const (
	OutcomePersisted Outcome = iota
	// OutcomeEmpty means no reference row matched; the message still counts as processed.
	OutcomeEmpty
	// OutcomeSkipped means the reference file was absent under the skip policy.
	OutcomeSkipped
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeEmpty:
		return "empty"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
