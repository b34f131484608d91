package lifecycle

// State is the lifecycle stage of a match. The order is significant: states
// compare by ordinal and Next wraps DONE back to IDLE.
type State int

const (
	Setup State = iota
	Idle
	Playing
	Done

	// Count is the number of states; phase tables are sized by it.
	Count
)

func (s State) String() string {
	switch s {
	case Setup:
		return "SETUP"
	case Idle:
		return "IDLE"
	case Playing:
		return "PLAYING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Next returns the following state in the cycle. SETUP is never re-entered.
func (s State) Next() State {
	n := s + 1
	if n >= Count {
		n = Idle
	}
	return n
}

// Joinable reports whether players may join a match in this state.
func (s State) Joinable() bool {
	return s == Idle || s == Playing
}

// AtLeast reports whether s is at or after o in lifecycle order.
func (s State) AtLeast(o State) bool { return s >= o }

func (s State) Valid() bool { return s >= Setup && s < Count }

// StopReason explains why a phase stopped.
type StopReason int

const (
	// ReasonUnknown covers manual and administrative stops.
	ReasonUnknown StopReason = iota
	ReasonError
	ReasonTime
)

func (r StopReason) String() string {
	switch r {
	case ReasonError:
		return "ERROR"
	case ReasonTime:
		return "TIME"
	default:
		return "UNKNOWN"
	}
}
