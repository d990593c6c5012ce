package app

// State represents the current application state.
type State int

const (
	StateLoading State = iota // Waiting for the first source load
	StateReady                // Items loaded and scrollable
	StateError                // The source failed to load
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
