package bootloader

// State is the session state.
type State uint8

const (
	StateIdle State = iota
	StateVersionQueried
	StateFlashing
	StateJumpSent
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateVersionQueried:
		return "VERSION_QUERIED"
	case StateFlashing:
		return "FLASHING"
	case StateJumpSent:
		return "JUMP_SENT"
	default:
		return "UNKNOWN"
	}
}
