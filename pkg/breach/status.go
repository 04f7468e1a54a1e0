package breach

// Status tracks where a candidate password stands with the breach check.
// Transitions only move forward (Unknown -> Checking -> Compromised/Clean)
// except for the acknowledged override to Clean, which dominates any checker
// response that arrives after it.
type Status int

const (
	StatusUnknown Status = iota
	StatusChecking
	StatusCompromised
	StatusClean
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusChecking:
		return "checking"
	case StatusCompromised:
		return "compromised"
	case StatusClean:
		return "clean"
	default:
		return "invalid"
	}
}
