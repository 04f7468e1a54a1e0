package change

// ChallengeState is the two-factor challenge lifecycle. A challenge may be
// re-sent any number of times while not verifying; verification attempts are
// serialized with at most one outstanding.
type ChallengeState int

const (
	ChallengeNotSent ChallengeState = iota
	ChallengeSent
	ChallengeVerifying
	ChallengeVerified
	ChallengeFailed
)

func (c ChallengeState) String() string {
	switch c {
	case ChallengeNotSent:
		return "not-sent"
	case ChallengeSent:
		return "sent"
	case ChallengeVerifying:
		return "verifying"
	case ChallengeVerified:
		return "verified"
	case ChallengeFailed:
		return "failed"
	default:
		return "invalid"
	}
}
