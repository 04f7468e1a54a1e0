package checker

import (
	"log/slog"

	"github.com/jinzhu/copier"

	"github.com/tendant/simple-cred/pkg/breach"
	"github.com/tendant/simple-cred/pkg/policy"
	"github.com/tendant/simple-cred/pkg/strength"
)

// Snapshot is a point-in-time copy of a session's merged validation state.
type Snapshot struct {
	Input        string
	IsValid      bool
	Score        int
	Label        string
	Requirements policy.Requirements
	Suggestions  []string
	BreachStatus breach.Status
	Reused       *bool
}

// snapshotLocked maps the internal result into a caller-safe copy. Callers
// must hold s.mu.
func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Input:        s.input,
		BreachStatus: s.breachStatus,
	}
	if err := copier.Copy(&snap, &s.result); err != nil {
		slog.Error("Failed to map validation result", "err", err)
	}
	snap.Label = strength.Evaluate(s.input).Label.String()
	if s.reused != nil {
		reused := *s.reused
		snap.Reused = &reused
	}
	return snap
}
