package checker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-cred/pkg/breach"
	"github.com/tendant/simple-cred/pkg/policy"
	"github.com/tendant/simple-cred/pkg/reuse"
)

// fakeBreachChecker lets a test decide when and how each check resolves.
// Results are keyed by input; a check blocks until its result is published
// or its context is cancelled.
type fakeBreachChecker struct {
	results map[string]chan breachAnswer
}

type breachAnswer struct {
	compromised bool
	err         error
}

func newFakeBreachChecker(inputs ...string) *fakeBreachChecker {
	f := &fakeBreachChecker{results: make(map[string]chan breachAnswer)}
	for _, input := range inputs {
		f.results[input] = make(chan breachAnswer, 1)
	}
	return f
}

func (f *fakeBreachChecker) IsCompromised(ctx context.Context, password string) (bool, error) {
	ch, ok := f.results[password]
	if !ok {
		return false, nil
	}
	select {
	case answer := <-ch:
		return answer.compromised, answer.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (f *fakeBreachChecker) resolve(input string, compromised bool) {
	f.results[input] <- breachAnswer{compromised: compromised}
}

func (f *fakeBreachChecker) fail(input string, err error) {
	f.results[input] <- breachAnswer{err: err}
}

func newUpdateChannel() (chan Snapshot, func(Snapshot)) {
	updates := make(chan Snapshot, 16)
	return updates, func(snap Snapshot) { updates <- snap }
}

func waitForUpdate(t *testing.T, updates chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-updates:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an async merge")
		return Snapshot{}
	}
}

func TestUpdateRunsSyncValidationImmediately(t *testing.T) {
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()))

	snap := session.Update(context.Background(), "Xk9$mP2!vLq7")
	assert.True(t, snap.IsValid)
	assert.True(t, snap.Requirements.Uppercase)
	assert.Equal(t, breach.StatusUnknown, snap.BreachStatus)
}

func TestBreachResultMergesForCurrentInput(t *testing.T) {
	fake := newFakeBreachChecker("Xk9$mP2!vLq7")
	updates, onUpdate := newUpdateChannel()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithBreachChecker(fake), WithOnUpdate(onUpdate))

	snap := session.Update(context.Background(), "Xk9$mP2!vLq7")
	assert.Equal(t, breach.StatusChecking, snap.BreachStatus)

	fake.resolve("Xk9$mP2!vLq7", true)
	merged := waitForUpdate(t, updates)
	assert.Equal(t, breach.StatusCompromised, merged.BreachStatus)
	assert.False(t, merged.Requirements.NotCompromised)
	assert.True(t, merged.IsValid, "one failed flag still clears the 7-of-8 gate")
}

func TestStaleBreachResponseIsDiscarded(t *testing.T) {
	fake := newFakeBreachChecker("first-input-Aa1!", "second-input-Bb2@")
	updates, onUpdate := newUpdateChannel()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithBreachChecker(fake), WithOnUpdate(onUpdate))

	ctx := context.Background()
	session.Update(ctx, "first-input-Aa1!")
	session.Update(ctx, "second-input-Bb2@")

	// The first input's check resolves compromised after it went stale. It
	// must never mutate state computed for the second input.
	fake.resolve("first-input-Aa1!", true)
	fake.resolve("second-input-Bb2@", false)

	merged := waitForUpdate(t, updates)
	assert.Equal(t, "second-input-Bb2@", merged.Input)
	assert.Equal(t, breach.StatusClean, merged.BreachStatus)
	assert.True(t, merged.Requirements.NotCompromised)

	time.Sleep(50 * time.Millisecond)
	final := session.Result()
	assert.Equal(t, breach.StatusClean, final.BreachStatus)
	assert.Empty(t, updates, "the stale response must not produce a merge")
}

func TestAcknowledgeDominatesLateBreachResponse(t *testing.T) {
	fake := newFakeBreachChecker("Xk9$mP2!vLq7")
	updates, onUpdate := newUpdateChannel()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithBreachChecker(fake), WithOnUpdate(onUpdate))

	session.Update(context.Background(), "Xk9$mP2!vLq7")
	snap := session.AcknowledgeBreach()
	assert.Equal(t, breach.StatusClean, snap.BreachStatus)

	fake.resolve("Xk9$mP2!vLq7", true)

	time.Sleep(50 * time.Millisecond)
	final := session.Result()
	assert.Equal(t, breach.StatusClean, final.BreachStatus)
	assert.True(t, final.Requirements.NotCompromised)
	assert.Empty(t, updates)
}

func TestBreachCheckFailsOpen(t *testing.T) {
	fake := newFakeBreachChecker("Xk9$mP2!vLq7")
	updates, onUpdate := newUpdateChannel()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithBreachChecker(fake), WithOnUpdate(onUpdate))

	session.Update(context.Background(), "Xk9$mP2!vLq7")
	fake.fail("Xk9$mP2!vLq7", errors.New("connection refused"))

	merged := waitForUpdate(t, updates)
	assert.Equal(t, breach.StatusClean, merged.BreachStatus)
	assert.True(t, merged.Requirements.NotCompromised)
}

func TestReuseResultMerges(t *testing.T) {
	hasher := reuse.NewBcryptHasher()
	hash, err := hasher.Hash("Xk9$mP2!vLq7")
	require.NoError(t, err)

	updates, onUpdate := newUpdateChannel()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithReuseChecker(reuse.NewChecker(hasher)),
		WithHistory([]string{hash}),
		WithOnUpdate(onUpdate))

	snap := session.Update(context.Background(), "Xk9$mP2!vLq7")
	assert.True(t, snap.Requirements.NotReused, "reported satisfied until the check resolves")

	merged := waitForUpdate(t, updates)
	assert.False(t, merged.Requirements.NotReused)
	require.NotNil(t, merged.Reused)
	assert.True(t, *merged.Reused)
}

func TestCloseCancelsInFlightChecks(t *testing.T) {
	fake := newFakeBreachChecker("Xk9$mP2!vLq7")
	updates, onUpdate := newUpdateChannel()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithBreachChecker(fake), WithOnUpdate(onUpdate))

	session.Update(context.Background(), "Xk9$mP2!vLq7")
	session.Close()

	time.Sleep(50 * time.Millisecond)
	final := session.Result()
	assert.Equal(t, breach.StatusChecking, final.BreachStatus)
	assert.Empty(t, updates, "a cancelled check must not mutate state")
}

func TestEmptyInputSkipsAsyncChecks(t *testing.T) {
	fake := newFakeBreachChecker()
	session := NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()),
		WithBreachChecker(fake))

	snap := session.Update(context.Background(), "")
	assert.Equal(t, breach.StatusUnknown, snap.BreachStatus)
	assert.False(t, snap.IsValid)
	assert.Zero(t, snap.Score)
}
