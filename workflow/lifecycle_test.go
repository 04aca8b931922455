package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionAllowedEdges(t *testing.T) {
	cases := []struct {
		from SessionLifecycle
		to   SessionLifecycle
	}{
		{LifecycleIdle, LifecycleRunning},
		{LifecycleRunning, LifecycleWaitingInput},
		{LifecycleRunning, LifecyclePaused},
		{LifecycleRunning, LifecycleCancelling},
		{LifecycleRunning, LifecycleCompleted},
		{LifecycleRunning, LifecycleFailed},
		{LifecycleWaitingInput, LifecycleRunning},
		{LifecycleWaitingInput, LifecycleCancelling},
		{LifecyclePaused, LifecycleRunning},
		{LifecyclePaused, LifecycleCancelling},
		{LifecycleCancelling, LifecycleCancelled},
	}
	for _, tc := range cases {
		s := &SessionState{Lifecycle: tc.from}
		require.NoError(t, transition(s, tc.to))
		assert.Equal(t, tc.to, s.Lifecycle)
	}
}

func TestTransitionSameStateIsNoop(t *testing.T) {
	s := &SessionState{Lifecycle: LifecycleRunning}
	require.NoError(t, transition(s, LifecycleRunning))
	assert.Equal(t, LifecycleRunning, s.Lifecycle)
}

func TestTransitionRejectsDisallowedEdge(t *testing.T) {
	s := &SessionState{Lifecycle: LifecycleIdle}
	err := transition(s, LifecycleWaitingInput)
	require.Error(t, err)
	typed, ok := AsInvalidLifecycleTransition(err)
	require.True(t, ok)
	assert.Equal(t, LifecycleIdle, typed.From)
	assert.Equal(t, LifecycleWaitingInput, typed.To)
	assert.ErrorIs(t, err, ErrInvalidLifecycleTransition)
}

func TestTransitionFromTerminalReentersRunning(t *testing.T) {
	for _, terminal := range []SessionLifecycle{LifecycleCompleted, LifecycleFailed, LifecycleCancelled} {
		s := &SessionState{Lifecycle: terminal}
		require.NoError(t, transition(s, LifecycleRunning))
		assert.Equal(t, LifecycleRunning, s.Lifecycle)
	}
}

func TestTransitionFromTerminalRejectsNonRunning(t *testing.T) {
	s := &SessionState{Lifecycle: LifecycleCompleted}
	err := transition(s, LifecyclePaused)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLifecycleTransition)
}

func TestIsTerminal(t *testing.T) {
	terminal := []SessionLifecycle{LifecycleCompleted, LifecycleFailed, LifecycleCancelled}
	for _, l := range terminal {
		assert.True(t, l.IsTerminal(), l)
	}
	nonTerminal := []SessionLifecycle{LifecycleIdle, LifecycleRunning, LifecycleWaitingInput, LifecyclePaused, LifecycleCancelling}
	for _, l := range nonTerminal {
		assert.False(t, l.IsTerminal(), l)
	}
}

func TestCanApplyHostCommand(t *testing.T) {
	cases := []struct {
		lifecycle SessionLifecycle
		kind      HostCommandKind
		want      bool
	}{
		{LifecycleRunning, HostCommandPause, true},
		{LifecycleWaitingInput, HostCommandPause, true},
		{LifecyclePaused, HostCommandPause, false},
		{LifecyclePaused, HostCommandResume, true},
		{LifecycleRunning, HostCommandResume, false},
		{LifecycleRunning, HostCommandCancel, true},
		{LifecycleCancelled, HostCommandCancel, false},
		{LifecycleCompleted, HostCommandSteer, false},
		{LifecycleRunning, HostCommandSteer, true},
	}
	for _, tc := range cases {
		s := &SessionState{Lifecycle: tc.lifecycle}
		assert.Equal(t, tc.want, canApplyHostCommand(s, tc.kind), "lifecycle=%s kind=%s", tc.lifecycle, tc.kind)
	}
}

func TestApplyCancelFenceBumpsBothEpochs(t *testing.T) {
	s := &SessionState{SessionEpoch: 4, StepEpoch: 9}
	applyCancelFence(s)
	assert.Equal(t, uint64(5), s.SessionEpoch)
	assert.Equal(t, uint64(10), s.StepEpoch)
}
