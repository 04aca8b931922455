package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateRunIDIsMonotonic(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))

	first := allocateRunID(s)
	second := allocateRunID(s)

	assert.Equal(t, uint64(0), first.RunSeq)
	assert.Equal(t, uint64(1), second.RunSeq)
	assert.Equal(t, uint64(2), s.NextRunSeq)
	assert.NotEqual(t, first, second)
}

func TestAllocateToolBatchIDIsMonotonicPerRun(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	run := allocateRunID(s)

	first := allocateToolBatchID(s, run)
	second := allocateToolBatchID(s, run)

	assert.Equal(t, uint64(0), first.BatchSeq)
	assert.Equal(t, uint64(1), second.BatchSeq)
	assert.Equal(t, run, first.RunID)
	assert.Equal(t, run, second.RunID)
}

func TestRunIDIsZero(t *testing.T) {
	var zero RunID
	assert.True(t, zero.IsZero())

	s := NewSessionState(SessionID("sess-1"))
	run := allocateRunID(s)
	assert.False(t, run.IsZero())
}

func TestToolBatchIDIsZero(t *testing.T) {
	var zero ToolBatchID
	assert.True(t, zero.IsZero())
}

func TestRunIDStringIsStableAndDeterministic(t *testing.T) {
	run := RunID{SessionID: SessionID("sess-1"), RunSeq: 3}
	assert.Equal(t, run.String(), run.String())
	assert.Equal(t, "run_sess-1_3", run.String())
}

func TestToolBatchIDStringIsStable(t *testing.T) {
	run := RunID{SessionID: SessionID("sess-1"), RunSeq: 3}
	batch := ToolBatchID{RunID: run, BatchSeq: 2}
	assert.Equal(t, "batch_run_sess-1_3_2", batch.String())
}
