package workflow

import "fmt"

type (
	// SessionID is the opaque, caller-provided identifier of a session.
	// Sessions are long-lived: they contain zero or more sequential runs.
	SessionID string

	// RunID identifies one LLM-driven dialogue, scoped to a session.
	// RunSeq is allocated strictly monotonically within the session; the
	// rendered string is a pure function of (SessionID, RunSeq), never a
	// source of nondeterminism.
	RunID struct {
		SessionID SessionID
		RunSeq    uint64
	}

	// ToolBatchID identifies the set of tool calls observed from one LLM
	// response, scoped to a run. BatchSeq is allocated strictly
	// monotonically within the run.
	ToolBatchID struct {
		RunID    RunID
		BatchSeq uint64
	}
)

// String renders a stable, human-readable form for logs and snapshots.
// It is never parsed back; the authoritative identity is the struct value.
func (r RunID) String() string {
	return fmt.Sprintf("run_%s_%d", r.SessionID, r.RunSeq)
}

// IsZero reports whether r is the zero RunID (no run allocated).
func (r RunID) IsZero() bool {
	return r == RunID{}
}

// String renders a stable, human-readable form for logs and snapshots.
func (b ToolBatchID) String() string {
	return fmt.Sprintf("batch_%s_%d", b.RunID, b.BatchSeq)
}

// IsZero reports whether b is the zero ToolBatchID (no batch allocated).
func (b ToolBatchID) IsZero() bool {
	return b == ToolBatchID{}
}

// allocateRunID allocates the next RunID for the session and bumps
// next_run_seq. Strictly monotonic per invariant 1 in spec.md §3.
func allocateRunID(s *SessionState) RunID {
	seq := s.NextRunSeq
	s.NextRunSeq++
	return RunID{SessionID: s.SessionID, RunSeq: seq}
}

// allocateToolBatchID allocates the next ToolBatchID for the session's
// active run and bumps next_tool_batch_seq. Strictly monotonic.
func allocateToolBatchID(s *SessionState, runID RunID) ToolBatchID {
	seq := s.NextToolBatchSeq
	s.NextToolBatchSeq++
	return ToolBatchID{RunID: runID, BatchSeq: seq}
}
