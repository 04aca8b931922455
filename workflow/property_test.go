package workflow

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

// TestRunIDAllocationIsStrictlyMonotonicProperty verifies invariant 1
// (spec.md §3 "strictly monotonic sequencing"): for any number of
// successive RunRequested allocations, RunSeq strictly increases and is
// never reused.
func TestRunIDAllocationIsStrictlyMonotonicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("run ids allocated in sequence are strictly increasing", prop.ForAll(
		func(n int) bool {
			s := NewSessionState(SessionID("sess-prop"))
			seen := map[uint64]bool{}
			var last uint64
			for i := 0; i < n; i++ {
				run := allocateRunID(s)
				if i > 0 && run.RunSeq <= last {
					return false
				}
				if seen[run.RunSeq] {
					return false
				}
				seen[run.RunSeq] = true
				last = run.RunSeq
			}
			return true
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

// TestParamsHashDeterminismProperty verifies spec.md §8 "hash determinism":
// encoding the same logical value through canonical CBOR always produces
// the same hash, independent of the Go map's iteration order.
func TestParamsHashDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("hashing equal maps is independent of iteration order", prop.ForAll(
		func(keys []string, values []int) bool {
			n := len(keys)
			if len(values) < n {
				n = len(values)
			}
			m1 := make(map[string]any, n)
			m2 := make(map[string]any, n)
			for i := 0; i < n; i++ {
				m1[keys[i]] = values[i]
				m2[keys[i]] = values[i]
			}
			return paramsHash(m1) == paramsHash(m2)
		},
		gen.SliceOfN(8, gen.Identifier()),
		gen.SliceOfN(8, gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}

// TestApplyReceiptIdempotentUnderReplayProperty verifies spec.md §8
// "idempotent under receipt replay": feeding the same unknown/duplicate
// receipt to Apply any number of times never mutates state nor errors.
func TestApplyReceiptIdempotentUnderReplayProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("replaying an unrecognized receipt is a no-op", prop.ForAll(
		func(replayCount int) bool {
			s := NewSessionState(SessionID("sess-prop"))
			event := SessionWorkflowEvent{
				Kind: EventReceipt,
				Receipt: &EffectReceiptEnvelope{
					ParamsHash: "sha256:unrecognized",
					Status:     "ok",
				},
			}
			for i := 0; i < replayCount; i++ {
				out, err := Apply(s, event, nil, nil, noLimits())
				if err != nil {
					return false
				}
				if len(out.Effects) != 0 {
					return false
				}
			}
			return s.Lifecycle == LifecycleIdle && !s.HasActiveRun
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// TestLifecycleNeverSkipsRunningWhenReEnteringFromTerminalProperty verifies
// that every terminal lifecycle state accepts exactly one outbound edge:
// back to Running (spec.md §3 "a new run is requested").
func TestLifecycleNeverSkipsRunningWhenReEnteringFromTerminalProperty(t *testing.T) {
	terminals := []SessionLifecycle{LifecycleCompleted, LifecycleFailed, LifecycleCancelled}
	nonRunning := []SessionLifecycle{LifecycleIdle, LifecycleWaitingInput, LifecyclePaused, LifecycleCancelling, LifecycleCompleted, LifecycleFailed, LifecycleCancelled}

	for _, from := range terminals {
		for _, to := range nonRunning {
			s := &SessionState{Lifecycle: from}
			err := transition(s, to)
			if to == from {
				require.NoError(t, err)
				continue
			}
			require.Error(t, err, "terminal state %s must reject transition to %s", from, to)
		}
	}
}
