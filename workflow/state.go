package workflow

// ToolCallStatus is the lifecycle of one observed tool call within a batch.
type ToolCallStatus struct {
	Kind ToolCallStatusKind
	// Code/Detail are set only when Kind == ToolCallFailed.
	Code   string
	Detail string
}

// ToolCallStatusKind tags ToolCallStatus.
type ToolCallStatusKind string

const (
	ToolCallQueued    ToolCallStatusKind = "queued"
	ToolCallPending   ToolCallStatusKind = "pending"
	ToolCallSucceeded ToolCallStatusKind = "succeeded"
	ToolCallFailed    ToolCallStatusKind = "failed"
	ToolCallIgnored   ToolCallStatusKind = "ignored"
	ToolCallCancelled ToolCallStatusKind = "cancelled"
)

// IsTerminal reports whether k is one of Succeeded|Failed|Ignored|Cancelled.
func (k ToolCallStatusKind) IsTerminal() bool {
	switch k {
	case ToolCallSucceeded, ToolCallFailed, ToolCallIgnored, ToolCallCancelled:
		return true
	default:
		return false
	}
}

// PlannedToolCall is one call-id's plan, snapshotted from the effective
// tool set at plan time (spec.md §9: "references tools by name, never by
// pointer").
type PlannedToolCall struct {
	CallID         string
	ToolName       string
	ProviderCallID string
	Accepted       bool
	Mapper         ToolMapper
	Executor       ToolExecutor
	ParallelSafe   bool
	ResourceKey    string
	ArgumentsJSON  string // inline arguments, when known
	ArgumentsRef   string // blob ref, when arguments arrive by reference
}

// ToolBatchPlan captures the observed calls, the per-call plan, and the
// parallel/sequential execution groups (spec.md §3 "ActiveToolBatch").
type ToolBatchPlan struct {
	ObservedCallIDs []string
	PlannedCalls    map[string]*PlannedToolCall
	Groups          [][]string
}

// ActiveToolBatch is the single in-flight tool batch for a session
// (invariant 4: at most one non-settled batch per session).
type ActiveToolBatch struct {
	ToolBatchID      ToolBatchID
	IntentID         string
	ParamsHash       string
	Plan             ToolBatchPlan
	CallStatus       map[string]ToolCallStatus
	PendingByHash    map[string][]string // params_hash -> FIFO call-ids awaiting receipt
	NextGroupIndex   int
	LLMResults       map[string]string // call-id -> synthesized tool-output JSON
	ResultsRef       string            // set once settled
}

// Settled reports whether every observed call-id has a terminal status.
func (b *ActiveToolBatch) Settled() bool {
	if b == nil {
		return true
	}
	for _, callID := range b.Plan.ObservedCallIDs {
		if !b.CallStatus[callID].Kind.IsTerminal() {
			return false
		}
	}
	return true
}

// PendingIntent tracks exactly one outbound effect's receipt, keyed by
// params_hash in SessionState.PendingIntents.
type PendingIntent struct {
	EffectKind   string
	ParamsHash   string
	IntentID     string // not written by the reducer; the entry is deleted when its receipt arrives
	CapSlot      string
	EmittedAtSeq int64
}

// PendingBlobGetKind tags what a pending blob.get will resolve to once its
// receipt arrives (spec.md §3 "PendingBlobGet").
type PendingBlobGetKind string

const (
	BlobGetLlmOutputEnvelope PendingBlobGetKind = "llm_output_envelope"
	BlobGetLlmToolCalls      PendingBlobGetKind = "llm_tool_calls"
	BlobGetToolCallArguments PendingBlobGetKind = "tool_call_arguments"
)

// PendingBlobGet is one outstanding blob.get, keyed by params_hash in
// SessionState.PendingBlobGets.
type PendingBlobGet struct {
	Kind        PendingBlobGetKind
	BlobRef     string
	ToolBatchID ToolBatchID // set when Kind == BlobGetToolCallArguments
	CallID      string      // set when Kind == BlobGetToolCallArguments
}

// PendingBlobPutKind tags what a pending blob.put is writing.
type PendingBlobPutKind string

const (
	BlobPutToolDefinition  PendingBlobPutKind = "tool_definition"
	BlobPutFollowUpMessage PendingBlobPutKind = "follow_up_message"
)

// PendingBlobPut is one outstanding blob.put, keyed by params_hash in
// SessionState.PendingBlobPuts.
type PendingBlobPut struct {
	Kind     PendingBlobPutKind
	ToolName string // set when Kind == BlobPutToolDefinition
	Index    int    // set when Kind == BlobPutFollowUpMessage
}

// WorkspaceSnapshot describes one workspace's prompt-pack/tool-catalog
// payload as tracked by the workspace snapshot manager (spec.md §4.4).
type WorkspaceSnapshot struct {
	Name            string
	Version         string
	PromptPackRef   string
	ToolCatalogRef  string
}

// EffectiveTools is the derived, availability-filtered, override-applied
// tool list in force for the current run (spec.md §4.6).
type EffectiveTools struct {
	ProfileID    string
	OrderedTools []ToolSpec
}

// PendingFollowUpTurn tracks the in-progress assembly of the next LLM
// turn's message refs from a settled tool batch (spec.md §4.8.2).
type PendingFollowUpTurn struct {
	ToolBatchID       ToolBatchID
	BaseMessageRefs   []string
	ExpectedMessages  int
	BlobRefsByIndex   map[int]string
}

// SessionRuntimeLimits bounds reducer behavior (spec.md §4.1, §5).
type SessionRuntimeLimits struct {
	MaxPendingIntents int
}

// SessionState is the root aggregate mutated by Apply. Every field is
// semantically typed per spec.md §3. The zero value is not a usable
// starting point: its Lifecycle is empty, from which transition allows no
// edge, and its maps are nil. NewSessionState constructs a brand-new
// session in LifecycleIdle.
type SessionState struct {
	// Identity.
	SessionID SessionID
	CreatedAt uint64 // nanoseconds, set from the first ingress event only
	UpdatedAt uint64 // nanoseconds, set from every ingress event; receipts, rejections, stream frames and noops leave it unchanged

	// Sequencing (invariant 1: strictly monotonic).
	NextRunSeq       uint64
	NextToolBatchSeq uint64
	SessionEpoch     uint64
	StepEpoch        uint64

	// Config.
	SessionConfig SessionConfig

	// Run state.
	ActiveRunID     RunID
	HasActiveRun    bool
	ActiveRunConfig RunConfig
	Lifecycle       SessionLifecycle

	// Workspace.
	ActiveWorkspaceSnapshot    *WorkspaceSnapshot
	PendingWorkspaceSnapshot   *WorkspaceSnapshot
	PendingWorkspaceApplyMode  WorkspaceApplyMode

	// Tool machinery.
	ToolRegistry         ToolRegistry
	ToolProfiles         ToolProfiles
	ToolProfile          string
	ToolRuntimeContext   ToolRuntimeContext
	EffectiveTools       EffectiveTools
	ToolRefsMaterialized bool
	ToolDefinitionRefs   map[string]string // tool name -> blob ref, populated as blob.put receipts land
	SessionToolOverrides ToolOverrides
	RunToolOverrides     ToolOverrides

	// Batch state.
	ActiveToolBatch *ActiveToolBatch

	// Conversation.
	ConversationMessageRefs []string
	QueuedLLMMessageRefs    []string
	HasQueuedLLMMessageRefs bool
	PendingFollowUpTurn     *PendingFollowUpTurn

	// Pending I/O.
	PendingIntents  map[string]PendingIntent
	PendingBlobGets map[string][]PendingBlobGet
	PendingBlobPuts map[string][]PendingBlobPut
	InFlightEffects int

	// Host queues.
	PendingSteer     []string
	PendingFollowUp  []string

	LastHeartbeatAt  uint64
	HasHeartbeat     bool

	LastFailureReason string
}

// NewSessionState constructs the default, empty state for a brand new
// session (the starting point §8's determinism property replays from).
func NewSessionState(id SessionID) *SessionState {
	return &SessionState{
		SessionID:            id,
		Lifecycle:            LifecycleIdle,
		ToolRegistry:         ToolRegistry{},
		ToolProfiles:         ToolProfiles{},
		ToolDefinitionRefs:   map[string]string{},
		PendingIntents:       map[string]PendingIntent{},
		PendingBlobGets:      map[string][]PendingBlobGet{},
		PendingBlobPuts:      map[string][]PendingBlobPut{},
	}
}

// clearActiveRun resets every run-scoped field to its zero value. Shared
// by fail_run (§4.9.1) and the RunCompleted/RunFailed/RunCancelled
// ingress handlers (§4.2).
func clearActiveRun(s *SessionState) {
	s.ActiveRunID = RunID{}
	s.HasActiveRun = false
	s.ActiveRunConfig = RunConfig{}
	s.ActiveToolBatch = nil
	s.PendingIntents = map[string]PendingIntent{}
	s.PendingBlobGets = map[string][]PendingBlobGet{}
	s.PendingBlobPuts = map[string][]PendingBlobPut{}
	s.PendingFollowUpTurn = nil
	s.HasQueuedLLMMessageRefs = false
	s.QueuedLLMMessageRefs = nil
	s.ConversationMessageRefs = nil
	s.ToolRefsMaterialized = false
	s.InFlightEffects = 0
	s.RunToolOverrides = ToolOverrides{}
}
