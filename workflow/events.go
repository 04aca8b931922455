package workflow

// SessionWorkflowEvent is the tagged union of everything Apply can
// consume: host-originated ingress, effect receipts/rejections, ignored
// stream frames, and a Noop used purely to advance timestamps/heartbeats.
type SessionWorkflowEvent struct {
	Kind SessionWorkflowEventKind

	Ingress          *SessionIngress
	Receipt          *EffectReceiptEnvelope
	ReceiptRejected  *EffectReceiptRejected
}

// SessionWorkflowEventKind tags SessionWorkflowEvent.
type SessionWorkflowEventKind string

const (
	EventIngress         SessionWorkflowEventKind = "ingress"
	EventReceipt         SessionWorkflowEventKind = "receipt"
	EventReceiptRejected SessionWorkflowEventKind = "receipt_rejected"
	EventStreamFrame     SessionWorkflowEventKind = "stream_frame"
	EventNoop            SessionWorkflowEventKind = "noop"
)

// SessionIngress wraps one host-originated ingress variant plus its
// observation timestamp.
type SessionIngress struct {
	ObservedAtNs uint64
	Ingress      IngressPayload
}

// IngressPayload is the tagged union of SessionIngress.Ingress variants
// (spec.md §4.2).
type IngressPayload struct {
	Kind IngressKind

	RunRequested             *RunRequestedPayload
	HostCommandReceived      *HostCommandPayload
	WorkspaceSyncRequested   *WorkspaceSyncRequestedPayload
	WorkspaceSyncUnchanged   *WorkspaceSyncUnchangedPayload
	WorkspaceSnapshotReady   *WorkspaceSnapshotReadyPayload
	ToolRegistrySet          *ToolRegistrySetPayload
	ToolProfileSelected      *ToolProfileSelectedPayload
	ToolOverridesSet         *ToolOverridesSetPayload
	HostSessionUpdated       *HostSessionUpdatedPayload
	RunFailedReason          string // set when Kind == IngressRunFailed
}

// IngressKind tags IngressPayload.
type IngressKind string

const (
	IngressRunRequested           IngressKind = "run_requested"
	IngressHostCommandReceived    IngressKind = "host_command_received"
	IngressWorkspaceSyncRequested IngressKind = "workspace_sync_requested"
	IngressWorkspaceSyncUnchanged IngressKind = "workspace_sync_unchanged"
	IngressWorkspaceSnapshotReady IngressKind = "workspace_snapshot_ready"
	IngressToolRegistrySet        IngressKind = "tool_registry_set"
	IngressToolProfileSelected    IngressKind = "tool_profile_selected"
	IngressToolOverridesSet       IngressKind = "tool_overrides_set"
	IngressHostSessionUpdated     IngressKind = "host_session_updated"
	IngressRunCompleted           IngressKind = "run_completed"
	IngressRunFailed              IngressKind = "run_failed"
	IngressRunCancelled           IngressKind = "run_cancelled"
	IngressNoop                   IngressKind = "noop"
)

// RunRequestedPayload starts a new run (spec.md §4.2).
type RunRequestedPayload struct {
	InputRef     string
	RunOverrides *RunConfig
}

// HostCommandKind tags HostCommandPayload.
type HostCommandKind string

const (
	HostCommandPause         HostCommandKind = "pause"
	HostCommandResume        HostCommandKind = "resume"
	HostCommandCancel        HostCommandKind = "cancel"
	HostCommandLeaseHeartbeat HostCommandKind = "lease_heartbeat"
	HostCommandSteer         HostCommandKind = "steer"
	HostCommandFollowUp      HostCommandKind = "follow_up"
	HostCommandNoop          HostCommandKind = "noop"
)

// HostCommandPayload wraps one host command (spec.md §4.2).
type HostCommandPayload struct {
	Kind HostCommandKind
	Text string // set for Steer|FollowUp
	LeaseID string // set for LeaseHeartbeat
}

// WorkspaceSyncRequestedPayload stores a new workspace binding/prompt-pack
// default on session_config (spec.md §4.2).
type WorkspaceSyncRequestedPayload struct {
	Binding    string
	PromptPack string
}

// WorkspaceSyncUnchangedPayload updates the Version field on any snapshot
// (active and/or pending) whose Name matches Workspace.
type WorkspaceSyncUnchangedPayload struct {
	Workspace string
	Version   string
}

// WorkspaceSnapshotReadyPayload delivers a new pending snapshot, plus the
// prompt-pack bytes to validate when PromptPackRef is set.
type WorkspaceSnapshotReadyPayload struct {
	Snapshot           WorkspaceSnapshot
	ApplyMode          WorkspaceApplyMode
	PromptPackBytes    []byte
	HasPromptPackBytes bool
}

// ToolRegistrySetPayload replaces the tool registry and, optionally, the
// profile table and current profile.
type ToolRegistrySetPayload struct {
	Registry       ToolRegistry
	Profiles       ToolProfiles
	HasProfiles    bool
	DefaultProfile string
}

// ToolProfileSelectedPayload switches the session's current tool profile.
type ToolProfileSelectedPayload struct {
	ProfileID string
}

// ToolOverridesSetPayload replaces the enable/disable/force lists at one
// scope. Run-scoped overrides require an active run (ErrRunNotActive).
type ToolOverridesSetPayload struct {
	Scope     OverrideScope
	Enable    []string
	HasEnable bool
	Disable   []string
	HasDisable bool
	Force     []string
	HasForce  bool
}

// HostSessionUpdatedPayload patches tool_runtime_context.
type HostSessionUpdatedPayload struct {
	HostSessionID     string
	HasHostSessionID  bool
	HostSessionStatus HostSessionStatus
	HasHostSessionStatus bool
}

// EffectReceiptEnvelope is the driver's report of an effect's outcome fed
// back as an event (spec.md §6).
type EffectReceiptEnvelope struct {
	OriginModuleID   string
	OriginInstanceKey string
	IntentID         string
	EffectKind       string
	ParamsHash       string
	HasParamsHash    bool
	ReceiptPayload   []byte // CBOR
	Status           string
	EmittedAtSeq     int64
	AdapterID        string
	CostCents        int64
	Signature        string
}

// EffectReceiptRejected is a rejection with the same shape as a receipt,
// minus a payload (spec.md §6).
type EffectReceiptRejected struct {
	OriginModuleID string
	IntentID       string
	EffectKind     string
	ParamsHash     string
	HasParamsHash  bool
	Status         string
	EmittedAtSeq   int64
	AdapterID      string
}
