package workflow

// ToolMapper tags which pure argument/receipt mapping function a tool
// uses. String↔enum translation happens at the boundary (the registry);
// the reducer itself only ever dispatches on this tagged enum
// (spec.md §9 "Dynamic dispatch by tool").
type ToolMapper string

const (
	ToolMapperHostSessionOpen   ToolMapper = "host_session_open"
	ToolMapperHostExec          ToolMapper = "host_exec"
	ToolMapperHostSessionSignal ToolMapper = "host_session_signal"
	ToolMapperHostFsReadFile    ToolMapper = "host_fs_read_file"
	ToolMapperHostFsWriteFile   ToolMapper = "host_fs_write_file"
	ToolMapperHostFsEditFile    ToolMapper = "host_fs_edit_file"
	ToolMapperHostFsApplyPatch  ToolMapper = "host_fs_apply_patch"
	ToolMapperHostFsGrep        ToolMapper = "host_fs_grep"
	ToolMapperHostFsGlob        ToolMapper = "host_fs_glob"
	ToolMapperHostFsStat        ToolMapper = "host_fs_stat"
	ToolMapperHostFsExists      ToolMapper = "host_fs_exists"
	ToolMapperHostFsListDir     ToolMapper = "host_fs_list_dir"
)

// ToolAvailabilityRule gates whether a tool is offered in the effective
// set given the current host-session runtime context.
type ToolAvailabilityRule string

const (
	// AvailabilityAlways means the tool is always offered.
	AvailabilityAlways ToolAvailabilityRule = "always"
	// AvailabilityHostSessionReady means the tool requires
	// tool_runtime_context.host_session_status == Ready.
	AvailabilityHostSessionReady ToolAvailabilityRule = "host_session_ready"
)

// HostSessionStatus mirrors the lifecycle of the adapter-managed host
// session a tool call may act within.
type HostSessionStatus string

const (
	HostSessionReady   HostSessionStatus = "ready"
	HostSessionClosed  HostSessionStatus = "closed"
	HostSessionExpired HostSessionStatus = "expired"
	HostSessionError   HostSessionStatus = "error"
)

// ToolRuntimeContext carries the host-session identity/status consulted by
// availability rules (§4.6) and by tool argument mappers that default
// session_id from runtime rather than from explicit arguments (§4.8.3).
type ToolRuntimeContext struct {
	HostSessionID     string
	HostSessionStatus HostSessionStatus
}

// availabilitySatisfied reports whether every rule in rules holds under ctx.
func availabilitySatisfied(rules []ToolAvailabilityRule, ctx ToolRuntimeContext) bool {
	for _, rule := range rules {
		switch rule {
		case AvailabilityHostSessionReady:
			if ctx.HostSessionStatus != HostSessionReady {
				return false
			}
		case AvailabilityAlways:
			// always satisfied
		}
	}
	return true
}

// ToolParallelismHint tells the batch scheduler (§4.8) how to group this
// tool's calls. A call whose ParallelSafe is false always forms a
// singleton group; calls sharing a non-empty ResourceKey are never placed
// in the same group.
type ToolParallelismHint struct {
	ParallelSafe bool
	ResourceKey  string
}

// ToolExecutorKind distinguishes an adapter-dispatched effect tool from a
// host-loop tool whose receipt arrives out-of-band.
type ToolExecutorKind string

const (
	// ToolExecutorEffect means the scheduler emits a ToolEffect command and
	// awaits its receipt through the normal params-hash correlation.
	ToolExecutorEffect ToolExecutorKind = "effect"
	// ToolExecutorHostLoop means the runtime delivers a receipt for this
	// call out-of-band; the scheduler only marks it Pending.
	ToolExecutorHostLoop ToolExecutorKind = "host_loop"
)

// ToolExecutor describes how a tool call is carried out.
type ToolExecutor struct {
	Kind       ToolExecutorKind
	EffectKind string // set when Kind == ToolExecutorEffect
	CapSlot    string // set when Kind == ToolExecutorEffect
}

// ToolSpec is the registry entry for one tool: its schema, how its
// arguments/receipts are mapped, how it executes, and under what
// conditions it is available (spec.md §3 "ToolSpec").
type ToolSpec struct {
	ToolName        string
	ToolRef         string
	Description     string
	ArgsSchemaJSON  string
	Mapper          ToolMapper
	Executor        ToolExecutor
	Availability    []ToolAvailabilityRule
	ParallelismHint ToolParallelismHint
}
