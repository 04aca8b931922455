package workflow

// ReasoningEffort encodes the LLM provider's reasoning-effort knob.
type ReasoningEffort string

const (
	// ReasoningEffortLow requests minimal reasoning.
	ReasoningEffortLow ReasoningEffort = "low"
	// ReasoningEffortMedium requests balanced reasoning.
	ReasoningEffortMedium ReasoningEffort = "medium"
	// ReasoningEffortHigh requests maximal reasoning.
	ReasoningEffortHigh ReasoningEffort = "high"
)

// WorkspaceApplyMode selects when a pending workspace snapshot is promoted
// to active (spec.md §4.4).
type WorkspaceApplyMode string

const (
	// ApplyImmediateIfIdle applies the pending snapshot immediately when no
	// run is active, else defers until the session goes idle.
	ApplyImmediateIfIdle WorkspaceApplyMode = "immediate_if_idle"
	// ApplyNextRun defers application to the start of the next RunRequested.
	ApplyNextRun WorkspaceApplyMode = "next_run"
)

// OverrideScope distinguishes session-scoped from run-scoped tool overrides.
type OverrideScope string

const (
	// OverrideScopeSession applies for the lifetime of the session.
	OverrideScopeSession OverrideScope = "session"
	// OverrideScopeRun applies only to the active run.
	OverrideScopeRun OverrideScope = "run"
)

type (
	// ToolOverrides holds the enable/disable/force lists at one scope.
	// A tool named in Force is enabled even if also named in Disable at
	// either scope (see recomputeEffectiveTools in effectivetools.go).
	ToolOverrides struct {
		Enable  []string
		Disable []string
		Force   []string
	}

	// SessionConfig is the session-wide default configuration. A run may
	// override any field via RunRequested.RunOverrides; the merged result
	// becomes the run's immutable ActiveRunConfig.
	SessionConfig struct {
		Provider          string
		Model             string
		ReasoningEffort   ReasoningEffort
		MaxTokens          int
		WorkspaceBinding  string
		DefaultPromptPack string
		DefaultRefs       []string
		DefaultToolProfile string
		DefaultOverrides  ToolOverrides
	}

	// RunConfig is an immutable snapshot of the configuration in force for
	// one run, captured at run start (spec.md §3 "run state").
	RunConfig struct {
		Provider        string
		Model           string
		ReasoningEffort ReasoningEffort
		MaxTokens       int
		ToolProfile     string
		PromptRefs      []string
		Overrides       ToolOverrides

		// Optional runtime controls, copied into SysLlmGenerateParams only
		// when set (spec.md §4.7).
		Temperature         *float64
		TopP                *float64
		ToolChoice          string
		StopSequences       []string
		Metadata            map[string]string
		ProviderOptionsRef  string
		ResponseFormatRef   string
	}
)

// selectRunConfig merges session_config with an optional run override,
// field by field, the override winning whenever it is non-zero
// (spec.md §4.2 "RunRequested").
func selectRunConfig(base SessionConfig, override *RunConfig) RunConfig {
	rc := RunConfig{
		Provider:        base.Provider,
		Model:           base.Model,
		ReasoningEffort: base.ReasoningEffort,
		MaxTokens:       base.MaxTokens,
		ToolProfile:     base.DefaultToolProfile,
		PromptRefs:      append([]string(nil), base.DefaultRefs...),
		Overrides:       base.DefaultOverrides,
	}
	if override == nil {
		return rc
	}
	if override.Provider != "" {
		rc.Provider = override.Provider
	}
	if override.Model != "" {
		rc.Model = override.Model
	}
	if override.ReasoningEffort != "" {
		rc.ReasoningEffort = override.ReasoningEffort
	}
	if override.MaxTokens != 0 {
		rc.MaxTokens = override.MaxTokens
	}
	if override.ToolProfile != "" {
		rc.ToolProfile = override.ToolProfile
	}
	if len(override.PromptRefs) > 0 {
		rc.PromptRefs = override.PromptRefs
	}
	if len(override.Overrides.Enable) > 0 || len(override.Overrides.Disable) > 0 || len(override.Overrides.Force) > 0 {
		rc.Overrides = override.Overrides
	}
	rc.Temperature = override.Temperature
	rc.TopP = override.TopP
	rc.ToolChoice = override.ToolChoice
	rc.StopSequences = override.StopSequences
	rc.Metadata = override.Metadata
	rc.ProviderOptionsRef = override.ProviderOptionsRef
	rc.ResponseFormatRef = override.ResponseFormatRef
	return rc
}
