package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for every SessionReduceError value named in spec.md §6.
// Each sentinel is matched via errors.Is against the typed error returned
// by Apply; callers that need contextual fields use the AsXxx helpers
// below, following runtime/agent/runtime's RunNotAwaitableError pattern.
var (
	// ErrInvalidLifecycleTransition means the event requested a lifecycle
	// transition outside the allowed graph (spec.md §3).
	ErrInvalidLifecycleTransition = errors.New("invalid lifecycle transition")
	// ErrHostCommandRejected means canApplyHostCommand refused the command
	// for the session's current lifecycle.
	ErrHostCommandRejected = errors.New("host command rejected")
	// ErrToolBatchAlreadyActive means a second tool batch was planned while
	// one was still unsettled (invariant 4).
	ErrToolBatchAlreadyActive = errors.New("tool batch already active")
	// ErrMissingProvider means the selected run config has an empty provider.
	ErrMissingProvider = errors.New("run config provider missing")
	// ErrMissingModel means the selected run config has an empty model.
	ErrMissingModel = errors.New("run config model missing")
	// ErrUnknownProvider means the provider is absent from a non-empty allow-list.
	ErrUnknownProvider = errors.New("run config provider not allowed")
	// ErrUnknownModel means the model is absent from a non-empty allow-list.
	ErrUnknownModel = errors.New("run config model not allowed")
	// ErrRunAlreadyActive means RunRequested arrived while a run was active.
	ErrRunAlreadyActive = errors.New("run already active")
	// ErrRunNotActive means a run-scoped operation arrived with no active run.
	ErrRunNotActive = errors.New("run not active")
	// ErrInvalidWorkspacePromptPackJSON means prompt-pack bytes failed the
	// "looks like messages" structural check.
	ErrInvalidWorkspacePromptPackJSON = errors.New("workspace prompt pack is not valid JSON")
	// ErrMissingWorkspacePromptPackBytes means a snapshot named a
	// prompt_pack_ref but no bytes were supplied alongside it.
	ErrMissingWorkspacePromptPackBytes = errors.New("workspace prompt pack bytes missing")
	// ErrTooManyPendingIntents means limits.MaxPendingIntents was exceeded
	// after applying the event (spec.md §4.1 post-processing).
	ErrTooManyPendingIntents = errors.New("too many pending intents")
	// ErrToolProfileUnknown means the requested tool profile id has no
	// entry in tool_profiles.
	ErrToolProfileUnknown = errors.New("tool profile unknown")
	// ErrUnknownToolOverride means an override list names a tool absent
	// from tool_registry.
	ErrUnknownToolOverride = errors.New("unknown tool override")
	// ErrEmptyMessageRefs means a turn was dispatched with no queued
	// message refs to send.
	ErrEmptyMessageRefs = errors.New("llm turn has no message refs")
)

// InvalidLifecycleTransitionError carries the rejected transition's
// endpoints for logging/diagnostics.
type InvalidLifecycleTransitionError struct {
	From SessionLifecycle
	To   SessionLifecycle
}

// Error renders a stable, human-readable message.
func (e *InvalidLifecycleTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition: %s -> %s", e.From, e.To)
}

// Is allows errors.Is(err, ErrInvalidLifecycleTransition) classification.
func (e *InvalidLifecycleTransitionError) Is(target error) bool {
	return target == ErrInvalidLifecycleTransition
}

// AsInvalidLifecycleTransition extracts the typed transition error.
func AsInvalidLifecycleTransition(err error) (*InvalidLifecycleTransitionError, bool) {
	var typed *InvalidLifecycleTransitionError
	if !errors.As(err, &typed) {
		return nil, false
	}
	return typed, true
}

// UnknownToolOverrideError names the offending tool and the override scope.
type UnknownToolOverrideError struct {
	Scope    OverrideScope
	ToolName string
}

// Error renders a stable, human-readable message.
func (e *UnknownToolOverrideError) Error() string {
	return fmt.Sprintf("unknown tool override: scope=%s tool=%q", e.Scope, e.ToolName)
}

// Is allows errors.Is(err, ErrUnknownToolOverride) classification.
func (e *UnknownToolOverrideError) Is(target error) bool {
	return target == ErrUnknownToolOverride
}

// AsUnknownToolOverride extracts the typed override error.
func AsUnknownToolOverride(err error) (*UnknownToolOverrideError, bool) {
	var typed *UnknownToolOverrideError
	if !errors.As(err, &typed) {
		return nil, false
	}
	return typed, true
}

// ToolProfileUnknownError names the requested profile id.
type ToolProfileUnknownError struct {
	ProfileID string
}

// Error renders a stable, human-readable message.
func (e *ToolProfileUnknownError) Error() string {
	return fmt.Sprintf("tool profile unknown: %q", e.ProfileID)
}

// Is allows errors.Is(err, ErrToolProfileUnknown) classification.
func (e *ToolProfileUnknownError) Is(target error) bool {
	return target == ErrToolProfileUnknown
}

// TooManyPendingIntentsError carries the observed count and the configured limit.
type TooManyPendingIntentsError struct {
	InFlight int
	Limit    int
}

// Error renders a stable, human-readable message.
func (e *TooManyPendingIntentsError) Error() string {
	return fmt.Sprintf("too many pending intents: in_flight=%d limit=%d", e.InFlight, e.Limit)
}

// Is allows errors.Is(err, ErrTooManyPendingIntents) classification.
func (e *TooManyPendingIntentsError) Is(target error) bool {
	return target == ErrTooManyPendingIntents
}
