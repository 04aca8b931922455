package workflow

import "strings"

// Apply is the single entry point into the session workflow reducer
// (spec.md §4.1). It mutates s in place and returns the effect commands the
// driver must now execute; replaying the same sequence of events against an
// equal starting state always produces an equal state and equal output
// (spec.md §8 "determinism").
func Apply(s *SessionState, event SessionWorkflowEvent, allowedProviders, allowedModels []string, limits SessionRuntimeLimits) (SessionReduceOutput, error) {
	var out SessionReduceOutput

	switch event.Kind {
	case EventIngress:
		if event.Ingress != nil {
			if s.CreatedAt == 0 {
				s.CreatedAt = event.Ingress.ObservedAtNs
			}
			s.UpdatedAt = event.Ingress.ObservedAtNs
			if err := applyIngress(s, &out, event.Ingress, allowedProviders, allowedModels); err != nil {
				return out, err
			}
		}
	case EventReceipt:
		if event.Receipt != nil {
			if err := applyReceipt(s, &out, event.Receipt); err != nil {
				return out, err
			}
		}
	case EventReceiptRejected:
		if event.ReceiptRejected != nil {
			if err := applyReceiptRejected(s, &out, event.ReceiptRejected); err != nil {
				return out, err
			}
		}
	case EventStreamFrame, EventNoop:
		// Advances nothing beyond the pending-intent check below; stream
		// frames are informational and noop events exist only to let a
		// driver flush timers without inventing a synthetic ingress.
	}

	if limits.MaxPendingIntents > 0 && s.InFlightEffects > limits.MaxPendingIntents {
		return out, &TooManyPendingIntentsError{InFlight: s.InFlightEffects, Limit: limits.MaxPendingIntents}
	}

	return out, nil
}

// applyIngress dispatches one SessionIngress to its handler (spec.md §4.2).
func applyIngress(s *SessionState, out *SessionReduceOutput, ingress *SessionIngress, allowedProviders, allowedModels []string) error {
	p := ingress.Ingress
	switch p.Kind {
	case IngressRunRequested:
		return handleRunRequested(s, out, p.RunRequested, allowedProviders, allowedModels)

	case IngressHostCommandReceived:
		return handleHostCommand(s, out, p.HostCommandReceived, ingress.ObservedAtNs)

	case IngressWorkspaceSyncRequested:
		applyWorkspaceSyncRequested(s, p.WorkspaceSyncRequested)
		return nil

	case IngressWorkspaceSyncUnchanged:
		applyWorkspaceSyncUnchanged(s, p.WorkspaceSyncUnchanged)
		return nil

	case IngressWorkspaceSnapshotReady:
		return applyWorkspaceSnapshotReady(s, p.WorkspaceSnapshotReady, p.WorkspaceSnapshotReady.ApplyMode)

	case IngressToolRegistrySet:
		payload := p.ToolRegistrySet
		s.ToolRegistry = payload.Registry
		if payload.HasProfiles {
			s.ToolProfiles = payload.Profiles
		}
		if payload.DefaultProfile != "" {
			s.ToolProfile = payload.DefaultProfile
		}
		return recomputeEffectiveTools(s)

	case IngressToolProfileSelected:
		s.ToolProfile = p.ToolProfileSelected.ProfileID
		return recomputeEffectiveTools(s)

	case IngressToolOverridesSet:
		return handleToolOverridesSet(s, p.ToolOverridesSet)

	case IngressHostSessionUpdated:
		payload := p.HostSessionUpdated
		if payload.HasHostSessionID {
			s.ToolRuntimeContext.HostSessionID = payload.HostSessionID
		}
		if payload.HasHostSessionStatus {
			s.ToolRuntimeContext.HostSessionStatus = payload.HostSessionStatus
		}
		return recomputeEffectiveTools(s)

	case IngressRunCompleted:
		clearActiveRun(s)
		if err := transition(s, LifecycleCompleted); err != nil {
			return err
		}
		maybeApplyPendingWorkspace(s)
		return nil

	case IngressRunFailed:
		s.LastFailureReason = p.RunFailedReason
		clearActiveRun(s)
		if err := transition(s, LifecycleFailed); err != nil {
			return err
		}
		maybeApplyPendingWorkspace(s)
		return nil

	case IngressRunCancelled:
		clearActiveRun(s)
		if err := transition(s, LifecycleCancelled); err != nil {
			return err
		}
		maybeApplyPendingWorkspace(s)
		return nil

	case IngressNoop:
		return nil

	default:
		return nil
	}
}

// handleRunRequested starts a new run: it merges run overrides onto
// session_config, validates provider/model against the optional allow
// lists, transitions to Running, recomputes the effective tool set, and
// queues the first LLM turn (spec.md §4.2 "RunRequested").
func handleRunRequested(s *SessionState, out *SessionReduceOutput, p *RunRequestedPayload, allowedProviders, allowedModels []string) error {
	if s.HasActiveRun {
		return ErrRunAlreadyActive
	}

	rc := selectRunConfig(s.SessionConfig, p.RunOverrides)

	provider := strings.TrimSpace(rc.Provider)
	if provider == "" {
		return ErrMissingProvider
	}
	model := strings.TrimSpace(rc.Model)
	if model == "" {
		return ErrMissingModel
	}
	if len(allowedProviders) > 0 && !containsString(allowedProviders, provider) {
		return ErrUnknownProvider
	}
	if len(allowedModels) > 0 && !containsString(allowedModels, model) {
		return ErrUnknownModel
	}

	runID := allocateRunID(s)
	s.ActiveRunID = runID
	s.HasActiveRun = true
	s.ActiveRunConfig = rc
	s.RunToolOverrides = rc.Overrides

	// Clear batch/pending_blob_* state and conversation refs (spec.md §4.2):
	// harmless on a fresh session, but a run re-requested from a terminal
	// lifecycle must not carry over a stale prior run's scheduler state.
	s.ActiveToolBatch = nil
	s.PendingBlobGets = map[string][]PendingBlobGet{}
	s.PendingBlobPuts = map[string][]PendingBlobPut{}
	s.PendingFollowUpTurn = nil
	s.ToolRefsMaterialized = false
	s.HasQueuedLLMMessageRefs = false
	s.QueuedLLMMessageRefs = nil
	s.ConversationMessageRefs = nil

	maybeApplyPendingWorkspaceForRun(s)

	if err := transition(s, LifecycleRunning); err != nil {
		return err
	}
	if err := recomputeEffectiveTools(s); err != nil {
		return err
	}

	s.ConversationMessageRefs = append(s.ConversationMessageRefs, p.InputRef)
	refs := initialMessageRefs(s, rc)
	return queueTurn(s, out, refs)
}

// initialMessageRefs implements the §4.4 precedence for a run's first
// turn: explicit run prompt refs win, then the active workspace's prompt
// pack, else just the accumulated conversation (which already carries the
// new input, pushed onto it before this is called).
func initialMessageRefs(s *SessionState, rc RunConfig) []string {
	history := append([]string(nil), s.ConversationMessageRefs...)

	switch {
	case len(rc.PromptRefs) > 0:
		return append(append([]string(nil), rc.PromptRefs...), history...)
	case s.ActiveWorkspaceSnapshot != nil && s.ActiveWorkspaceSnapshot.PromptPackRef != "":
		return append([]string{s.ActiveWorkspaceSnapshot.PromptPackRef}, history...)
	default:
		return history
	}
}

// handleHostCommand applies one host-originated command, gated by
// canApplyHostCommand's lifecycle legality check (spec.md §4.2, §3).
func handleHostCommand(s *SessionState, out *SessionReduceOutput, p *HostCommandPayload, observedAtNs uint64) error {
	if !canApplyHostCommand(s, p.Kind) {
		return ErrHostCommandRejected
	}
	switch p.Kind {
	case HostCommandPause:
		return transition(s, LifecyclePaused)

	case HostCommandResume:
		if err := transition(s, LifecycleRunning); err != nil {
			return err
		}
		return dispatchQueuedTurn(s, out)

	case HostCommandCancel:
		applyCancelFence(s)
		return transition(s, LifecycleCancelling)

	case HostCommandLeaseHeartbeat:
		s.LastHeartbeatAt = observedAtNs
		s.HasHeartbeat = true
		return nil

	case HostCommandSteer:
		s.PendingSteer = append(s.PendingSteer, p.Text)
		return nil

	case HostCommandFollowUp:
		if s.Lifecycle == LifecycleWaitingInput {
			refs := append(append([]string(nil), s.ConversationMessageRefs...), p.Text)
			if err := transition(s, LifecycleRunning); err != nil {
				return err
			}
			return queueTurn(s, out, refs)
		}
		s.PendingFollowUp = append(s.PendingFollowUp, p.Text)
		return nil

	case HostCommandNoop:
		return nil

	default:
		return nil
	}
}

// handleToolOverridesSet replaces the enable/disable/force lists at one
// scope. Run-scoped overrides require an active run (spec.md §4.2).
func handleToolOverridesSet(s *SessionState, p *ToolOverridesSetPayload) error {
	var target *ToolOverrides
	switch p.Scope {
	case OverrideScopeSession:
		target = &s.SessionToolOverrides
	case OverrideScopeRun:
		if !s.HasActiveRun {
			return ErrRunNotActive
		}
		target = &s.RunToolOverrides
	default:
		return nil
	}

	if p.HasEnable {
		target.Enable = p.Enable
	}
	if p.HasDisable {
		target.Disable = p.Disable
	}
	if p.HasForce {
		target.Force = p.Force
	}
	return recomputeEffectiveTools(s)
}

// failRun transitions the session to Failed and clears all run-scoped
// state, the one internal error path the reducer itself can trigger
// outside of direct host ingress (spec.md §4.9.1 "fail_run").
func failRun(s *SessionState, out *SessionReduceOutput, reason string) error {
	s.LastFailureReason = reason
	clearActiveRun(s)
	if err := transition(s, LifecycleFailed); err != nil {
		return err
	}
	maybeApplyPendingWorkspace(s)
	return nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
