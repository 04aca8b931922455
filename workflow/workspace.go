package workflow

import "encoding/json"

// applyWorkspaceSyncRequested stores the new binding/prompt-pack default on
// session_config (spec.md §4.2 "WorkspaceSyncRequested"). It never touches
// any snapshot; a subsequent WorkspaceSnapshotReady is what actually swaps
// the active workspace.
func applyWorkspaceSyncRequested(s *SessionState, p *WorkspaceSyncRequestedPayload) {
	s.SessionConfig.WorkspaceBinding = p.Binding
	s.SessionConfig.DefaultPromptPack = p.PromptPack
}

// applyWorkspaceSyncUnchanged bumps Version on whichever of the active and
// pending snapshots is named Workspace, leaving everything else untouched
// (spec.md §4.2 "WorkspaceSyncUnchanged": the host observed no content
// change, only a version bump).
func applyWorkspaceSyncUnchanged(s *SessionState, p *WorkspaceSyncUnchangedPayload) {
	if s.ActiveWorkspaceSnapshot != nil && s.ActiveWorkspaceSnapshot.Name == p.Workspace {
		s.ActiveWorkspaceSnapshot.Version = p.Version
	}
	if s.PendingWorkspaceSnapshot != nil && s.PendingWorkspaceSnapshot.Name == p.Workspace {
		s.PendingWorkspaceSnapshot.Version = p.Version
	}
}

// applyWorkspaceSnapshotReady records a newly delivered snapshot as pending
// and, when its PromptPackRef is set, validates the accompanying bytes
// before storing the snapshot; the bytes themselves are not kept (spec.md
// §4.4). The pending snapshot is promoted to
// active immediately when applyMode is ApplyImmediateIfIdle and the session
// is not mid-run; otherwise promotion waits for maybeApplyPendingWorkspace
// or the start of the next run.
func applyWorkspaceSnapshotReady(s *SessionState, p *WorkspaceSnapshotReadyPayload, applyMode WorkspaceApplyMode) error {
	snap := p.Snapshot
	if snap.PromptPackRef != "" {
		if !p.HasPromptPackBytes {
			return ErrMissingWorkspacePromptPackBytes
		}
		if !looksLikeMessagesJSON(p.PromptPackBytes) {
			return ErrInvalidWorkspacePromptPackJSON
		}
	}

	s.PendingWorkspaceSnapshot = &snap
	s.PendingWorkspaceApplyMode = applyMode

	if applyMode == ApplyImmediateIfIdle && !s.HasActiveRun {
		promotePendingWorkspaceSnapshot(s)
	}
	return nil
}

// maybeApplyPendingWorkspace promotes a deferred ApplyImmediateIfIdle
// snapshot once the active run has ended. Called from the RunCompleted,
// RunFailed, and RunCancelled ingress handlers and from failRun.
func maybeApplyPendingWorkspace(s *SessionState) {
	if s.PendingWorkspaceSnapshot == nil {
		return
	}
	if s.PendingWorkspaceApplyMode != ApplyImmediateIfIdle {
		return
	}
	promotePendingWorkspaceSnapshot(s)
}

// maybeApplyPendingWorkspaceForRun promotes any pending snapshot at the
// start of a new run, regardless of apply mode: ApplyNextRun snapshots only
// ever get promoted here (spec.md §4.4).
func maybeApplyPendingWorkspaceForRun(s *SessionState) {
	if s.PendingWorkspaceSnapshot == nil {
		return
	}
	promotePendingWorkspaceSnapshot(s)
}

func promotePendingWorkspaceSnapshot(s *SessionState) {
	s.ActiveWorkspaceSnapshot = s.PendingWorkspaceSnapshot
	s.PendingWorkspaceSnapshot = nil
	s.PendingWorkspaceApplyMode = ""
	s.ToolRefsMaterialized = false
	s.ToolDefinitionRefs = map[string]string{}
}

// messageLikeKeys are the JSON object keys whose presence anywhere in a
// prompt-pack document is sufficient evidence it encodes a message list
// rather than arbitrary data (spec.md §4.4's permissive structural check;
// this is deliberately not a full schema validation).
var messageLikeKeys = map[string]bool{
	"role":          true,
	"content":       true,
	"type":          true,
	"tool_calls":    true,
	"output":        true,
	"tool_call_id":  true,
	"call_id":       true,
}

// looksLikeMessagesJSON reports whether b parses as JSON and contains, at
// any depth, an object with at least one message-like key.
func looksLikeMessagesJSON(b []byte) bool {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return false
	}
	return containsMessageLikeObject(v)
}

func containsMessageLikeObject(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		for k := range t {
			if messageLikeKeys[k] {
				return true
			}
		}
		for _, child := range t {
			if containsMessageLikeObject(child) {
				return true
			}
		}
		return false
	case []any:
		for _, child := range t {
			if containsMessageLikeObject(child) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
