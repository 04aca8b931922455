package workflow

import "encoding/json"

// ObservedToolCall is one tool call as reported by the LLM output, before
// any scheduling decision has been made (spec.md §4.8).
type ObservedToolCall struct {
	CallID         string
	ToolName       string
	ProviderCallID string
	ArgumentsJSON  string // set when arguments arrived inline
	ArgumentsRef   string // set when arguments arrived by blob reference
}

// planToolBatch accepts the LLM's observed tool calls, classifies each
// against the effective tool set, and schedules the accepted calls into
// parallel-safe/resource-key-constrained groups (spec.md §4.8). It fails
// with ErrToolBatchAlreadyActive if a previous batch has not yet settled
// (invariant 4: at most one active batch per session).
func planToolBatch(s *SessionState, out *SessionReduceOutput, intentID string, calls []ObservedToolCall) error {
	if s.ActiveToolBatch != nil && !s.ActiveToolBatch.Settled() {
		return ErrToolBatchAlreadyActive
	}

	batchID := allocateToolBatchID(s, s.ActiveRunID)

	plan := ToolBatchPlan{
		PlannedCalls: make(map[string]*PlannedToolCall, len(calls)),
	}
	callStatus := make(map[string]ToolCallStatus, len(calls))

	// Calls are classified against the effective set only: a call for a
	// tool that is in the registry but excluded by profile, override, or
	// availability is ignored rather than silently accepted (spec.md §4.8
	// "tool not in effective set").
	effective := make(map[string]ToolSpec, len(s.EffectiveTools.OrderedTools))
	for _, t := range s.EffectiveTools.OrderedTools {
		effective[t.ToolName] = t
	}

	var schedulable []string
	for _, call := range calls {
		plan.ObservedCallIDs = append(plan.ObservedCallIDs, call.CallID)
		spec, ok := effective[call.ToolName]
		planned := &PlannedToolCall{
			CallID:         call.CallID,
			ToolName:       call.ToolName,
			ProviderCallID: call.ProviderCallID,
			ArgumentsJSON:  call.ArgumentsJSON,
			ArgumentsRef:   call.ArgumentsRef,
		}
		if !ok {
			planned.Accepted = false
			plan.PlannedCalls[call.CallID] = planned
			callStatus[call.CallID] = ToolCallStatus{Kind: ToolCallIgnored}
			continue
		}
		planned.Accepted = true
		planned.Mapper = spec.Mapper
		planned.Executor = spec.Executor
		planned.ParallelSafe = spec.ParallelismHint.ParallelSafe
		planned.ResourceKey = spec.ParallelismHint.ResourceKey
		plan.PlannedCalls[call.CallID] = planned
		callStatus[call.CallID] = ToolCallStatus{Kind: ToolCallQueued}
		schedulable = append(schedulable, call.CallID)
	}

	plan.Groups = groupToolCalls(plan.PlannedCalls, schedulable)

	s.ActiveToolBatch = &ActiveToolBatch{
		ToolBatchID:   batchID,
		IntentID:      intentID,
		Plan:          plan,
		CallStatus:    callStatus,
		PendingByHash: map[string][]string{},
		LLMResults:    map[string]string{},
	}

	if err := dispatchNextReadyToolGroup(s, out); err != nil {
		return err
	}
	return maybeStartFollowUpAssembly(s, out)
}

// groupToolCalls greedily packs schedulable call-ids into execution groups:
// a call whose ParallelSafe is false always forms its own singleton group;
// parallel-safe calls join the current group unless another member already
// shares their non-empty ResourceKey (spec.md §4.8 "Group").
func groupToolCalls(calls map[string]*PlannedToolCall, order []string) [][]string {
	var groups [][]string
	var current []string
	currentKeys := map[string]bool{}

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentKeys = map[string]bool{}
		}
	}

	for _, id := range order {
		call := calls[id]
		if !call.ParallelSafe {
			flush()
			groups = append(groups, []string{id})
			continue
		}
		if call.ResourceKey != "" && currentKeys[call.ResourceKey] {
			flush()
		}
		current = append(current, id)
		if call.ResourceKey != "" {
			currentKeys[call.ResourceKey] = true
		}
	}
	flush()
	return groups
}

// dispatchNextReadyToolGroup advances the batch's group cursor once the
// most recently dispatched group has fully settled, emitting tool-effect
// commands (or marking host-loop calls Pending) for the newly ready group
// (spec.md §4.8.1). It is idempotent and safe to call after every batch
// mutation.
func dispatchNextReadyToolGroup(s *SessionState, out *SessionReduceOutput) error {
	batch := s.ActiveToolBatch
	if batch == nil {
		return nil
	}

	if batch.NextGroupIndex > 0 {
		prev := batch.Plan.Groups[batch.NextGroupIndex-1]
		for _, id := range prev {
			if !batch.CallStatus[id].Kind.IsTerminal() {
				return nil // previous group still in flight
			}
		}
	}

	for batch.NextGroupIndex < len(batch.Plan.Groups) {
		group := batch.Plan.Groups[batch.NextGroupIndex]
		blocked := dispatchToolGroup(s, out, batch, group)
		batch.NextGroupIndex++
		if blocked {
			// This group has at least one call awaiting a blob.get before it
			// can be dispatched as a tool effect; stop advancing until that
			// resolves and re-triggers this function.
			return nil
		}
		allTerminal := true
		for _, id := range group {
			if !batch.CallStatus[id].Kind.IsTerminal() {
				allTerminal = false
				break
			}
		}
		if !allTerminal {
			return nil
		}
	}
	return nil
}

// dispatchToolGroup emits effects (or marks Pending) for every accepted
// call in group. It returns true if any call is still waiting on a
// blob.get for its arguments, which pauses the scheduler at this group.
func dispatchToolGroup(s *SessionState, out *SessionReduceOutput, batch *ActiveToolBatch, group []string) bool {
	blocked := false
	for _, callID := range group {
		call := batch.Plan.PlannedCalls[callID]
		if !call.Accepted {
			continue
		}

		if call.ArgumentsJSON == "" && call.ArgumentsRef != "" {
			hash := call.ArgumentsRef
			out.emitBlobGet(call.ArgumentsRef, "tools", hash)
			s.PendingBlobGets[hash] = append(s.PendingBlobGets[hash], PendingBlobGet{
				Kind:        BlobGetToolCallArguments,
				BlobRef:     call.ArgumentsRef,
				ToolBatchID: batch.ToolBatchID,
				CallID:      callID,
			})
			batch.CallStatus[callID] = ToolCallStatus{Kind: ToolCallPending}
			blocked = true
			continue
		}

		dispatchAcceptedCall(s, out, batch, call)
	}
	return blocked
}

// mapperErrorResult is the LLM-visible result synthesized for an accepted
// call that never reaches an adapter: the model still needs a
// function_call_output to keep its tool_call/output pairing balanced
// (spec.md §4.8.1, §8 "|llm_results| == |accepted planned_calls|").
type mapperErrorResult struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func synthesizeFailureResult(code, detail string) string {
	b, err := json.Marshal(mapperErrorResult{OK: false, Error: code, Detail: detail})
	if err != nil {
		return `{"ok":false}`
	}
	return string(b)
}

// dispatchAcceptedCall maps call's arguments and either emits a tool-effect
// command (tracking the pending receipt by params_hash) or, for host-loop
// tools, simply marks the call Pending awaiting an out-of-band receipt.
func dispatchAcceptedCall(s *SessionState, out *SessionReduceOutput, batch *ActiveToolBatch, call *PlannedToolCall) {
	paramsJSON, err := mapToolArgs(call.Mapper, call.ArgumentsJSON, s.ToolRuntimeContext)
	if err != nil {
		code, detail := classifyMapperError(err)
		batch.CallStatus[call.CallID] = ToolCallStatus{Kind: ToolCallFailed, Code: code, Detail: detail}
		batch.LLMResults[call.CallID] = synthesizeFailureResult(code, detail)
		return
	}

	if call.Executor.Kind == ToolExecutorHostLoop {
		batch.CallStatus[call.CallID] = ToolCallStatus{Kind: ToolCallPending}
		return
	}

	hash := jsonParamsHash(paramsJSON)
	out.emitToolEffect(call.Executor.EffectKind, paramsJSON, call.Executor.CapSlot, hash)
	batch.PendingByHash[hash] = append(batch.PendingByHash[hash], call.CallID)
	batch.CallStatus[call.CallID] = ToolCallStatus{Kind: ToolCallPending}
	s.InFlightEffects++
}
