package workflow

import (
	"encoding/json"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// LlmOutputEnvelopeKind tags the decoded shape of an llm.generate result
// once its envelope blob has been fetched.
type LlmOutputEnvelopeKind string

const (
	LlmOutputMessage   LlmOutputEnvelopeKind = "message"
	LlmOutputToolCalls LlmOutputEnvelopeKind = "tool_calls"
	LlmOutputError     LlmOutputEnvelopeKind = "error"
)

// LlmOutputEnvelope is the canonical-CBOR payload fetched via the first
// blob.get triggered by an llm.generate receipt (spec.md §4.9). A non-empty
// ToolCallsRef points at a second blob, the LlmToolCallList, that must be
// fetched before the observed calls can be scheduled (spec.md §4.8,
// aos-agent-sdk/src/contracts/llm.rs LlmOutputEnvelope).
type LlmOutputEnvelope struct {
	Kind         LlmOutputEnvelopeKind `cbor:"kind"`
	MessageRef   string                `cbor:"message_ref"`
	ToolCallsRef string                `cbor:"tool_calls_ref"`
	ErrorReason  string                `cbor:"error_reason"`
}

// LlmToolCallEntry is one call within an LlmToolCallList. Arguments always
// arrive by reference at this hop (aos-agent-sdk/src/contracts/llm.rs
// LlmToolCall); a call's arguments are only ever inlined once the blob.get
// that dispatchToolGroup issues for that ref has returned and
// applyPendingBlobGetReceipt has copied its payload onto the planned call.
type LlmToolCallEntry struct {
	CallID         string `cbor:"call_id"`
	ToolName       string `cbor:"tool_name"`
	ProviderCallID string `cbor:"provider_call_id"`
	ArgumentsRef   string `cbor:"arguments_ref"`
}

// LlmToolCallList is the payload fetched via the second blob.get on an
// LLM-output chain that carries tool calls (spec.md §4.8 "Triggered by the
// second blob.get receipt on an LLM output chain").
type LlmToolCallList []LlmToolCallEntry

// llmGenerateReceiptPayload is the small ack an llm.generate effect
// receipt carries: the real output is too large to inline, so the
// receipt only names the blob holding it.
type llmGenerateReceiptPayload struct {
	EnvelopeBlobRef string `cbor:"envelope_blob_ref"`
}

// rawToolReceiptPayload is the CBOR shape every tool adapter receipt
// carries (aos-agent/src/tools/supported/mod.rs map_receipt).
type rawToolReceiptPayload struct {
	Status    string `cbor:"status"`
	ErrorCode string `cbor:"error_code"`
	Result    any    `cbor:"result"`
}

// applyReceipt implements the receipt dispatch precedence of spec.md §4.9:
// a pending blob.get is resolved first, then a pending blob.put, then an
// in-flight tool-effect call, and only then does the receipt's params_hash
// get checked against a pending llm.generate intent.
func applyReceipt(s *SessionState, out *SessionReduceOutput, r *EffectReceiptEnvelope) error {
	hash := r.ParamsHash

	if gets, ok := s.PendingBlobGets[hash]; ok && len(gets) > 0 {
		get := gets[0]
		s.PendingBlobGets[hash] = gets[1:]
		if len(s.PendingBlobGets[hash]) == 0 {
			delete(s.PendingBlobGets, hash)
		}
		s.InFlightEffects--
		return applyPendingBlobGetReceipt(s, out, get, r)
	}

	if puts, ok := s.PendingBlobPuts[hash]; ok && len(puts) > 0 {
		put := puts[0]
		s.PendingBlobPuts[hash] = puts[1:]
		if len(s.PendingBlobPuts[hash]) == 0 {
			delete(s.PendingBlobPuts, hash)
		}
		s.InFlightEffects--
		return applyPendingBlobPutReceipt(s, out, put, hash)
	}

	if batch := s.ActiveToolBatch; batch != nil {
		if callIDs, ok := batch.PendingByHash[hash]; ok && len(callIDs) > 0 {
			callID := callIDs[0]
			batch.PendingByHash[hash] = callIDs[1:]
			if len(batch.PendingByHash[hash]) == 0 {
				delete(batch.PendingByHash, hash)
			}
			s.InFlightEffects--
			status, resultJSON := mapToolReceipt(r)
			batch.CallStatus[callID] = status
			batch.LLMResults[callID] = resultJSON
			if status.Kind == ToolCallSucceeded {
				if call, ok := batch.Plan.PlannedCalls[callID]; ok {
					applyToolRuntimeDelta(s, call.ToolName, resultJSON)
				}
			}
			if err := dispatchNextReadyToolGroup(s, out); err != nil {
				return err
			}
			return maybeStartFollowUpAssembly(s, out)
		}
	}

	if intent, ok := s.PendingIntents[hash]; ok && intent.EffectKind == "llm_generate" {
		delete(s.PendingIntents, hash)
		s.InFlightEffects--

		var payload llmGenerateReceiptPayload
		if err := cbor.Unmarshal(r.ReceiptPayload, &payload); err != nil {
			return failRun(s, out, "llm_generate_receipt_undecodable")
		}
		out.emitBlobGet(payload.EnvelopeBlobRef, "llm", payload.EnvelopeBlobRef)
		s.PendingBlobGets[payload.EnvelopeBlobRef] = append(s.PendingBlobGets[payload.EnvelopeBlobRef], PendingBlobGet{
			Kind:    BlobGetLlmOutputEnvelope,
			BlobRef: payload.EnvelopeBlobRef,
		})
		s.InFlightEffects++
		return nil
	}

	// Unknown / already-handled correlation: a duplicate or stale receipt.
	// Silently ignored, matching the reducer's replay tolerance (spec.md §8
	// "idempotent under receipt replay").
	return nil
}

func applyPendingBlobGetReceipt(s *SessionState, out *SessionReduceOutput, get PendingBlobGet, r *EffectReceiptEnvelope) error {
	switch get.Kind {
	case BlobGetLlmOutputEnvelope:
		var envelope LlmOutputEnvelope
		if err := cbor.Unmarshal(r.ReceiptPayload, &envelope); err != nil {
			return failRun(s, out, "llm_output_envelope_undecodable")
		}
		if envelope.Kind == LlmOutputError {
			return failRun(s, out, envelope.ErrorReason)
		}
		if envelope.ToolCallsRef != "" {
			out.emitBlobGet(envelope.ToolCallsRef, "llm", envelope.ToolCallsRef)
			s.PendingBlobGets[envelope.ToolCallsRef] = append(s.PendingBlobGets[envelope.ToolCallsRef], PendingBlobGet{
				Kind:    BlobGetLlmToolCalls,
				BlobRef: envelope.ToolCallsRef,
			})
			s.InFlightEffects++
			return nil
		}
		s.ConversationMessageRefs = append(s.ConversationMessageRefs, envelope.MessageRef)
		return transition(s, LifecycleWaitingInput)

	case BlobGetLlmToolCalls:
		var list LlmToolCallList
		if err := cbor.Unmarshal(r.ReceiptPayload, &list); err != nil {
			return failRun(s, out, "llm_tool_call_list_undecodable")
		}
		if len(list) == 0 {
			return transition(s, LifecycleWaitingInput)
		}
		calls := make([]ObservedToolCall, 0, len(list))
		for _, entry := range list {
			calls = append(calls, ObservedToolCall{
				CallID:         entry.CallID,
				ToolName:       entry.ToolName,
				ProviderCallID: entry.ProviderCallID,
				ArgumentsRef:   entry.ArgumentsRef,
			})
		}
		return planToolBatch(s, out, r.IntentID, calls)

	case BlobGetToolCallArguments:
		batch := s.ActiveToolBatch
		if batch == nil {
			return nil
		}
		call, ok := batch.Plan.PlannedCalls[get.CallID]
		if !ok {
			return nil
		}
		call.ArgumentsJSON = string(r.ReceiptPayload)
		dispatchAcceptedCall(s, out, batch, call)
		if err := dispatchNextReadyToolGroup(s, out); err != nil {
			return err
		}
		return maybeStartFollowUpAssembly(s, out)

	default:
		return nil
	}
}

func applyPendingBlobPutReceipt(s *SessionState, out *SessionReduceOutput, put PendingBlobPut, contentHash string) error {
	switch put.Kind {
	case BlobPutToolDefinition:
		s.ToolDefinitionRefs[put.ToolName] = contentHash
		if allToolDefinitionsMaterialized(s) {
			s.ToolRefsMaterialized = true
		}
		return dispatchQueuedTurn(s, out)

	case BlobPutFollowUpMessage:
		if s.PendingFollowUpTurn == nil {
			return nil
		}
		s.PendingFollowUpTurn.BlobRefsByIndex[put.Index] = contentHash
		return finalizeFollowUpTurn(s, out)

	default:
		return nil
	}
}

// applyReceiptRejected resolves a rejection against the same four
// correlation tables as applyReceipt, always steering the affected call or
// run toward a terminal failure rather than retrying (spec.md §4.9: the
// reducer itself never retries; that is a driver concern).
func applyReceiptRejected(s *SessionState, out *SessionReduceOutput, r *EffectReceiptRejected) error {
	hash := r.ParamsHash

	if _, ok := s.PendingBlobGets[hash]; ok {
		delete(s.PendingBlobGets, hash)
		s.InFlightEffects--
		return failRun(s, out, "blob_get_rejected:"+r.Status)
	}

	if _, ok := s.PendingBlobPuts[hash]; ok {
		delete(s.PendingBlobPuts, hash)
		s.InFlightEffects--
		return failRun(s, out, "blob_put_rejected:"+r.Status)
	}

	if batch := s.ActiveToolBatch; batch != nil {
		if callIDs, ok := batch.PendingByHash[hash]; ok && len(callIDs) > 0 {
			callID := callIDs[0]
			batch.PendingByHash[hash] = callIDs[1:]
			if len(batch.PendingByHash[hash]) == 0 {
				delete(batch.PendingByHash, hash)
			}
			s.InFlightEffects--
			batch.CallStatus[callID] = ToolCallStatus{Kind: ToolCallFailed, Code: "adapter_error", Detail: r.Status}
			batch.LLMResults[callID] = synthesizeFailureResult("adapter_error", r.Status)
			if err := dispatchNextReadyToolGroup(s, out); err != nil {
				return err
			}
			return maybeStartFollowUpAssembly(s, out)
		}
	}

	if intent, ok := s.PendingIntents[hash]; ok && intent.EffectKind == "llm_generate" {
		delete(s.PendingIntents, hash)
		s.InFlightEffects--
		return failRun(s, out, "llm_generate_rejected:"+r.Status)
	}

	return nil
}

// mapToolReceipt classifies one tool adapter receipt (aos-agent/src/tools/
// supported/mod.rs map_receipt): any non-"ok" status, an error/failed
// status string, or a non-empty error_code marks the call Failed; the
// fallback code is adapter_timeout for an explicit timeout status, else
// adapter_error.
func mapToolReceipt(r *EffectReceiptEnvelope) (ToolCallStatus, string) {
	var payload rawToolReceiptPayload
	if err := cbor.Unmarshal(r.ReceiptPayload, &payload); err != nil {
		return ToolCallStatus{Kind: ToolCallFailed, Code: "adapter_error", Detail: err.Error()}, ""
	}

	status := strings.ToLower(strings.TrimSpace(payload.Status))
	isError := (status != "" && status != "ok") ||
		strings.Contains(status, "error") ||
		strings.Contains(status, "failed") ||
		payload.ErrorCode != "" ||
		(r.Status != "" && r.Status != "ok")

	if isError {
		code := payload.ErrorCode
		if code == "" {
			if strings.Contains(status, "timeout") {
				code = "adapter_timeout"
			} else {
				code = "adapter_error"
			}
		}
		return ToolCallStatus{Kind: ToolCallFailed, Code: code}, ""
	}

	resultBytes, err := json.Marshal(payload.Result)
	if err != nil {
		return ToolCallStatus{Kind: ToolCallFailed, Code: "adapter_error", Detail: err.Error()}, ""
	}
	return ToolCallStatus{Kind: ToolCallSucceeded}, string(resultBytes)
}

// toolSessionResult is the shape of a host.session.open/host.session.signal
// result payload that carries a runtime_delta (spec.md §4.8.3): an update to
// tool_runtime_context's host_session_id/status.
type toolSessionResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// applyToolRuntimeDelta updates tool_runtime_context from a succeeded
// host.session.open/host.session.signal result, the only two tools whose
// receipts carry a runtime_delta (spec.md §4.8.3).
func applyToolRuntimeDelta(s *SessionState, toolName, resultJSON string) {
	switch toolName {
	case "host.session.open", "host.session.signal":
	default:
		return
	}
	var res toolSessionResult
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return
	}
	if res.SessionID != "" {
		s.ToolRuntimeContext.HostSessionID = res.SessionID
	}
	if status, ok := hostSessionStatusFromString(res.Status); ok {
		s.ToolRuntimeContext.HostSessionStatus = status
	}
}

func hostSessionStatusFromString(v string) (HostSessionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ready":
		return HostSessionReady, true
	case "closed":
		return HostSessionClosed, true
	case "expired":
		return HostSessionExpired, true
	case "error":
		return HostSessionError, true
	default:
		return "", false
	}
}
