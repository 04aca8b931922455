package workflow

import (
	"encoding/json"
	"strings"
)

// maybeStartFollowUpAssembly begins materializing the next LLM turn once
// the active tool batch has fully settled: one assistant message carrying
// the observed tool_calls, plus one function_call_output message per
// observed call (spec.md §4.8.2). Each message is content-addressed via a
// blob.put; the turn is only queued once every blob ref has landed.
func maybeStartFollowUpAssembly(s *SessionState, out *SessionReduceOutput) error {
	batch := s.ActiveToolBatch
	if batch == nil || !batch.Settled() {
		return nil
	}
	if batch.ResultsRef != "" || s.PendingFollowUpTurn != nil {
		return nil
	}
	if len(batch.Plan.ObservedCallIDs) == 0 {
		s.ActiveToolBatch = nil
		return nil
	}

	assistantMsg, err := buildAssistantToolCallsMessage(batch)
	if err != nil {
		return err
	}
	messages := []string{assistantMsg}
	for _, callID := range batch.Plan.ObservedCallIDs {
		msg, err := buildToolOutputMessage(batch, callID)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	batch.ResultsRef = hashBytes([]byte(strings.Join(messages, "\n")))

	s.PendingFollowUpTurn = &PendingFollowUpTurn{
		ToolBatchID:      batch.ToolBatchID,
		BaseMessageRefs:  append([]string(nil), s.ConversationMessageRefs...),
		ExpectedMessages: len(messages),
		BlobRefsByIndex:  map[int]string{},
	}

	for i, msg := range messages {
		hash := hashBytes([]byte(msg))
		out.emitBlobPut([]byte(msg), "followup", hash)
		s.PendingBlobPuts[hash] = append(s.PendingBlobPuts[hash], PendingBlobPut{
			Kind:  BlobPutFollowUpMessage,
			Index: i,
		})
	}
	return nil
}

// finalizeFollowUpTurn is called once every follow-up message has a blob
// ref; it appends them (in call order) to the conversation history and
// queues the next LLM turn.
func finalizeFollowUpTurn(s *SessionState, out *SessionReduceOutput) error {
	pending := s.PendingFollowUpTurn
	if pending == nil || len(pending.BlobRefsByIndex) < pending.ExpectedMessages {
		return nil
	}

	refs := make([]string, pending.ExpectedMessages)
	for i := 0; i < pending.ExpectedMessages; i++ {
		refs[i] = pending.BlobRefsByIndex[i]
	}

	newRefs := append(append([]string(nil), pending.BaseMessageRefs...), refs...)
	s.ConversationMessageRefs = newRefs
	s.ActiveToolBatch = nil
	s.PendingFollowUpTurn = nil

	return queueTurn(s, out, newRefs)
}

type toolCallEntry struct {
	CallID         string `json:"call_id"`
	ProviderCallID string `json:"provider_call_id,omitempty"`
	ToolName       string `json:"tool_name"`
	ArgumentsJSON  string `json:"arguments_json,omitempty"`
}

type assistantToolCallsMessage struct {
	Role      string          `json:"role"`
	ToolCalls []toolCallEntry `json:"tool_calls"`
}

func buildAssistantToolCallsMessage(batch *ActiveToolBatch) (string, error) {
	msg := assistantToolCallsMessage{Role: "assistant"}
	for _, callID := range batch.Plan.ObservedCallIDs {
		call := batch.Plan.PlannedCalls[callID]
		msg.ToolCalls = append(msg.ToolCalls, toolCallEntry{
			CallID:         call.CallID,
			ProviderCallID: call.ProviderCallID,
			ToolName:       call.ToolName,
			ArgumentsJSON:  call.ArgumentsJSON,
		})
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type toolOutputMessage struct {
	Type       string `json:"type"`
	CallID     string `json:"call_id"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code,omitempty"`
	OutputJSON string `json:"output_json,omitempty"`
}

func buildToolOutputMessage(batch *ActiveToolBatch, callID string) (string, error) {
	status := batch.CallStatus[callID]
	msg := toolOutputMessage{
		Type:   "function_call_output",
		CallID: callID,
		Status: string(status.Kind),
	}
	switch status.Kind {
	case ToolCallFailed:
		msg.ErrorCode = status.Code
		msg.OutputJSON = status.Detail
	case ToolCallIgnored, ToolCallCancelled:
		msg.ErrorCode = status.Code
	default:
		msg.OutputJSON = batch.LLMResults[callID]
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
