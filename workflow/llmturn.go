package workflow

import "strings"

// toolDefinitionBlobParams is the canonically-hashed payload for one tool's
// definition blob.put (spec.md §4.7: tool definitions are content-addressed
// and shared across turns by reference, never inlined into llm.generate).
type toolDefinitionBlobParams struct {
	ToolName       string
	Description    string
	ArgsSchemaJSON string
}

// queueTurn records messageRefs as the next LLM turn's input and attempts to
// dispatch it immediately (spec.md §4.7).
func queueTurn(s *SessionState, out *SessionReduceOutput, messageRefs []string) error {
	s.QueuedLLMMessageRefs = messageRefs
	s.HasQueuedLLMMessageRefs = true
	return dispatchQueuedTurn(s, out)
}

// dispatchQueuedTurn emits whatever effects are needed to make progress on
// the queued turn: first the tool-definition blob.put commands for any
// not-yet-materialized effective tool, then, once every definition is
// referenced, a single llm.generate. It proceeds only if a turn is queued,
// no pending intents are outstanding, no follow-up assembly is in progress,
// and no tool batch is still unsettled (spec.md §4.7).
func dispatchQueuedTurn(s *SessionState, out *SessionReduceOutput) error {
	if !s.HasQueuedLLMMessageRefs {
		return nil
	}
	if len(s.PendingIntents) > 0 {
		return nil
	}
	if s.PendingFollowUpTurn != nil {
		return nil
	}
	if s.ActiveToolBatch != nil && !s.ActiveToolBatch.Settled() {
		return nil
	}

	if !s.ToolRefsMaterialized {
		emitMissingToolDefinitionPuts(s, out)
		if !allToolDefinitionsMaterialized(s) {
			return nil
		}
		s.ToolRefsMaterialized = true
	}

	return emitLlmGenerate(s, out)
}

// emitMissingToolDefinitionPuts issues a blob.put for every effective tool
// whose definition ref has not yet been recorded.
func emitMissingToolDefinitionPuts(s *SessionState, out *SessionReduceOutput) {
	for _, tool := range s.EffectiveTools.OrderedTools {
		if _, done := s.ToolDefinitionRefs[tool.ToolName]; done {
			continue
		}
		params := toolDefinitionBlobParams{
			ToolName:       tool.ToolName,
			Description:    tool.Description,
			ArgsSchemaJSON: tool.ArgsSchemaJSON,
		}
		hash := paramsHash(params)
		if _, already := s.PendingBlobPuts[hash]; already {
			continue
		}
		bytes, err := canonicalCBOR(params)
		if err != nil {
			panic("workflow: failed to encode tool definition: " + err.Error())
		}
		out.emitBlobPut(bytes, "tools", hash)
		s.PendingBlobPuts[hash] = append(s.PendingBlobPuts[hash], PendingBlobPut{
			Kind:     BlobPutToolDefinition,
			ToolName: tool.ToolName,
		})
	}
}

// allToolDefinitionsMaterialized reports whether every effective tool has a
// recorded definition ref. It does not touch ToolRefsMaterialized; its
// callers set that flag when it returns true.
func allToolDefinitionsMaterialized(s *SessionState) bool {
	for _, tool := range s.EffectiveTools.OrderedTools {
		if _, ok := s.ToolDefinitionRefs[tool.ToolName]; !ok {
			return false
		}
	}
	return true
}

// emitLlmGenerate materializes SysLlmGenerateParams from the active run
// config and effective tool set, validates it, and emits the llm.generate
// effect command, tracking the pending intent keyed by its params_hash.
func emitLlmGenerate(s *SessionState, out *SessionReduceOutput) error {
	rc := s.ActiveRunConfig

	provider := strings.TrimSpace(rc.Provider)
	model := strings.TrimSpace(rc.Model)
	if provider == "" {
		return ErrMissingProvider
	}
	if model == "" {
		return ErrMissingModel
	}

	toolRefs := make([]string, 0, len(s.EffectiveTools.OrderedTools))
	for _, tool := range s.EffectiveTools.OrderedTools {
		toolRefs = append(toolRefs, s.ToolDefinitionRefs[tool.ToolName])
	}

	params := SysLlmGenerateParams{
		Provider:           provider,
		Model:              model,
		MessageRefs:        s.QueuedLLMMessageRefs,
		ReasoningEffort:     rc.ReasoningEffort,
		MaxTokens:          rc.MaxTokens,
		Temperature:        rc.Temperature,
		TopP:               rc.TopP,
		ToolRefs:           toolRefs,
		ToolChoice:         rc.ToolChoice,
		StopSequences:      rc.StopSequences,
		Metadata:           rc.Metadata,
		ProviderOptionsRef: rc.ProviderOptionsRef,
		ResponseFormatRef:  rc.ResponseFormatRef,
	}
	if len(params.MessageRefs) == 0 {
		return ErrEmptyMessageRefs
	}

	hash := paramsHash(params)
	out.emitLlmGenerate(params, "llm", hash)
	s.PendingIntents[hash] = PendingIntent{
		EffectKind: "llm_generate",
		ParamsHash: hash,
		CapSlot:    "llm",
	}
	s.HasQueuedLLMMessageRefs = false
	s.QueuedLLMMessageRefs = nil
	s.InFlightEffects++
	return nil
}
