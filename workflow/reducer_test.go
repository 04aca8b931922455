package workflow

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noLimits() SessionRuntimeLimits { return SessionRuntimeLimits{} }

func ingressEvent(p IngressPayload) SessionWorkflowEvent {
	return SessionWorkflowEvent{
		Kind:    EventIngress,
		Ingress: &SessionIngress{ObservedAtNs: 1, Ingress: p},
	}
}

func setupRegistryEvent(s *SessionState) SessionWorkflowEvent {
	return ingressEvent(IngressPayload{
		Kind: IngressToolRegistrySet,
		ToolRegistrySet: &ToolRegistrySetPayload{
			Registry:       ToolRegistry{"host.fs.read_file": NewDefaultToolRegistry()["host.fs.read_file"]},
			Profiles:       ToolProfiles{"openai": {"host.fs.read_file"}},
			HasProfiles:    true,
			DefaultProfile: "openai",
		},
	})
}

func TestApplyRunRequestedHappyPathToWaitingInput(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	s.ToolRuntimeContext.HostSessionID = "host-1"
	s.ToolRuntimeContext.HostSessionStatus = HostSessionReady

	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)

	out, err := Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecycleRunning, s.Lifecycle)
	require.True(t, s.HasActiveRun)
	require.Len(t, out.Effects, 1, "one tool definition blob.put expected")
	putHash := out.Effects[0].BlobPut.ParamsHash

	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:   putHash,
			Status:       "ok",
			EffectKind:   "blob_put",
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "llm.generate should now be emitted")
	require.Equal(t, EffectLlmGenerate, out.Effects[0].Kind)
	llmHash := out.Effects[0].LlmGenerate.ParamsHash

	receiptPayload, err := cbor.Marshal(llmGenerateReceiptPayload{EnvelopeBlobRef: "sha256:envelope"})
	require.NoError(t, err)
	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     llmHash,
			Status:         "ok",
			ReceiptPayload: receiptPayload,
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "blob.get for the output envelope should be emitted")
	assert.Equal(t, EffectBlobGet, out.Effects[0].Kind)

	envelopePayload, err := cbor.Marshal(LlmOutputEnvelope{Kind: LlmOutputMessage, MessageRef: "sha256:msg"})
	require.NoError(t, err)
	_, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     "sha256:envelope",
			Status:         "ok",
			ReceiptPayload: envelopePayload,
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)

	assert.Equal(t, LifecycleWaitingInput, s.Lifecycle)
	assert.Equal(t, []string{"sha256:input", "sha256:msg"}, s.ConversationMessageRefs)
}

// setupSessionOpenRegistryEvent registers just host.session.open under the
// openai profile, the minimal catalog the full tool round trip scenario
// needs.
func setupSessionOpenRegistryEvent(s *SessionState) SessionWorkflowEvent {
	full := NewDefaultToolRegistry()
	return ingressEvent(IngressPayload{
		Kind: IngressToolRegistrySet,
		ToolRegistrySet: &ToolRegistrySetPayload{
			Registry:       ToolRegistry{"host.session.open": full["host.session.open"]},
			Profiles:       ToolProfiles{"openai": {"host.session.open"}},
			HasProfiles:    true,
			DefaultProfile: "openai",
		},
	})
}

// TestApplyFullToolRoundTripScenario drives the central scheduler happy
// path end to end: llm.generate -> LlmOutputEnvelope (tool_calls_ref) ->
// LlmToolCallList -> tool call arguments -> host.session.open tool effect
// -> follow-up assembly -> the next llm.generate (spec.md §8 "Full tool
// round trip").
func TestApplyFullToolRoundTripScenario(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"

	_, err := Apply(s, setupSessionOpenRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)

	out, err := Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "one tool definition blob.put expected")
	putHash := out.Effects[0].BlobPut.ParamsHash

	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash: putHash,
			Status:     "ok",
			EffectKind: "blob_put",
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1)
	require.Equal(t, EffectLlmGenerate, out.Effects[0].Kind)
	llmHash := out.Effects[0].LlmGenerate.ParamsHash

	genReceipt, err := cbor.Marshal(llmGenerateReceiptPayload{EnvelopeBlobRef: "sha256:envelope"})
	require.NoError(t, err)
	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     llmHash,
			Status:         "ok",
			ReceiptPayload: genReceipt,
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "blob.get for the output envelope should be emitted")
	require.Equal(t, EffectBlobGet, out.Effects[0].Kind)
	assert.Equal(t, "sha256:envelope", out.Effects[0].BlobGet.BlobRef)

	envelopePayload, err := cbor.Marshal(LlmOutputEnvelope{Kind: LlmOutputToolCalls, ToolCallsRef: "sha256:toolcalls"})
	require.NoError(t, err)
	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     "sha256:envelope",
			Status:         "ok",
			ReceiptPayload: envelopePayload,
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "blob.get for the tool call list should be emitted")
	require.Equal(t, EffectBlobGet, out.Effects[0].Kind)
	assert.Equal(t, "sha256:toolcalls", out.Effects[0].BlobGet.BlobRef)

	listPayload, err := cbor.Marshal(LlmToolCallList{
		{CallID: "call-1", ToolName: "host.session.open", ArgumentsRef: "sha256:args"},
	})
	require.NoError(t, err)
	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     "sha256:toolcalls",
			Status:         "ok",
			ReceiptPayload: listPayload,
			IntentID:       "intent-1",
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "blob.get for the call's arguments should be emitted")
	require.Equal(t, EffectBlobGet, out.Effects[0].Kind)
	assert.Equal(t, "sha256:args", out.Effects[0].BlobGet.BlobRef)

	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     "sha256:args",
			Status:         "ok",
			ReceiptPayload: []byte(`{"target":{"local":{"network_mode":"off"}}}`),
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.Len(t, out.Effects, 1, "the host.session.open tool effect should be emitted")
	require.Equal(t, EffectToolEffect, out.Effects[0].Kind)
	toolHash := out.Effects[0].ToolEffect.ParamsHash

	toolReceipt, err := cbor.Marshal(rawToolReceiptPayload{
		Status: "ok",
		Result: map[string]any{"status": "ready", "session_id": "hs_1"},
	})
	require.NoError(t, err)
	out, err = Apply(s, SessionWorkflowEvent{
		Kind: EventReceipt,
		Receipt: &EffectReceiptEnvelope{
			ParamsHash:     toolHash,
			Status:         "ok",
			ReceiptPayload: toolReceipt,
		},
	}, nil, nil, noLimits())
	require.NoError(t, err)
	require.NotEmpty(t, out.Effects, "follow-up messages should have been queued as blob.puts")

	var final SessionReduceOutput
	for _, effect := range out.Effects {
		require.Equal(t, EffectBlobPut, effect.Kind)
		final, err = Apply(s, SessionWorkflowEvent{
			Kind: EventReceipt,
			Receipt: &EffectReceiptEnvelope{
				ParamsHash: effect.BlobPut.ParamsHash,
				Status:     "ok",
				EffectKind: "blob_put",
			},
		}, nil, nil, noLimits())
		require.NoError(t, err)
	}

	require.Len(t, final.Effects, 1, "exactly one new llm.generate expected once follow-up assembly lands")
	assert.Equal(t, EffectLlmGenerate, final.Effects[0].Kind)
	assert.Equal(t, HostSessionReady, s.ToolRuntimeContext.HostSessionStatus)
}

func TestApplyRunRequestedRejectsSecondActiveRun(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, noLimits())
	require.NoError(t, err)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input2"},
	}), nil, nil, noLimits())
	assert.ErrorIs(t, err, ErrRunAlreadyActive)
}

func TestApplyRunRequestedRejectsDisallowedProvider(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), []string{"anthropic"}, nil, noLimits())
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestApplyPauseResumeRoundTrip(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)
	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, noLimits())
	require.NoError(t, err)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:                IngressHostCommandReceived,
		HostCommandReceived: &HostCommandPayload{Kind: HostCommandPause},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecyclePaused, s.Lifecycle)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:                IngressHostCommandReceived,
		HostCommandReceived: &HostCommandPayload{Kind: HostCommandResume},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecycleRunning, s.Lifecycle)
}

func TestApplyPauseRejectedWhenIdle(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	_, err := Apply(s, ingressEvent(IngressPayload{
		Kind:                IngressHostCommandReceived,
		HostCommandReceived: &HostCommandPayload{Kind: HostCommandPause},
	}), nil, nil, noLimits())
	assert.ErrorIs(t, err, ErrHostCommandRejected)
}

func TestApplyCancelBumpsEpochsAndTransitionsThroughCancelling(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)
	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, noLimits())
	require.NoError(t, err)

	epochBefore := s.SessionEpoch
	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:                IngressHostCommandReceived,
		HostCommandReceived: &HostCommandPayload{Kind: HostCommandCancel},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecycleCancelling, s.Lifecycle)
	assert.Equal(t, epochBefore+1, s.SessionEpoch)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:            IngressRunCancelled,
		RunFailedReason: "",
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecycleCancelled, s.Lifecycle)
	assert.False(t, s.HasActiveRun)
}

func TestApplyRunFailedRecordsReasonAndClearsRun(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)
	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, noLimits())
	require.NoError(t, err)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:            IngressRunFailed,
		RunFailedReason: "boom",
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecycleFailed, s.Lifecycle)
	assert.Equal(t, "boom", s.LastFailureReason)
	assert.False(t, s.HasActiveRun)
}

func TestApplyTooManyPendingIntentsRejectsEvent(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	_, err := Apply(s, setupRegistryEvent(s), nil, nil, noLimits())
	require.NoError(t, err)

	_, err = Apply(s, ingressEvent(IngressPayload{
		Kind:         IngressRunRequested,
		RunRequested: &RunRequestedPayload{InputRef: "sha256:input"},
	}), nil, nil, SessionRuntimeLimits{MaxPendingIntents: 0})
	require.NoError(t, err, "limit of zero disables the check")

	s.InFlightEffects = 5
	_, err = Apply(s, ingressEvent(IngressPayload{Kind: IngressNoop}), nil, nil, SessionRuntimeLimits{MaxPendingIntents: 1})
	require.Error(t, err)
	var typed *TooManyPendingIntentsError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 5, typed.InFlight)
}

func TestHandleHostCommandFollowUpDrainsImmediatelyWhenWaitingInput(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.SessionConfig.Provider = "openai"
	s.SessionConfig.Model = "gpt-test"
	s.Lifecycle = LifecycleWaitingInput
	s.HasActiveRun = true
	s.ActiveRunConfig = RunConfig{Provider: "openai", Model: "gpt-test"}
	s.EffectiveTools = EffectiveTools{}
	s.ToolRefsMaterialized = true

	out, err := Apply(s, ingressEvent(IngressPayload{
		Kind:                IngressHostCommandReceived,
		HostCommandReceived: &HostCommandPayload{Kind: HostCommandFollowUp, Text: "sha256:followup"},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, LifecycleRunning, s.Lifecycle)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, EffectLlmGenerate, out.Effects[0].Kind)
}

func TestHandleHostCommandFollowUpQueuesWhenMidRun(t *testing.T) {
	s := NewSessionState(SessionID("sess-1"))
	s.Lifecycle = LifecycleRunning
	s.HasActiveRun = true

	_, err := Apply(s, ingressEvent(IngressPayload{
		Kind:                IngressHostCommandReceived,
		HostCommandReceived: &HostCommandPayload{Kind: HostCommandFollowUp, Text: "hold on"},
	}), nil, nil, noLimits())
	require.NoError(t, err)
	assert.Equal(t, []string{"hold on"}, s.PendingFollowUp)
	assert.Equal(t, LifecycleRunning, s.Lifecycle)
}
