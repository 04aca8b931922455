package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/smartcomputer-ai/agent-session-workflow/runtime/agent/session"
	"github.com/smartcomputer-ai/agent-session-workflow/runtime/agent/session/inmem"
	"github.com/smartcomputer-ai/agent-session-workflow/runtime/agent/telemetry"
	"github.com/smartcomputer-ai/agent-session-workflow/workflow"
)

// sessionDriver pumps a scenario's steps through workflow.Apply, executing
// every emitted effect against in-memory fakes and feeding the resulting
// receipt straight back in, until the effect frontier is empty. It exists
// to demonstrate the reducer end to end; it is not part of the core.
//
// Alongside workflow.SessionState, the authoritative in-memory lifecycle
// record, it keeps a session.Store updated: the durable side-table a real
// host would query to list sessions/runs without replaying the event log.
type sessionDriver struct {
	state    *workflow.SessionState
	limits   workflow.SessionRuntimeLimits
	blobs    *blobStore
	llm      *llmResponder
	logger   telemetry.Logger
	tracer   telemetry.Tracer
	metrics  telemetry.Metrics
	sessions session.Store
	agentID  string
}

func newSessionDriver(sc *scenario, logger telemetry.Logger, tracer telemetry.Tracer, metrics telemetry.Metrics) *sessionDriver {
	id := uuid.NewString()
	s := workflow.NewSessionState(workflow.SessionID(id))
	s.SessionConfig.Provider = sc.Provider
	s.SessionConfig.Model = sc.Model
	s.SessionConfig.DefaultToolProfile = sc.ToolProfile

	blobs := newBlobStore()
	return &sessionDriver{
		state:    s,
		limits:   workflow.SessionRuntimeLimits{MaxPendingIntents: 64},
		blobs:    blobs,
		llm:      newLLMResponder(sc.Responses, blobs),
		logger:   logger,
		tracer:   tracer,
		metrics:  metrics,
		sessions: inmem.New(),
		agentID:  fmt.Sprintf("%s/%s", sc.Provider, sc.Model),
	}
}

// bootstrap registers the default tool catalog and the host session the
// scenario names, mirroring the one-time setup a real host performs before
// the first run_requested arrives.
func (d *sessionDriver) bootstrap(ctx context.Context, hostSessionID string) error {
	if _, err := d.sessions.CreateSession(ctx, string(d.state.SessionID), time.Now()); err != nil {
		return fmt.Errorf("bootstrap session record: %w", err)
	}

	if err := d.applyIngress(ctx, workflow.IngressPayload{
		Kind: workflow.IngressToolRegistrySet,
		ToolRegistrySet: &workflow.ToolRegistrySetPayload{
			Registry:       workflow.NewDefaultToolRegistry(),
			Profiles:       workflow.NewDefaultToolProfiles(),
			HasProfiles:    true,
			DefaultProfile: d.state.SessionConfig.DefaultToolProfile,
		},
	}); err != nil {
		return fmt.Errorf("bootstrap tool registry: %w", err)
	}

	if hostSessionID == "" {
		return nil
	}
	if err := d.applyIngress(ctx, workflow.IngressPayload{
		Kind: workflow.IngressHostSessionUpdated,
		HostSessionUpdated: &workflow.HostSessionUpdatedPayload{
			HostSessionID:        hostSessionID,
			HasHostSessionID:     true,
			HostSessionStatus:    workflow.HostSessionReady,
			HasHostSessionStatus: true,
		},
	}); err != nil {
		return fmt.Errorf("bootstrap host session: %w", err)
	}
	return nil
}

// runStep applies one scenario step and drains every effect it and its
// receipts transitively produce.
func (d *sessionDriver) runStep(ctx context.Context, step scenarioStep) error {
	switch step.Type {
	case "run_requested":
		ref := d.blobs.putFresh([]byte(step.Input))
		return d.applyIngress(ctx, workflow.IngressPayload{
			Kind:         workflow.IngressRunRequested,
			RunRequested: &workflow.RunRequestedPayload{InputRef: ref},
		})

	case "host_command":
		kind, err := hostCommandKind(step.Command)
		if err != nil {
			return err
		}
		return d.applyIngress(ctx, workflow.IngressPayload{
			Kind: workflow.IngressHostCommandReceived,
			HostCommandReceived: &workflow.HostCommandPayload{
				Kind: kind,
				Text: step.Text,
			},
		})

	default:
		return fmt.Errorf("unknown scenario step type %q", step.Type)
	}
}

func hostCommandKind(name string) (workflow.HostCommandKind, error) {
	switch name {
	case "pause":
		return workflow.HostCommandPause, nil
	case "resume":
		return workflow.HostCommandResume, nil
	case "cancel":
		return workflow.HostCommandCancel, nil
	case "steer":
		return workflow.HostCommandSteer, nil
	case "follow_up":
		return workflow.HostCommandFollowUp, nil
	default:
		return "", fmt.Errorf("unknown host command %q", name)
	}
}

// applyIngress wraps one ingress payload as a SessionWorkflowEvent, applies
// it, traces and logs the transition, and drains the resulting effects.
func (d *sessionDriver) applyIngress(ctx context.Context, payload workflow.IngressPayload) error {
	ctx, span := d.tracer.Start(ctx, "workflow.Apply")
	defer span.End()

	out, err := workflow.Apply(d.state, workflow.SessionWorkflowEvent{
		Kind:    workflow.EventIngress,
		Ingress: &workflow.SessionIngress{ObservedAtNs: 1, Ingress: payload},
	}, nil, nil, d.limits)
	if err != nil {
		span.RecordError(err)
		d.logger.Error(ctx, "ingress rejected", "kind", string(payload.Kind), "error", err.Error())
		return err
	}
	d.logger.Info(ctx, "ingress applied", "kind", string(payload.Kind), "lifecycle", string(d.state.Lifecycle))
	d.metrics.IncCounter("sessiondriver.ingress_applied", 1, "kind", string(payload.Kind))
	if err := d.drainEffects(ctx, out.Effects); err != nil {
		return err
	}
	return d.syncRunMeta(ctx)
}

// syncRunMeta mirrors the active run's lifecycle into the durable session
// store so a host can list runs without replaying SessionState from scratch.
// It is a no-op once a session goes idle between runs with nothing active.
func (d *sessionDriver) syncRunMeta(ctx context.Context) error {
	if !d.state.HasActiveRun {
		return nil
	}
	err := d.sessions.UpsertRun(ctx, session.RunMeta{
		AgentID:   d.agentID,
		RunID:     d.state.ActiveRunID.String(),
		SessionID: string(d.state.SessionID),
		Status:    runStatusForLifecycle(d.state.Lifecycle),
	})
	if err != nil {
		return fmt.Errorf("sync run metadata: %w", err)
	}
	return nil
}

func runStatusForLifecycle(l workflow.SessionLifecycle) session.RunStatus {
	switch l {
	case workflow.LifecycleRunning:
		return session.RunStatusRunning
	case workflow.LifecycleWaitingInput:
		return session.RunStatusPaused
	case workflow.LifecycleCompleted:
		return session.RunStatusCompleted
	case workflow.LifecycleFailed:
		return session.RunStatusFailed
	case workflow.LifecycleCancelled:
		return session.RunStatusCanceled
	default:
		return session.RunStatusPending
	}
}

// drainEffects executes every effect command against the in-memory fakes
// and feeds the resulting receipt back into Apply, repeating against
// whatever new effects that produces, until the frontier is empty
// (spec.md §5: one event per Apply call, synchronous settlement here only
// because the fakes answer immediately).
func (d *sessionDriver) drainEffects(ctx context.Context, effects []workflow.SessionEffectCommand) error {
	pending := effects
	for len(pending) > 0 {
		var next []workflow.SessionEffectCommand
		for _, cmd := range pending {
			event, err := d.executeEffect(ctx, cmd)
			if err != nil {
				return err
			}
			out, err := workflow.Apply(d.state, event, nil, nil, d.limits)
			if err != nil {
				d.logger.Error(ctx, "receipt rejected", "kind", string(cmd.Kind), "error", err.Error())
				return err
			}
			d.logger.Info(ctx, "effect settled", "kind", string(cmd.Kind), "lifecycle", string(d.state.Lifecycle))
			next = append(next, out.Effects...)
		}
		pending = next
	}
	return nil
}

// executeEffect runs one effect command against the fakes and wraps the
// outcome as the receipt event Apply expects next.
func (d *sessionDriver) executeEffect(ctx context.Context, cmd workflow.SessionEffectCommand) (workflow.SessionWorkflowEvent, error) {
	switch cmd.Kind {
	case workflow.EffectBlobPut:
		d.blobs.put(cmd.BlobPut.ParamsHash, cmd.BlobPut.Bytes)
		return receiptEvent(cmd.BlobPut.ParamsHash, nil), nil

	case workflow.EffectBlobGet:
		bytes, ok := d.blobs.get(cmd.BlobGet.BlobRef)
		if !ok {
			return workflow.SessionWorkflowEvent{}, fmt.Errorf("blob.get: unknown ref %q", cmd.BlobGet.BlobRef)
		}
		return receiptEvent(cmd.BlobGet.ParamsHash, bytes), nil

	case workflow.EffectLlmGenerate:
		envelope := d.llm.next()
		envelopeBytes, err := cbor.Marshal(envelope)
		if err != nil {
			return workflow.SessionWorkflowEvent{}, fmt.Errorf("encode llm output envelope: %w", err)
		}
		envelopeRef := d.blobs.putFresh(envelopeBytes)
		ack, err := cbor.Marshal(llmGenerateReceiptPayload{EnvelopeBlobRef: envelopeRef})
		if err != nil {
			return workflow.SessionWorkflowEvent{}, fmt.Errorf("encode llm receipt ack: %w", err)
		}
		return receiptEvent(cmd.LlmGenerate.ParamsHash, ack), nil

	case workflow.EffectToolEffect:
		receipt := fakeToolReceipt(cmd.ToolEffect.Kind, cmd.ToolEffect.ParamsJSON)
		return receiptEvent(cmd.ToolEffect.ParamsHash, receipt), nil

	default:
		return workflow.SessionWorkflowEvent{}, fmt.Errorf("unhandled effect kind %q", cmd.Kind)
	}
}

func receiptEvent(paramsHash string, payload []byte) workflow.SessionWorkflowEvent {
	return workflow.SessionWorkflowEvent{
		Kind: workflow.EventReceipt,
		Receipt: &workflow.EffectReceiptEnvelope{
			ParamsHash:     paramsHash,
			Status:         "ok",
			ReceiptPayload: payload,
		},
	}
}
