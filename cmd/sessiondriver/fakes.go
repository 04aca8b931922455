package main

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/smartcomputer-ai/agent-session-workflow/workflow"
)

// blobStore is a map-backed stand-in for a real content-addressed blob
// service. put and get key everything by the ref the caller supplies: for
// blob.put effects that is the reducer's params_hash (the content-hash
// convention, spec.md §4.10), for the envelope blobs the driver fabricates
// for llm.generate it is just a counter-based handle.
type blobStore struct {
	mu   sync.Mutex
	next int
	data map[string][]byte
}

func newBlobStore() *blobStore {
	return &blobStore{data: map[string][]byte{}}
}

func (b *blobStore) put(ref string, bytes []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[ref] = bytes
}

func (b *blobStore) putFresh(bytes []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	ref := fmt.Sprintf("mem:%d", b.next)
	b.data[ref] = bytes
	return ref
}

func (b *blobStore) get(ref string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bytes, ok := b.data[ref]
	return bytes, ok
}

// llmResponder hands back a fixed, ordered sequence of canned
// workflow.LlmOutputEnvelope values, one per llm.generate effect. When the
// sequence is exhausted it keeps answering with a plain closing message so
// a scenario with more runs than responses still terminates cleanly.
type llmResponder struct {
	mu        sync.Mutex
	responses []scenarioResponse
	pos       int
	blobs     *blobStore
}

func newLLMResponder(responses []scenarioResponse, blobs *blobStore) *llmResponder {
	return &llmResponder{responses: responses, blobs: blobs}
}

func (r *llmResponder) next() workflow.LlmOutputEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= len(r.responses) {
		ref := r.blobs.putFresh([]byte("(scenario exhausted)"))
		return workflow.LlmOutputEnvelope{Kind: workflow.LlmOutputMessage, MessageRef: ref}
	}
	resp := r.responses[r.pos]
	r.pos++

	switch resp.Type {
	case "tool_calls":
		entries := make([]workflow.LlmToolCallEntry, 0, len(resp.Calls))
		for i, c := range resp.Calls {
			argsRef := r.blobs.putFresh([]byte(c.Args))
			entries = append(entries, workflow.LlmToolCallEntry{
				CallID:       fmt.Sprintf("call-%d-%d", r.pos, i),
				ToolName:     c.Tool,
				ArgumentsRef: argsRef,
			})
		}
		listBytes, err := cbor.Marshal(workflow.LlmToolCallList(entries))
		if err != nil {
			panic("sessiondriver: failed to encode tool call list: " + err.Error())
		}
		toolCallsRef := r.blobs.putFresh(listBytes)
		return workflow.LlmOutputEnvelope{Kind: workflow.LlmOutputToolCalls, ToolCallsRef: toolCallsRef}
	default:
		ref := r.blobs.putFresh([]byte(resp.Text))
		return workflow.LlmOutputEnvelope{Kind: workflow.LlmOutputMessage, MessageRef: ref}
	}
}

// toolReceiptPayload mirrors the CBOR shape every real tool adapter
// receipt carries (status/error_code/result). It is defined independently
// of workflow's own unexported equivalent: the two packages only need to
// agree on the wire shape, not share a type.
type toolReceiptPayload struct {
	Status    string `cbor:"status"`
	ErrorCode string `cbor:"error_code"`
	Result    any    `cbor:"result"`
}

// fakeToolReceipt always answers a tool_effect command with a successful,
// canned result — enough to exercise the batch scheduler and follow-up
// assembly without a real host adapter.
func fakeToolReceipt(kind, paramsJSON string) []byte {
	payload := toolReceiptPayload{
		Status: "ok",
		Result: map[string]any{"tool": kind, "echoed_args": paramsJSON},
	}
	bytes, err := cbor.Marshal(payload)
	if err != nil {
		panic("sessiondriver: failed to encode fake tool receipt: " + err.Error())
	}
	return bytes
}

// llmGenerateReceiptPayload mirrors workflow's unexported equivalent: the
// small ack an llm.generate receipt carries, naming the blob holding the
// real (possibly large) output envelope.
type llmGenerateReceiptPayload struct {
	EnvelopeBlobRef string `cbor:"envelope_blob_ref"`
}
