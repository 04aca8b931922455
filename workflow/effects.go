package workflow

// SessionEffectCommand is one outbound side-effect the driver must
// execute and later report back via a receipt (spec.md §6).
type SessionEffectCommand struct {
	Kind EffectCommandKind

	LlmGenerate *LlmGenerateCommand
	ToolEffect  *ToolEffectCommand
	BlobPut     *BlobPutCommand
	BlobGet     *BlobGetCommand
}

// EffectCommandKind tags SessionEffectCommand.
type EffectCommandKind string

const (
	EffectLlmGenerate EffectCommandKind = "llm_generate"
	EffectToolEffect  EffectCommandKind = "tool_effect"
	EffectBlobPut     EffectCommandKind = "blob_put"
	EffectBlobGet     EffectCommandKind = "blob_get"
)

// LlmGenerateCommand requests one LLM generation call.
type LlmGenerateCommand struct {
	Params     SysLlmGenerateParams
	CapSlot    string
	ParamsHash string
}

// ToolEffectCommand requests one tool-adapter call.
type ToolEffectCommand struct {
	Kind       string // tool effect_kind, e.g. "host.fs.write_file"
	ParamsJSON string
	CapSlot    string
	ParamsHash string
}

// BlobPutCommand requests that bytes be written to the blob store.
type BlobPutCommand struct {
	Bytes      []byte
	BlobRef    string // set when the caller already knows the digest
	HasBlobRef bool
	CapSlot    string
	ParamsHash string
}

// BlobGetCommand requests that bytes be fetched from the blob store.
type BlobGetCommand struct {
	BlobRef    string
	CapSlot    string
	ParamsHash string
}

// SysLlmGenerateParams is the materialized request for one LLM turn
// (spec.md §4.7).
type SysLlmGenerateParams struct {
	Provider        string
	Model           string
	MessageRefs     []string
	ReasoningEffort ReasoningEffort
	MaxTokens       int

	Temperature        *float64
	TopP               *float64
	ToolRefs           []string
	ToolChoice         string
	StopSequences      []string
	Metadata           map[string]string
	ProviderOptionsRef string
	ResponseFormatRef  string
}

// SessionReduceOutput is what Apply returns on success: the newly issued
// effect commands, in deterministic emission order (spec.md §4.1).
type SessionReduceOutput struct {
	Effects []SessionEffectCommand
}

func (o *SessionReduceOutput) emit(cmd SessionEffectCommand) {
	o.Effects = append(o.Effects, cmd)
}

func (o *SessionReduceOutput) emitLlmGenerate(params SysLlmGenerateParams, capSlot, paramsHash string) {
	o.emit(SessionEffectCommand{
		Kind: EffectLlmGenerate,
		LlmGenerate: &LlmGenerateCommand{
			Params:     params,
			CapSlot:    capSlot,
			ParamsHash: paramsHash,
		},
	})
}

func (o *SessionReduceOutput) emitToolEffect(kind, paramsJSON, capSlot, paramsHash string) {
	o.emit(SessionEffectCommand{
		Kind: EffectToolEffect,
		ToolEffect: &ToolEffectCommand{
			Kind:       kind,
			ParamsJSON: paramsJSON,
			CapSlot:    capSlot,
			ParamsHash: paramsHash,
		},
	})
}

func (o *SessionReduceOutput) emitBlobPut(bytes []byte, capSlot, paramsHash string) {
	o.emit(SessionEffectCommand{
		Kind: EffectBlobPut,
		BlobPut: &BlobPutCommand{
			Bytes:      bytes,
			CapSlot:    capSlot,
			ParamsHash: paramsHash,
		},
	})
}

func (o *SessionReduceOutput) emitBlobGet(blobRef, capSlot, paramsHash string) {
	o.emit(SessionEffectCommand{
		Kind: EffectBlobGet,
		BlobGet: &BlobGetCommand{
			BlobRef:    blobRef,
			CapSlot:    capSlot,
			ParamsHash: paramsHash,
		},
	})
}
