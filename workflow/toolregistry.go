package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolRegistry maps a tool name to its ToolSpec.
type ToolRegistry map[string]ToolSpec

// ToolProfiles maps a profile id to its ordered list of tool names.
type ToolProfiles map[string][]string

func hostToolRef(toolName string) string {
	sum := sha256.Sum256([]byte(toolName))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func hostTool(name, description, argsSchemaJSON string, mapper ToolMapper, requiresHostSession bool, hint ToolParallelismHint) ToolSpec {
	avail := []ToolAvailabilityRule{AvailabilityAlways}
	if requiresHostSession {
		avail = []ToolAvailabilityRule{AvailabilityHostSessionReady}
	}
	return ToolSpec{
		ToolName:       name,
		ToolRef:        hostToolRef(name),
		Description:    description,
		ArgsSchemaJSON: argsSchemaJSON,
		Mapper:         mapper,
		Executor: ToolExecutor{
			Kind:       ToolExecutorEffect,
			EffectKind: name,
			CapSlot:    "host",
		},
		Availability:    avail,
		ParallelismHint: hint,
	}
}

// NewDefaultToolRegistry builds the twelve built-in host tools (session
// open, exec, signal, and nine file operations) per spec.md §4.5. It
// panics if any tool's ArgsSchemaJSON fails to compile as a JSON Schema —
// a programmer error that must never reach event processing (SPEC_FULL.md
// §4.11). This is the only place workflow touches a validating parser;
// Apply itself never re-validates schemas per call.
func NewDefaultToolRegistry() ToolRegistry {
	shared := func(resourceKey string) ToolParallelismHint {
		return ToolParallelismHint{ParallelSafe: false, ResourceKey: resourceKey}
	}
	writeHint := ToolParallelismHint{ParallelSafe: true, ResourceKey: "host.fs.write"}
	readHint := ToolParallelismHint{ParallelSafe: true}

	tools := []ToolSpec{
		hostTool("host.session.open", "Open a host session and return session_id.",
			`{"type":"object","properties":{"target":{"type":"object"},"session_ttl_ns":{"type":"integer"},"labels":{"type":"object"}}}`,
			ToolMapperHostSessionOpen, false, shared("host.session")),
		hostTool("host.exec", "Execute a command in a host session.",
			`{"type":"object","required":["argv"],"properties":{"session_id":{"type":"string"},"argv":{"type":"array","items":{"type":"string"}},"cwd":{"type":"string"},"timeout_ns":{"type":"integer"},"env_patch":{"type":"object"},"stdin_ref":{"type":"string"},"output_mode":{"type":"string"}}}`,
			ToolMapperHostExec, true, shared("host.exec")),
		hostTool("host.session.signal", "Send a signal to a host session.",
			`{"type":"object","required":["signal"],"properties":{"session_id":{"type":"string"},"signal":{"type":"string"},"grace_timeout_ns":{"type":"integer"}}}`,
			ToolMapperHostSessionSignal, true, shared("host.session")),
		hostTool("host.fs.read_file", "Read a file from the host filesystem.",
			`{"type":"object","required":["path"],"properties":{"session_id":{"type":"string"},"path":{"type":"string"},"offset_bytes":{"type":"integer"},"max_bytes":{"type":"integer"},"encoding":{"type":"string"},"output_mode":{"type":"string"}}}`,
			ToolMapperHostFsReadFile, true, readHint),
		hostTool("host.fs.write_file", "Write file contents on the host filesystem.",
			`{"type":"object","required":["path"],"properties":{"session_id":{"type":"string"},"path":{"type":"string"},"text":{"type":"string"},"blob_ref":{"type":"string"},"create_parents":{"type":"boolean"},"mode":{"type":"string"}}}`,
			ToolMapperHostFsWriteFile, true, writeHint),
		hostTool("host.fs.edit_file", "Replace text in a file.",
			`{"type":"object","required":["path","old_string","new_string"],"properties":{"session_id":{"type":"string"},"path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"},"replace_all":{"type":"boolean"}}}`,
			ToolMapperHostFsEditFile, true, writeHint),
		hostTool("host.fs.apply_patch", "Apply a unified patch to files.",
			`{"type":"object","required":["patch"],"properties":{"session_id":{"type":"string"},"patch":{"type":"string"},"patch_format":{"type":"string"},"dry_run":{"type":"boolean"}}}`,
			ToolMapperHostFsApplyPatch, true, writeHint),
		hostTool("host.fs.grep", "Search file contents by regex/text.",
			`{"type":"object","required":["pattern"],"properties":{"session_id":{"type":"string"},"pattern":{"type":"string"},"path":{"type":"string"},"glob_filter":{"type":"string"},"case_insensitive":{"type":"boolean"},"max_results":{"type":"integer"},"output_mode":{"type":"string"}}}`,
			ToolMapperHostFsGrep, true, readHint),
		hostTool("host.fs.glob", "List files matching a glob pattern.",
			`{"type":"object","required":["pattern"],"properties":{"session_id":{"type":"string"},"pattern":{"type":"string"},"path":{"type":"string"},"max_results":{"type":"integer"},"output_mode":{"type":"string"}}}`,
			ToolMapperHostFsGlob, true, readHint),
		hostTool("host.fs.stat", "Read metadata for a filesystem path.",
			`{"type":"object","required":["path"],"properties":{"session_id":{"type":"string"},"path":{"type":"string"}}}`,
			ToolMapperHostFsStat, true, readHint),
		hostTool("host.fs.exists", "Check whether a path exists.",
			`{"type":"object","required":["path"],"properties":{"session_id":{"type":"string"},"path":{"type":"string"}}}`,
			ToolMapperHostFsExists, true, readHint),
		hostTool("host.fs.list_dir", "List directory entries.",
			`{"type":"object","properties":{"session_id":{"type":"string"},"path":{"type":"string"},"max_results":{"type":"integer"},"output_mode":{"type":"string"}}}`,
			ToolMapperHostFsListDir, true, readHint),
	}

	registry := make(ToolRegistry, len(tools))
	for _, t := range tools {
		validateToolSchema(t)
		registry[t.ToolName] = t
	}
	return registry
}

// validateToolSchema compiles ArgsSchemaJSON as a Draft 2020-12 JSON
// Schema and panics on failure (SPEC_FULL.md §4.11).
func validateToolSchema(t ToolSpec) {
	var doc any
	if err := json.Unmarshal([]byte(t.ArgsSchemaJSON), &doc); err != nil {
		panic("workflow: tool " + t.ToolName + " has invalid args_schema_json: " + err.Error())
	}
	resourceName := "mem://" + t.ToolName + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, doc); err != nil {
		panic("workflow: tool " + t.ToolName + " schema could not be added: " + err.Error())
	}
	if _, err := c.Compile(resourceName); err != nil {
		panic("workflow: tool " + t.ToolName + " schema does not compile: " + err.Error())
	}
}

// NewDefaultToolProfiles builds the "openai"/"default"/"anthropic"/"gemini"
// profiles per spec.md §4.5.
func NewDefaultToolProfiles() ToolProfiles {
	common := []string{
		"host.session.open",
		"host.exec",
		"host.fs.read_file",
		"host.fs.write_file",
		"host.fs.grep",
		"host.fs.glob",
		"host.fs.stat",
		"host.fs.exists",
		"host.fs.list_dir",
	}

	openai := append(append([]string(nil), common...), "host.fs.apply_patch")
	anthropic := append(append([]string(nil), common...), "host.fs.edit_file")

	return ToolProfiles{
		"openai":    openai,
		"default":   append([]string(nil), openai...),
		"anthropic": anthropic,
		"gemini":    append([]string(nil), anthropic...),
	}
}

// defaultToolProfileForProvider normalizes provider to lowercase and
// selects "anthropic" for any provider name containing "anthropic",
// "gemini" for any containing "gemini", else "openai" (spec.md §4.5).
func defaultToolProfileForProvider(provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	switch {
	case strings.Contains(normalized, "anthropic"):
		return "anthropic"
	case strings.Contains(normalized, "gemini"):
		return "gemini"
	default:
		return "openai"
	}
}
