package workflow

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// errMissingSessionID mirrors the Rust mappers' "missing_session" argument
// error: every host tool but host.session.open needs a session_id, either
// supplied explicitly or defaulted from tool_runtime_context.
var errMissingSessionID = errors.New("missing_session")

// errUnsupportedToolMapper is the sentinel behind unsupportedMapperErr, for
// callers that only need to classify the failure, not read its detail.
var errUnsupportedToolMapper = errors.New("executor_unsupported")

// mapperFailure carries one of the canonical per-tool-call failure codes
// named in spec.md §7. mapToolArgs callers classify a returned error via
// classifyMapperError; errors.Is still works against the package's
// sentinels (errMissingSessionID, errUnsupportedToolMapper) because Is
// compares against the sentinel the constructor attached, if any.
type mapperFailure struct {
	Code     string
	Detail   string
	sentinel error
}

// Error renders the detail string, matching the plain fmt.Errorf errors
// this type replaces.
func (e *mapperFailure) Error() string { return e.Detail }

// Is allows errors.Is(err, errMissingSessionID) / errUnsupportedToolMapper
// classification for callers that predate the code/detail split.
func (e *mapperFailure) Is(target error) bool {
	return e.sentinel != nil && target == e.sentinel
}

func invalidArgsErr(detail string) error {
	return &mapperFailure{Code: "tool_invalid_args", Detail: detail}
}

func invalidArgsRefErr(detail string) error {
	return &mapperFailure{Code: "tool_invalid_args_ref", Detail: detail}
}

func notJSONErr(detail string) error {
	return &mapperFailure{Code: "tool_arguments_not_json", Detail: detail}
}

func missingSessionErr() error {
	return &mapperFailure{
		Code:     "missing_session",
		Detail:   "session_id is required and no host session is active",
		sentinel: errMissingSessionID,
	}
}

func unsupportedMapperErr(detail string) error {
	return &mapperFailure{Code: "executor_unsupported", Detail: detail, sentinel: errUnsupportedToolMapper}
}

// classifyMapperError extracts the canonical code/detail pair from an
// error mapToolArgs returned; anything not a *mapperFailure (a programmer
// error in one of the mapper functions) falls back to tool_invalid_args.
func classifyMapperError(err error) (code, detail string) {
	var mf *mapperFailure
	if errors.As(err, &mf) {
		return mf.Code, mf.Detail
	}
	return "tool_invalid_args", err.Error()
}

// mapToolArgs is the pure dispatch point for translating one LLM-emitted
// tool call's inline JSON arguments into the wire params for its adapter
// call (spec.md §9 "dynamic dispatch by tool", grounded on
// aos-agent/src/tools/supported/*.rs). Each branch returns a JSON object
// string; errors here are surfaced via classifyMapperError as one of the
// canonical per-tool-call failure codes (spec.md §7), never as a
// reducer-level error.
func mapToolArgs(mapper ToolMapper, argumentsJSON string, ctx ToolRuntimeContext) (string, error) {
	args, err := decodeArgs(argumentsJSON)
	if err != nil {
		return "", err
	}

	switch mapper {
	case ToolMapperHostSessionOpen:
		return mapHostSessionOpen(args)
	case ToolMapperHostExec:
		return mapHostExec(args, ctx)
	case ToolMapperHostSessionSignal:
		return mapHostSessionSignal(args, ctx)
	case ToolMapperHostFsReadFile:
		return mapHostFsReadFile(args, ctx)
	case ToolMapperHostFsWriteFile:
		return mapHostFsWriteFile(args, ctx)
	case ToolMapperHostFsEditFile:
		return mapHostFsEditFile(args, ctx)
	case ToolMapperHostFsApplyPatch:
		return mapHostFsApplyPatch(args, ctx)
	case ToolMapperHostFsGrep:
		return mapHostFsGrep(args, ctx)
	case ToolMapperHostFsGlob:
		return mapHostFsGlob(args, ctx)
	case ToolMapperHostFsStat:
		return mapHostFsPathOnly(args, ctx)
	case ToolMapperHostFsExists:
		return mapHostFsPathOnly(args, ctx)
	case ToolMapperHostFsListDir:
		return mapHostFsListDir(args, ctx)
	default:
		return "", unsupportedMapperErr(fmt.Sprintf("unknown tool mapper %q", mapper))
	}
}

func decodeArgs(argumentsJSON string) (map[string]any, error) {
	if strings.TrimSpace(argumentsJSON) == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(argumentsJSON), &m); err != nil {
		return nil, notJSONErr(err.Error())
	}
	return m, nil
}

func reqString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", invalidArgsErr(fmt.Sprintf("missing required field %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidArgsErr(fmt.Sprintf("field %q must be a string", key))
	}
	return s, nil
}

func optString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func optInt(args map[string]any, key string) (int64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func optBool(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// sessionIDOrContext resolves session_id from the call arguments, falling
// back to the host-session runtime context; it is an error for neither to
// supply one (aos-agent/src/tools/supported/mod.rs "missing_session").
func sessionIDOrContext(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	if id, ok := optString(args, "session_id"); ok && id != "" {
		return id, nil
	}
	if ctx.HostSessionID != "" {
		return ctx.HostSessionID, nil
	}
	return "", missingSessionErr()
}

func marshal(v map[string]any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mapHostSessionOpen(args map[string]any) (string, error) {
	out := map[string]any{}
	if v, ok := args["target"]; ok {
		out["target"] = v
	}
	if v, ok := optInt(args, "session_ttl_ns"); ok {
		out["session_ttl_ns"] = v
	}
	if v, ok := args["labels"]; ok {
		out["labels"] = v
	}
	return marshal(out)
}

func mapHostExec(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	argvRaw, ok := args["argv"].([]any)
	if !ok || len(argvRaw) == 0 {
		return "", invalidArgsErr("argv must be a non-empty array of strings")
	}
	argv := make([]string, 0, len(argvRaw))
	for _, a := range argvRaw {
		s, ok := a.(string)
		if !ok {
			return "", invalidArgsErr("argv entries must be strings")
		}
		argv = append(argv, s)
	}

	out := map[string]any{
		"session_id": sessionID,
		"argv":       argv,
	}
	if v, ok := optString(args, "cwd"); ok {
		out["cwd"] = v
	}
	if v, ok := optInt(args, "timeout_ns"); ok {
		out["timeout_ns"] = v
	}
	if v, ok := optString(args, "output_mode"); ok {
		out["output_mode"] = v
	}
	if v, ok := optString(args, "stdin_ref"); ok {
		bytes, err := decodeHashHexBytes(v)
		if err != nil {
			return "", invalidArgsRefErr(err.Error())
		}
		out["stdin_ref"] = bytes
	}
	if raw, ok := args["env_patch"].(map[string]any); ok {
		patch := make(map[string]string, len(raw))
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return "", invalidArgsErr("env_patch values must be strings")
			}
			patch[k] = s
		}
		out["env_patch"] = patch
	}
	return marshal(out)
}

func mapHostSessionSignal(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	signal, err := reqString(args, "signal")
	if err != nil {
		return "", err
	}
	out := map[string]any{"session_id": sessionID, "signal": signal}
	if v, ok := optInt(args, "grace_timeout_ns"); ok {
		out["grace_timeout_ns"] = v
	}
	return marshal(out)
}

func mapHostFsReadFile(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return "", err
	}
	out := map[string]any{"session_id": sessionID, "path": path}
	if v, ok := optInt(args, "offset_bytes"); ok {
		out["offset_bytes"] = v
	}
	if v, ok := optInt(args, "max_bytes"); ok {
		out["max_bytes"] = v
	}
	if v, ok := optString(args, "encoding"); ok {
		out["encoding"] = v
	}
	if v, ok := optString(args, "output_mode"); ok {
		out["output_mode"] = v
	}
	return marshal(out)
}

func mapHostFsWriteFile(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return "", err
	}

	out := map[string]any{"session_id": sessionID, "path": path}

	text, hasText := optString(args, "text")
	blobRef, hasBlobRef := optString(args, "blob_ref")
	switch {
	case hasText:
		out["content"] = map[string]any{"inline_text": map[string]any{"text": text}}
	case hasBlobRef:
		bytes, err := decodeHashHexBytes(blobRef)
		if err != nil {
			return "", invalidArgsRefErr(err.Error())
		}
		out["content"] = map[string]any{
			"blob_ref": map[string]any{
				"blob_ref": map[string]any{"algorithm": "sha256", "digest": bytes},
			},
		}
	default:
		return "", invalidArgsErr("write_file requires either text or blob_ref")
	}

	if v, ok := optBool(args, "create_parents"); ok {
		out["create_parents"] = v
	}
	if v, ok := optString(args, "mode"); ok {
		out["mode"] = v
	}
	return marshal(out)
}

func mapHostFsEditFile(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return "", err
	}
	oldStr, err := reqString(args, "old_string")
	if err != nil {
		return "", err
	}
	newStr, err := reqString(args, "new_string")
	if err != nil {
		return "", err
	}
	out := map[string]any{
		"session_id": sessionID,
		"path":       path,
		"old_string": oldStr,
		"new_string": newStr,
	}
	if v, ok := optBool(args, "replace_all"); ok {
		out["replace_all"] = v
	}
	return marshal(out)
}

func mapHostFsApplyPatch(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	patch, err := reqString(args, "patch")
	if err != nil {
		return "", err
	}
	out := map[string]any{"session_id": sessionID, "patch": patch}
	if v, ok := optString(args, "patch_format"); ok {
		out["patch_format"] = v
	}
	if v, ok := optBool(args, "dry_run"); ok {
		out["dry_run"] = v
	}
	return marshal(out)
}

func mapHostFsGrep(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	pattern, err := reqString(args, "pattern")
	if err != nil {
		return "", err
	}
	out := map[string]any{"session_id": sessionID, "pattern": pattern}
	if v, ok := optString(args, "path"); ok {
		out["path"] = v
	}
	if v, ok := optString(args, "glob_filter"); ok {
		out["glob_filter"] = v
	}
	if v, ok := optBool(args, "case_insensitive"); ok {
		out["case_insensitive"] = v
	}
	if v, ok := optInt(args, "max_results"); ok {
		out["max_results"] = v
	}
	if v, ok := optString(args, "output_mode"); ok {
		out["output_mode"] = v
	}
	return marshal(out)
}

func mapHostFsGlob(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	pattern, err := reqString(args, "pattern")
	if err != nil {
		return "", err
	}
	out := map[string]any{"session_id": sessionID, "pattern": pattern}
	if v, ok := optString(args, "path"); ok {
		out["path"] = v
	}
	if v, ok := optInt(args, "max_results"); ok {
		out["max_results"] = v
	}
	if v, ok := optString(args, "output_mode"); ok {
		out["output_mode"] = v
	}
	return marshal(out)
}

func mapHostFsListDir(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	out := map[string]any{"session_id": sessionID}
	if v, ok := optString(args, "path"); ok {
		out["path"] = v
	}
	if v, ok := optInt(args, "max_results"); ok {
		out["max_results"] = v
	}
	if v, ok := optString(args, "output_mode"); ok {
		out["output_mode"] = v
	}
	return marshal(out)
}

// mapHostFsPathOnly serves both host.fs.stat and host.fs.exists, whose args
// are identical: session_id plus a required path.
func mapHostFsPathOnly(args map[string]any, ctx ToolRuntimeContext) (string, error) {
	sessionID, err := sessionIDOrContext(args, ctx)
	if err != nil {
		return "", err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return "", err
	}
	return marshal(map[string]any{"session_id": sessionID, "path": path})
}

// decodeHashHexBytes decodes a "sha256:<hex>" reference string into its
// raw digest bytes (aos-agent/src/tools/supported/host_fs_write_file.rs
// decode_hash_hex_bytes), represented here as a []byte so canonical CBOR
// encoding stores it as a byte string rather than a text string.
func decodeHashHexBytes(ref string) ([]byte, error) {
	const prefix = "sha256:"
	if !strings.HasPrefix(ref, prefix) {
		return nil, fmt.Errorf("blob ref %q missing %q prefix", ref, prefix)
	}
	hexPart := strings.TrimPrefix(ref, prefix)
	return hex.DecodeString(hexPart)
}
