package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapToolArgsHostExecDefaultsSessionFromContext(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "ctx-session"}
	out, err := mapToolArgs(ToolMapperHostExec, `{"argv":["ls","-la"]}`, ctx)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "ctx-session", decoded["session_id"])
	assert.Equal(t, []any{"ls", "-la"}, decoded["argv"])
}

func TestMapToolArgsHostExecExplicitSessionWins(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "ctx-session"}
	out, err := mapToolArgs(ToolMapperHostExec, `{"session_id":"explicit","argv":["pwd"]}`, ctx)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "explicit", decoded["session_id"])
}

func TestMapToolArgsHostExecMissingSessionErrors(t *testing.T) {
	_, err := mapToolArgs(ToolMapperHostExec, `{"argv":["ls"]}`, ToolRuntimeContext{})
	require.ErrorIs(t, err, errMissingSessionID)
}

func TestMapToolArgsHostExecRequiresNonEmptyArgv(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	_, err := mapToolArgs(ToolMapperHostExec, `{"argv":[]}`, ctx)
	assert.Error(t, err)

	_, err = mapToolArgs(ToolMapperHostExec, `{}`, ctx)
	assert.Error(t, err)
}

func TestMapToolArgsHostExecDecodesStdinRefToBytes(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	out, err := mapToolArgs(ToolMapperHostExec, `{"argv":["cat"],"stdin_ref":"sha256:aabb"}`, ctx)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	// JSON round-trips []byte as base64; just assert the field is present.
	assert.NotEmpty(t, decoded["stdin_ref"])
}

func TestMapToolArgsHostExecRejectsBadStdinRef(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	_, err := mapToolArgs(ToolMapperHostExec, `{"argv":["cat"],"stdin_ref":"not-a-ref"}`, ctx)
	assert.Error(t, err)
}

func TestMapToolArgsHostFsWriteFileInlineText(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	out, err := mapToolArgs(ToolMapperHostFsWriteFile, `{"path":"/tmp/a.txt","text":"hello"}`, ctx)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	content, ok := decoded["content"].(map[string]any)
	require.True(t, ok)
	inline, ok := content["inline_text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", inline["text"])
}

func TestMapToolArgsHostFsWriteFileRequiresTextOrBlobRef(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	_, err := mapToolArgs(ToolMapperHostFsWriteFile, `{"path":"/tmp/a.txt"}`, ctx)
	assert.Error(t, err)
}

func TestMapToolArgsHostFsEditFileRequiresOldAndNewString(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	_, err := mapToolArgs(ToolMapperHostFsEditFile, `{"path":"/tmp/a.txt","old_string":"a"}`, ctx)
	assert.Error(t, err)

	out, err := mapToolArgs(ToolMapperHostFsEditFile, `{"path":"/tmp/a.txt","old_string":"a","new_string":"b"}`, ctx)
	require.NoError(t, err)
	assert.Contains(t, out, `"old_string":"a"`)
	assert.Contains(t, out, `"new_string":"b"`)
}

func TestMapToolArgsHostFsPathOnlySharedByStatAndExists(t *testing.T) {
	ctx := ToolRuntimeContext{HostSessionID: "s1"}
	statOut, err := mapToolArgs(ToolMapperHostFsStat, `{"path":"/tmp/a"}`, ctx)
	require.NoError(t, err)
	existsOut, err := mapToolArgs(ToolMapperHostFsExists, `{"path":"/tmp/a"}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, statOut, existsOut)
}

func TestMapToolArgsHostSessionOpenHasNoSessionRequirement(t *testing.T) {
	out, err := mapToolArgs(ToolMapperHostSessionOpen, `{"target":{"kind":"local"}}`, ToolRuntimeContext{})
	require.NoError(t, err)
	assert.Contains(t, out, `"target"`)
}

func TestMapToolArgsUnknownMapperErrors(t *testing.T) {
	_, err := mapToolArgs(ToolMapper("no.such.mapper"), `{}`, ToolRuntimeContext{})
	assert.Error(t, err)
}

func TestMapToolArgsRejectsNonObjectArguments(t *testing.T) {
	_, err := mapToolArgs(ToolMapperHostFsListDir, `["not","an","object"]`, ToolRuntimeContext{HostSessionID: "s1"})
	assert.Error(t, err)
}

func TestDecodeHashHexBytesRoundTrips(t *testing.T) {
	b, err := decodeHashHexBytes("sha256:deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
}

func TestDecodeHashHexBytesRejectsMissingPrefix(t *testing.T) {
	_, err := decodeHashHexBytes("deadbeef")
	assert.Error(t, err)
}

func TestDecodeHashHexBytesRejectsOddLengthHex(t *testing.T) {
	_, err := decodeHashHexBytes("sha256:abc")
	assert.Error(t, err)
}
