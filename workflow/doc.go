// Package workflow implements the agent session workflow core: a
// deterministic reducer that drives a long-running LLM-assisted
// conversation session.
//
// Apply is the single entry point. Given a SessionState and one
// SessionWorkflowEvent, it mutates the state in place and returns the list
// of outbound SessionEffectCommand values an external driver must execute
// and eventually feed back as receipts. The package performs no I/O, reads
// no wall clock, and makes no random choices: replaying the same event
// sequence against a fresh SessionState always produces byte-identical
// state and effect commands.
//
// Everything outside this package — the effect adapters that actually
// perform HTTP/LLM/filesystem/process calls, the content-addressed blob
// store, schema/catalog machinery, CLI commands, provider SDK adapters,
// and the kernel plan engine — is an external collaborator addressed only
// through SessionWorkflowEvent and SessionEffectCommand.
package workflow
