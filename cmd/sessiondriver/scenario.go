package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// scenario is the YAML shape cmd/sessiondriver loads: a session's starting
// configuration, an ordered list of host-originated steps to feed through
// workflow.Apply, and the canned LLM responses handed back in order every
// time an llm.generate effect is executed against the in-memory fakes.
type scenario struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	ToolProfile   string `yaml:"tool_profile"`
	HostSessionID string `yaml:"host_session_id"`

	Steps     []scenarioStep     `yaml:"steps"`
	Responses []scenarioResponse `yaml:"responses"`
}

// scenarioStep is one host-originated ingress to apply. Exactly one of the
// typed fields is populated, selected by Type.
type scenarioStep struct {
	Type string `yaml:"type"`

	// type: run_requested
	Input string `yaml:"input"`

	// type: host_command
	Command string `yaml:"command"`
	Text    string `yaml:"text"`
}

// scenarioResponse is one canned answer the fake LLM hands back the next
// time the driver executes an llm.generate effect.
type scenarioResponse struct {
	Type string `yaml:"type"` // "message" or "tool_calls"

	Text  string             `yaml:"text"`
	Calls []scenarioToolCall `yaml:"calls"`
}

type scenarioToolCall struct {
	Tool string `yaml:"tool"`
	Args string `yaml:"args"`
}

func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Provider == "" {
		return nil, fmt.Errorf("scenario: provider is required")
	}
	if s.Model == "" {
		return nil, fmt.Errorf("scenario: model is required")
	}
	return &s, nil
}
