package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectRunConfigNoOverrideReturnsSessionDefaults(t *testing.T) {
	base := SessionConfig{
		Provider:           "openai",
		Model:              "gpt-test",
		ReasoningEffort:    ReasoningEffortMedium,
		MaxTokens:          1000,
		DefaultToolProfile: "openai",
		DefaultRefs:        []string{"sys-prompt"},
	}
	rc := selectRunConfig(base, nil)
	assert.Equal(t, "openai", rc.Provider)
	assert.Equal(t, "gpt-test", rc.Model)
	assert.Equal(t, ReasoningEffortMedium, rc.ReasoningEffort)
	assert.Equal(t, 1000, rc.MaxTokens)
	assert.Equal(t, "openai", rc.ToolProfile)
	assert.Equal(t, []string{"sys-prompt"}, rc.PromptRefs)
}

func TestSelectRunConfigOverrideWinsFieldByField(t *testing.T) {
	base := SessionConfig{Provider: "openai", Model: "gpt-test", MaxTokens: 1000}
	override := &RunConfig{Model: "gpt-override"}

	rc := selectRunConfig(base, override)
	assert.Equal(t, "openai", rc.Provider, "unset override field falls back to session default")
	assert.Equal(t, "gpt-override", rc.Model, "set override field wins")
	assert.Equal(t, 1000, rc.MaxTokens)
}

func TestSelectRunConfigOverrideToolOverridesOnlyAppliedWhenNonEmpty(t *testing.T) {
	base := SessionConfig{DefaultOverrides: ToolOverrides{Enable: []string{"host.exec"}}}

	rcEmpty := selectRunConfig(base, &RunConfig{})
	assert.Equal(t, []string{"host.exec"}, rcEmpty.Overrides.Enable)

	rcOverridden := selectRunConfig(base, &RunConfig{Overrides: ToolOverrides{Disable: []string{"host.exec"}}})
	assert.Equal(t, []string{"host.exec"}, rcOverridden.Overrides.Disable)
	assert.Empty(t, rcOverridden.Overrides.Enable)
}

func TestSelectRunConfigCopiesOptionalRuntimeControlsVerbatim(t *testing.T) {
	temp := 0.4
	override := &RunConfig{
		Provider:    "openai",
		Model:       "gpt-test",
		Temperature: &temp,
		ToolChoice:  "auto",
	}
	rc := selectRunConfig(SessionConfig{}, override)
	assert.Same(t, override.Temperature, rc.Temperature)
	assert.Equal(t, "auto", rc.ToolChoice)
}
