package workflow

import "sort"

// recomputeEffectiveTools runs the deterministic six-step algorithm from
// spec.md §4.6 whenever the profile, overrides, registry, or host-session
// runtime context could have changed the tool set in force. It never
// mutates s.EffectiveTools in place — it replaces it wholesale and resets
// ToolRefsMaterialized so the next LLM turn re-derives and re-hashes the
// tool-definition blob.
func recomputeEffectiveTools(s *SessionState) error {
	profileID := selectToolProfileID(s)

	names, ok := s.ToolProfiles[profileID]
	if !ok {
		return &ToolProfileUnknownError{ProfileID: profileID}
	}

	if err := validateOverrideNames(s.ToolRegistry, OverrideScopeSession, s.SessionToolOverrides); err != nil {
		return err
	}
	if s.HasActiveRun {
		if err := validateOverrideNames(s.ToolRegistry, OverrideScopeRun, s.RunToolOverrides); err != nil {
			return err
		}
	}

	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		enabled[n] = true
	}
	for _, n := range s.SessionToolOverrides.Enable {
		enabled[n] = true
	}
	for _, n := range s.SessionToolOverrides.Force {
		enabled[n] = true
	}
	if s.HasActiveRun {
		for _, n := range s.RunToolOverrides.Enable {
			enabled[n] = true
		}
		for _, n := range s.RunToolOverrides.Force {
			enabled[n] = true
		}
	}

	forced := make(map[string]bool)
	for _, n := range s.SessionToolOverrides.Force {
		forced[n] = true
	}
	if s.HasActiveRun {
		for _, n := range s.RunToolOverrides.Force {
			forced[n] = true
		}
	}

	denied := make(map[string]bool)
	for _, n := range s.SessionToolOverrides.Disable {
		denied[n] = true
	}
	if s.HasActiveRun {
		for _, n := range s.RunToolOverrides.Disable {
			denied[n] = true
		}
	}

	// Ordered names from base in their declared order, followed by the
	// remaining enabled names sorted lexicographically (spec.md §4.6 step
	// 4), so the emission order of tool-definition blob.puts and tool_refs
	// is deterministic and stable across profile edits.
	inBase := make(map[string]bool, len(names))
	final := make([]string, 0, len(enabled))
	for _, n := range names {
		if inBase[n] {
			continue
		}
		inBase[n] = true
		if !enabled[n] || (denied[n] && !forced[n]) {
			continue
		}
		final = append(final, n)
	}

	var overflow []string
	for n := range enabled {
		if inBase[n] {
			continue
		}
		if denied[n] && !forced[n] {
			continue
		}
		overflow = append(overflow, n)
	}
	sort.Strings(overflow)
	final = append(final, overflow...)

	ordered := make([]ToolSpec, 0, len(final))
	for _, n := range final {
		spec, ok := s.ToolRegistry[n]
		if !ok {
			// An override or profile can legally name a tool the registry no
			// longer carries; silently drop rather than fail the run.
			continue
		}
		if !availabilitySatisfied(spec.Availability, s.ToolRuntimeContext) {
			continue
		}
		ordered = append(ordered, spec)
	}

	s.EffectiveTools = EffectiveTools{ProfileID: profileID, OrderedTools: ordered}
	s.ToolRefsMaterialized = false
	s.ToolDefinitionRefs = map[string]string{}
	return nil
}

// selectToolProfileID resolves the profile cascade: an active run's
// explicit ToolProfile wins, then the session's current selection, then the
// provider-derived default (spec.md §4.6).
func selectToolProfileID(s *SessionState) string {
	if s.HasActiveRun && s.ActiveRunConfig.ToolProfile != "" {
		return s.ActiveRunConfig.ToolProfile
	}
	if s.ToolProfile != "" {
		return s.ToolProfile
	}
	provider := ""
	if s.HasActiveRun {
		provider = s.ActiveRunConfig.Provider
	} else {
		provider = s.SessionConfig.Provider
	}
	return defaultToolProfileForProvider(provider)
}

// validateOverrideNames rejects an override list naming a tool absent from
// registry, per scope, so a stale override can never silently vanish.
func validateOverrideNames(registry ToolRegistry, scope OverrideScope, overrides ToolOverrides) error {
	check := func(names []string) error {
		for _, n := range names {
			if _, ok := registry[n]; !ok {
				return &UnknownToolOverrideError{Scope: scope, ToolName: n}
			}
		}
		return nil
	}
	if err := check(overrides.Enable); err != nil {
		return err
	}
	if err := check(overrides.Disable); err != nil {
		return err
	}
	return check(overrides.Force)
}
