package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codewithboateng/pylift/internal/ir"
)

// Settings selects and tunes patterns for one invocation.
type Settings struct {
	// Enabled lists pattern ids to run; empty means all.
	Enabled []string
	// Disabled removes ids after Enabled is applied.
	Disabled         []string
	SeverityOverride map[string]string
	// MinSeverity drops diagnostics below it ("" means info).
	MinSeverity   string
	NullableCalls []string
}

// ConfigurationError reports settings that reference unknown patterns or
// severities. It is fatal for the invocation.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %q: %s", e.Field, e.Value, e.Reason)
}

// Validate checks s against reg without building a selection.
func (s Settings) Validate(reg *Registry) error {
	_, err := s.Select(reg)
	return err
}

// Select returns the enabled descriptors with severity overrides applied,
// sorted by id.
func (s Settings) Select(reg *Registry) ([]Descriptor, error) {
	enabled := map[string]bool{}
	if len(s.Enabled) == 0 {
		for _, id := range reg.IDs() {
			enabled[id] = true
		}
	}
	for _, id := range s.Enabled {
		id = strings.TrimSpace(id)
		if _, ok := reg.Get(id); !ok {
			return nil, &ConfigurationError{Field: "enabled", Value: id, Reason: "unknown pattern id"}
		}
		enabled[id] = true
	}
	for _, id := range s.Disabled {
		id = strings.TrimSpace(id)
		if _, ok := reg.Get(id); !ok {
			return nil, &ConfigurationError{Field: "disabled", Value: id, Reason: "unknown pattern id"}
		}
		delete(enabled, id)
	}

	overrides := make(map[string]ir.Severity, len(s.SeverityOverride))
	keys := make([]string, 0, len(s.SeverityOverride))
	for id := range s.SeverityOverride {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	for _, id := range keys {
		if _, ok := reg.Get(id); !ok {
			return nil, &ConfigurationError{Field: "severity_override", Value: id, Reason: "unknown pattern id"}
		}
		sev, err := ir.ParseSeverity(s.SeverityOverride[id])
		if err != nil {
			return nil, &ConfigurationError{Field: "severity_override." + id, Value: s.SeverityOverride[id], Reason: "unknown severity"}
		}
		overrides[strings.TrimSpace(id)] = sev
	}
	if _, err := s.Threshold(); err != nil {
		return nil, err
	}

	var out []Descriptor
	for _, d := range reg.List() {
		if !enabled[d.ID] {
			continue
		}
		if sev, ok := overrides[d.ID]; ok {
			d.Severity = sev
		}
		out = append(out, d)
	}
	return out, nil
}

// Threshold parses MinSeverity.
func (s Settings) Threshold() (ir.Severity, error) {
	if strings.TrimSpace(s.MinSeverity) == "" {
		return ir.SevInfo, nil
	}
	sev, err := ir.ParseSeverity(s.MinSeverity)
	if err != nil {
		return ir.SevInfo, &ConfigurationError{Field: "min_severity", Value: s.MinSeverity, Reason: "unknown severity"}
	}
	return sev, nil
}

// Context records the settings on a run for reporting.
func (s Settings) Context(selected []Descriptor) ir.Context {
	ids := make([]string, 0, len(selected))
	for _, d := range selected {
		ids = append(ids, d.ID)
	}
	var ov map[string]string
	if len(s.SeverityOverride) > 0 {
		ov = make(map[string]string, len(s.SeverityOverride))
		for k, v := range s.SeverityOverride {
			ov[k] = strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ir.Context{Enabled: ids, SeverityOverride: ov, MinSeverity: s.MinSeverity}
}
