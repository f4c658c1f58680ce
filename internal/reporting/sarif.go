package reporting

import (
	"encoding/json"
	"io"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/rules"
)

// Minimal SARIF 2.1.0 subset: one run, rule metadata, results with regions.
type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
	DefaultLevel     sarifConfig  `json:"defaultConfiguration"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	Physical struct {
		Artifact struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region struct {
			StartLine   int `json:"startLine"`
			StartColumn int `json:"startColumn"`
			EndLine     int `json:"endLine"`
			EndColumn   int `json:"endColumn"`
		} `json:"region"`
	} `json:"physicalLocation"`
}

func sarifLevel(s ir.Severity) string {
	switch s {
	case ir.SevError:
		return "error"
	case ir.SevWarning:
		return "warning"
	}
	return "note"
}

// WriteSARIF writes diagnostics as a SARIF log for code-scanning uploads.
func WriteSARIF(w io.Writer, toolVersion string, descs []rules.Descriptor, ds []ir.Diagnostic) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "pylift", Version: toolVersion, Rules: []sarifRule{}}},
		Results: []sarifResult{},
	}
	for _, d := range descs {
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
			ID:               d.ID,
			ShortDescription: sarifMessage{Text: d.Summary},
			DefaultLevel:     sarifConfig{Level: sarifLevel(d.Severity)},
		})
	}
	for _, d := range ds {
		var loc sarifLocation
		loc.Physical.Artifact.URI = d.Path
		loc.Physical.Region.StartLine = d.Span.StartPos.Line
		loc.Physical.Region.StartColumn = d.Span.StartPos.Column
		loc.Physical.Region.EndLine = d.Span.EndPos.Line
		loc.Physical.Region.EndColumn = d.Span.EndPos.Column
		run.Results = append(run.Results, sarifResult{
			RuleID:    d.PatternID,
			Level:     sarifLevel(d.Severity),
			Message:   sarifMessage{Text: d.Message},
			Locations: []sarifLocation{loc},
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sarifLog{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs:    []sarifRun{run},
	})
}
