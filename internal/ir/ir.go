package ir

import "time"

const Version = "1.0"

// SourceUnit owns the text of one input file and the tree derived from it.
// It is immutable once the parser returns it.
type SourceUnit struct {
	Path string
	Text []byte
	Tree *Tree
}

// Snippet returns the source text covered by span.
func (u *SourceUnit) Snippet(span Span) string {
	if int(span.End) > len(u.Text) || span.Start > span.End {
		return ""
	}
	return string(u.Text[span.Start:span.End])
}

// NodeText returns the source text of a node.
func (u *SourceUnit) NodeText(id NodeID) string {
	n := u.Tree.Node(id)
	if n == nil {
		return ""
	}
	return u.Snippet(n.Span)
}

// Run is one analysis invocation over a set of files.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source,omitempty"`
	IRVersion string    `json:"ir_version,omitempty"`

	Context     Context      `json:"context"`
	Files       []string     `json:"files"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Failures    []Failure    `json:"failures,omitempty"`
	Faults      []Fault      `json:"faults,omitempty"`
	Waived      int          `json:"waived,omitempty"`
}

// Context records the rule configuration a run was produced with.
type Context struct {
	Enabled          []string          `json:"enabled,omitempty"`
	SeverityOverride map[string]string `json:"severity_override,omitempty"`
	MinSeverity      string            `json:"min_severity,omitempty"`
}

// Failure is a unit that could not be analyzed (unreadable or unparsable).
type Failure struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind"` // read|parse|resolve|canceled
	Message string   `json:"message"`
	Pos     Position `json:"pos,omitempty"`
}

// Fault is an internal matcher failure; the pattern produced no findings
// for that unit.
type Fault struct {
	PatternID string   `json:"pattern_id"`
	Path      string   `json:"path"`
	Pos       Position `json:"pos,omitempty"`
	Message   string   `json:"message"`
}
