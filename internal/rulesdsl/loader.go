// Package rulesdsl compiles YAML rule packs into extra pattern descriptors.
package rulesdsl

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/scope"
)

type dslPack struct {
	Rules []dslRule `yaml:"rules"`
}

type dslRule struct {
	ID       string `yaml:"id"`
	Summary  string `yaml:"summary"`
	Severity string `yaml:"severity"` // info|warning|error
	Message  string `yaml:"message"`  // placeholders: {text} {name} {callee}
	Fix      string `yaml:"fix"`

	Where struct {
		Kinds  []string `yaml:"kinds"`  // node kinds, e.g. call, attribute, handler
		Callee string   `yaml:"callee"` // regex on the dotted callee of a call
		Name   string   `yaml:"name"`   // regex on identifier/attribute/def name
		Text   string   `yaml:"text"`   // regex on the node source text
		Inside string   `yaml:"inside"` // regex on the enclosing function name
	} `yaml:"where"`
}

type compiled struct {
	rule     dslRule
	kinds    ir.KindSet
	reCallee *regexp.Regexp
	reName   *regexp.Regexp
	reText   *regexp.Regexp
	reInside *regexp.Regexp
}

// Load reads one pack and returns its descriptors.
func Load(path string) ([]rules.Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules pack: %w", err)
	}
	return Parse(path, b)
}

// Parse compiles pack source; path is recorded as the descriptor source.
func Parse(path string, b []byte) ([]rules.Descriptor, error) {
	var pack dslPack
	if err := yaml.Unmarshal(b, &pack); err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", path, err)
	}
	out := make([]rules.Descriptor, 0, len(pack.Rules))
	for _, r := range pack.Rules {
		c, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.ID, err)
		}
		sev, _ := ir.ParseSeverity(r.Severity)
		out = append(out, rules.Descriptor{
			ID:       strings.TrimSpace(r.ID),
			Summary:  r.Summary,
			Severity: sev,
			Message:  r.Message,
			Fix:      r.Fix,
			Kinds:    c.kinds,
			Matcher:  c,
			Source:   path,
		})
	}
	return out, nil
}

// Extend loads every pack and returns base plus the pack descriptors.
func Extend(base *rules.Registry, paths []string) (*rules.Registry, error) {
	var extra []rules.Descriptor
	for _, p := range paths {
		ds, err := Load(p)
		if err != nil {
			return nil, err
		}
		extra = append(extra, ds...)
	}
	if len(extra) == 0 {
		return base, nil
	}
	return base.With(extra...)
}

func compile(r dslRule) (*compiled, error) {
	if strings.TrimSpace(r.ID) == "" || r.Severity == "" || r.Message == "" {
		return nil, fmt.Errorf("missing required fields (id/severity/message)")
	}
	if _, err := ir.ParseSeverity(r.Severity); err != nil {
		return nil, err
	}
	if len(r.Where.Kinds) == 0 {
		return nil, fmt.Errorf("where.kinds is required")
	}
	c := &compiled{rule: r}
	for _, k := range r.Where.Kinds {
		kind, ok := ir.ParseKind(strings.ToLower(strings.TrimSpace(k)))
		if !ok {
			return nil, fmt.Errorf("unknown node kind %q", k)
		}
		c.kinds |= ir.Kinds(kind)
	}
	var err error
	if c.reCallee, err = compileRe("callee", r.Where.Callee); err != nil {
		return nil, err
	}
	if c.reName, err = compileRe("name", r.Where.Name); err != nil {
		return nil, err
	}
	if c.reText, err = compileRe("text", r.Where.Text); err != nil {
		return nil, err
	}
	if c.reInside, err = compileRe("inside", r.Where.Inside); err != nil {
		return nil, err
	}
	return c, nil
}

func compileRe(field, expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%s regex: %w", field, err)
	}
	return re, nil
}

// Match implements rules.Matcher. Every configured condition must hold.
func (c *compiled) Match(ctx *rules.Context, n ir.NodeID) []rules.Site {
	t := ctx.Nodes()
	node := t.Node(n)
	args := map[string]string{"text": ctx.Text(n), "name": node.Text}

	if c.reCallee != nil {
		if node.Kind != ir.KindCall {
			return nil
		}
		callee := scope.DottedName(t, t.Child(n, ir.FieldFunc))
		if !c.reCallee.MatchString(callee) {
			return nil
		}
		args["callee"] = callee
	}
	if c.reName != nil && !c.reName.MatchString(node.Text) {
		return nil
	}
	if c.reText != nil && !c.reText.MatchString(args["text"]) {
		return nil
	}
	if c.reInside != nil {
		fn := t.Enclosing(n, ir.Kinds(ir.KindFunction))
		if !fn.Valid() || !c.reInside.MatchString(t.Node(fn).Text) {
			return nil
		}
	}
	return []rules.Site{{Span: node.Span, Args: args}}
}
