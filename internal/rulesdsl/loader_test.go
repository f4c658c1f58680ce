package rulesdsl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/scope"
)

const pack = `
rules:
  - id: debug_print
    summary: print() left in library code
    severity: info
    message: "debug {callee} call"
    fix: "logging.debug(...)"
    where:
      kinds: [call]
      callee: "^print$"
      inside: "^handle_"
  - id: bare_eval
    severity: error
    message: "eval of {text}"
    where:
      kinds: [call]
      callee: "^eval$"
`

func matchAll(t *testing.T, d rules.Descriptor, src string) []rules.Site {
	t.Helper()
	u, err := parser.Parse(context.Background(), "t.py", []byte(src))
	require.NoError(t, err)
	at, err := scope.Resolve(u)
	require.NoError(t, err)
	ctx := rules.NewContext(at)
	var out []rules.Site
	u.Tree.Walk(u.Tree.Root, func(n ir.NodeID) bool {
		if d.Kinds.Has(u.Tree.Kind(n)) {
			out = append(out, d.Matcher.Match(ctx, n)...)
		}
		return true
	})
	return out
}

func TestParsePack(t *testing.T) {
	ds, err := Parse("pack.yaml", []byte(pack))
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "debug_print", ds[0].ID)
	assert.Equal(t, ir.SevInfo, ds[0].Severity)
	assert.Equal(t, "pack.yaml", ds[0].Source)
	assert.True(t, ds[0].Kinds.Has(ir.KindCall))

	src := "def handle_x():\n    print('a')\ndef other():\n    print('b')\n    eval('1')\n"
	sites := matchAll(t, ds[0], src)
	require.Len(t, sites, 1)
	assert.Equal(t, 2, sites[0].Span.StartPos.Line)
	assert.Equal(t, "debug print call", rules.Render(ds[0].Message, sites[0].Args))

	sites = matchAll(t, ds[1], src)
	require.Len(t, sites, 1)
	assert.Equal(t, "eval of eval('1')", rules.Render(ds[1].Message, sites[0].Args))
}

func TestParsePackErrors(t *testing.T) {
	bad := []string{
		"rules: [ {id: x} ]",
		"rules:\n  - id: x\n    severity: loud\n    message: m\n    where: {kinds: [call]}\n",
		"rules:\n  - id: x\n    severity: info\n    message: m\n    where: {kinds: [widget]}\n",
		"rules:\n  - id: x\n    severity: info\n    message: m\n    where: {kinds: [call], callee: \"(\"}\n",
		"rules:\n  - id: x\n    severity: info\n    message: m\n",
		"rules: {",
	}
	for _, src := range bad {
		_, err := Parse("bad.yaml", []byte(src))
		assert.Error(t, err, src)
	}
}

func TestExtend(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(p, []byte(pack), 0o644))

	reg, err := Extend(rules.Builtin(), []string{p})
	require.NoError(t, err)
	assert.Equal(t, rules.Builtin().Len()+2, reg.Len())
	_, ok := reg.Get("bare_eval")
	assert.True(t, ok)

	same, err := Extend(rules.Builtin(), nil)
	require.NoError(t, err)
	assert.Same(t, rules.Builtin(), same)

	clash := filepath.Join(dir, "clash.yaml")
	require.NoError(t, os.WriteFile(clash, []byte("rules:\n  - id: empty_catch\n    severity: info\n    message: m\n    where: {kinds: [handler]}\n"), 0o644))
	_, err = Extend(rules.Builtin(), []string{clash})
	assert.Error(t, err)

	_, err = Extend(rules.Builtin(), []string{filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}
