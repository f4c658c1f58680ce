package rules

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/scope"
	"github.com/codewithboateng/pylift/internal/storage"
)

type hit struct {
	Line, Col int
	Text      string
	Message   string
	Fix       string
}

// run applies one builtin pattern to every node in src.
func run(t *testing.T, id, src string) []hit {
	t.Helper()
	u, err := parser.Parse(context.Background(), "t.py", []byte(src))
	require.NoError(t, err)
	at, err := scope.Resolve(u)
	require.NoError(t, err)
	d, ok := Builtin().Get(id)
	require.True(t, ok, id)

	ctx := NewContext(at)
	var sites []Site
	u.Tree.Walk(u.Tree.Root, func(n ir.NodeID) bool {
		if d.Kinds.Has(u.Tree.Kind(n)) {
			sites = append(sites, d.Matcher.Match(ctx, n)...)
		}
		return true
	})
	sites = DedupSites(sites)
	out := make([]hit, 0, len(sites))
	for _, s := range sites {
		fix := s.Fix
		if fix == "" {
			fix = Render(d.Fix, s.Args)
		}
		out = append(out, hit{
			Line:    s.Span.StartPos.Line,
			Col:     s.Span.StartPos.Column,
			Text:    u.Snippet(s.Span),
			Message: Render(d.Message, s.Args),
			Fix:     fix,
		})
	}
	return out
}

func TestBuiltinRegistry(t *testing.T) {
	reg := Builtin()
	assert.Same(t, reg, Builtin())
	assert.Equal(t, []string{"empty_catch", "nullable_access", "off_by_one_loop", "variable_shadowing"}, reg.IDs())
	assert.True(t, sort.StringsAreSorted(reg.IDs()))
	for _, d := range reg.List() {
		assert.NotEmpty(t, d.Message, d.ID)
		assert.NotZero(t, d.Kinds, d.ID)
		assert.Equal(t, "builtin", d.Source)
	}
	sev := func(id string) ir.Severity { d, _ := reg.Get(id); return d.Severity }
	assert.Equal(t, ir.SevError, sev("off_by_one_loop"))
	assert.Equal(t, ir.SevError, sev("nullable_access"))
	assert.Equal(t, ir.SevWarning, sev("variable_shadowing"))
	assert.Equal(t, ir.SevWarning, sev("empty_catch"))
}

func TestNewRegistryRejects(t *testing.T) {
	m := MatcherFunc(func(*Context, ir.NodeID) []Site { return nil })
	_, err := NewRegistry(Descriptor{ID: "", Matcher: m})
	assert.Error(t, err)
	_, err = NewRegistry(Descriptor{ID: "a", Matcher: m}, Descriptor{ID: "a", Matcher: m})
	assert.Error(t, err)
	_, err = NewRegistry(Descriptor{ID: "a"})
	assert.Error(t, err)

	reg, err := Builtin().With(Descriptor{ID: "custom", Matcher: m})
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Len())
	assert.Equal(t, 4, Builtin().Len())
}

func TestOffByOneLoop(t *testing.T) {
	hits := run(t, "off_by_one_loop", `def print_items(items):
    for i in range(len(items) + 1):
        print(items[i])
`)
	require.Len(t, hits, 1)
	assert.Equal(t, "range(len(items) + 1)", hits[0].Text)
	assert.Equal(t, 2, hits[0].Line)
	assert.Equal(t, 14, hits[0].Col)
	assert.Equal(t, "range(len(items))", hits[0].Fix)
	assert.Contains(t, hits[0].Message, "1 element past the end of items")
}

func TestOffByOneLoopVariants(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want int
	}{
		{"fixed", "def f(items):\n    for i in range(len(items)):\n        print(items[i])\n", 0},
		{"direct iteration", "def f(items):\n    for item in items:\n        print(item)\n", 0},
		{"start and bound", "def f(xs):\n    for i in range(0, len(xs) + 1):\n        xs[i] = 0\n", 1},
		{"constant first", "def f(xs):\n    for i in range(2 + len(xs)):\n        print(xs[i])\n", 1},
		{"nested sum", "def f(xs):\n    for i in range((len(xs) + 1) - 1):\n        print(xs[i])\n", 0},
		{"other collection", "def f(xs, ys):\n    for i in range(len(xs) + 1):\n        print(ys[i])\n", 0},
		{"subscript in nested lambda", "def f(xs):\n    for i in range(len(xs) + 1):\n        g = lambda: xs[i]\n", 0},
		{"no subscript", "def f(xs):\n    for i in range(len(xs) + 1):\n        print(i)\n", 0},
		{"step two", "def f(xs):\n    for i in range(0, len(xs) + 1, 2):\n        print(xs[i])\n", 0},
		{"comprehension", "def f(xs):\n    return [xs[i] for i in range(len(xs) + 1)]\n", 1},
		{"while le", "def f(xs):\n    i = 0\n    while i <= len(xs):\n        print(xs[i])\n        i += 1\n", 1},
		{"while lt", "def f(xs):\n    i = 0\n    while i < len(xs):\n        print(xs[i])\n        i += 1\n", 0},
		{"shadowed range", "def range(n):\n    return []\ndef f(xs):\n    for i in range(len(xs) + 1):\n        print(xs[i])\n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, run(t, "off_by_one_loop", tc.src), tc.want)
		})
	}
}

func TestNullableAccess(t *testing.T) {
	hits := run(t, "nullable_access", `def process_data(data):
    value = None
    result = value.strip()
    return result
`)
	require.Len(t, hits, 1)
	assert.Equal(t, "value.strip()", hits[0].Text)
	assert.Equal(t, 3, hits[0].Line)
	assert.Equal(t, 14, hits[0].Col)
	assert.Equal(t, "if value is not None:", hits[0].Fix)
	assert.Contains(t, hits[0].Message, "value is None here")
}

func TestNullableAccessGuards(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want int
	}{
		{"guarded get", "def f(data: dict):\n    value = data.get('value')\n    if value is not None:\n        return value.strip()\n    return ''\n", 0},
		{"unguarded get", "def f(data: dict):\n    value = data.get('value')\n    return value.strip()\n", 1},
		{"truthiness", "def f(d: dict):\n    v = d.get('k')\n    if v:\n        v.strip()\n", 0},
		{"else branch", "def f(d: dict):\n    v = d.get('k')\n    if v is None:\n        pass\n    else:\n        v.strip()\n", 0},
		{"wrong branch", "def f(d: dict):\n    v = d.get('k')\n    if v is None:\n        v.strip()\n", 1},
		{"early return", "def f(d: dict):\n    v = d.get('k')\n    if v is None:\n        return\n    v.strip()\n", 0},
		{"not early return", "def f(d: dict):\n    v = d.get('k')\n    if not v:\n        raise ValueError()\n    v.strip()\n", 0},
		{"assert", "def f(d: dict):\n    v = d.get('k')\n    assert v is not None\n    v.strip()\n", 0},
		{"and operand", "def f(d: dict):\n    v = d.get('k')\n    return v and v.strip()\n", 0},
		{"or operand", "def f(d: dict):\n    v = d.get('k')\n    return v is None or v.strip()\n", 0},
		{"isinstance", "def f(d: dict):\n    v = d.get('k')\n    if isinstance(v, str):\n        v.strip()\n", 0},
		{"reassigned", "def f():\n    v = None\n    v = 'x'\n    v.strip()\n", 0},
		{"walrus", "import re\ndef f(s):\n    if (m := re.match('a', s)) is not None:\n        return m.group(0)\n", 0},
		{"attribute not called", "def f():\n    v = None\n    return v.name\n", 1},
		{"param unknown", "def f(v=None):\n    return v.strip()\n", 0},
		{"http module get", "import requests\ndef f(url):\n    resp = requests.get(url)\n    resp.raise_for_status()\n    return resp.json()\n", 0},
		{"client method get", "def f(client):\n    r = client.get('/x')\n    return r.status_code\n", 0},
		{"untyped receiver", "def f(d):\n    v = d.get('k')\n    return v.strip()\n", 0},
		{"local dict", "def f():\n    d = {'a': 'x'}\n    v = d.get('b')\n    return v.strip()\n", 1},
		{"none default", "def f(d):\n    v = d.get('k', None)\n    return v.strip()\n", 1},
		{"environ", "import os\ndef f():\n    home = os.environ.get('HOME')\n    return home.rstrip('/')\n", 1},
		{"both branches none", "def f(c):\n    v = None if c else None\n    return v.strip()\n", 1},
		{"closure", "def f():\n    v = None\n    def g():\n        return v.strip()\n    return g\n", 0},
		{"walrus receiver", "def f():\n    return (a := None).b\n", 1},
		{"walrus receiver maybe", "import re\ndef f(s):\n    return (m := re.match('a', s)).group(0)\n", 1},
		{"walrus receiver value", "def f():\n    return (a := 'x').strip()\n", 0},
		{"global rebound", "g = 1\ndef f():\n    global g\n    g = None\n    return g.x\n", 1},
		{"global read only", "g = None\ndef f():\n    global g\n    return g.x\n", 0},
		{"global rebound guarded", "g = 1\ndef f():\n    global g\n    g = None\n    if g is not None:\n        return g.x\n", 0},
		{"nonlocal rebound", "def f():\n    v = 'x'\n    def g():\n        nonlocal v\n        v = None\n        return v.strip()\n    return g\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, run(t, "nullable_access", tc.src), tc.want)
		})
	}
}

func TestNullableAccessState(t *testing.T) {
	hits := run(t, "nullable_access", "def f(c):\n    v = None if c else None\n    return v.strip()\n")
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Message, "v is None here")

	hits = run(t, "nullable_access", "def f(c, d: dict):\n    v = d.get('k') if c else None\n    return v.strip()\n")
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Message, "v is possibly None here")

	hits = run(t, "nullable_access", "def f():\n    return (a := None).b\n")
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].Line)
	assert.Contains(t, hits[0].Message, "a is None here; accessing .b")
}

func TestVariableShadowing(t *testing.T) {
	hits := run(t, "variable_shadowing", `result = []

def process_items(items):
    result = []
    for item in items:
        result.append(item.upper())
    return result
`)
	require.Len(t, hits, 1)
	assert.Equal(t, "result = []", hits[0].Text)
	assert.Equal(t, 4, hits[0].Line)
	assert.Equal(t, 5, hits[0].Col)
	assert.Equal(t, "global result", hits[0].Fix)
	assert.Contains(t, hits[0].Message, "module-level result bound at line 1")
}

func TestVariableShadowingFloor(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want int
	}{
		{"outer defined later", "def f():\n    result = 1\n    return result\nresult = []\n", 0},
		{"not escaping", "total = 0\ndef f(xs):\n    total = sum(xs)\n    print(total)\n", 0},
		{"global marker", "total = 0\ndef f(xs):\n    global total\n    total = sum(xs)\n    return total\n", 0},
		{"loop variable", "item = None\ndef f(xs):\n    for item in xs:\n        pass\n    return item\n", 0},
		{"parameter", "xs = []\ndef f(xs):\n    xs = list(xs)\n    return xs\n", 0},
		{"underscore", "_cache = {}\ndef f():\n    _cache = {}\n    return _cache\n", 0},
		{"class attribute", "class C:\n    size = 1\n    def m(self):\n        size = 2\n        return size\n", 0},
		{"yield escapes", "rows = []\ndef f():\n    rows = []\n    yield rows\n", 1},
		{"tuple return", "n = 0\ndef f():\n    n = 1\n    return n, 2\n", 1},
		{"enclosing unread", "def outer():\n    acc = []\n    def inner():\n        acc = [1]\n        return acc\n    return inner\n", 0},
		{"enclosing read", "def outer():\n    acc = []\n    def inner():\n        acc = [1]\n        return acc\n    inner()\n    return acc\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, run(t, "variable_shadowing", tc.src), tc.want)
		})
	}
}

func TestEmptyCatch(t *testing.T) {
	hits := run(t, "empty_catch", `def risky_operation():
    try:
        do_something_dangerous()
    except Exception:
        pass
`)
	require.Len(t, hits, 1)
	assert.Equal(t, "pass", hits[0].Text)
	assert.Equal(t, 5, hits[0].Line)
	assert.Equal(t, 9, hits[0].Col)
	assert.Contains(t, hits[0].Message, "handler for Exception")
}

func TestEmptyCatchVariants(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want int
	}{
		{"log and raise", "try:\n    go()\nexcept Exception as e:\n    logging.error(f\"failed: {e}\")\n    raise\n", 0},
		{"bare except ellipsis", "try:\n    go()\nexcept:\n    ...\n", 1},
		{"docstring only", "try:\n    go()\nexcept KeyError:\n    \"ignored\"\n", 1},
		{"pass then string", "try:\n    go()\nexcept KeyError:\n    pass\n    'why'\n", 1},
		{"assignment", "try:\n    go()\nexcept KeyError:\n    x = None\n", 0},
		{"continue", "for a in b:\n    try:\n        go()\n    except KeyError:\n        continue\n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, run(t, "empty_catch", tc.src), tc.want)
		})
	}
}

func TestSettingsSelect(t *testing.T) {
	reg := Builtin()
	sel, err := Settings{}.Select(reg)
	require.NoError(t, err)
	assert.Len(t, sel, 4)

	sel, err = Settings{
		Enabled:          []string{"empty_catch", "variable_shadowing"},
		SeverityOverride: map[string]string{"variable_shadowing": "error"},
	}.Select(reg)
	require.NoError(t, err)
	require.Len(t, sel, 2)
	assert.Equal(t, "empty_catch", sel[0].ID)
	assert.Equal(t, ir.SevError, sel[1].Severity)
	d, _ := reg.Get("variable_shadowing")
	assert.Equal(t, ir.SevWarning, d.Severity, "registry must not change")

	sel, err = Settings{Disabled: []string{"empty_catch"}}.Select(reg)
	require.NoError(t, err)
	assert.Len(t, sel, 3)
}

func TestSettingsConfigurationErrors(t *testing.T) {
	reg := Builtin()
	for _, s := range []Settings{
		{Enabled: []string{"no_such_rule"}},
		{Disabled: []string{"nope"}},
		{SeverityOverride: map[string]string{"ghost": "error"}},
		{SeverityOverride: map[string]string{"empty_catch": "fatal"}},
		{MinSeverity: "loud"},
	} {
		err := s.Validate(reg)
		var ce *ConfigurationError
		require.ErrorAs(t, err, &ce, "%+v", s)
		assert.NotEmpty(t, ce.Error())
	}
}

func TestApplyWaivers(t *testing.T) {
	in := []ir.Diagnostic{
		{Path: "src/app/main.py", PatternID: "empty_catch", Message: "handler for Exception swallows"},
		{Path: "src/app/util.py", PatternID: "empty_catch", Message: "handler for KeyError swallows"},
		{Path: "tests/test_x.py", PatternID: "nullable_access", Message: "v is None here"},
	}
	ws := []storage.Waiver{
		{PatternID: "EMPTY_CATCH", MessageSub: "keyerror", ExpiresAt: time.Now().Add(time.Hour)},
		{PatternID: "nullable_access", PathGlob: "tests/*.py"},
	}
	kept, waived := ApplyWaivers(in, ws)
	assert.Equal(t, 2, waived)
	require.Len(t, kept, 1)
	assert.Equal(t, "src/app/main.py", kept[0].Path)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "a x b y", Render("a {p} b {q}", map[string]string{"p": "x", "q": "y"}))
	assert.Equal(t, "keep {z}", Render("keep {z}", map[string]string{"p": "x"}))
	assert.Equal(t, "plain", Render("plain", nil))
}

func TestDedupSites(t *testing.T) {
	sp := ir.Span{Start: 1, End: 4}
	got := DedupSites([]Site{{Span: sp}, {Span: sp}, {Span: ir.Span{Start: 1, End: 5}}})
	assert.Len(t, got, 2)
}
