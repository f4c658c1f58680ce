package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pylift/internal/ir"
)

func parse(t *testing.T, src string) *ir.SourceUnit {
	t.Helper()
	u, err := Parse(context.Background(), "t.py", []byte(src))
	require.NoError(t, err)
	return u
}

func find(u *ir.SourceUnit, kind ir.Kind) []ir.NodeID {
	var out []ir.NodeID
	u.Tree.Walk(u.Tree.Root, func(id ir.NodeID) bool {
		if u.Tree.Kind(id) == kind {
			out = append(out, id)
		}
		return true
	})
	return out
}

func TestParseParamAnnotations(t *testing.T) {
	u := parse(t, "def f(d: dict[str, int], n: int = 0, *rest, key=None):\n    pass\n")
	tr := u.Tree
	fns := find(u, ir.KindFunction)
	require.Len(t, fns, 1)
	params := tr.ChildrenOf(fns[0], ir.FieldParam)
	require.Len(t, params, 4)

	ann := tr.Child(params[0], ir.FieldAnnotation)
	require.True(t, ann.Valid())
	assert.Equal(t, "dict[str, int]", tr.Node(ann).Text)
	assert.Equal(t, "int", tr.Node(tr.Child(params[1], ir.FieldAnnotation)).Text)
	assert.Equal(t, ir.KindIntLit, tr.Kind(tr.Child(params[1], ir.FieldValue)))
	assert.False(t, tr.Child(params[2], ir.FieldAnnotation).Valid())
	assert.False(t, tr.Child(params[3], ir.FieldAnnotation).Valid())
}

func TestParseForLoopShape(t *testing.T) {
	u := parse(t, "def f(items):\n    for i in range(len(items) + 1):\n        print(items[i])\n")
	tr := u.Tree

	require.Equal(t, ir.KindModule, tr.Kind(tr.Root))
	fns := find(u, ir.KindFunction)
	require.Len(t, fns, 1)
	assert.Equal(t, "f", tr.Node(fns[0]).Text)
	params := tr.ChildrenOf(fns[0], ir.FieldParam)
	require.Len(t, params, 1)
	assert.Equal(t, "items", tr.Node(params[0]).Text)

	loops := find(u, ir.KindFor)
	require.Len(t, loops, 1)
	target := tr.Child(loops[0], ir.FieldTarget)
	assert.Equal(t, ir.KindName, tr.Kind(target))
	assert.Equal(t, "i", tr.Node(target).Text)

	bound := tr.Child(loops[0], ir.FieldBound)
	require.Equal(t, ir.KindCall, tr.Kind(bound))
	assert.Equal(t, "range(len(items) + 1)", u.NodeText(bound))
	assert.Equal(t, ir.Position{Line: 2, Column: 14}, tr.Node(bound).Span.StartPos)

	arg := tr.Child(bound, ir.FieldArg)
	require.Equal(t, ir.KindBinaryOp, tr.Kind(arg))
	assert.Equal(t, "+", tr.Node(arg).Text)

	subs := find(u, ir.KindSubscript)
	require.Len(t, subs, 1)
	assert.Equal(t, "items", tr.Node(tr.Child(subs[0], ir.FieldReceiver)).Text)
	assert.Equal(t, "i", tr.Node(tr.Child(subs[0], ir.FieldIndex)).Text)
}

func TestParseParentsPrecedeChildren(t *testing.T) {
	u := parse(t, "x = [a.b for a in y if a]\nclass C(B):\n    def m(self, k=1, *a, **kw): return k\n")
	tr := u.Tree
	for id := ir.NodeID(1); int(id) <= tr.Len(); id++ {
		p := tr.Parent(id)
		if id == tr.Root {
			assert.False(t, p.Valid())
			continue
		}
		require.True(t, p.Valid(), "node %d has no parent", id)
		assert.True(t, p < id)
		assert.Contains(t, tr.Children(p), id)
	}
}

func TestParseHandler(t *testing.T) {
	u := parse(t, "try:\n    go()\nexcept ValueError as e:\n    pass\nfinally:\n    done()\n")
	tr := u.Tree
	hs := find(u, ir.KindHandler)
	require.Len(t, hs, 1)
	assert.Equal(t, "ValueError", tr.Node(tr.Child(hs[0], ir.FieldValue)).Text)
	assert.Equal(t, "e", tr.Node(tr.Child(hs[0], ir.FieldAlias)).Text)
	body := tr.Child(hs[0], ir.FieldBody)
	require.Equal(t, ir.KindBlock, tr.Kind(body))
	require.Len(t, tr.Children(body), 1)
	assert.Equal(t, ir.KindPass, tr.Kind(tr.Children(body)[0]))

	try := tr.Parent(hs[0])
	assert.Equal(t, ir.KindTry, tr.Kind(try))
	assert.True(t, tr.Child(try, ir.FieldFinally).Valid())
}

func TestParseElifChain(t *testing.T) {
	u := parse(t, "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n")
	tr := u.Tree
	ifs := find(u, ir.KindIf)
	require.Len(t, ifs, 2)
	assert.Equal(t, ifs[0], tr.Parent(ifs[1]))
	assert.Equal(t, ir.FieldElse, tr.Node(ifs[1]).Field)
	assert.True(t, tr.Child(ifs[1], ir.FieldElse).Valid())
}

func TestParseCompareOperator(t *testing.T) {
	u := parse(t, "ok = value is not None\n")
	cmp := find(u, ir.KindCompare)
	require.Len(t, cmp, 1)
	assert.Equal(t, "is not", u.Tree.Node(cmp[0]).Text)
	assert.Len(t, u.Tree.ChildrenOf(cmp[0], ir.FieldValue), 2)
}

func TestParseDecoratedAndImports(t *testing.T) {
	u := parse(t, "import os.path\nfrom re import match as m, search\n@wrap\ndef g(): ...\n")
	tr := u.Tree
	imps := find(u, ir.KindImport)
	require.Len(t, imps, 2)
	var names []string
	for _, imp := range imps {
		for _, n := range tr.ChildrenOf(imp, ir.FieldTarget) {
			names = append(names, tr.Node(n).Text)
		}
	}
	assert.Equal(t, []string{"os", "m", "search"}, names)

	fns := find(u, ir.KindFunction)
	require.Len(t, fns, 1)
	assert.Equal(t, "wrap", tr.Node(tr.Child(fns[0], ir.FieldDecorator)).Text)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(context.Background(), "bad.py", []byte("def f(:\n    pass\n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad.py", pe.Path)
	assert.Equal(t, 1, pe.Span.StartPos.Line)
	assert.True(t, strings.HasPrefix(pe.Error(), "bad.py:1:"))
}

func TestParseRejectsInput(t *testing.T) {
	_, err := ParseWith(context.Background(), "big.py", []byte(strings.Repeat("x = 1\n", 10)), Options{MaxFileSize: 8})
	assert.True(t, errors.Is(err, ErrFileTooLarge))

	_, err = Parse(context.Background(), "bin.py", []byte{0xff, 0xfe, 'x'})
	assert.True(t, errors.Is(err, ErrInvalidContent))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Parse(ctx, "c.py", []byte("x = 1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write("b.py", "x = 1\n")
	write("a/c.py", "y = 2\n")
	write("a/notes.txt", "skip")
	write(".hidden/d.py", "skip")
	write("__pycache__/e.py", "skip")
	write(".venv/lib/f.py", "skip")

	files, err := Discover(dir, nil)
	require.NoError(t, err)
	var got []string
	for _, f := range files {
		require.NoError(t, f.Err)
		rel, _ := filepath.Rel(dir, f.Path)
		got = append(got, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a/c.py", "b.py"}, got)

	single, err := Discover(filepath.Join(dir, "b.py"), nil)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "x = 1\n", string(single[0].Text))

	_, err = Discover(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}
