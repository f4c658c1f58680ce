package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/codewithboateng/pylift/internal/ir"
)

const (
	DefaultMaxFileSize = 2 << 20
	warnFileSize       = 512 << 10
)

var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrInvalidContent = errors.New("invalid content")
)

// ParseError reports unparsable input. Span points at the first syntax
// error in source order.
type ParseError struct {
	Path string
	Span ir.Span
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Span.StartPos.Line, e.Span.StartPos.Column, e.Msg)
}

type Options struct {
	MaxFileSize int64
}

// Parse builds a SourceUnit from Python source text. Any syntax error
// aborts the unit with a *ParseError; there is no partial tree.
func Parse(ctx context.Context, path string, src []byte) (*ir.SourceUnit, error) {
	return ParseWith(ctx, path, src, Options{})
}

// ParseWith is Parse with explicit limits. It is safe for concurrent use:
// every call owns its tree-sitter parser.
func ParseWith(ctx context.Context, path string, src []byte, opts Options) (*ir.SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	limit := opts.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if int64(len(src)) > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, path, len(src), limit)
	}
	if len(src) > warnFileSize {
		slog.Warn("parsing large file", slog.String("file", path), slog.Int("size_bytes", len(src)))
	}
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidContent, path)
	}

	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{Path: path, Msg: "empty syntax tree"}
	}
	if bad := firstSyntaxError(root); bad != nil {
		msg := "syntax error"
		if bad.IsMissing() {
			msg = fmt.Sprintf("missing %q", bad.Type())
		} else if n := bad.EndByte() - bad.StartByte(); n > 0 && n < 40 {
			msg = fmt.Sprintf("unexpected %q", string(src[bad.StartByte():bad.EndByte()]))
		}
		return nil, &ParseError{Path: path, Span: spanOf(bad), Msg: msg}
	}

	c := &converter{src: src, tree: ir.NewTree(int(root.EndByte() / 4))}
	c.convert(root, ir.NoNode, ir.FieldNone)
	return &ir.SourceUnit{Path: path, Text: src, Tree: c.tree}, nil
}

// firstSyntaxError returns the first ERROR or MISSING node in pre-order,
// only descending into subtrees that report errors.
func firstSyntaxError(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstSyntaxError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func spanOf(n *sitter.Node) ir.Span {
	sp, ep := n.StartPoint(), n.EndPoint()
	return ir.Span{
		Start:    n.StartByte(),
		End:      n.EndByte(),
		StartPos: ir.Position{Line: int(sp.Row) + 1, Column: int(sp.Column) + 1},
		EndPos:   ir.Position{Line: int(ep.Row) + 1, Column: int(ep.Column) + 1},
	}
}
