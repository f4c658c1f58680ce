package reporting

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/codewithboateng/pylift/internal/ir"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	pathColor    = color.New(color.Bold)
	fixColor     = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

func severityColor(s ir.Severity) *color.Color {
	switch s {
	case ir.SevError:
		return errorColor
	case ir.SevWarning:
		return warningColor
	}
	return infoColor
}

// TextOptions tune WriteText. Color output also honors color.NoColor.
type TextOptions struct {
	NoColor  bool
	ShowFix  bool
	Snippets map[string][]byte // path -> source, for the offending line
}

// WriteText prints `path:line:col: severity [id] message` lines followed by
// failures and a one-line summary.
func WriteText(w io.Writer, ds []ir.Diagnostic, failures []ir.Failure, opts TextOptions) error {
	paint := func(c *color.Color, s string) string {
		if opts.NoColor {
			return s
		}
		return c.Sprint(s)
	}
	for _, d := range ds {
		loc := fmt.Sprintf("%s:%d:%d:", d.Path, d.Span.StartPos.Line, d.Span.StartPos.Column)
		if _, err := fmt.Fprintf(w, "%s %s [%s] %s\n",
			paint(pathColor, loc), paint(severityColor(d.Severity), d.Severity.String()), d.PatternID, d.Message); err != nil {
			return err
		}
		if src, ok := opts.Snippets[d.Path]; ok {
			if line := lineAt(src, d.Span.StartPos.Line); line != "" {
				fmt.Fprintf(w, "    %s\n", paint(dimColor, line))
			}
		}
		if opts.ShowFix && d.SuggestedFix != "" {
			fmt.Fprintf(w, "    %s %s\n", paint(fixColor, "fix:"), d.SuggestedFix)
		}
	}
	for _, f := range failures {
		loc := f.Path + ":"
		if f.Pos.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d:", f.Path, f.Pos.Line, f.Pos.Column)
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", paint(pathColor, loc), paint(errorColor, f.Kind+" failure"), f.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, Summary(ds, failures))
	return err
}

// Summary renders counts per severity.
func Summary(ds []ir.Diagnostic, failures []ir.Failure) string {
	var counts [3]int
	for _, d := range ds {
		if int(d.Severity) < len(counts) {
			counts[d.Severity]++
		}
	}
	return fmt.Sprintf("%d diagnostics (%d error, %d warning, %d info), %d failures",
		len(ds), counts[ir.SevError], counts[ir.SevWarning], counts[ir.SevInfo], len(failures))
}

func lineAt(src []byte, line int) string {
	cur := 1
	start := 0
	for i, c := range src {
		if c != '\n' {
			continue
		}
		if cur == line {
			return string(src[start:i])
		}
		cur++
		start = i + 1
	}
	if cur == line && start < len(src) {
		return string(src[start:])
	}
	return ""
}
