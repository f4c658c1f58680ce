package perf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/codewithboateng/pylift/internal/engine"
	"github.com/codewithboateng/pylift/internal/parser"
)

const fixture = "../golden/testdata/python_examples.py"

func BenchmarkAnalyze_Fixture(b *testing.B) {
	src, err := os.ReadFile(fixture)
	if err != nil {
		b.Fatal(err)
	}
	eng, err := engine.New(engine.Options{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := eng.AnalyzeSource(ctx, "python_examples.py", src)
		if err != nil {
			b.Fatal(err)
		}
		if len(res.Diagnostics) == 0 {
			b.Fatal("no diagnostics")
		}
	}
}

// BenchmarkAnalyzeFiles_Batch measures the worker pool over many
// generated modules.
func BenchmarkAnalyzeFiles_Batch(b *testing.B) {
	src, err := os.ReadFile(fixture)
	if err != nil {
		b.Fatal(err)
	}
	var big bytes.Buffer
	for i := 0; i < 20; i++ {
		big.Write(src)
		big.WriteString("\n")
	}
	files := make([]parser.File, 64)
	for i := range files {
		files[i] = parser.File{Path: fmt.Sprintf("pkg/mod_%02d.py", i), Text: big.Bytes()}
	}
	eng, err := engine.New(engine.Options{Jobs: 4})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rep, err := eng.AnalyzeFiles(ctx, files)
		if err != nil {
			b.Fatal(err)
		}
		if len(rep.Failures) > 0 {
			b.Fatalf("failures: %+v", rep.Failures)
		}
	}
}
