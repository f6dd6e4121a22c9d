package pandoc

import (
	"bytes"
	"strings"
	"testing"
)

const sampleDoc = `{
  "pandoc-api-version": [1, 23, 1],
  "meta": {},
  "blocks": [
    {"t": "Para", "c": [
      {"t": "Str", "c": "before"},
      {"t": "Math", "c": [{"t": "InlineMath"}, "x^2"]},
      {"t": "Str", "c": "after"}
    ]},
    {"t": "RawBlock", "c": ["tex", "\\begin{tikzpicture}\\end{tikzpicture}"]},
    {"t": "HorizontalRule"}
  ]
}`

func TestDecodeRejectsNonPandoc(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"foo": 1}`)); err == nil {
		t.Fatalf("expected error for tree without blocks")
	}
	if _, err := Decode(strings.NewReader(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestWalkVisitsInDocumentOrder(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var tags []string
	var paths [][]int
	Walk(doc.Blocks(), func(path []int, node map[string]any) {
		tags = append(tags, Tag(node))
		paths = append(paths, append([]int(nil), path...))
	})
	want := []string{"Para", "Str", "Math", "InlineMath", "Str", "RawBlock", "HorizontalRule"}
	if len(tags) != len(want) {
		t.Fatalf("visited %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("visit %d = %q, want %q (all: %v)", i, tags[i], want[i], tags)
		}
	}
	// the Math node sits at blocks[0].c[1]
	mathPath := paths[2]
	if len(mathPath) != 2 || mathPath[0] != 0 || mathPath[1] != 1 {
		t.Fatalf("math path = %v, want [0 1]", mathPath)
	}
}

func TestReplaceAt(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	repl := RawInline("html", "<img>")
	if err := ReplaceAt(doc.Blocks(), []int{0, 1}, repl); err != nil {
		t.Fatalf("replace: %v", err)
	}
	para := doc.Blocks()[0].(map[string]any)
	inlines := Content(para)
	got := inlines[1].(map[string]any)
	if Tag(got) != "RawInline" {
		t.Fatalf("replaced node tag = %q, want RawInline", Tag(got))
	}

	if err := ReplaceAt(doc.Blocks(), []int{9, 9}, repl); err == nil {
		t.Fatalf("expected error for out-of-range path")
	}
	if err := ReplaceAt(doc.Blocks(), nil, repl); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	doc1, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc2, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var b1, b2 bytes.Buffer
	if err := doc1.Encode(&b1); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := doc2.Encode(&b2); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b1.Bytes(), b2.Bytes()) {
		t.Fatalf("two encodes of the same tree differ")
	}
}

func TestAppendBlocks(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n := len(doc.Blocks())
	doc.AppendBlocks(RawBlock("html", "<script></script>"))
	if got := len(doc.Blocks()); got != n+1 {
		t.Fatalf("blocks = %d, want %d", got, n+1)
	}
}
