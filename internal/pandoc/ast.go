package pandoc

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// The filter speaks the pandoc JSON AST. Nodes the filter does not own are
// decoded into generic values and re-encoded untouched, so the tree survives
// pandoc version drift in node kinds we never look at.

// Doc is one parsed pandoc document.
type Doc struct {
	root map[string]any
}

// Decode reads a pandoc AST from r. Numbers are kept as json.Number so
// re-encoding does not reformat them.
func Decode(r io.Reader) (*Doc, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode pandoc tree: %w", err)
	}
	if _, ok := root["blocks"]; !ok {
		return nil, fmt.Errorf("decode pandoc tree: no blocks field")
	}
	return &Doc{root: root}, nil
}

// Encode writes the tree back out. Object keys are emitted sorted, so the
// output is deterministic for a given tree.
func (d *Doc) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d.root); err != nil {
		return fmt.Errorf("encode pandoc tree: %w", err)
	}
	return nil
}

// Blocks returns the document's top-level block list.
func (d *Doc) Blocks() []any {
	b, _ := d.root["blocks"].([]any)
	return b
}

// AppendBlocks adds blocks at the end of the document.
func (d *Doc) AppendBlocks(blocks ...any) {
	d.root["blocks"] = append(d.Blocks(), blocks...)
}

// Tag returns the "t" discriminator of an AST node, or "".
func Tag(node map[string]any) string {
	t, _ := node["t"].(string)
	return t
}

// Content returns the "c" payload of an AST node as a slice, or nil when the
// payload is absent or not a list.
func Content(node map[string]any) []any {
	c, _ := node["c"].([]any)
	return c
}

// RawInline builds a {"t":"RawInline","c":[format,text]} node.
func RawInline(format, text string) map[string]any {
	return map[string]any{"t": "RawInline", "c": []any{format, text}}
}

// RawBlock builds a {"t":"RawBlock","c":[format,text]} node.
func RawBlock(format, text string) map[string]any {
	return map[string]any{"t": "RawBlock", "c": []any{format, text}}
}

// Visit receives every tagged node in DFS document order. path holds the
// indices of the node within the enclosing arrays, root blocks outermost;
// it is only valid for the duration of the call.
type Visit func(path []int, node map[string]any)

// Walk traverses blocks depth-first in document order, visiting every node
// that carries a "t" tag. Container payloads are entered through their "c"
// value without consuming a path element, so a path is exactly the sequence
// of array indices from the block list down to the node.
func Walk(blocks []any, visit Visit) {
	walk(blocks, nil, visit)
}

func walk(v any, path []int, visit Visit) {
	switch n := v.(type) {
	case []any:
		for i, el := range n {
			walk(el, append(path, i), visit)
		}
	case map[string]any:
		if _, tagged := n["t"]; tagged {
			visit(path, n)
		}
		if c, ok := n["c"]; ok {
			walk(c, path, visit)
		}
	}
}

// ReplaceAt swaps the node at path (as produced by Walk) for repl.
func ReplaceAt(blocks []any, path []int, repl any) error {
	if len(path) == 0 {
		return fmt.Errorf("replace: empty path")
	}
	var cur any = blocks
	for step, idx := range path {
		for {
			m, ok := cur.(map[string]any)
			if !ok {
				break
			}
			cur = m["c"]
		}
		arr, ok := cur.([]any)
		if !ok || idx < 0 || idx >= len(arr) {
			return fmt.Errorf("replace: path %v does not resolve at step %d", path, step)
		}
		if step == len(path)-1 {
			arr[idx] = repl
			return nil
		}
		cur = arr[idx]
	}
	return nil
}
