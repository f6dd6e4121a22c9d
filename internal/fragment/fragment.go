package fragment

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/justlatex/jlatex/internal/pandoc"
	"github.com/justlatex/jlatex/pkg/metrics"
)

// Kind classifies what a fragment's body means to TeX.
type Kind int

const (
	InlineMath Kind = iota
	DisplayMath
	RawTex
	Hidden
)

func (k Kind) String() string {
	switch k {
	case InlineMath:
		return "inline"
	case DisplayMath:
		return "display"
	case RawTex:
		return "raw"
	case Hidden:
		return "hidden"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fragment is one LaTeX snippet lifted out of the document tree.
type Fragment struct {
	ID     int
	Kind   Kind
	Body   string
	Origin []int // array-index path of the source node, per pandoc.Walk
	Inline bool  // origin was an inline node; the rewrite must stay inline
}

// DedupKey is identical for fragments that must share one copy in the
// assembled source.
func (f *Fragment) DedupKey() string {
	return fmt.Sprintf("%d:%016x", int(f.Kind), xxh3.HashString(f.Body))
}

// First-line markers recognised on display math and raw tex bodies.
const (
	markerRaw      = "%raw"
	markerDontshow = "%dontshow"
)

// Extract walks blocks in document order and returns the owned fragments with
// ids in order of first discovery. The tree is not mutated.
func Extract(blocks []any) []Fragment {
	var frags []Fragment
	pandoc.Walk(blocks, func(path []int, node map[string]any) {
		f, ok := classify(node)
		if !ok {
			return
		}
		f.ID = len(frags)
		f.Origin = append([]int(nil), path...)
		metrics.FragmentsExtracted.WithLabelValues(f.Kind.String()).Inc()
		frags = append(frags, f)
	})
	return frags
}

func classify(node map[string]any) (Fragment, bool) {
	switch pandoc.Tag(node) {
	case "Math":
		c := pandoc.Content(node)
		if len(c) != 2 {
			return Fragment{}, false
		}
		mt, _ := c[0].(map[string]any)
		body, _ := c[1].(string)
		switch pandoc.Tag(mt) {
		case "InlineMath":
			return Fragment{Kind: InlineMath, Body: body, Inline: true}, true
		case "DisplayMath":
			kind, body := classifyDisplay(body)
			return Fragment{Kind: kind, Body: body, Inline: true}, true
		}
	case "RawBlock":
		if kind, body, ok := classifyRaw(node); ok {
			return Fragment{Kind: kind, Body: body}, true
		}
	case "RawInline":
		if kind, body, ok := classifyRaw(node); ok {
			return Fragment{Kind: kind, Body: body, Inline: true}, true
		}
	}
	return Fragment{}, false
}

// classifyDisplay applies the %raw / %dontshow first-line markers to a
// display math body; the marker line is stripped.
func classifyDisplay(body string) (Kind, string) {
	first, rest, hasRest := strings.Cut(body, "\n")
	switch strings.TrimSpace(first) {
	case markerRaw:
		if hasRest {
			return RawTex, rest
		}
		return RawTex, ""
	case markerDontshow:
		if hasRest {
			return Hidden, rest
		}
		return Hidden, ""
	}
	return DisplayMath, body
}

func classifyRaw(node map[string]any) (Kind, string, bool) {
	c := pandoc.Content(node)
	if len(c) != 2 {
		return 0, "", false
	}
	format, _ := c[0].(string)
	body, _ := c[1].(string)
	if format != "tex" && format != "latex" {
		return 0, "", false
	}
	first, _, _ := strings.Cut(body, "\n")
	if strings.TrimSpace(first) == markerDontshow {
		_, rest, _ := strings.Cut(body, "\n")
		return Hidden, rest, true
	}
	return RawTex, body, true
}
