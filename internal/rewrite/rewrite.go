package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/justlatex/jlatex/internal/asset"
	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/internal/fragment"
	"github.com/justlatex/jlatex/internal/pandoc"
	"github.com/justlatex/jlatex/internal/svgrefine"
	"github.com/justlatex/jlatex/internal/synctex"
)

// Apply splices an <img> over every visible fragment's origin node and
// appends the packed asset plus loader at the document end. Hidden fragments
// leave no trace in the output.
func Apply(doc *pandoc.Doc, frags []fragment.Fragment, regions map[int]synctex.Region, refined map[int]svgrefine.Rect, packed *asset.Packed, cfg *config.Config) error {
	blocks := doc.Blocks()
	visible := 0
	for _, f := range frags {
		if f.Kind == fragment.Hidden {
			continue
		}
		reg, ok := regions[f.ID]
		if !ok {
			return fmt.Errorf("rewrite: fragment %d has no located region", f.ID)
		}
		box, ok := refined[f.ID]
		if !ok {
			return fmt.Errorf("rewrite: fragment %d has no refined region", f.ID)
		}
		img := imgTag(f, reg, box, cfg)
		var node map[string]any
		if f.Inline {
			node = pandoc.RawInline("html", img)
		} else {
			node = pandoc.RawBlock("html", img)
		}
		if err := pandoc.ReplaceAt(blocks, f.Origin, node); err != nil {
			return fmt.Errorf("rewrite: fragment %d: %w", f.ID, err)
		}
		visible++
	}

	// no fragments, no loader: the tree must round-trip untouched
	if visible == 0 {
		return nil
	}
	scriptRef, inline := asset.LoaderHTML(packed, cfg.Output.LZMALoaderURL)
	doc.AppendBlocks(
		pandoc.RawBlock("html", scriptRef),
		pandoc.RawBlock("html", inline),
	)
	return nil
}

// imgTag renders one fragment image. The svgView fragment crops the shared
// SVG to the refined region; width and height repeat the crop size so layout
// is stable before the loader runs.
func imgTag(f fragment.Fragment, reg synctex.Region, box svgrefine.Rect, cfg *config.Config) string {
	src := fmt.Sprintf("%s#svgView(viewBox(%s,%s,%s,%s))",
		asset.Sentinel, num(box.X), num(box.Y), num(box.W), num(box.H))

	var style strings.Builder
	fmt.Fprintf(&style, "width:%spt;height:%spt;", num(box.W), num(box.H))
	switch {
	case f.Kind == fragment.InlineMath && cfg.Output.BaselineAlign:
		shift := box.MaxY() - reg.Baseline
		fmt.Fprintf(&style, "vertical-align:baseline;position:relative;top:%spt;", num(shift))
	case !f.Inline:
		style.WriteString("display:block;")
	}

	return fmt.Sprintf("<img class=%q src=%q style=%q>", cfg.Output.SVGClass, src, style.String())
}

// num formats points with enough precision for sub-pixel placement and no
// trailing zero noise.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		s = "0"
	}
	return s
}
