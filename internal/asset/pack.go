package asset

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/tdewolff/minify/v2"
	minsvg "github.com/tdewolff/minify/v2/svg"

	"github.com/justlatex/jlatex/pkg/logger"
)

// Sentinel is the placeholder scheme in every emitted <img> src. The client
// loader swaps it for a blob URL once the SVG is decompressed.
const Sentinel = "latexfragment://svg"

// Packed is the single compressed SVG ready for embedding.
type Packed struct {
	B64         string
	OriginalLen int
}

// Pack prepares the page SVG for shipping: duplicate defs collapse to one,
// the markup is optionally minified, then LZMA-compressed and base64-encoded.
func Pack(svg []byte, minifySVG bool) (*Packed, error) {
	deduped, err := dedupDefs(svg)
	if err != nil {
		// dedup is an optimisation; a parse oddity must not fail the run
		logger.Warnf("defs dedup skipped: %v", err)
		deduped = svg
	}
	if minifySVG {
		m := minify.New()
		m.AddFunc("image/svg+xml", minsvg.Minify)
		if out, err := m.Bytes("image/svg+xml", deduped); err == nil {
			deduped = out
		} else {
			logger.Warnf("svg minification skipped: %v", err)
		}
	}

	compressed, err := compress(deduped)
	if err != nil {
		return nil, fmt.Errorf("asset: compress svg: %w", err)
	}
	logger.Debugf("packed svg: %d bytes raw, %d compressed", len(deduped), len(compressed))
	return &Packed{
		B64:         base64.StdEncoding.EncodeToString(compressed),
		OriginalLen: len(deduped),
	}, nil
}

// dedupDefs collapses identical <path> definitions under <defs> and repoints
// every <use> reference at the surviving copy.
func dedupDefs(svg []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(svg); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("no svg root")
	}

	byData := make(map[string]string) // path d -> surviving id
	alias := make(map[string]string)  // removed id -> surviving id
	for _, defs := range root.FindElements("//defs") {
		for _, p := range defs.SelectElements("path") {
			id := p.SelectAttrValue("id", "")
			if id == "" {
				continue
			}
			d := p.SelectAttrValue("d", "")
			if first, ok := byData[d]; ok {
				alias[id] = first
				defs.RemoveChild(p)
				continue
			}
			byData[d] = id
		}
	}
	if len(alias) > 0 {
		repointUses(root, alias)
	}
	return doc.WriteToBytes()
}

func repointUses(el *etree.Element, alias map[string]string) {
	if el.Tag == "use" {
		for _, name := range []string{"href", "xlink:href"} {
			if attr := el.SelectAttr(name); attr != nil {
				if to, ok := alias[strings.TrimPrefix(attr.Value, "#")]; ok {
					attr.Value = "#" + to
				}
			}
		}
	}
	for _, child := range el.ChildElements() {
		repointUses(child, alias)
	}
}

// LoaderHTML renders the two script blocks appended to the document: one
// referencing the shared LZMA decoder, one holding the payload and the
// substitution routine.
func LoaderHTML(p *Packed, loaderURL string) (scriptRef, inline string) {
	scriptRef = fmt.Sprintf("<script src=%q></script>", loaderURL)

	var b strings.Builder
	b.WriteString("<script>\n")
	b.WriteString("document.addEventListener(\"DOMContentLoaded\",function(){\n")
	fmt.Fprintf(&b, "var payload=%q;\n", p.B64)
	b.WriteString("var raw=atob(payload);\n")
	b.WriteString("var bytes=new Uint8Array(raw.length);\n")
	b.WriteString("for(var i=0;i<raw.length;i++){bytes[i]=raw.charCodeAt(i);}\n")
	b.WriteString("LZMA.decompress(bytes,function(result){\n")
	b.WriteString("var svg=(typeof result===\"string\")?new TextEncoder().encode(result):new Uint8Array(result);\n")
	b.WriteString("var url=URL.createObjectURL(new Blob([svg],{type:\"image/svg+xml\"}));\n")
	b.WriteString("var imgs=document.getElementsByTagName(\"img\");\n")
	b.WriteString("for(var j=0;j<imgs.length;j++){\n")
	fmt.Fprintf(&b, "var src=imgs[j].getAttribute(\"src\");\n")
	fmt.Fprintf(&b, "if(src&&src.indexOf(%q)===0){\n", Sentinel)
	b.WriteString("var hash=src.indexOf(\"#\");\n")
	b.WriteString("imgs[j].src=url+(hash>=0?src.substring(hash):\"\");\n")
	b.WriteString("}\n}\n});\n});\n")
	b.WriteString("</script>")
	return scriptRef, b.String()
}
