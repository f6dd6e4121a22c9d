package svgrefine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/justlatex/jlatex/pkg/logger"
	"github.com/justlatex/jlatex/pkg/metrics"
)

// RefinerError reports an SVG the refiner could not interpret.
type RefinerError struct {
	Reason string
	Err    error
}

func (e *RefinerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("svg refiner: %s: %v", e.Reason, e.Err)
	}
	return "svg refiner: " + e.Reason
}

func (e *RefinerError) Unwrap() error { return e.Err }

// primitive is one renderable element flattened to a page-space box.
type primitive struct {
	bbox     Rect
	isText   bool
	baseline float64 // meaningful only for text
}

// Refiner holds the flattened geometry of the generated SVG.
type Refiner struct {
	prims []primitive
	byID  map[string]*etree.Element
}

// Load parses the SVG at path and flattens every renderable primitive to its
// page-space bounding box, honouring group transforms, use references and
// rectangular clip paths.
func Load(path string) (*Refiner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("svg refiner: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for in-memory documents; tests use it directly.
func Parse(data []byte) (*Refiner, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &RefinerError{Reason: "parsing svg", Err: err}
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, &RefinerError{Reason: "document root is not <svg>"}
	}

	rf := &Refiner{byID: make(map[string]*etree.Element)}
	indexIDs(root, rf.byID)
	if err := rf.walk(root, identity, nil, 0); err != nil {
		return nil, err
	}
	return rf, nil
}

// Refine shrinks loc to the union of the primitive boxes whose ink intersects
// loc inflated by eps, clipped back to that inflated rectangle. Text sitting
// on a baseline outside loc's vertical extent is excluded so neighbouring
// lines are never captured. An empty result falls back to loc unchanged.
func (rf *Refiner) Refine(loc Rect, eps float64) Rect {
	inflated := loc.Inflate(eps)
	var acc Rect
	for _, p := range rf.prims {
		if !p.bbox.Intersects(inflated) {
			continue
		}
		if p.isText && (p.baseline < loc.Y || p.baseline > loc.MaxY()) {
			continue
		}
		acc = acc.Union(p.bbox)
	}
	refined := acc.Intersect(inflated)
	if refined.Empty() {
		logger.Debugf("refinement empty for (%.2f,%.2f) %gx%g, keeping located region", loc.X, loc.Y, loc.W, loc.H)
		return loc
	}
	if loc.W > 0 && loc.H > 0 {
		metrics.RefineShrink.Observe((refined.W * refined.H) / (loc.W * loc.H))
	}
	return refined
}

func indexIDs(el *etree.Element, byID map[string]*etree.Element) {
	if id := el.SelectAttrValue("id", ""); id != "" {
		byID[id] = el
	}
	for _, child := range el.ChildElements() {
		indexIDs(child, byID)
	}
}

const maxUseDepth = 16

func (rf *Refiner) walk(el *etree.Element, ctm Matrix, clip *Rect, depth int) error {
	if depth > maxUseDepth {
		return &RefinerError{Reason: "use reference chain too deep"}
	}

	if attr := el.SelectAttrValue("transform", ""); attr != "" {
		t, err := parseTransform(attr)
		if err != nil {
			return &RefinerError{Reason: "transform on <" + el.Tag + ">", Err: err}
		}
		ctm = ctm.Mul(t)
	}
	if attr := el.SelectAttrValue("clip-path", ""); attr != "" {
		if r, ok := rf.clipRect(attr, ctm); ok {
			if clip != nil {
				r = r.Intersect(*clip)
			}
			clip = &r
		}
	}

	switch el.Tag {
	case "defs", "clipPath", "symbol", "marker", "pattern", "style", "title", "desc", "metadata":
		// definitions render only when referenced
		return nil
	case "use":
		return rf.walkUse(el, ctm, clip, depth)
	case "path":
		local, err := pathBBox(el.SelectAttrValue("d", ""))
		if err != nil {
			return &RefinerError{Reason: "path data", Err: err}
		}
		rf.emit(ctm.TransformRect(local), clip, false, 0)
		return nil
	case "rect", "image":
		local := Rect{
			X: floatAttr(el, "x"),
			Y: floatAttr(el, "y"),
			W: floatAttr(el, "width"),
			H: floatAttr(el, "height"),
		}
		rf.emit(ctm.TransformRect(local), clip, false, 0)
		return nil
	case "circle":
		cx, cy, r := floatAttr(el, "cx"), floatAttr(el, "cy"), floatAttr(el, "r")
		rf.emit(ctm.TransformRect(Rect{X: cx - r, Y: cy - r, W: 2 * r, H: 2 * r}), clip, false, 0)
		return nil
	case "ellipse":
		cx, cy := floatAttr(el, "cx"), floatAttr(el, "cy")
		rx, ry := floatAttr(el, "rx"), floatAttr(el, "ry")
		rf.emit(ctm.TransformRect(Rect{X: cx - rx, Y: cy - ry, W: 2 * rx, H: 2 * ry}), clip, false, 0)
		return nil
	case "line":
		x1, y1 := floatAttr(el, "x1"), floatAttr(el, "y1")
		x2, y2 := floatAttr(el, "x2"), floatAttr(el, "y2")
		local := Rect{X: minf(x1, x2), Y: minf(y1, y2), W: absf(x2 - x1), H: absf(y2 - y1)}
		// hairlines still have ink
		if local.W == 0 {
			local.W = 0.01
		}
		if local.H == 0 {
			local.H = 0.01
		}
		rf.emit(ctm.TransformRect(local), clip, false, 0)
		return nil
	case "polyline", "polygon":
		pts, err := parseNumberList(el.SelectAttrValue("points", ""))
		if err != nil || len(pts) < 4 {
			return nil
		}
		local := Rect{X: pts[0], Y: pts[1], W: 0.01, H: 0.01}
		for i := 2; i+1 < len(pts); i += 2 {
			local = local.Union(Rect{X: pts[i], Y: pts[i+1], W: 0.01, H: 0.01})
		}
		rf.emit(ctm.TransformRect(local), clip, false, 0)
		return nil
	case "text":
		rf.emitText(el, ctm, clip)
		return nil
	}

	for _, child := range el.ChildElements() {
		if err := rf.walk(child, ctm, clip, depth); err != nil {
			return err
		}
	}
	return nil
}

func (rf *Refiner) walkUse(el *etree.Element, ctm Matrix, clip *Rect, depth int) error {
	href := el.SelectAttrValue("href", "")
	if href == "" {
		href = el.SelectAttrValue("xlink:href", "")
	}
	if !strings.HasPrefix(href, "#") || len(href) < 2 {
		return nil
	}
	id := href[1:]
	target, ok := rf.byID[id]
	if !ok {
		return nil
	}
	ctm = ctm.Mul(translation(floatAttr(el, "x"), floatAttr(el, "y")))
	return rf.walk(target, ctm, clip, depth+1)
}

// emitText approximates a glyph run with a box around its anchor: dvisvgm in
// no-fonts mode never emits <text>, so this only matters for foreign SVG fed
// through the refiner, where a coarse box is acceptable.
func (rf *Refiner) emitText(el *etree.Element, ctm Matrix, clip *Rect) {
	x, y := floatAttr(el, "x"), floatAttr(el, "y")
	size := floatAttr(el, "font-size")
	if size == 0 {
		size = 10
	}
	runes := float64(len([]rune(el.Text())))
	local := Rect{X: x, Y: y - size, W: maxf(runes*size*0.6, size*0.6), H: size * 1.2}
	bbox := ctm.TransformRect(local)
	_, baseline := ctm.Apply(x, y)
	rf.emit(bbox, clip, true, baseline)
}

func (rf *Refiner) emit(bbox Rect, clip *Rect, isText bool, baseline float64) {
	if clip != nil {
		bbox = bbox.Intersect(*clip)
	}
	if bbox.Empty() {
		return
	}
	rf.prims = append(rf.prims, primitive{bbox: bbox, isText: isText, baseline: baseline})
}

// clipRect resolves clip-path="url(#id)" to the page-space bounds of the
// clip shape. Non-rectangular clips degrade to their bounding box, which
// only ever keeps more ink than strictly clipped.
func (rf *Refiner) clipRect(attr string, ctm Matrix) (Rect, bool) {
	s := strings.TrimSpace(attr)
	if !strings.HasPrefix(s, "url(#") {
		return Rect{}, false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(s, "url(#"), ")")
	cp, ok := rf.byID[id]
	if !ok {
		return Rect{}, false
	}
	var acc Rect
	for _, child := range cp.ChildElements() {
		switch child.Tag {
		case "rect":
			local := Rect{
				X: floatAttr(child, "x"),
				Y: floatAttr(child, "y"),
				W: floatAttr(child, "width"),
				H: floatAttr(child, "height"),
			}
			acc = acc.Union(ctm.TransformRect(local))
		case "path":
			if local, err := pathBBox(child.SelectAttrValue("d", "")); err == nil {
				acc = acc.Union(ctm.TransformRect(local))
			}
		}
	}
	if acc.Empty() {
		return Rect{}, false
	}
	return acc, true
}

func floatAttr(el *etree.Element, name string) float64 {
	v := el.SelectAttrValue(name, "")
	if v == "" {
		return 0
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absf(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
