package synctex

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Package synctex reads the uncompressed SyncTeX index a TeX engine writes
// next to its PDF when invoked with --synctex=-1. No Go binding of the
// SyncTeX C library exists, so the adapter parses the text format directly;
// everything else in the filter goes through Open/Query/Close and never
// touches the format.

// Box is one typeset box record, converted to TeX points with the origin at
// the top-left of the page.
type Box struct {
	Page     int
	Line     int
	X        float64 // left edge
	Y        float64 // top edge
	W        float64
	H        float64 // height + depth
	Baseline float64 // y of the baseline, downward from page top
}

// Index is a parsed SyncTeX file.
type Index struct {
	inputs map[int]string // tag -> path as recorded by the engine
	boxes  map[int][]Box  // input tag -> boxes in file order
	lines  map[int][]int  // input tag -> sorted unique box lines
}

// Open parses the index at path.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("synctex: open %s: %w", path, err)
	}
	defer f.Close()

	idx := &Index{
		inputs: make(map[int]string),
		boxes:  make(map[int][]Box),
		lines:  make(map[int][]int),
	}
	if err := idx.parse(bufio.NewScanner(f)); err != nil {
		return nil, fmt.Errorf("synctex: parse %s: %w", path, err)
	}
	for tag, ls := range idx.lines {
		sort.Ints(ls)
		idx.lines[tag] = dedupInts(ls)
	}
	return idx, nil
}

// Close releases the parsed index. Safe to call more than once.
func (idx *Index) Close() {
	idx.inputs = nil
	idx.boxes = nil
	idx.lines = nil
}

// Query returns the boxes recorded for file at the smallest indexed line
// greater than or equal to line, in file order. The file is matched by path
// suffix because engines record either absolute or workspace-relative names.
func (idx *Index) Query(file string, line int) ([]Box, error) {
	if idx.boxes == nil {
		return nil, fmt.Errorf("synctex: query on closed index")
	}
	tag, ok := idx.tagFor(file)
	if !ok {
		return nil, fmt.Errorf("synctex: input %q not in index", file)
	}
	ls := idx.lines[tag]
	i := sort.SearchInts(ls, line)
	if i >= len(ls) {
		return nil, nil
	}
	want := ls[i]
	var out []Box
	for _, b := range idx.boxes[tag] {
		if b.Line == want {
			out = append(out, b)
		}
	}
	return out, nil
}

func (idx *Index) tagFor(file string) (int, bool) {
	base := filepath.Base(file)
	for tag, p := range idx.inputs {
		if p == file || filepath.Base(p) == base {
			return tag, true
		}
	}
	return 0, false
}

// parser state: unit conversions from the header, the current page.
type header struct {
	unit    float64
	xOffset float64
	yOffset float64
	mag     float64
}

func (h header) ptX(v int64) float64 { return (h.xOffset + float64(v)*h.unit) * h.mag / 65536.0 }
func (h header) ptY(v int64) float64 { return (h.yOffset + float64(v)*h.unit) * h.mag / 65536.0 }
func (h header) pt(v int64) float64  { return float64(v) * h.unit * h.mag / 65536.0 }

func (idx *Index) parse(sc *bufio.Scanner) error {
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	h := header{unit: 1, mag: 1}
	page := 0
	inContent := false

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if !inContent {
			switch {
			case strings.HasPrefix(line, "Input:"):
				rest := line[len("Input:"):]
				tagStr, path, ok := strings.Cut(rest, ":")
				if !ok {
					return fmt.Errorf("malformed input line %q", line)
				}
				tag, err := strconv.Atoi(tagStr)
				if err != nil {
					return fmt.Errorf("malformed input tag in %q", line)
				}
				idx.inputs[tag] = path
			case strings.HasPrefix(line, "Unit:"):
				if u, err := strconv.ParseFloat(line[len("Unit:"):], 64); err == nil && u > 0 {
					h.unit = u
				}
			case strings.HasPrefix(line, "X Offset:"):
				if v, err := strconv.ParseFloat(line[len("X Offset:"):], 64); err == nil {
					h.xOffset = v
				}
			case strings.HasPrefix(line, "Y Offset:"):
				if v, err := strconv.ParseFloat(line[len("Y Offset:"):], 64); err == nil {
					h.yOffset = v
				}
			case strings.HasPrefix(line, "Magnification:"):
				if m, err := strconv.ParseFloat(line[len("Magnification:"):], 64); err == nil && m > 0 {
					h.mag = m / 1000.0
				}
			case line == "Content:":
				inContent = true
			}
			continue
		}

		switch line[0] {
		case '{':
			if p, err := strconv.Atoi(line[1:]); err == nil {
				page = p
			}
		case '}':
			page = 0
		case '[', '(', 'v', 'h':
			b, err := parseBox(line[1:], h)
			if err != nil {
				return fmt.Errorf("malformed box record %q: %w", line, err)
			}
			b.Page = page
			idx.boxes[b.tag] = append(idx.boxes[b.tag], b.Box)
			idx.lines[b.tag] = append(idx.lines[b.tag], b.Line)
		case 'P':
			if strings.HasPrefix(line, "Postamble:") {
				return nil
			}
		default:
			// point records (x, k, g, $, f) and byte-sync markers carry no
			// box geometry the locator needs
		}
	}
	return sc.Err()
}

type taggedBox struct {
	Box
	tag int
}

// parseBox reads "tag,line:x,y:w,h,d". x,y is the reference point on the
// baseline; the box extends h above and d below it.
func parseBox(s string, h header) (taggedBox, error) {
	var b taggedBox
	link, rest, ok := strings.Cut(s, ":")
	if !ok {
		return b, fmt.Errorf("missing position separator")
	}
	tagStr, lineStr, ok := strings.Cut(link, ",")
	if !ok {
		return b, fmt.Errorf("missing tag,line")
	}
	pos, size, ok := strings.Cut(rest, ":")
	if !ok {
		return b, fmt.Errorf("missing size separator")
	}
	xStr, yStr, ok := strings.Cut(pos, ",")
	if !ok {
		return b, fmt.Errorf("missing x,y")
	}
	dims := strings.Split(size, ",")
	if len(dims) != 3 {
		return b, fmt.Errorf("want w,h,d got %q", size)
	}

	var err error
	if b.tag, err = strconv.Atoi(tagStr); err != nil {
		return b, err
	}
	if b.Line, err = strconv.Atoi(lineStr); err != nil {
		return b, err
	}
	x, err := strconv.ParseInt(xStr, 10, 64)
	if err != nil {
		return b, err
	}
	y, err := strconv.ParseInt(yStr, 10, 64)
	if err != nil {
		return b, err
	}
	w, err := strconv.ParseInt(dims[0], 10, 64)
	if err != nil {
		return b, err
	}
	hh, err := strconv.ParseInt(dims[1], 10, 64)
	if err != nil {
		return b, err
	}
	d, err := strconv.ParseInt(dims[2], 10, 64)
	if err != nil {
		return b, err
	}

	left := h.ptX(x)
	width := h.pt(w)
	if width < 0 {
		left += width
		width = -width
	}
	b.X = left
	b.W = width
	b.Baseline = h.ptY(y)
	b.Y = b.Baseline - h.pt(hh)
	b.H = h.pt(hh) + h.pt(d)
	return b, nil
}

func dedupInts(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
