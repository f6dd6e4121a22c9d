package assemble

import (
	"bytes"
	"fmt"

	"github.com/justlatex/jlatex/internal/fragment"
	"github.com/justlatex/jlatex/pkg/metrics"
)

// TexFileName is the name the driver gives the assembled source inside the
// scratch workspace; the locator needs it to resolve the SyncTeX input tag.
const TexFileName = "doc.tex"

// LineCol is a 1-based position inside the assembled source.
type LineCol struct {
	Line int
	Col  int
}

// Source is the assembled TeX file plus the per-fragment position tables.
// Offsets are monotone in append order for canonical fragments; duplicate
// fragments point back at the canonical copy.
type Source struct {
	Bytes     []byte
	Offsets   map[int]int     // fragment id -> byte offset of wrapping start
	Positions map[int]LineCol // fragment id -> line/column of wrapping start
	canonical map[int]int     // fragment id -> id owning the emitted copy
}

// AssemblyError marks an inconsistency while synthesising the TeX source.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "assemble: " + e.Reason
}

// Build synthesises the single TeX source: preamble, then every unique
// fragment in discovery order behind a column-1 anchor comment, then the
// postamble. Fragments with identical (kind, body) share one emitted copy.
func Build(frags []fragment.Fragment, preamble, postamble string) (*Source, error) {
	w := &writer{
		src: &Source{
			Offsets:   make(map[int]int, len(frags)),
			Positions: make(map[int]LineCol, len(frags)),
			canonical: make(map[int]int, len(frags)),
		},
		firstSeen: make(map[string]int, len(frags)),
		line:      1,
	}

	w.writeString(preamble)
	w.writeString("\n")

	for i, f := range frags {
		if f.ID != i {
			return nil, &AssemblyError{Reason: fmt.Sprintf("fragment ids not contiguous: got %d at position %d", f.ID, i)}
		}
		w.emit(f)
	}

	w.writeString(postamble)
	w.writeString("\n")

	w.src.Bytes = w.buf.Bytes()
	return w.src, nil
}

// Canonical returns the id of the fragment owning the emitted copy of id's
// body (id itself unless it was deduplicated).
func (s *Source) Canonical(id int) int {
	if c, ok := s.canonical[id]; ok {
		return c
	}
	return id
}

type writer struct {
	buf       bytes.Buffer
	src       *Source
	firstSeen map[string]int // dedup key -> canonical fragment id
	line      int            // 1-based line of the next byte written
	col       int            // 0-based column of the next byte written
}

func (w *writer) writeString(s string) {
	w.buf.WriteString(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			w.line++
			w.col = 0
		} else {
			w.col++
		}
	}
}

func (w *writer) emit(f fragment.Fragment) {
	key := f.DedupKey()
	if first, ok := w.firstSeen[key]; ok {
		w.src.canonical[f.ID] = first
		w.src.Offsets[f.ID] = w.src.Offsets[first]
		w.src.Positions[f.ID] = w.src.Positions[first]
		metrics.DedupHits.Inc()
		return
	}
	w.firstSeen[key] = f.ID
	w.src.canonical[f.ID] = f.ID

	// Anchor line: a comment alone on its line, starting at column 1, so a
	// SyncTeX query for the following line lands on the fragment's box.
	w.writeString(fmt.Sprintf("%%jl:%d\n", f.ID))

	w.src.Offsets[f.ID] = w.buf.Len()
	w.src.Positions[f.ID] = LineCol{Line: w.line, Col: w.col + 1}

	switch f.Kind {
	case fragment.InlineMath:
		w.writeString(`\(`)
		w.writeString(f.Body)
		w.writeString(`\)`)
	case fragment.DisplayMath:
		w.writeString(`\[`)
		w.writeString(f.Body)
		w.writeString(`\]`)
	case fragment.RawTex, fragment.Hidden:
		w.writeString(f.Body)
	}
	w.writeString("\n")
}

// PositionFor converts a fragment id to the line/column SyncTeX should be
// queried with. The table is built while writing, so the file is never
// scanned twice.
func (s *Source) PositionFor(id int) (LineCol, error) {
	lc, ok := s.Positions[id]
	if !ok {
		return LineCol{}, &AssemblyError{Reason: fmt.Sprintf("no recorded position for fragment %d", id)}
	}
	return lc, nil
}
