package synctex

import (
	"fmt"

	"github.com/justlatex/jlatex/internal/assemble"
	"github.com/justlatex/jlatex/internal/fragment"
	"github.com/justlatex/jlatex/pkg/logger"
)

// Region is the page rectangle SyncTeX attributes to one fragment, in TeX
// points with the origin at the top-left of the page.
type Region struct {
	FragmentID int
	Page       int
	X, Y, W, H float64
	Baseline   float64
}

// LocatorError reports a non-hidden fragment SyncTeX could not place.
type LocatorError struct {
	FragmentID int
	Line       int
	Col        int
	Body       string
}

func (e *LocatorError) Error() string {
	return fmt.Sprintf("synctex: no region for fragment %d at line %d col %d (body %q)", e.FragmentID, e.Line, e.Col, e.Body)
}

// Locate resolves every visible fragment to a Region, in id order. Hidden
// fragments are skipped; duplicates inherit the region of their canonical
// copy. A fragment that cannot be placed, or whose placement has zero area,
// is fatal.
func Locate(idx *Index, src *assemble.Source, frags []fragment.Fragment) (map[int]Region, error) {
	regions := make(map[int]Region, len(frags))
	for _, f := range frags {
		if f.Kind == fragment.Hidden {
			continue
		}
		canon := src.Canonical(f.ID)
		if r, ok := regions[canon]; ok {
			r.FragmentID = f.ID
			regions[f.ID] = r
			continue
		}
		pos, err := src.PositionFor(canon)
		if err != nil {
			return nil, err
		}
		boxes, err := idx.Query(assemble.TexFileName, pos.Line)
		if err != nil {
			return nil, err
		}
		reg, ok := pickBox(boxes)
		if !ok {
			return nil, &LocatorError{FragmentID: f.ID, Line: pos.Line, Col: pos.Col, Body: f.Body}
		}
		reg.FragmentID = f.ID
		regions[f.ID] = reg
		logger.Debugf("located fragment %d on page %d at (%.2f,%.2f) %gx%g pt", f.ID, reg.Page, reg.X, reg.Y, reg.W, reg.H)
	}
	return regions, nil
}

// pickBox takes the first result with a defined page and non-zero area.
func pickBox(boxes []Box) (Region, bool) {
	for _, b := range boxes {
		if b.Page <= 0 || b.W <= 0 || b.H <= 0 {
			continue
		}
		return Region{Page: b.Page, X: b.X, Y: b.Y, W: b.W, H: b.H, Baseline: b.Baseline}, true
	}
	return Region{}, false
}
