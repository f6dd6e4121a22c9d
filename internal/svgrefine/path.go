package svgrefine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// pathBBox computes the bounding box of an SVG path data string in its local
// coordinate system. Curve control points are included, which bounds the
// curve from outside; SyncTeX regions are matched with an epsilon, so the
// slight over-approximation never loses ink.
func pathBBox(d string) (Rect, error) {
	lex := pathLexer{s: d}
	var (
		have           bool
		minX, minY     float64
		maxX, maxY     float64
		curX, curY     float64
		startX, startY float64
		ctlX, ctlY     float64 // last control point, for S/T reflection
		ctlKind        byte    // 'C' or 'Q' when ctl is valid
	)
	add := func(x, y float64) {
		if !have {
			minX, maxX, minY, maxY = x, x, y, y
			have = true
			return
		}
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}

	prevCmd := byte(0)
	for {
		cmd, ok := lex.command(prevCmd)
		if !ok {
			break
		}
		rel := cmd >= 'a'
		abs := func(x, y float64) (float64, float64) {
			if rel {
				return curX + x, curY + y
			}
			return x, y
		}
		switch cmd {
		case 'M', 'm':
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			curX, curY = abs(x, y)
			startX, startY = curX, curY
			ctlKind = 0
			add(curX, curY)
			// subsequent pairs are implicit linetos
			if rel {
				prevCmd = 'l'
			} else {
				prevCmd = 'L'
			}
			continue
		case 'L', 'l':
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			curX, curY = abs(x, y)
			add(curX, curY)
		case 'H', 'h':
			x, err := lex.number()
			if err != nil {
				return Rect{}, err
			}
			if rel {
				curX += x
			} else {
				curX = x
			}
			add(curX, curY)
		case 'V', 'v':
			y, err := lex.number()
			if err != nil {
				return Rect{}, err
			}
			if rel {
				curY += y
			} else {
				curY = y
			}
			add(curX, curY)
		case 'C', 'c':
			x1, y1, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			x2, y2, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			cx1, cy1 := abs(x1, y1)
			cx2, cy2 := abs(x2, y2)
			curX, curY = abs(x, y)
			add(cx1, cy1)
			add(cx2, cy2)
			add(curX, curY)
			ctlX, ctlY, ctlKind = cx2, cy2, 'C'
		case 'S', 's':
			if ctlKind == 'C' {
				add(2*curX-ctlX, 2*curY-ctlY)
			}
			x2, y2, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			cx, cy := abs(x2, y2)
			curX, curY = abs(x, y)
			add(cx, cy)
			add(curX, curY)
			ctlX, ctlY, ctlKind = cx, cy, 'C'
		case 'Q', 'q':
			x1, y1, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			cx, cy := abs(x1, y1)
			curX, curY = abs(x, y)
			add(cx, cy)
			add(curX, curY)
			ctlX, ctlY, ctlKind = cx, cy, 'Q'
		case 'T', 't':
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			if ctlKind == 'Q' {
				rx, ry := 2*curX-ctlX, 2*curY-ctlY
				add(rx, ry)
				ctlX, ctlY = rx, ry
			} else {
				ctlX, ctlY, ctlKind = curX, curY, 'Q'
			}
			curX, curY = abs(x, y)
			add(curX, curY)
		case 'A', 'a':
			rx, err := lex.number()
			if err != nil {
				return Rect{}, err
			}
			ry, err := lex.number()
			if err != nil {
				return Rect{}, err
			}
			if _, err := lex.number(); err != nil { // x-axis rotation
				return Rect{}, err
			}
			if _, err := lex.flag(); err != nil { // large-arc
				return Rect{}, err
			}
			if _, err := lex.flag(); err != nil { // sweep
				return Rect{}, err
			}
			x, y, err := lex.pair()
			if err != nil {
				return Rect{}, err
			}
			x0, y0 := curX, curY
			curX, curY = abs(x, y)
			add(curX, curY)
			// bound the arc by the disc of both radii around the chord
			r := math.Max(math.Abs(rx), math.Abs(ry))
			add(math.Min(x0, curX)-r, math.Min(y0, curY)-r)
			add(math.Max(x0, curX)+r, math.Max(y0, curY)+r)
		case 'Z', 'z':
			curX, curY = startX, startY
		default:
			return Rect{}, fmt.Errorf("svg path: unknown command %q", string(cmd))
		}
		switch cmd {
		case 'C', 'c', 'S', 's', 'Q', 'q', 'T', 't':
		default:
			ctlKind = 0
		}
		prevCmd = cmd
	}
	if !have {
		return Rect{}, nil
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, nil
}

type pathLexer struct {
	s string
	i int
}

func (l *pathLexer) skipSep() {
	for l.i < len(l.s) {
		c := l.s[l.i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' {
			l.i++
			continue
		}
		return
	}
}

// command returns the next command letter, or repeats prev when a number
// follows directly (implicit command repetition).
func (l *pathLexer) command(prev byte) (byte, bool) {
	l.skipSep()
	if l.i >= len(l.s) {
		return 0, false
	}
	c := l.s[l.i]
	if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
		l.i++
		return c, true
	}
	if prev == 0 {
		return 0, false
	}
	return prev, true
}

func (l *pathLexer) number() (float64, error) {
	l.skipSep()
	start := l.i
	if l.i < len(l.s) && (l.s[l.i] == '+' || l.s[l.i] == '-') {
		l.i++
	}
	dot := false
	for l.i < len(l.s) {
		c := l.s[l.i]
		if c >= '0' && c <= '9' {
			l.i++
			continue
		}
		if c == '.' && !dot {
			dot = true
			l.i++
			continue
		}
		if (c == 'e' || c == 'E') && l.i > start {
			l.i++
			if l.i < len(l.s) && (l.s[l.i] == '+' || l.s[l.i] == '-') {
				l.i++
			}
			continue
		}
		break
	}
	if l.i == start {
		return 0, fmt.Errorf("svg path: number expected at offset %d", start)
	}
	return strconv.ParseFloat(l.s[start:l.i], 64)
}

// flag reads an arc flag, which may be glued to the next number ("11" is two
// flags, not eleven).
func (l *pathLexer) flag() (bool, error) {
	l.skipSep()
	if l.i >= len(l.s) {
		return false, fmt.Errorf("svg path: flag expected at end of data")
	}
	switch l.s[l.i] {
	case '0':
		l.i++
		return false, nil
	case '1':
		l.i++
		return true, nil
	}
	return false, fmt.Errorf("svg path: flag expected at offset %d", l.i)
}

func (l *pathLexer) pair() (float64, float64, error) {
	x, err := l.number()
	if err != nil {
		return 0, 0, err
	}
	y, err := l.number()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// parseTransform reads an SVG transform attribute (matrix, translate, scale,
// rotate) into a single Matrix. dvisvgm emits only the first three.
func parseTransform(attr string) (Matrix, error) {
	m := identity
	s := strings.TrimSpace(attr)
	for s != "" {
		open := strings.IndexByte(s, '(')
		end := strings.IndexByte(s, ')')
		if open < 0 || end < open {
			return identity, fmt.Errorf("svg transform: malformed %q", attr)
		}
		name := strings.TrimSpace(s[:open])
		args, err := parseNumberList(s[open+1 : end])
		if err != nil {
			return identity, err
		}
		var t Matrix
		switch name {
		case "matrix":
			if len(args) != 6 {
				return identity, fmt.Errorf("svg transform: matrix wants 6 args, got %d", len(args))
			}
			t = Matrix{A: args[0], B: args[1], C: args[2], D: args[3], E: args[4], F: args[5]}
		case "translate":
			switch len(args) {
			case 1:
				t = translation(args[0], 0)
			case 2:
				t = translation(args[0], args[1])
			default:
				return identity, fmt.Errorf("svg transform: translate wants 1 or 2 args")
			}
		case "scale":
			switch len(args) {
			case 1:
				t = scaling(args[0], args[0])
			case 2:
				t = scaling(args[0], args[1])
			default:
				return identity, fmt.Errorf("svg transform: scale wants 1 or 2 args")
			}
		case "rotate":
			if len(args) != 1 && len(args) != 3 {
				return identity, fmt.Errorf("svg transform: rotate wants 1 or 3 args")
			}
			rad := args[0] * math.Pi / 180
			rot := Matrix{A: math.Cos(rad), B: math.Sin(rad), C: -math.Sin(rad), D: math.Cos(rad)}
			if len(args) == 3 {
				t = translation(args[1], args[2]).Mul(rot).Mul(translation(-args[1], -args[2]))
			} else {
				t = rot
			}
		default:
			return identity, fmt.Errorf("svg transform: unsupported %q", name)
		}
		m = m.Mul(t)
		s = strings.TrimSpace(s[end+1:])
		s = strings.TrimPrefix(s, ",")
		s = strings.TrimSpace(s)
	}
	return m, nil
}

func parseNumberList(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("svg transform: bad number %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
