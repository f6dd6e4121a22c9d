package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justlatex/jlatex/internal/fragment"
)

func frags(fs ...fragment.Fragment) []fragment.Fragment {
	for i := range fs {
		fs[i].ID = i
	}
	return fs
}

func TestLayoutAndWrapping(t *testing.T) {
	src, err := Build(frags(
		fragment.Fragment{Kind: fragment.InlineMath, Body: "x^2"},
		fragment.Fragment{Kind: fragment.DisplayMath, Body: "a+b"},
		fragment.Fragment{Kind: fragment.RawTex, Body: "\\foo"},
		fragment.Fragment{Kind: fragment.Hidden, Body: "\\newcommand{\\R}{\\mathbb{R}}"},
	), "PRE", "POST")
	require.NoError(t, err)

	text := string(src.Bytes)
	assert.True(t, strings.HasPrefix(text, "PRE\n"))
	assert.True(t, strings.HasSuffix(text, "POST\n"))
	assert.Contains(t, text, "%jl:0\n\\(x^2\\)\n")
	assert.Contains(t, text, "%jl:1\n\\[a+b\\]\n")
	assert.Contains(t, text, "%jl:2\n\\foo\n")
	assert.Contains(t, text, "%jl:3\n\\newcommand{\\R}{\\mathbb{R}}\n")
}

func TestOffsetsPointAtWrappingStart(t *testing.T) {
	src, err := Build(frags(
		fragment.Fragment{Kind: fragment.InlineMath, Body: "x"},
		fragment.Fragment{Kind: fragment.RawTex, Body: "\\raw"},
	), "P", "E")
	require.NoError(t, err)

	off0 := src.Offsets[0]
	assert.Equal(t, `\(`, string(src.Bytes[off0:off0+2]))
	off1 := src.Offsets[1]
	assert.Equal(t, `\r`, string(src.Bytes[off1:off1+2]))
	assert.Less(t, off0, off1, "offsets are monotone in append order")
}

func TestPositionsMatchOffsets(t *testing.T) {
	src, err := Build(frags(
		fragment.Fragment{Kind: fragment.InlineMath, Body: "x"},
	), "line one\nline two", "end")
	require.NoError(t, err)

	// preamble spans lines 1-2, anchor is line 3, wrapping starts line 4
	pos, err := src.PositionFor(0)
	require.NoError(t, err)
	assert.Equal(t, 4, pos.Line)
	assert.Equal(t, 1, pos.Col)

	// cross-check against the byte offset
	upTo := string(src.Bytes[:src.Offsets[0]])
	assert.Equal(t, pos.Line, 1+strings.Count(upTo, "\n"))
}

func TestDeduplication(t *testing.T) {
	src, err := Build(frags(
		fragment.Fragment{Kind: fragment.DisplayMath, Body: "a+b"},
		fragment.Fragment{Kind: fragment.DisplayMath, Body: "a+b"},
		fragment.Fragment{Kind: fragment.InlineMath, Body: "a+b"},
	), "P", "E")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(string(src.Bytes), `\[a+b\]`), "identical display bodies share one copy")
	assert.Equal(t, src.Offsets[0], src.Offsets[1])
	assert.Equal(t, src.Positions[0], src.Positions[1])
	assert.Equal(t, 0, src.Canonical(1))
	assert.Equal(t, 0, src.Canonical(0))

	// same body, different kind: not a duplicate
	assert.Equal(t, 2, src.Canonical(2))
	assert.NotEqual(t, src.Offsets[0], src.Offsets[2])
}

func TestNonContiguousIDsRejected(t *testing.T) {
	_, err := Build([]fragment.Fragment{{ID: 5, Kind: fragment.InlineMath, Body: "x"}}, "P", "E")
	require.Error(t, err)
	var asmErr *AssemblyError
	assert.ErrorAs(t, err, &asmErr)
}

func TestPositionForUnknownID(t *testing.T) {
	src, err := Build(frags(fragment.Fragment{Kind: fragment.InlineMath, Body: "x"}), "P", "E")
	require.NoError(t, err)
	_, err = src.PositionFor(42)
	assert.Error(t, err)
}

func TestAnchorsStartAtColumnOne(t *testing.T) {
	src, err := Build(frags(
		fragment.Fragment{Kind: fragment.InlineMath, Body: "x"},
		fragment.Fragment{Kind: fragment.InlineMath, Body: "y"},
	), "P", "E")
	require.NoError(t, err)
	for _, line := range strings.Split(string(src.Bytes), "\n") {
		if strings.Contains(line, "%jl:") {
			assert.True(t, strings.HasPrefix(line, "%jl:"), "anchor %q must start the line", line)
		}
	}
}
