package svgrefine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathBBoxLines(t *testing.T) {
	r, err := pathBBox("M10 20 L30 40 L5 15 Z")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, r.X, 1e-9)
	assert.InDelta(t, 15.0, r.Y, 1e-9)
	assert.InDelta(t, 25.0, r.W, 1e-9)
	assert.InDelta(t, 25.0, r.H, 1e-9)
}

func TestPathBBoxRelativeAndImplicit(t *testing.T) {
	// implicit lineto pairs after m are relative
	r, err := pathBBox("m10 10 20 0 0 20z")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, r.X, 1e-9)
	assert.InDelta(t, 10.0, r.Y, 1e-9)
	assert.InDelta(t, 20.0, r.W, 1e-9)
	assert.InDelta(t, 20.0, r.H, 1e-9)
}

func TestPathBBoxHV(t *testing.T) {
	r, err := pathBBox("M0 0 H50 V25 h-10 v-5")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r.X, 1e-9)
	assert.InDelta(t, 50.0, r.MaxX(), 1e-9)
	assert.InDelta(t, 25.0, r.MaxY(), 1e-9)
}

func TestPathBBoxCurvesIncludeControlPoints(t *testing.T) {
	r, err := pathBBox("M0 0 C0 -10 10 -10 10 0")
	require.NoError(t, err)
	assert.InDelta(t, -10.0, r.Y, 1e-9, "control points bound the curve")
	assert.InDelta(t, 10.0, r.MaxX(), 1e-9)
}

func TestPathBBoxQuadratic(t *testing.T) {
	r, err := pathBBox("M0 0 Q5 10 10 0 T20 0")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, r.MaxX(), 1e-9)
	assert.InDelta(t, 10.0, r.MaxY(), 1e-9)
	assert.InDelta(t, -10.0, r.Y, 1e-9, "reflected control of T bounds the smooth segment")
}

func TestPathBBoxArcFlagsGlued(t *testing.T) {
	// "1 1" flags written without separators, as minifiers emit them
	_, err := pathBBox("M0 0 A5 5 0 11 10 0")
	require.NoError(t, err)
}

func TestPathBBoxScientificNotation(t *testing.T) {
	r, err := pathBBox("M1e1 2E1 L3e1 4e1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, r.X, 1e-9)
	assert.InDelta(t, 40.0, r.MaxY(), 1e-9)
}

func TestPathBBoxEmptyAndBad(t *testing.T) {
	r, err := pathBBox("")
	require.NoError(t, err)
	assert.True(t, r.Empty())

	_, err = pathBBox("M10")
	assert.Error(t, err)
}

func TestParseTransformMatrixChain(t *testing.T) {
	m, err := parseTransform("translate(10,20) scale(2)")
	require.NoError(t, err)
	x, y := m.Apply(1, 1)
	assert.InDelta(t, 12.0, x, 1e-9)
	assert.InDelta(t, 22.0, y, 1e-9)
}

func TestParseTransformMatrixLiteral(t *testing.T) {
	m, err := parseTransform("matrix(1 0 0 1 5 6)")
	require.NoError(t, err)
	x, y := m.Apply(0, 0)
	assert.InDelta(t, 5.0, x, 1e-9)
	assert.InDelta(t, 6.0, y, 1e-9)
}

func TestParseTransformRotateBoundsRect(t *testing.T) {
	m, err := parseTransform("rotate(90)")
	require.NoError(t, err)
	r := m.TransformRect(Rect{X: 0, Y: 0, W: 10, H: 2})
	assert.InDelta(t, -2.0, r.X, 1e-9)
	assert.InDelta(t, 2.0, r.W, 1e-9)
	assert.InDelta(t, 10.0, r.H, 1e-9)
}

func TestParseTransformMalformed(t *testing.T) {
	_, err := parseTransform("skewX(10)")
	assert.Error(t, err)
	_, err = parseTransform("translate(")
	assert.Error(t, err)
}
