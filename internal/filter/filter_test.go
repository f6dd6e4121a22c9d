package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justlatex/jlatex/internal/assemble"
	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/internal/svgrefine"
	"github.com/justlatex/jlatex/internal/synctex"
	"github.com/justlatex/jlatex/internal/texdriver"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Tex.WorkDir = t.TempDir()
	cfg.Tex.Timeout = 10 * time.Second
	return cfg
}

const noFragmentTree = `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"Para","c":[{"t":"Str","c":"hello"}]}]}`

func TestRunPassthroughWithoutFragments(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), testConfig(t), strings.NewReader(noFragmentTree), &out)
	require.NoError(t, err)

	var got, want any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.NoError(t, json.Unmarshal([]byte(noFragmentTree), &want))
	assert.Equal(t, want, got, "tree without fragments round-trips")
}

func TestRunHiddenOnlyPassthrough(t *testing.T) {
	tree := `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"RawBlock","c":["tex","%dontshow\n\\usepackage{tikz}"]}]}`
	var out bytes.Buffer
	err := Run(context.Background(), testConfig(t), strings.NewReader(tree), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "usepackage")
	assert.NotContains(t, out.String(), "<img")
}

func TestRunFailureEchoesInputUnchanged(t *testing.T) {
	// a math fragment forces the pipeline to run; a nonexistent engine makes
	// the driver fail
	tree := `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"Para","c":[{"t":"Math","c":[{"t":"InlineMath"},"x^2"]}]}]}`
	cfg := testConfig(t)
	cfg.Tex.Engine = "definitely-not-a-tex-engine"

	var out bytes.Buffer
	err := Run(context.Background(), cfg, strings.NewReader(tree), &out)
	require.Error(t, err)
	assert.Equal(t, tree, out.String(), "host receives the raw input bytes on failure")
	assert.Equal(t, ExitDriver, ExitCodeFor(err))
}

func TestRunInvalidInputIsIOError(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), testConfig(t), strings.NewReader("{"), &out)
	require.Error(t, err)
	assert.Equal(t, ExitIO, ExitCodeFor(err))
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, ExitOK},
		{&config.ConfigError{Key: "k", Reason: "r"}, ExitConfig},
		{&texdriver.DriverError{Engine: "pdflatex", ExitErr: errors.New("x")}, ExitDriver},
		{&svgrefine.GeneratorError{Reason: "two pages"}, ExitGenerator},
		{&synctex.LocatorError{FragmentID: 1}, ExitLocator},
		{&IOError{Op: "read", Err: errors.New("x")}, ExitIO},
		{&assemble.AssemblyError{Reason: "r"}, ExitInternal},
		{&svgrefine.RefinerError{Reason: "r"}, ExitInternal},
		{errors.New("anything else"), ExitInternal},
		{fmt.Errorf("wrapped: %w", &texdriver.DriverError{Engine: "e", ExitErr: errors.New("x")}), ExitDriver},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, ExitCodeFor(tc.err), "error %v", tc.err)
	}
}
