package filter

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/justlatex/jlatex/internal/assemble"
	"github.com/justlatex/jlatex/internal/asset"
	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/internal/fragment"
	"github.com/justlatex/jlatex/internal/pandoc"
	"github.com/justlatex/jlatex/internal/rewrite"
	"github.com/justlatex/jlatex/internal/svgrefine"
	"github.com/justlatex/jlatex/internal/synctex"
	"github.com/justlatex/jlatex/internal/texdriver"
	"github.com/justlatex/jlatex/pkg/logger"
	"github.com/justlatex/jlatex/pkg/metrics"
)

// Run executes the whole pipeline over one document read from in and writes
// the rewritten tree to out. When the pipeline fails after the input was
// read, the raw input bytes are echoed back instead, so the host receives a
// complete, untouched tree: atomic success or atomic failure. A failure to
// read the input or to write the output leaves nothing echoed.
func Run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return &IOError{Op: "read input tree", Err: err}
	}

	rewritten, err := run(ctx, cfg, raw)
	if err != nil {
		if _, werr := out.Write(raw); werr != nil {
			logger.Errorf("echoing input after failure: %v", werr)
		}
		return err
	}
	if _, err := out.Write(rewritten); err != nil {
		return &IOError{Op: "write output tree", Err: err}
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, raw []byte) ([]byte, error) {
	doc, err := pandoc.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &IOError{Op: "decode input tree", Err: err}
	}

	frags := fragment.Extract(doc.Blocks())
	visible := 0
	for _, f := range frags {
		if f.Kind != fragment.Hidden {
			visible++
		}
	}
	if visible == 0 {
		// hidden-only documents have nothing to render either
		logger.Debug("no visible fragments, tree passes through")
		return encode(doc)
	}
	logger.Infof("extracted %d fragments (%d visible)", len(frags), visible)

	src, err := assemble.Build(frags, cfg.Tex.Preamble, cfg.Tex.Postamble)
	if err != nil {
		return nil, err
	}

	ws, err := texdriver.NewWorkspace(cfg.Tex.WorkDir, cfg.Tex.KeepWork)
	if err != nil {
		return nil, &IOError{Op: "create workspace", Err: err}
	}
	defer ws.Cleanup()

	res, err := texdriver.Run(ctx, cfg.Tex, ws, src.Bytes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := synctex.Open(res.SyncTeXPath)
	if err != nil {
		return nil, &IOError{Op: "open synctex index", Err: err}
	}
	defer idx.Close()

	regions, err := synctex.Locate(idx, src, frags)
	if err != nil {
		return nil, err
	}

	svgPath, err := svgrefine.Generate(ctx, cfg.Dvisvgm, ws.Dir, res.PDFPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	rf, err := svgrefine.Load(svgPath)
	if err != nil {
		return nil, err
	}
	refined := make(map[int]svgrefine.Rect, len(regions))
	for id, reg := range regions {
		loc := svgrefine.Rect{X: reg.X, Y: reg.Y, W: reg.W, H: reg.H}
		refined[id] = rf.Refine(loc, cfg.Refiner.EpsilonPt)
	}
	metrics.StageDuration.WithLabelValues("refine").Observe(time.Since(start).Seconds())

	svgBytes, err := os.ReadFile(svgPath)
	if err != nil {
		return nil, &IOError{Op: "read generated svg", Err: err}
	}
	packed, err := asset.Pack(svgBytes, cfg.Output.MinifySVG)
	if err != nil {
		return nil, err
	}

	if err := rewrite.Apply(doc, frags, regions, refined, packed, cfg); err != nil {
		return nil, err
	}
	return encode(doc)
}

func encode(doc *pandoc.Doc) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return nil, &IOError{Op: "encode output tree", Err: err}
	}
	return buf.Bytes(), nil
}
