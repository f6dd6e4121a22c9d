package svgrefine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/pkg/logger"
	"github.com/justlatex/jlatex/pkg/metrics"
)

// GeneratorError reports a dvisvgm failure or an over-long document.
type GeneratorError struct {
	Reason string
	Err    error
}

func (e *GeneratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("svg generator: %s: %v", e.Reason, e.Err)
	}
	return "svg generator: " + e.Reason
}

func (e *GeneratorError) Unwrap() error { return e.Err }

// Generate converts the PDF to SVG inside the workspace and returns the path
// of the single page image. Producing more pages than max_pages allows is an
// error: a fragment straddling a page break has no usable geometry.
func Generate(ctx context.Context, cfg config.DvisvgmConfig, workDir, pdfPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	args := append([]string{}, cfg.Args...)
	args = append(args,
		"--page=1-",
		"-o", filepath.Join(workDir, "doc-%p.svg"),
		pdfPath,
	)
	cmd := exec.CommandContext(ctx, cfg.Path, args...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	metrics.StageDuration.WithLabelValues("dvisvgm").Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("svg generator: %s: %w", cfg.Path, ctxErr)
		}
		return "", &GeneratorError{Reason: fmt.Sprintf("%s failed: %s", cfg.Path, bytes.TrimSpace(out.Bytes())), Err: err}
	}

	pages, err := filepath.Glob(filepath.Join(workDir, "doc-*.svg"))
	if err != nil {
		return "", &GeneratorError{Reason: "listing output pages", Err: err}
	}
	sort.Strings(pages)
	switch {
	case len(pages) == 0:
		return "", &GeneratorError{Reason: "dvisvgm produced no output"}
	case len(pages) > cfg.MaxPages:
		return "", &GeneratorError{Reason: fmt.Sprintf("document produced %d pages, at most %d allowed", len(pages), cfg.MaxPages)}
	}
	logger.Debugf("dvisvgm wrote %s", pages[0])
	return pages[0], nil
}
