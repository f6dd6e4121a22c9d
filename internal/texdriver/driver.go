package texdriver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justlatex/jlatex/internal/assemble"
	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/pkg/logger"
	"github.com/justlatex/jlatex/pkg/metrics"
)

// DriverError reports a failed engine run with the tail of its log.
type DriverError struct {
	Engine  string
	ExitErr error
	LogTail string
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("tex driver: %s failed: %v\n%s", e.Engine, e.ExitErr, e.LogTail)
}

func (e *DriverError) Unwrap() error { return e.ExitErr }

// Workspace is the per-invocation scratch directory. Its name embeds a UUID
// so parallel host invocations never collide.
type Workspace struct {
	Dir  string
	keep bool
}

// NewWorkspace creates a fresh scratch directory under parent.
func NewWorkspace(parent string, keep bool) (*Workspace, error) {
	dir := filepath.Join(parent, "jlatex-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir, keep: keep}, nil
}

// Cleanup removes the workspace unless it was configured to be kept.
// Callers defer it on every exit path.
func (w *Workspace) Cleanup() {
	if w.keep {
		logger.Infof("keeping scratch workspace %s", w.Dir)
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		logger.Warnf("failed to remove workspace %s: %v", w.Dir, err)
	}
}

// Result points at the artifacts of a successful engine run.
type Result struct {
	PDFPath     string
	SyncTeXPath string
}

// Run writes the assembled source into the workspace as doc.tex and invokes
// the configured engine with an uncompressed SyncTeX index. On a non-zero
// exit the whole filter fails; no partial output is usable.
func Run(ctx context.Context, cfg config.TexConfig, ws *Workspace, source []byte) (*Result, error) {
	texPath := filepath.Join(ws.Dir, assemble.TexFileName)
	if err := os.WriteFile(texPath, source, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", texPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	args := append([]string{}, cfg.Args...)
	args = append(args,
		"--synctex=-1",
		"--interaction=nonstopmode",
		"--output-directory="+ws.Dir,
		assemble.TexFileName,
	)
	cmd := exec.CommandContext(ctx, cfg.Engine, args...)
	cmd.Dir = ws.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	metrics.StageDuration.WithLabelValues("tex").Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tex driver: %s: %w", cfg.Engine, ctxErr)
		}
		return nil, &DriverError{Engine: cfg.Engine, ExitErr: err, LogTail: logTail(ws.Dir, &out)}
	}

	res := &Result{
		PDFPath:     filepath.Join(ws.Dir, "doc.pdf"),
		SyncTeXPath: filepath.Join(ws.Dir, "doc.synctex"),
	}
	for _, p := range []string{res.PDFPath, res.SyncTeXPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, &DriverError{Engine: cfg.Engine, ExitErr: fmt.Errorf("missing output %s", filepath.Base(p)), LogTail: logTail(ws.Dir, &out)}
		}
	}
	logger.Debugf("tex run ok: %s", res.PDFPath)
	return res, nil
}

const tailLines = 40

// logTail prefers the engine's own doc.log; the captured combined output is
// the fallback when the log was never written.
func logTail(dir string, captured *bytes.Buffer) string {
	data, err := os.ReadFile(filepath.Join(dir, "doc.log"))
	if err != nil {
		data = captured.Bytes()
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	return strings.Join(lines, "\n")
}
