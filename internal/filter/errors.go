package filter

import (
	"errors"

	"github.com/justlatex/jlatex/internal/assemble"
	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/internal/svgrefine"
	"github.com/justlatex/jlatex/internal/synctex"
	"github.com/justlatex/jlatex/internal/texdriver"
)

// Exit codes of the filter process, as consumed by the host.
const (
	ExitOK        = 0
	ExitInternal  = 1 // assembly/refiner inconsistencies, cancellation
	ExitConfig    = 2
	ExitDriver    = 3
	ExitGenerator = 4
	ExitLocator   = 5
	ExitIO        = 6
)

// ExitCodeFor maps any pipeline error onto the documented exit codes.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		cfgErr *config.ConfigError
		drvErr *texdriver.DriverError
		genErr *svgrefine.GeneratorError
		locErr *synctex.LocatorError
		asmErr *assemble.AssemblyError
		refErr *svgrefine.RefinerError
		ioErr  *IOError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &drvErr):
		return ExitDriver
	case errors.As(err, &genErr):
		return ExitGenerator
	case errors.As(err, &locErr):
		return ExitLocator
	case errors.As(err, &ioErr):
		return ExitIO
	case errors.As(err, &asmErr), errors.As(err, &refErr):
		return ExitInternal
	}
	return ExitInternal
}

// IOError wraps filesystem and stream failures outside the subprocess
// boundaries.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "io: " + e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }
