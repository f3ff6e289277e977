//go:build !(darwin || linux)

package native

import (
	"go.uber.org/zap"

	"github.com/wippyai/rubyext/abi"
	"github.com/wippyai/rubyext/errors"
)

// LibraryEnv names the environment variable consulted when Options.Library
// is empty.
const LibraryEnv = "RUBYEXT_LIBRUBY"

// Options configures how libruby is loaded.
type Options struct {
	Logger *zap.Logger
	// Library is the path of libruby. Empty means $RUBYEXT_LIBRUBY, then
	// the platform default name.
	Library string
	// Setup initializes the VM with ruby_setup. Leave false when the Go code
	// runs inside an already running Ruby process.
	Setup bool
}

// DefaultOptions returns default loading configuration.
func DefaultOptions() Options {
	return Options{Setup: true}
}

// Runtime is never constructed on this platform.
type Runtime struct {
	abi.Runtime
}

// Close is a no-op.
func (r *Runtime) Close() error { return nil }

// Open always fails: dynamic loading is only wired for darwin and linux.
func Open(Options) (*Runtime, error) {
	return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
		Detail("libruby loading is not supported on this platform").
		Build()
}
