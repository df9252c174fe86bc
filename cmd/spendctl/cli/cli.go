// Package cli implements the spendctl operator commands. Each command writes its
// result to the configured writers and returns a process exit code.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spendboard/spendboard/internal/fx"
	"github.com/spendboard/spendboard/internal/reports"
)

// Exit codes shared by every command.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitNotFound     = 3
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// Deps are the collaborators a command may use. Store is nil when the command
// runs without a cache.
type Deps struct {
	Policy  fx.Policy
	Logger  *slog.Logger
	Store   reports.Store
	Metrics *reports.Metrics
}

// OpsCLI offers operational helpers around aggregation runs and the period cache.
type OpsCLI struct {
	deps Deps
}

// NewOpsCLI constructs a new helper instance.
func NewOpsCLI(deps Deps) *OpsCLI {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OpsCLI{deps: deps}
}

func (c *OpsCLI) service(withStore bool) *reports.Service {
	var store reports.Store
	if withStore {
		store = c.deps.Store
	}
	return reports.NewService(store, c.deps.Logger, c.deps.Policy, c.deps.Metrics)
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
