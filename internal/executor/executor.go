// Package executor spawns units as local processes.
package executor

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/me/relay/internal/process"
	"github.com/me/relay/pkg/model"
)

// Launcher builds process handles for unit specs.
type Launcher struct {
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewLauncher creates a Launcher. Relative unit directories resolve against
// workDir; units without their own timeout get timeout.
func NewLauncher(workDir string, timeout time.Duration, logger *slog.Logger) *Launcher {
	return &Launcher{workDir: workDir, timeout: timeout, logger: logger}
}

// Handle returns an unstarted process for spec.
func (l *Launcher) Handle(spec model.UnitSpec) (process.Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("unit %s: command is empty", spec.Name)
	}

	dir := spec.Dir
	if dir == "" {
		dir = l.workDir
	} else if !filepath.IsAbs(dir) && l.workDir != "" {
		dir = filepath.Join(l.workDir, dir)
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = l.timeout
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}

	return NewLocalProcess(spec.Command, dir, env, timeout, l.logger.With("unit", spec.Name)), nil
}
