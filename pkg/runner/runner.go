// Package runner is the boundary every externally visible mutation
// passes through: process spawns, directory and file writes, archive
// creation and extraction. Lifecycle implementations never touch the
// filesystem or exec directly, so swapping in the pretend runner makes
// a whole invocation side-effect free.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheribuild/cheribuild/pkg/archive"
	"github.com/cheribuild/cheribuild/pkg/logger"
)

// Command describes one external process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env entries are appended to the inherited environment.
	Env map[string]string
}

// String renders the command the way a shell user would type it.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes mutations on behalf of lifecycle implementations.
type Runner interface {
	// Run executes the command, streaming combined output to the build
	// log, and fails with the captured output on a non-zero exit.
	Run(ctx context.Context, cmd Command) error

	// Output executes the command and returns its stdout. Meant for
	// read-only probes such as version queries.
	Output(ctx context.Context, cmd Command) ([]byte, error)

	MkdirAll(path string) error
	RemoveAll(path string) error
	WriteFile(path string, data []byte, perm os.FileMode) error

	CreateTarball(dir, archivePath string) error
	ExtractTarball(archivePath, dest string) error

	// Pretending reports whether mutations are being suppressed.
	Pretending() bool
}

// Real executes commands and filesystem operations for real. One Real
// runner serves one target; its log file collects that target's build
// output.
type Real struct {
	log     logger.Logger
	logPath string
}

// NewReal returns a runner logging through log. When logPath is
// non-empty, combined process output is appended there as well.
func NewReal(log logger.Logger, logPath string) *Real {
	return &Real{log: log, logPath: logPath}
}

// ForTarget returns a runner whose build log is the target's own file in
// the same directory as the shared log. Without a log path the receiver
// is returned unchanged.
func (r *Real) ForTarget(name string) Runner {
	if r.logPath == "" {
		return r
	}
	return &Real{log: r.log, logPath: filepath.Join(filepath.Dir(r.logPath), name+".log")}
}

func (r *Real) Run(ctx context.Context, cmd Command) error {
	logFile := r.openLogFile()
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	start := time.Now()
	if logFile != nil {
		fmt.Fprintf(logFile, "\n=== %s at %s ===\n", cmd.String(), start.Format("2006-01-02 15:04:05"))
	}
	r.log.Info("Running command", logger.WithField("command", cmd.String()))

	var output bytes.Buffer
	var sink io.Writer = &output
	if logFile != nil {
		sink = io.MultiWriter(&output, logFile)
	}

	c := r.build(ctx, cmd)
	c.Stdout = sink
	c.Stderr = sink

	err := c.Run()
	duration := time.Since(start)
	if err != nil {
		if logFile != nil {
			fmt.Fprintf(logFile, "\n=== FAILED after %s: %v ===\n", duration, err)
		}
		return fmt.Errorf("command %q failed: %w\n%s", cmd.String(), err, output.Bytes())
	}
	if logFile != nil {
		fmt.Fprintf(logFile, "\n=== succeeded after %s ===\n", duration)
	}
	r.log.Debug("Command finished", logger.WithField("duration", duration.String()))
	return nil
}

func (r *Real) Output(ctx context.Context, cmd Command) ([]byte, error) {
	c := r.build(ctx, cmd)
	var stdout bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = io.Discard
	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("command %q failed: %w", cmd.String(), err)
	}
	return stdout.Bytes(), nil
}

func (r *Real) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = os.Environ()
		for k, v := range cmd.Env {
			c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return c
}

func (r *Real) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (r *Real) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (r *Real) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func (r *Real) CreateTarball(dir, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	if err := archive.Create(dir, archivePath); err != nil {
		return err
	}
	manifest, err := archive.WriteManifest(archivePath)
	if err != nil {
		return err
	}
	r.log.Debug("Wrote archive manifest", logger.WithField("manifest", manifest))
	return nil
}

func (r *Real) ExtractTarball(archivePath, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return archive.Extract(archivePath, dest)
}

func (r *Real) Pretending() bool { return false }

func (r *Real) openLogFile() *os.File {
	if r.logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.logPath), 0o755); err != nil {
		r.log.Warn("Failed to create log directory", logger.WithField("error", err))
		return nil
	}
	f, err := os.OpenFile(r.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		r.log.Warn("Failed to open log file", logger.WithField("error", err))
		return nil
	}
	return f
}
