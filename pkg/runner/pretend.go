package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/cheribuild/cheribuild/pkg/logger"
)

// Pretend logs what would happen and performs nothing. It never reads
// the filesystem or spawns a process, so a pretend invocation works
// with missing toolchains and read-only trees.
type Pretend struct {
	log logger.Logger
}

// NewPretend returns a runner that only logs.
func NewPretend(log logger.Logger) *Pretend {
	return &Pretend{log: log}
}

func (p *Pretend) Run(ctx context.Context, cmd Command) error {
	p.announce("run: %s", cmd.String())
	return nil
}

// Output pretends the command produced nothing. Callers treat the
// result as advisory, the same way a missing tool would be.
func (p *Pretend) Output(ctx context.Context, cmd Command) ([]byte, error) {
	p.announce("run: %s", cmd.String())
	return nil, nil
}

func (p *Pretend) MkdirAll(path string) error {
	p.announce("mkdir -p %s", path)
	return nil
}

func (p *Pretend) RemoveAll(path string) error {
	p.announce("rm -rf %s", path)
	return nil
}

func (p *Pretend) WriteFile(path string, data []byte, perm os.FileMode) error {
	p.announce("write %d bytes to %s", len(data), path)
	return nil
}

func (p *Pretend) CreateTarball(dir, archivePath string) error {
	p.announce("archive %s -> %s", dir, archivePath)
	return nil
}

func (p *Pretend) ExtractTarball(archivePath, dest string) error {
	p.announce("extract %s -> %s", archivePath, dest)
	return nil
}

func (p *Pretend) Pretending() bool { return true }

func (p *Pretend) announce(format string, args ...interface{}) {
	p.log.Info(fmt.Sprintf("Would "+format, args...))
}
