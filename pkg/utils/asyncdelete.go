package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/runner"
)

// AsyncDeleter removes directory trees in the background. A clean stage
// renames the tree aside and deletes it while the rebuild already runs;
// Wait joins outstanding deletions before the invocation finishes.
type AsyncDeleter struct {
	group *SafeGroup
	run   runner.Runner
	log   logger.Logger
}

// NewAsyncDeleter returns a deleter whose background work is bounded by
// ctx.
func NewAsyncDeleter(ctx context.Context, log logger.Logger, run runner.Runner) *AsyncDeleter {
	group, _ := NewSafeGroup(ctx, log)
	return &AsyncDeleter{group: group, run: run, log: log}
}

// Remove deletes path. In real mode the tree is renamed aside first, so
// the caller can recreate the directory immediately. While pretending
// the suppressed deletion is only logged.
func (d *AsyncDeleter) Remove(path string) error {
	if d.run.Pretending() {
		return d.run.RemoveAll(path)
	}
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	doomed := fmt.Sprintf("%s.delete-me-%d", path, os.Getpid())
	if err := os.Rename(path, doomed); err != nil {
		// Cross-device or permission trouble: fall back to deleting in
		// place, still off the critical path.
		d.log.Debug("Rename before delete failed, removing in place",
			logger.WithField("path", path),
			logger.WithField("error", err))
		doomed = path
	}
	d.log.Debug("Deleting in background", logger.WithField("path", doomed))
	d.group.Go(func() error {
		if err := d.run.RemoveAll(doomed); err != nil {
			return fmt.Errorf("background delete of %s: %w", filepath.Base(doomed), err)
		}
		return nil
	})
	return nil
}

// Wait joins all pending deletions.
func (d *AsyncDeleter) Wait() error {
	return d.group.Wait()
}
