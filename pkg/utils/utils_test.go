package utils_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

func testLogger() logger.Logger {
	return logger.CreateLoggerWithOutput("", "debug", &bytes.Buffer{})
}

func TestSafeGroupRecoversPanic(t *testing.T) {
	group, _ := utils.NewSafeGroup(context.Background(), testLogger())
	group.Go(func() error {
		panic("boom")
	})
	err := group.Wait()
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not name the panic", err)
	}
}

func TestSafeGroupPropagatesError(t *testing.T) {
	group, _ := utils.NewSafeGroup(context.Background(), testLogger())
	want := errors.New("task failed")
	group.Go(func() error { return want })
	group.Go(func() error { return nil })
	if err := group.Wait(); !errors.Is(err, want) {
		t.Errorf("Wait = %v, want %v", err, want)
	}
}

func TestAsyncDeleterRemoves(t *testing.T) {
	root := t.TempDir()
	doomed := filepath.Join(root, "build")
	if err := os.MkdirAll(filepath.Join(doomed, "obj"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(doomed, "obj", "a.o"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := utils.NewAsyncDeleter(context.Background(), testLogger(), runner.NewReal(testLogger(), ""))
	if err := d.Remove(doomed); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// The tree is renamed aside immediately, so the path is free before
	// the background delete finishes.
	if _, err := os.Lstat(doomed); !os.IsNotExist(err) {
		t.Error("path still occupied after Remove returned")
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not fully deleted: %v", entries)
	}
}

func TestAsyncDeleterMissingPath(t *testing.T) {
	d := utils.NewAsyncDeleter(context.Background(), testLogger(), runner.NewReal(testLogger(), ""))
	if err := d.Remove(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("Remove of missing path: %v", err)
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestAsyncDeleterPretend(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "build")
	if err := os.MkdirAll(keep, 0o755); err != nil {
		t.Fatal(err)
	}

	d := utils.NewAsyncDeleter(context.Background(), testLogger(), runner.NewPretend(testLogger()))
	if err := d.Remove(keep); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("pretend deleter touched the tree")
	}
}

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/cheri", filepath.Join(home, "cheri")},
		{"~", home},
		{"/a/b/../c", "/a/c"},
	}
	for _, tt := range tests {
		if got := utils.NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := utils.NormalizePath("relative/dir"); !filepath.IsAbs(got) {
		t.Errorf("NormalizePath(relative) = %q, want absolute", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := utils.FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExistenceHelpers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !utils.FileExists(file) || utils.FileExists(dir) {
		t.Error("FileExists misreports")
	}
	if !utils.DirectoryExists(dir) || utils.DirectoryExists(file) {
		t.Error("DirectoryExists misreports")
	}
}
