package archive_test

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cheribuild/cheribuild/pkg/archive"
)

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "usr", "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "usr", "bin", "cc"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("sysroot\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("usr/bin/cc", filepath.Join(dir, "cc")); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestCreateExtractRoundTrip(t *testing.T) {
	for _, ext := range []string{".tar", ".tar.gz", ".tar.xz"} {
		t.Run(ext, func(t *testing.T) {
			src := makeTree(t)
			path := filepath.Join(t.TempDir(), "sysroot"+ext)
			if err := archive.Create(src, path); err != nil {
				t.Fatalf("Create: %v", err)
			}

			dest := t.TempDir()
			if err := archive.Extract(path, dest); err != nil {
				t.Fatalf("Extract: %v", err)
			}

			data, err := os.ReadFile(filepath.Join(dest, "usr", "bin", "cc"))
			if err != nil {
				t.Fatalf("extracted file missing: %v", err)
			}
			if string(data) != "#!/bin/sh\n" {
				t.Errorf("extracted content = %q", data)
			}
			link, err := os.Readlink(filepath.Join(dest, "cc"))
			if err != nil {
				t.Fatalf("extracted symlink missing: %v", err)
			}
			if link != "usr/bin/cc" {
				t.Errorf("symlink target = %q, want usr/bin/cc", link)
			}
		})
	}
}

func TestCreateUnsupportedFormat(t *testing.T) {
	src := makeTree(t)
	err := archive.Create(src, filepath.Join(t.TempDir(), "sysroot.zip"))
	var unsupported *archive.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.tar")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(f)
	hdr := &tar.Header{Name: "../escape", Mode: 0o644, Size: 4, Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("oops")); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	f.Close()

	if err := archive.Extract(path, t.TempDir()); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	src := makeTree(t)
	path := filepath.Join(t.TempDir(), "sysroot.tar.gz")
	if err := archive.Create(src, path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	manifest, err := archive.WriteManifest(path)
	if err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	if manifest != path+".b3sum" {
		t.Errorf("manifest path = %q, want %q", manifest, path+".b3sum")
	}
	if err := archive.VerifyManifest(path); err != nil {
		t.Fatalf("VerifyManifest: %v", err)
	}
}

func TestManifestDetectsCorruption(t *testing.T) {
	src := makeTree(t)
	path := filepath.Join(t.TempDir(), "sysroot.tar")
	if err := archive.Create(src, path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := archive.WriteManifest(path); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("corruption")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	err = archive.VerifyManifest(path)
	var mismatch *archive.ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ChecksumMismatchError, got %v", err)
	}
	if mismatch.Want == mismatch.Got {
		t.Error("mismatch error carries identical digests")
	}
}

func TestVerifyManifestMissing(t *testing.T) {
	src := makeTree(t)
	path := filepath.Join(t.TempDir(), "sysroot.tar")
	if err := archive.Create(src, path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := archive.VerifyManifest(path)
	if err == nil {
		t.Fatal("expected missing manifest error")
	}
	var mismatch *archive.ChecksumMismatchError
	if errors.As(err, &mismatch) {
		t.Error("missing manifest must not report a mismatch")
	}
}
