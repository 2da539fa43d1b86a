package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// ChecksumMismatchError reports an archive whose content hash no longer
// matches its recorded manifest.
type ChecksumMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: recorded %s, computed %s", e.Path, e.Want, e.Got)
}

// Checksum returns the hex BLAKE3 digest of a file.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// WriteManifest records the archive's digest next to it in b3sum line
// format, so the file is checkable with the standalone tool as well.
func WriteManifest(archivePath string) (string, error) {
	sum, err := Checksum(archivePath)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(archivePath))
	if err := os.WriteFile(manifestPath(archivePath), []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("write manifest for %s: %w", archivePath, err)
	}
	return manifestPath(archivePath), nil
}

// VerifyManifest recomputes the archive digest and compares it with the
// recorded manifest. A missing manifest is an error distinct from a
// mismatch.
func VerifyManifest(archivePath string) error {
	f, err := os.Open(manifestPath(archivePath))
	if err != nil {
		return fmt.Errorf("open manifest for %s: %w", archivePath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return fmt.Errorf("manifest for %s is empty", archivePath)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 {
		return fmt.Errorf("manifest for %s is malformed", archivePath)
	}
	want := fields[0]

	got, err := Checksum(archivePath)
	if err != nil {
		return err
	}
	if got != want {
		return &ChecksumMismatchError{Path: archivePath, Want: want, Got: got}
	}
	return nil
}

func manifestPath(archivePath string) string {
	return archivePath + ".b3sum"
}
