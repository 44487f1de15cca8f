// Package archive prepares code archives for upload.
//
// The backend accepts a single zip per session, unpacks it and counts the
// TypeScript and JavaScript sources. This package builds that zip from a
// source directory and checks an existing one the same way the backend will,
// so a bad archive fails before it is sent.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultExcludes are directory names never packed: dependencies, VCS
// metadata and build output.
var DefaultExcludes = []string{"node_modules", ".git", "dist", "build", "coverage", ".next", ".turbo"}

var (
	// nameDisallowed matches anything not in [a-z0-9-_].
	nameDisallowed = regexp.MustCompile(`[^a-z0-9\-_]`)
	nameHyphens    = regexp.MustCompile(`-{2,}`)
)

// ErrInvalidEntry is returned for entries that would unpack outside the
// target directory.
var ErrInvalidEntry = errors.New("invalid zip entry")

// Summary counts an archive's contents the way the backend analysis does.
type Summary struct {
	TotalFiles      int
	TypescriptFiles int
	JavascriptFiles int
	TotalBytes      int64
}

// TotalSizeMB returns the uncompressed size in megabytes.
func (s Summary) TotalSizeMB() float64 {
	return float64(s.TotalBytes) / 1024.0 / 1024.0
}

// IsZip reports whether p names a regular file with a .zip extension.
func IsZip(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && strings.EqualFold(filepath.Ext(p), ".zip")
}

// ZipDirectory creates a zip of dir's contents in the temp directory. Entries
// are relative to dir. Directories named in excludes are skipped; nil means
// DefaultExcludes.
//
// Parameters:
//   - dir: The source directory
//   - excludes: Directory names to skip
//
// Returns:
//   - string: Path to the created .zip file (caller should clean up with os.Remove)
//   - error: Any error that occurred
func ZipDirectory(dir string, excludes []string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dir)
	}
	if excludes == nil {
		excludes = DefaultExcludes
	}
	skip := make(map[string]bool, len(excludes))
	for _, e := range excludes {
		skip[e] = true
	}

	zipFile, err := os.CreateTemp("", tempPattern(dir))
	if err != nil {
		return "", fmt.Errorf("failed to create zip file: %w", err)
	}
	zipPath := zipFile.Name()

	zipWriter := zip.NewWriter(zipFile)

	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		if info.IsDir() && skip[info.Name()] {
			return filepath.SkipDir
		}

		relPath, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(relPath)

		// Links may point outside the tree; the backend would not follow them.
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if info.IsDir() {
			_, err := zipWriter.Create(name + "/")
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(p)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})

	// zipWriter.Close() writes the central directory.
	if closeErr := zipWriter.Close(); closeErr != nil {
		zipFile.Close()
		os.Remove(zipPath)
		if err != nil {
			return "", fmt.Errorf("failed to create zip: %w (also failed to close: %v)", err, closeErr)
		}
		return "", fmt.Errorf("failed to finalize zip archive: %w", closeErr)
	}

	if closeErr := zipFile.Close(); closeErr != nil {
		os.Remove(zipPath)
		if err != nil {
			return "", fmt.Errorf("failed to create zip: %w (also failed to close file: %v)", err, closeErr)
		}
		return "", fmt.Errorf("failed to close zip file: %w", closeErr)
	}

	if err != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("failed to create zip: %w", err)
	}

	return zipPath, nil
}

// Inspect opens a zip, rejects entries that would unpack outside the target
// directory and counts its files.
//
// Parameters:
//   - zipPath: The archive to check
//
// Returns:
//   - Summary: File counts and uncompressed size
//   - error: ErrInvalidEntry for an unsafe entry, or any read error
func Inspect(zipPath string) (Summary, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	var s Summary
	for _, f := range r.File {
		if !safeEntry(f.Name) {
			return Summary{}, fmt.Errorf("%w: %s", ErrInvalidEntry, f.Name)
		}
		if f.FileInfo().IsDir() {
			continue
		}

		s.TotalFiles++
		s.TotalBytes += int64(f.UncompressedSize64)
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".ts", ".tsx":
			s.TypescriptFiles++
		case ".js", ".jsx":
			s.JavascriptFiles++
		}
	}
	return s, nil
}

// safeEntry reports whether name stays inside the unpack directory.
func safeEntry(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return false
	}
	if len(name) >= 2 && name[1] == ':' {
		return false
	}
	clean := path.Clean(name)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// tempPattern names the temporary zip after the packed directory, e.g.
// "snabel-my-shop-*.zip" for "./My Shop".
func tempPattern(dir string) string {
	name := ArchiveName(dir)
	if name == "" {
		return "snabel-upload-*.zip"
	}
	return "snabel-" + name + "-*.zip"
}

// ArchiveName converts a directory's base name to a filesystem-safe archive
// stem: lower case, spaces to hyphens, anything outside [a-z0-9-_] dropped.
func ArchiveName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return ""
		}
		base = filepath.Base(abs)
	}
	s := strings.ToLower(base)
	s = strings.ReplaceAll(s, " ", "-")
	s = nameDisallowed.ReplaceAllString(s, "")
	s = nameHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
