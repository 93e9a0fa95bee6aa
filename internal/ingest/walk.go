package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
)

// DefaultMaxFileSize is the largest policy document read (4 MB).
const DefaultMaxFileSize int64 = 4 << 20

// ErrNoPaths is returned when nothing was given to index.
var ErrNoPaths = errors.New("no document paths provided")

// skipDirs are directory names never descended into.
var skipDirs = []string{".git", "node_modules", ".claimwise", "vendor", ".venv"}

// File is one policy document found during discovery.
type File struct {
	Path        string // Absolute path on disk.
	Source      string // Path as reported in clause metadata, slash separated.
	Size        int64
	ContentHash string // SHA-256 hex digest of the file content.
}

// Markdown reports whether the file is converted from Markdown before chunking.
func (f File) Markdown() bool {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Supported reports whether path has an extension the indexer can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md", ".markdown":
		return true
	}
	return false
}

// Discover resolves paths into policy documents. Directories are walked and
// filtered with the include and exclude globs; files named directly are
// taken as is but must have a supported extension. Every path that cannot
// be used is reported in the returned error while the rest are still
// returned.
func Discover(paths, include, exclude []string, maxSize int64) ([]File, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var (
		files  []File
		result *multierror.Error
		seen   = map[string]bool{}
	)
	add := func(f File) {
		if !seen[f.Path] {
			seen[f.Path] = true
			files = append(files, f)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", p, err))
			continue
		}

		if !info.IsDir() {
			if !Supported(p) {
				result = multierror.Append(result, fmt.Errorf("%s: unsupported document type", p))
				continue
			}
			f, err := fileInfo(p, filepath.ToSlash(filepath.Clean(p)), maxSize)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			add(f)
			continue
		}

		found, err := walkDir(p, include, exclude, maxSize)
		if err != nil {
			result = multierror.Append(result, err)
		}
		for _, f := range found {
			add(f)
		}
	}

	return files, result.ErrorOrNil()
}

func walkDir(dir string, include, exclude []string, maxSize int64) ([]File, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve %s: %w", dir, err)
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}

		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Supported(path) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if !MatchesInclude(relPath, include) || MatchesExclude(relPath, exclude) {
			return nil
		}

		f, err := fileInfo(path, filepath.ToSlash(filepath.Join(dir, relPath)), maxSize)
		if err != nil {
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: walk %s: %w", dir, err)
	}
	return files, nil
}

func fileInfo(path, source string, maxSize int64) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	if info.Size() > maxSize {
		return File{}, fmt.Errorf("%s: file exceeds %d bytes", path, maxSize)
	}
	if isBinary(abs) {
		return File{}, fmt.Errorf("%s: binary content", path)
	}
	hash, err := hashFile(abs)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return File{Path: abs, Source: source, Size: info.Size(), ContentHash: hash}, nil
}

func shouldSkipDir(name string) bool {
	for _, s := range skipDirs {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

// MatchesInclude returns true if the given relative path matches any of the
// include patterns. If patterns is empty, everything is included.
func MatchesInclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(relPath, patterns)
}

// MatchesExclude returns true if the given relative path matches any of the
// exclude patterns. If patterns is empty, nothing is excluded.
func MatchesExclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	return matchesAny(relPath, patterns)
}

// matchesAny checks relPath, then its base name, against each pattern.
func matchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(normalized)

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

// isBinary reports whether the first 512 bytes contain a NUL byte.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
