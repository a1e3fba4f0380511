package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	segmentStrip    = regexp.MustCompile(`[/\\\x00-\x1f]+`)
	segmentCollapse = regexp.MustCompile(`\s+`)
)

// SanitizeSegment normalises a user-supplied value into a safe path segment.
// Path separators, parent references and control characters are stripped and
// whitespace runs become single underscores. An empty result is an error.
func SanitizeSegment(raw string) (string, error) {
	cleaned := segmentStrip.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, "..", "")
	cleaned = segmentCollapse.ReplaceAllString(strings.TrimSpace(cleaned), "_")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "", fmt.Errorf("segment %q is empty after sanitization", raw)
	}
	return cleaned, nil
}

// SanitizeFilename keeps the extension intact while sanitizing the base name.
func SanitizeFilename(raw string) (string, error) {
	ext := filepath.Ext(raw)
	base := strings.TrimSuffix(filepath.Base(raw), ext)
	cleanBase, err := SanitizeSegment(base)
	if err != nil {
		return "", err
	}
	cleanExt := segmentStrip.ReplaceAllString(ext, "")
	cleanExt = strings.ReplaceAll(cleanExt, "..", ".")
	return cleanBase + cleanExt, nil
}

// FileStore persists organization uploads on disk under a base directory.
// Every path it produces stays inside the owning organization's subtree.
type FileStore struct {
	baseDir string
}

// NewFileStore ensures the base directory exists and returns a handle.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// OrgPath returns the relative top-level directory for an organization.
func (s *FileStore) OrgPath(orgID string) (string, error) {
	seg, err := SanitizeSegment(orgID)
	if err != nil {
		return "", err
	}
	return seg + "/", nil
}

// TermPath returns the relative directory for a term/year folder.
func (s *FileStore) TermPath(orgID, term string, year int) (string, error) {
	orgSeg, err := SanitizeSegment(orgID)
	if err != nil {
		return "", err
	}
	termSeg, err := SanitizeSegment(fmt.Sprintf("%s_%d", term, year))
	if err != nil {
		return "", err
	}
	return orgSeg + "/" + termSeg + "/", nil
}

// CoursePath returns the relative directory for a course-scoped folder.
func (s *FileStore) CoursePath(orgID, term string, year int, courseTag, courseID string) (string, error) {
	termPath, err := s.TermPath(orgID, term, year)
	if err != nil {
		return "", err
	}
	courseSeg, err := SanitizeSegment(courseTag + "_" + courseID)
	if err != nil {
		return "", err
	}
	return termPath + courseSeg + "/", nil
}

// EnsureDir creates the directory for a relative path. Safe to call when the
// directory already exists.
func (s *FileStore) EnsureDir(relDir string) error {
	abs, err := s.resolve(relDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	return nil
}

// SaveStream copies from reader into the target file path, creating parent
// directories as needed.
func (s *FileStore) SaveStream(relPath string, r io.Reader) (string, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		_ = os.Remove(abs)
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = os.Remove(abs)
		return "", fmt.Errorf("sync upload file: %w", err)
	}
	return relPath, nil
}

// Open returns a read-only handle for the stored file.
func (s *FileStore) Open(relPath string) (*os.File, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *FileStore) Delete(relPath string) error {
	abs, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *FileStore) Path(relPath string) (string, error) {
	return s.resolve(relPath)
}

// resolve joins the relative path under the base dir and rejects anything
// that would escape it.
func (s *FileStore) resolve(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", relPath)
	}
	abs := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}
	resolved, err := filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("resolve upload path: %w", err)
	}
	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes storage root: %s", relPath)
	}
	return resolved, nil
}
