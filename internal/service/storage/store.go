package storage

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trackscan/internal/apperror"
	"trackscan/internal/config"
	"trackscan/internal/dto"
	"trackscan/internal/logger"

	"github.com/google/uuid"
)

const (
	// StaticURLPrefix is the URL path under which the static directory is served.
	StaticURLPrefix = "/static/"

	// maxNameAttempts bounds the exclusive-create retries of one upload.
	maxNameAttempts = 16
)

// Store persists raw uploads and annotated results in two sibling directories
// below the static directory.
type Store struct {
	uploadDir string
	resultDir string
	uploadURL string
	resultURL string
	strategy  string
	maxBytes  int64
	logger    *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewStore creates the upload and result directories and returns a Store over them.
func NewStore(cfg *config.Config, logger *logger.Logger) (*Store, error) {
	uploadURL, err := publicPrefix(cfg.StaticDirectory, cfg.UploadDirectory)
	if err != nil {
		return nil, err
	}
	resultURL, err := publicPrefix(cfg.StaticDirectory, cfg.ResultDirectory)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.UploadDirectory, cfg.ResultDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &Store{
		uploadDir: cfg.UploadDirectory,
		resultDir: cfg.ResultDirectory,
		uploadURL: uploadURL,
		resultURL: resultURL,
		strategy:  cfg.FilenameStrategy,
		maxBytes:  cfg.MaxUploadBytes(),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// publicPrefix returns the URL prefix of dir, which must live below staticDir.
func publicPrefix(staticDir, dir string) (string, error) {
	rel, err := filepath.Rel(staticDir, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory %s must be inside static directory %s", dir, staticDir)
	}
	return StaticURLPrefix + filepath.ToSlash(rel) + "/", nil
}

// SaveUpload writes the bytes of r under a new stored name derived from originalName.
// An existing file is never overwritten.
func (s *Store) SaveUpload(originalName string, r io.Reader) (*dto.StoredImage, error) {
	base, err := SanitizeName(originalName)
	if err != nil {
		return nil, err
	}

	storedAt := s.now()
	file, name, err := s.createExclusive(base, storedAt)
	if err != nil {
		return nil, err
	}
	fullPath := file.Name()

	written, err := io.Copy(file, io.LimitReader(r, s.maxBytes+1))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write upload %s: %v: %w", name, err, apperror.ErrStorageFailure)
	}

	if written == 0 || written > s.maxBytes {
		os.Remove(fullPath)
		if written == 0 {
			return nil, fmt.Errorf("upload %s is empty: %w", base, apperror.ErrInvalidUpload)
		}
		return nil, fmt.Errorf("upload %s exceeds %d bytes: %w", base, s.maxBytes, apperror.ErrInvalidUpload)
	}

	s.logger.Info("Stored upload %s (%d bytes)", name, written)

	return &dto.StoredImage{
		Filename:     name,
		OriginalName: base,
		Path:         fullPath,
		Size:         written,
		StoredAt:     storedAt,
	}, nil
}

// createExclusive creates the upload file with O_EXCL. On a name clash of the
// second-resolution timestamp it falls back to nanosecond prefixes.
func (s *Store) createExclusive(base string, at time.Time) (*os.File, string, error) {
	var name string
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		switch {
		case s.strategy == config.FilenameUUID:
			name = fmt.Sprintf("%s_%s", s.newID(), base)
		case attempt == 0:
			name = fmt.Sprintf("%d_%s", at.Unix(), base)
		default:
			name = fmt.Sprintf("%d_%s", at.UnixNano()+int64(attempt-1), base)
		}

		file, err := os.OpenFile(filepath.Join(s.uploadDir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return file, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create upload %s: %v: %w", name, err, apperror.ErrStorageFailure)
		}
		s.logger.Warning("Upload name %s already taken, retrying", name)
	}
	return nil, "", fmt.Errorf("no free name for upload %s: %w", base, apperror.ErrStorageFailure)
}

// SanitizeName reduces a client-supplied filename to a safe base name.
func SanitizeName(originalName string) (string, error) {
	if strings.ContainsRune(originalName, 0) {
		return "", fmt.Errorf("filename contains NUL byte: %w", apperror.ErrInvalidUpload)
	}

	// Some browsers send the full client path, with either separator.
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(originalName), "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("missing filename: %w", apperror.ErrInvalidUpload)
	}
	return base, nil
}

// ValidName reports whether name can address a stored file.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// ParseStoredName splits a stored name into its prefix time (zero for uuid
// names) and the original filename.
func ParseStoredName(name string) (time.Time, string, bool) {
	prefix, original, found := strings.Cut(name, "_")
	if !found || original == "" {
		return time.Time{}, "", false
	}

	if _, err := uuid.Parse(prefix); err == nil {
		return time.Time{}, original, true
	}

	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || n < 0 {
		return time.Time{}, "", false
	}
	// Nanosecond fallback prefixes are 19 digits long.
	if len(prefix) >= 16 {
		return time.Unix(0, n), original, true
	}
	return time.Unix(n, 0), original, true
}

// UploadPath returns the on-disk path of a stored upload.
func (s *Store) UploadPath(name string) string {
	return filepath.Join(s.uploadDir, name)
}

// ResultPath returns the on-disk path of an annotated result.
func (s *Store) ResultPath(name string) string {
	return filepath.Join(s.resultDir, name)
}

// ResultDir returns the results directory.
func (s *Store) ResultDir() string {
	return s.resultDir
}

// UploadURL returns the public URL of a stored upload.
func (s *Store) UploadURL(name string) string {
	return s.uploadURL + url.PathEscape(name)
}

// ResultURL returns the public URL of an annotated result.
func (s *Store) ResultURL(name string) string {
	return s.resultURL + url.PathEscape(name)
}

// RemoveArtifacts deletes the upload and the result stored under name and
// returns how many of the two files existed.
func (s *Store) RemoveArtifacts(name string) (int, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("invalid stored name %q: %w", name, apperror.ErrInvalidUpload)
	}
	removed := 0
	for _, p := range []string{s.UploadPath(name), s.ResultPath(name)} {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case !os.IsNotExist(err):
			return removed, fmt.Errorf("failed to delete %s: %v: %w", p, err, apperror.ErrStorageFailure)
		}
	}
	return removed, nil
}

// Clear deletes every regular file from the upload and result directories.
func (s *Store) Clear() (int, error) {
	removed := 0
	for _, dir := range []string{s.uploadDir, s.resultDir} {
		files, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, file := range files {
			if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
				continue
			}
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				s.logger.Error("Error deleting file %s: %v", file.Name(), err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// ListResults returns the names of all annotated results.
func (s *Store) ListResults() ([]string, error) {
	files, err := os.ReadDir(s.resultDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.resultDir, err)
	}

	var names []string
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		names = append(names, file.Name())
	}
	return names, nil
}

// DirectorySize returns the total size in bytes of uploads and results.
func (s *Store) DirectorySize() (int64, error) {
	var total int64
	for _, dir := range []string{s.uploadDir, s.resultDir} {
		err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to measure %s: %w", dir, err)
		}
	}
	return total, nil
}
