// Package storage keeps attachment bytes outside the database.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds upload limit")

// Object describes a stored file.
type Object struct {
	Path        string
	URL         string
	Size        int64
	ContentType string
	// Digest is the hex blake3 sum of the stored bytes.
	Digest string
}

// FileStore uploads files and resolves their public URLs.
type FileStore interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (Object, error)
	Delete(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
}

// ObjectPath returns a fresh location for an attachment of ticketID. Every
// call yields a distinct path, so removing one upload never touches another.
func ObjectPath(ticketID, fileName string) string {
	return path.Join("tickets", sanitizeSegment(ticketID), uuid.NewString(), SanitizeFileName(fileName))
}

// SanitizeFileName strips directories and characters unsafe in a path segment.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = sanitizeSegment(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}

// FilesystemStore stores objects under a root directory.
type FilesystemStore struct {
	root     string
	baseURL  string
	maxBytes int64
}

// NewFilesystemStore creates the root directory when missing.
func NewFilesystemStore(root, baseURL string, maxBytes int64) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FilesystemStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Root returns the directory objects are written to.
func (s *FilesystemStore) Root() string {
	return s.root
}

// Upload writes r to objectPath. A partially written file is removed on failure.
func (s *FilesystemStore) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	full, err := s.resolve(objectPath)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	hasher := blake3.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write file: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		return Object{}, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return Object{}, fmt.Errorf("move file: %w", err)
	}

	return Object{
		Path:        objectPath,
		URL:         s.PublicURL(objectPath),
		Size:        written,
		ContentType: contentType,
		Digest:      hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Delete removes objectPath; a missing object is not an error.
func (s *FilesystemStore) Delete(ctx context.Context, objectPath string) error {
	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL returns the address the API serves objectPath from.
func (s *FilesystemStore) PublicURL(objectPath string) string {
	segments := strings.Split(strings.TrimPrefix(objectPath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

func (s *FilesystemStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
