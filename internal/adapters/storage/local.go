package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadSize is the largest accepted upload
const MaxUploadSize = 10 * 1024 * 1024

var (
	ErrTooLarge    = errors.New("file exceeds the 10MB limit")
	ErrInvalidName = errors.New("invalid file name")
)

// Object is a file handed to the store
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileStore persists uploaded bytes and returns a public URL
type FileStore interface {
	Save(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, url string) error
}

// LocalStore writes files under a directory served at publicPath
type LocalStore struct {
	dir        string
	publicPath string
	now        func() time.Time
}

// NewLocalStore creates the upload directory if needed
func NewLocalStore(dir, publicPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:        dir,
		publicPath: "/" + strings.Trim(publicPath, "/"),
		now:        time.Now,
	}, nil
}

// Dir returns the directory files are written to
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes obj as "<unix-millis>-<name>" and returns its URL
func (s *LocalStore) Save(ctx context.Context, obj Object) (string, error) {
	if obj.Size > MaxUploadSize {
		return "", ErrTooLarge
	}
	name := sanitizeName(obj.Name)
	if name == "" {
		return "", ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("%d-%s", s.now().UnixMilli(), name)
	f, err := os.OpenFile(filepath.Join(s.dir, fileName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	// One byte past the limit is enough to detect an oversize body
	n, err := io.Copy(f, io.LimitReader(obj.Body, MaxUploadSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > MaxUploadSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, fileName))
		return "", err
	}

	return path.Join(s.publicPath, fileName), nil
}

// Delete removes the file behind a URL returned by Save
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	name := strings.TrimPrefix(url, s.publicPath+"/")
	if name == url || name == "" || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Join(strings.Fields(name), "_")
}
