// Package upload validates user images and hands them to a storage backend:
// S3 when a bucket is configured, the local disk otherwise.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const DefaultMaxBytes = 5 << 20

var (
	ErrTooLarge        = errors.New("upload: file is too large")
	ErrUnsupportedType = errors.New("upload: only jpeg, png, webp and gif images are accepted")
	ErrInvalidFolder   = errors.New("upload: unknown folder")
)

// Folders a client may upload into. An empty folder means "misc".
var Folders = map[string]bool{"avatars": true, "pickups": true, "waste": true}

var allowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// Storage persists an object and returns its public URL.
type Storage interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

type Result struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Service struct {
	storage  Storage
	maxBytes int64
}

func NewService(storage Storage, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{storage: storage, maxBytes: maxBytes}
}

func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Upload sniffs the content type from the bytes, never from the file name.
func (s *Service) Upload(ctx context.Context, ownerID, folder string, r io.Reader) (*Result, error) {
	if folder == "" {
		folder = "misc"
	} else if !Folders[folder] {
		return nil, fmt.Errorf("%w %q", ErrInvalidFolder, folder)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return nil, ErrUnsupportedType
	}

	key := path.Join(folder, ownerID, uuid.New().String()+mtype.Extension())
	url, err := s.storage.Save(ctx, key, bytes.NewReader(data), mtype.String())
	if err != nil {
		return nil, err
	}
	return &Result{URL: url, Key: key, ContentType: mtype.String(), Size: int64(len(data))}, nil
}

// LocalStorage writes objects under Dir; they are served at BaseURL.
type LocalStorage struct {
	Dir     string
	BaseURL string
}

func (l *LocalStorage) Save(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	dest := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return strings.TrimSuffix(l.BaseURL, "/") + "/" + key, nil
}
