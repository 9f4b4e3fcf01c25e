// Package blob stores uploaded audio recordings and hands back the public
// URL they are served under.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

// Store persists binary objects. Implementations must treat names as opaque
// and reject anything resembling a path.
type Store interface {
	// Upload writes the object and returns its public URL.
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Open returns the object's bytes and content type.
	Open(ctx context.Context, name string) ([]byte, string, error)
}

// ErrInvalidName rejects object names that are empty or path-like.
var ErrInvalidName = errors.New("invalid object name")

// DiskStore keeps objects as flat files under one directory, served by the
// process under baseURL.
type DiskStore struct {
	log     *slog.Logger
	dir     string
	baseURL string
}

// NewDiskStore creates dir if needed. baseURL is the public mount point,
// typically "/media".
func NewDiskStore(log *slog.Logger, dir, baseURL string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("blob: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create %s: %w", dir, err)
	}
	return &DiskStore{
		log:     log,
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *DiskStore) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := validName(name); err != nil {
		return "", chat.Opf("blob.upload", chat.ErrValidation, err)
	}
	if len(data) == 0 {
		return "", chat.Opf("blob.upload", chat.ErrValidation, errors.New("empty object"))
	}

	dst := filepath.Join(s.dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		s.log.Error("blob.upload", "name", name, "err", err)
		return "", chat.Opf("blob.upload", chat.ErrPersistence, err)
	}
	s.log.Info("blob.upload.ok", "name", name, "bytes", len(data))
	return s.baseURL + "/" + name, nil
}

func (s *DiskStore) Open(ctx context.Context, name string) ([]byte, string, error) {
	if err := validName(name); err != nil {
		return nil, "", chat.Opf("blob.open", chat.ErrValidation, err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", chat.Opf("blob.open", chat.ErrNotFound, err)
		}
		return nil, "", chat.Opf("blob.open", chat.ErrPersistence, err)
	}
	return data, contentTypeFor(name), nil
}

func validName(name string) error {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "\\/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
