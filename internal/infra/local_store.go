package infra

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
)

// localStore хранит блобы файлами в dir. Ключ "uploads/a.webm" → dir/uploads/a.webm
type localStore struct {
	dir string
}

func NewLocalStore(dir string) (ports.ObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// пишем во временный файл и переименовываем, чтобы Get не увидел половину
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return os.Rename(tmp, path)
}

func (s *localStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapFS("read", key, err)
	}
	return data, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return wrapFS("delete", key, err)
	}
	return nil
}

func (s *localStore) SignedReadURL(context.Context, string, time.Duration) (string, error) {
	return "", ports.ErrSigningUnsupported
}

func (s *localStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if key == "" || strings.HasSuffix(clean, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: empty key", ports.ErrInvalidInput)
	}
	return filepath.Join(s.dir, clean), nil
}

func wrapFS(op, key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, key, ports.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
