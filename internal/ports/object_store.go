package ports

import (
	"context"
	"time"
)

// Низкоуровневое хранилище временных блобов (S3 или локальная папка)
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get и Delete на отсутствующем ключе возвращают ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// SignedReadURL — временная ссылка на чтение; локальный бэкенд отдаёт ErrSigningUnsupported
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
