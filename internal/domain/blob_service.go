package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const cleanupTimeout = 10 * time.Second

// BlobService — обёртка над ObjectStore для временных файлов:
// генерирует ключи и гарантирует удаление (сразу или по таймеру).
type BlobService struct {
	store ports.ObjectStore
	log   *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func NewBlobService(store ports.ObjectStore, log *zap.SugaredLogger) *BlobService {
	return &BlobService{
		store:   store,
		log:     log,
		pending: make(map[string]*time.Timer),
	}
}

func (s *BlobService) Store() ports.ObjectStore {
	return s.store
}

// ObjectKey — путь в бакете: prefix/<unixms>-<uuid><ext>
func ObjectKey(prefix, ext string) string {
	return fmt.Sprintf("%s/%d-%s%s", prefix, time.Now().UnixMilli(), uuid.NewString(), ext)
}

// Put сохраняет блоб под свежим ключом и возвращает ключ
func (s *BlobService) Put(ctx context.Context, prefix, ext string, data []byte, contentType string) (string, error) {
	key := ObjectKey(prefix, ext)
	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// DeleteQuietly — best-effort удаление. NotFound считается успехом,
// остальные ошибки только логируются. Отмена ctx запроса не мешает удалению.
func (s *BlobService) DeleteQuietly(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	err := s.store.Delete(ctx, key)
	switch {
	case err == nil:
		s.log.Debugw("blob deleted", "key", key)
	case errors.Is(err, ports.ErrNotFound):
		s.log.Debugw("blob already gone", "key", key)
	default:
		s.log.Warnw("blob cleanup failed", "key", key, "err", err)
	}
}

// ScheduleDelete удаляет блоб через after. После Close удаляет сразу.
func (s *BlobService) ScheduleDelete(key string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		go s.DeleteQuietly(context.Background(), key)
		return
	}
	if t, ok := s.pending[key]; ok {
		t.Stop()
	}
	s.pending[key] = time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.DeleteQuietly(context.Background(), key)
	})
}

// Pending — сколько блобов ждут удаления по таймеру
func (s *BlobService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close останавливает таймеры и удаляет всё, что ещё ждёт удаления
func (s *BlobService) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	keys := make([]string, 0, len(s.pending))
	for key, t := range s.pending {
		if t.Stop() {
			keys = append(keys, key)
		}
		delete(s.pending, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.DeleteQuietly(ctx, key)
	}
	if len(keys) > 0 {
		s.log.Infow("flushed scheduled blob deletions", "count", len(keys))
	}
}
