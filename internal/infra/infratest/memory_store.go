package infratest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
)

// MemoryStore — ObjectStore в памяти для тестов. Если задан signBase,
// умеет выдавать "подписанные" ссылки вида <signBase>/<key>?expires=...
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	signBase string
	puts     int
}

func NewMemoryStore(signBase string) *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		signBase: signBase,
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.puts++
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, ports.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, ports.ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) SignedReadURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.signBase == "" {
		return "", ports.ErrSigningUnsupported
	}
	s.mu.Lock()
	_, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("presign %s: %w", key, ports.ErrNotFound)
	}
	q := url.Values{"expires": {time.Now().Add(ttl).UTC().Format(time.RFC3339)}}
	return s.signBase + "/" + key + "?" + q.Encode(), nil
}

// Keys — текущие ключи, отсортированные
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts — сколько раз вызывался Put
func (s *MemoryStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
