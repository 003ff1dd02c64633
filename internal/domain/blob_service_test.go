package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/infra/infratest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingDeleteStore struct {
	*infratest.MemoryStore
	deletes int
}

func (s *failingDeleteStore) Delete(context.Context, string) error {
	s.deletes++
	return errors.New("bucket unreachable")
}

func TestObjectKeyIsUnique(t *testing.T) {
	a := ObjectKey("uploads", ".webm")
	b := ObjectKey("uploads", ".webm")

	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "uploads/"))
	require.True(t, strings.HasSuffix(a, ".webm"))
}

func TestBlobServicePutAndDeleteQuietly(t *testing.T) {
	store := infratest.NewMemoryStore("")
	svc := NewBlobService(store, zap.NewNop().Sugar())
	ctx := context.Background()

	key, err := svc.Put(ctx, "uploads", ".wav", []byte("riff"), "audio/wav")
	require.NoError(t, err)
	require.Equal(t, []string{key}, store.Keys())

	svc.DeleteQuietly(ctx, key)
	require.Empty(t, store.Keys())

	// повторное удаление — не ошибка
	svc.DeleteQuietly(ctx, key)
}

func TestDeleteQuietlySurvivesCancelledContext(t *testing.T) {
	store := infratest.NewMemoryStore("")
	svc := NewBlobService(store, zap.NewNop().Sugar())

	key, err := svc.Put(context.Background(), "uploads", ".wav", []byte("riff"), "audio/wav")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.DeleteQuietly(ctx, key)

	require.Empty(t, store.Keys())
}

func TestDeleteQuietlySwallowsStoreErrors(t *testing.T) {
	store := &failingDeleteStore{MemoryStore: infratest.NewMemoryStore("")}
	svc := NewBlobService(store, zap.NewNop().Sugar())

	require.NotPanics(t, func() { svc.DeleteQuietly(context.Background(), "temp/x.mp3") })
	require.Equal(t, 1, store.deletes)
}

func TestScheduleDeleteRemovesAfterRetention(t *testing.T) {
	store := infratest.NewMemoryStore("")
	svc := NewBlobService(store, zap.NewNop().Sugar())

	key, err := svc.Put(context.Background(), "temp", ".mp3", []byte("id3"), "audio/mpeg")
	require.NoError(t, err)

	svc.ScheduleDelete(key, 30*time.Millisecond)
	require.Equal(t, 1, svc.Pending())
	require.Equal(t, []string{key}, store.Keys())

	require.Eventually(t, func() bool {
		return len(store.Keys()) == 0 && svc.Pending() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCloseFlushesPendingDeletions(t *testing.T) {
	store := infratest.NewMemoryStore("")
	svc := NewBlobService(store, zap.NewNop().Sugar())
	ctx := context.Background()

	key, err := svc.Put(ctx, "temp", ".mp3", []byte("id3"), "audio/mpeg")
	require.NoError(t, err)
	svc.ScheduleDelete(key, time.Hour)

	svc.Close(ctx)
	require.Empty(t, store.Keys())
	require.Zero(t, svc.Pending())

	late, err := svc.Put(ctx, "temp", ".mp3", []byte("id3"), "audio/mpeg")
	require.NoError(t, err)
	svc.ScheduleDelete(late, time.Hour)
	require.Eventually(t, func() bool { return len(store.Keys()) == 0 }, time.Second, 5*time.Millisecond)
}
