package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/domain"
)

// StreamDelivery отдаёт байты как есть, ничего не сохраняя
type StreamDelivery struct{}

func (StreamDelivery) Deliver(_ context.Context, audio []byte, contentType string) (*Reply, error) {
	return &Reply{Audio: audio, ContentType: contentType}, nil
}

// SignedURLDelivery кладёт аудио в бакет, возвращает подписанную ссылку
// и удаляет файл через retention.
type SignedURLDelivery struct {
	blobs     *domain.BlobService
	urlTTL    time.Duration
	retention time.Duration
}

func NewSignedURLDelivery(blobs *domain.BlobService, urlTTL, retention time.Duration) *SignedURLDelivery {
	return &SignedURLDelivery{blobs: blobs, urlTTL: urlTTL, retention: retention}
}

func (d *SignedURLDelivery) Deliver(ctx context.Context, audio []byte, contentType string) (*Reply, error) {
	key, err := d.blobs.Put(ctx, "temp", ".mp3", audio, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload speech: %w", err)
	}

	url, err := d.blobs.Store().SignedReadURL(ctx, key, d.urlTTL)
	if err != nil {
		d.blobs.DeleteQuietly(ctx, key)
		return nil, fmt.Errorf("sign speech url: %w", err)
	}

	d.blobs.ScheduleDelete(key, d.retention)
	return &Reply{URL: url, ContentType: contentType}, nil
}
