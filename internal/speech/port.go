package speech

import "context"

// Synthesizer — текст → голос (mp3)
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Reply — либо ссылка на файл в бакете, либо сами байты для прямой отдачи
type Reply struct {
	URL         string
	Audio       []byte
	ContentType string
}

// Deliverer решает, как аудио попадёт к клиенту. Выбирается один раз при старте.
type Deliverer interface {
	Deliver(ctx context.Context, audio []byte, contentType string) (*Reply, error)
}
