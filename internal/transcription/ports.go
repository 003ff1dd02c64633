package transcription

import (
	"context"
	"time"
)

// Recognizer — синхронный STT: загрузили аудио, сразу получили текст
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, format Format) (string, error)
}

type JobStatus string

const (
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal — из COMPLETED и FAILED переходов больше нет
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type JobRequest struct {
	JobName      string
	MediaURI     string
	MediaFormat  string
	LanguageCode string
}

// Job — то, что вернул внешний сервис. Статус меняет только он.
type Job struct {
	JobName        string
	Status         JobStatus
	FailureReason  string
	ResultLocation string
}

// JobClient — асинхронный STT: отправили задачу, опрашиваем статус
type JobClient interface {
	StartJob(ctx context.Context, req JobRequest) error
	GetJob(ctx context.Context, jobName string) (*Job, error)
	// FetchResult скачивает результат по http(s)-ссылке из ResultLocation
	FetchResult(ctx context.Context, location string) ([]byte, error)
}

type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	MaxBytes     int64
	Language     string
	// время жизни ссылки, по которой сервис читает загруженное аудио
	MediaURLTTL time.Duration
}
