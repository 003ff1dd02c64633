package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/domain"
	"github.com/Vovarama1992/voice_assistant/internal/metrics"
	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	ModeSync = "sync"
	ModeJob  = "job"
)

// Service превращает аудио в текст. Снаружи не видно, синхронный распознаватель
// под капотом или асинхронная задача с опросом статуса.
type Service struct {
	recognizer Recognizer
	jobs       JobClient
	blobs      *domain.BlobService
	formats    AllowList
	opts       Options
	remote     bool

	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewSyncService(rec Recognizer, formats AllowList, opts Options, m *metrics.Metrics, log *zap.SugaredLogger) *Service {
	return &Service{
		recognizer: rec,
		formats:    formats,
		opts:       withDefaults(opts),
		metrics:    m,
		log:        log,
	}
}

// NewJobService — асинхронный вариант. remote=false означает, что хранилище
// не умеет отдавать аудио внешнему сервису, и Transcribe вернёт ErrStorageRequired.
func NewJobService(
	jobs JobClient,
	blobs *domain.BlobService,
	remote bool,
	formats AllowList,
	opts Options,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		jobs:    jobs,
		blobs:   blobs,
		remote:  remote,
		formats: formats,
		opts:    withDefaults(opts),
		metrics: m,
		log:     log,
	}
}

func withDefaults(o Options) Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 60
	}
	if o.MediaURLTTL <= 0 {
		o.MediaURLTTL = 15 * time.Minute
	}
	return o
}

func (s *Service) Mode() string {
	if s.jobs != nil {
		return ModeJob
	}
	return ModeSync
}

// Transcribe возвращает распознанный текст. Пустая строка без ошибки —
// легальный результат "ничего не распознано".
func (s *Service) Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error) {
	start := time.Now()

	format, err := s.formats.Check(formatHint)
	if err != nil {
		s.observe("invalid", start)
		return "", err
	}
	if len(audio) == 0 {
		s.observe("invalid", start)
		return "", fmt.Errorf("%w: empty audio", ports.ErrInvalidInput)
	}
	if s.opts.MaxBytes > 0 && int64(len(audio)) > s.opts.MaxBytes {
		s.observe("invalid", start)
		return "", fmt.Errorf("%w: %d bytes, limit %d", ports.ErrPayloadTooLarge, len(audio), s.opts.MaxBytes)
	}

	var text string
	if s.jobs != nil {
		text, err = s.transcribeJob(ctx, audio, format)
	} else {
		text, err = s.recognize(ctx, audio, format)
	}
	text = strings.TrimSpace(text)

	switch {
	case errors.Is(err, ports.ErrTimeout):
		s.observe("timeout", start)
	case errors.Is(err, ports.ErrServiceUnavailable):
		s.observe("unavailable", start)
	case err != nil:
		s.observe("error", start)
	case text == "":
		s.observe("empty", start)
	default:
		s.observe("ok", start)
	}
	return text, err
}

func (s *Service) observe(result string, start time.Time) {
	s.metrics.TranscriptionRequests.WithLabelValues(s.Mode(), result).Inc()
	s.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
}

func (s *Service) recognize(ctx context.Context, audio []byte, format Format) (string, error) {
	if s.recognizer == nil {
		return "", fmt.Errorf("%w: speech recognizer is not configured", ports.ErrServiceUnavailable)
	}
	text, err := s.recognizer.Recognize(ctx, audio, format)
	if err != nil {
		if errors.Is(err, ports.ErrUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: recognize: %w", ports.ErrUpstream, err)
	}
	return text, nil
}

func (s *Service) transcribeJob(ctx context.Context, audio []byte, format Format) (string, error) {
	if !s.remote {
		return "", fmt.Errorf("%w: asynchronous transcription needs a bucket (S3_BUCKET)", ports.ErrStorageRequired)
	}

	key, err := s.blobs.Put(ctx, "uploads", format.Ext(), audio, format.ContentType())
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	// исходник удаляем на любом выходе
	defer s.blobs.DeleteQuietly(ctx, key)

	mediaURI, err := s.blobs.Store().SignedReadURL(ctx, key, s.opts.MediaURLTTL)
	if errors.Is(err, ports.ErrSigningUnsupported) {
		return "", fmt.Errorf("%w: %w", ports.ErrStorageRequired, err)
	}
	if err != nil {
		return "", fmt.Errorf("sign audio url: %w", err)
	}

	name := newJobName()
	log := s.log.With("job", name, "key", key)

	err = s.jobs.StartJob(ctx, JobRequest{
		JobName:      name,
		MediaURI:     mediaURI,
		MediaFormat:  string(format),
		LanguageCode: s.opts.Language,
	})
	if err != nil {
		s.metrics.TranscriptionJobs.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: start job %s: %w", ports.ErrUpstream, name, err)
	}
	log.Infow("transcription job submitted", "format", format, "bytes", len(audio))

	job, attempts, err := s.waitForJob(ctx, name, log)
	s.metrics.PollAttempts.Observe(float64(attempts))
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrTimeout):
			s.metrics.TranscriptionJobs.WithLabelValues("timeout").Inc()
		case errors.Is(err, ports.ErrTranscriptionFailed):
			s.metrics.TranscriptionJobs.WithLabelValues("failed").Inc()
		default:
			s.metrics.TranscriptionJobs.WithLabelValues("error").Inc()
		}
		log.Warnw("transcription job did not complete", "attempts", attempts, "err", err)
		return "", err
	}
	s.metrics.TranscriptionJobs.WithLabelValues("completed").Inc()
	log.Infow("transcription job completed", "attempts", attempts)

	return s.fetchTranscript(ctx, job)
}

// waitForJob опрашивает статус не более MaxAttempts раз с шагом PollInterval.
// Ошибка опроса не прерывает цикл, но тратит попытку.
func (s *Service) waitForJob(ctx context.Context, name string, log *zap.SugaredLogger) (*Job, int, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		job, err := s.jobs.GetJob(ctx, name)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, attempt, fmt.Errorf("%w: job %s: %w", ports.ErrTimeout, name, ctx.Err())
			}
			lastErr = err
			log.Warnw("job status check failed", "attempt", attempt, "err", err)
		case job.Status.Terminal():
			if job.Status == StatusCompleted {
				return job, attempt, nil
			}
			reason := job.FailureReason
			if reason == "" {
				reason = "no reason given"
			}
			return nil, attempt, fmt.Errorf("%w: job %s: %s", ports.ErrTranscriptionFailed, name, reason)
		}

		if attempt == s.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, attempt, fmt.Errorf("%w: job %s: %w", ports.ErrTimeout, name, ctx.Err())
		case <-ticker.C:
		}
	}

	err := fmt.Errorf("%w: job %s not finished after %d status checks", ports.ErrTimeout, name, s.opts.MaxAttempts)
	if lastErr != nil {
		err = fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	return nil, s.opts.MaxAttempts, err
}

func (s *Service) fetchTranscript(ctx context.Context, job *Job) (string, error) {
	loc := strings.TrimSpace(job.ResultLocation)
	if loc == "" {
		return "", fmt.Errorf("%w: job %s has no result location", ports.ErrDataIncomplete, job.JobName)
	}

	var (
		payload []byte
		err     error
	)
	if u, perr := url.Parse(loc); perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		payload, err = s.jobs.FetchResult(ctx, loc)
	} else {
		// результат лежит в нашем же хранилище; после чтения удаляем
		key := resultKey(loc)
		defer s.blobs.DeleteQuietly(ctx, key)
		payload, err = s.blobs.Store().Get(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: fetch result of %s: %w", ports.ErrUpstream, job.JobName, err)
	}

	return ParseTranscript(payload)
}

// resultKey: "s3://bucket/out/x.json" → "out/x.json", "out/x.json" как есть
func resultKey(loc string) string {
	if rest, ok := strings.CutPrefix(loc, "s3://"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[i+1:]
		}
	}
	return strings.TrimPrefix(loc, "/")
}

func newJobName() string {
	return fmt.Sprintf("transcribe-%d-%s", time.Now().UnixMilli(), xid.New().String())
}
