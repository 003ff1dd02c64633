package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"

	"github.com/Vovarama1992/voice_assistant/internal/ai"
	"github.com/Vovarama1992/voice_assistant/internal/config"
	"github.com/Vovarama1992/voice_assistant/internal/conversation"
	"github.com/Vovarama1992/voice_assistant/internal/delivery"
	"github.com/Vovarama1992/voice_assistant/internal/dialogue"
	"github.com/Vovarama1992/voice_assistant/internal/domain"
	"github.com/Vovarama1992/voice_assistant/internal/infra"
	"github.com/Vovarama1992/voice_assistant/internal/metrics"
	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/Vovarama1992/voice_assistant/internal/speech"
	"github.com/Vovarama1992/voice_assistant/internal/transcription"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const serviceName = "voice_assistant"

func main() {

	// =========================================================================
	// CONFIG / LOGGER
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zcfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	zcfg.Level = level
	baseLogger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer baseLogger.Sync()

	sugar := baseLogger.Sugar()
	zl := logger.NewZapLogger(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// INFRASTRUCTURE
	// =========================================================================

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}
	blobs := domain.NewBlobService(store, sugar.Named("blobs"))

	// =========================================================================
	// CLIENTS (STT / LLM / TTS)
	// =========================================================================

	stt := newTranscriber(cfg, blobs, m, sugar.Named("transcription"))

	var llm ai.ChatModel
	switch {
	case cfg.LLM.Provider == config.LLMPerplexity && cfg.LLM.PerplexityAPIKey != "":
		llm = ai.NewPerplexityClient(cfg.LLM.PerplexityAPIKey, cfg.LLM.PerplexityModel)
	case cfg.LLM.Provider == config.LLMOpenAI && cfg.LLM.OpenAIAPIKey != "":
		llm = ai.NewOpenAIClient(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIModel, cfg.LLM.MaxTokens)
	default:
		sugar.Warnw("no language model credentials, /api/chat is disabled", "provider", cfg.LLM.Provider)
	}

	var tts speech.Synthesizer
	if cfg.Speech.Enabled() {
		tts = speech.NewElevenLabsClient(cfg.Speech.ElevenLabsAPIKey, cfg.Speech.VoiceID)
	} else {
		sugar.Warnw("ELEVENLABS_API_KEY is not set, /api/speech is disabled")
	}

	var deliver speech.Deliverer = speech.StreamDelivery{}
	if cfg.Storage.Remote() {
		deliver = speech.NewSignedURLDelivery(blobs, cfg.Speech.SignedURLTTL, cfg.Speech.Retention)
	}

	// =========================================================================
	// DOMAIN SERVICES
	// =========================================================================

	conversations := conversation.NewStore(conversation.Options{
		TTL:              cfg.Conversations.TTL,
		MaxConversations: cfg.Conversations.Max,
	})

	model := cfg.LLM.OpenAIModel
	if cfg.LLM.Provider == config.LLMPerplexity {
		model = cfg.LLM.PerplexityModel
	}

	engine := dialogue.NewEngine(
		stt,
		conversations,
		llm,
		speech.NewService(tts, deliver),
		dialogue.Options{
			SystemPrompt: cfg.LLM.SystemPrompt,
			Window:       ai.NewHistoryWindow(cfg.LLM.HistoryTokenLimit, model, sugar.Named("history")),
		},
		m,
		sugar.Named("dialogue"),
	)

	// =========================================================================
	// HTTP ROUTER
	// =========================================================================

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Conversation-Id", "X-Transcript", "X-Reply-Text"},
	}))

	h := delivery.NewHandler(engine, cfg.Transcription.MaxAudioBytes, zl)
	delivery.RegisterRoutes(r, h, m, delivery.RouteOptions{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	// =========================================================================
	// BACKGROUND JOBS
	// =========================================================================

	if cfg.Conversations.TTL > 0 {
		go conversations.RunJanitor(ctx, cfg.Conversations.JanitorInterval, func(removed, left int) {
			m.Conversations.Set(float64(left))
			if removed > 0 {
				sugar.Infow("expired conversations evicted", "removed", removed, "left", left)
			}
		})
	}

	// =========================================================================
	// START SERVER
	// =========================================================================

	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Log(logger.LogEntry{
			Level:   "info",
			Message: "listening at " + addr + ", stt=" + cfg.Transcription.Provider + ", remote store=" + strconv.FormatBool(cfg.Storage.Remote()),
			Service: serviceName,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	// ход может ждать транскрипцию до конца REQUEST_TIMEOUT
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.RequestTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("http shutdown", "err", err)
	}
	blobs.Close(shutdownCtx)
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (ports.ObjectStore, error) {
	if !cfg.Remote() {
		return infra.NewLocalStore(cfg.LocalDir)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return infra.NewS3Store(initCtx, infra.S3Options{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}

func newTranscriber(cfg *config.Config, blobs *domain.BlobService, m *metrics.Metrics, log *zap.SugaredLogger) *transcription.Service {
	tc := cfg.Transcription
	formats := transcription.NewAllowList(tc.Formats...)
	opts := transcription.Options{
		PollInterval: tc.PollInterval,
		MaxAttempts:  tc.PollMaxAttempts,
		MaxBytes:     tc.MaxAudioBytes,
		Language:     tc.Language,
	}

	switch tc.Provider {
	case config.STTJob:
		jobs := transcription.NewHTTPJobClient(tc.Endpoint, tc.APIKey)
		if !cfg.Storage.Remote() {
			log.Warnw("STT_PROVIDER=job without S3_BUCKET, /api/transcribe will answer 501")
		}
		return transcription.NewJobService(jobs, blobs, cfg.Storage.Remote(), formats, opts, m, log)

	case config.STTDeepgram:
		var rec transcription.Recognizer
		if tc.DeepgramAPIKey != "" {
			rec = transcription.NewDeepgramClient(tc.DeepgramAPIKey, tc.Language)
		} else {
			log.Warnw("DEEPGRAM_API_KEY is not set, transcription is disabled")
		}
		return transcription.NewSyncService(rec, formats, opts, m, log)

	default:
		var rec transcription.Recognizer
		if tc.OpenAIAPIKey != "" {
			rec = transcription.NewWhisperClient(tc.OpenAIAPIKey, tc.Language)
		} else {
			log.Warnw("OPENAI_API_KEY is not set, transcription is disabled")
		}
		return transcription.NewSyncService(rec, formats, opts, m, log)
	}
}
