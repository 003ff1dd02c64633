package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	STTWhisper  = "whisper"
	STTDeepgram = "deepgram"
	STTJob      = "job"

	LLMOpenAI     = "openai"
	LLMPerplexity = "perplexity"
)

// Config — вся конфигурация процесса, собирается из переменных окружения
type Config struct {
	LogLevel string

	HTTP          HTTPConfig
	Storage       StorageConfig
	Transcription TranscriptionConfig
	LLM           LLMConfig
	Speech        SpeechConfig
	Conversations ConversationConfig
}

type HTTPConfig struct {
	Port               int
	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

// StorageConfig: непустой Bucket включает S3 и подписанные ссылки
type StorageConfig struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	LocalDir  string
}

func (s StorageConfig) Remote() bool {
	return s.Bucket != ""
}

type TranscriptionConfig struct {
	Provider        string
	Endpoint        string
	APIKey          string
	Language        string
	PollInterval    time.Duration
	PollMaxAttempts int
	MaxAudioBytes   int64
	Formats         []string
	DeepgramAPIKey  string
	OpenAIAPIKey    string
}

type LLMConfig struct {
	Provider          string
	OpenAIAPIKey      string
	OpenAIModel       string
	PerplexityAPIKey  string
	PerplexityModel   string
	MaxTokens         int
	SystemPrompt      string
	HistoryTokenLimit int
}

// SpeechConfig: без ключа ElevenLabs синтез выключен
type SpeechConfig struct {
	ElevenLabsAPIKey string
	VoiceID          string
	Retention        time.Duration
	SignedURLTTL     time.Duration
}

func (s SpeechConfig) Enabled() bool {
	return s.ElevenLabsAPIKey != ""
}

type ConversationConfig struct {
	TTL             time.Duration
	Max             int
	JanitorInterval time.Duration
}

// Load подхватывает .env (если есть) и читает окружение процесса
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(os.Getenv)
}

// Parse собирает конфиг через getenv и валидирует его
func Parse(getenv func(string) string) (*Config, error) {
	e := &env{get: getenv}

	cfg := &Config{
		LogLevel: e.str("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:               e.integer("PORT", 3000),
			RequestTimeout:     e.duration("REQUEST_TIMEOUT", 120*time.Second),
			RateLimitPerMinute: e.integer("RATE_LIMIT_PER_MINUTE", 120),
		},
		Storage: StorageConfig{
			Bucket:    e.str("S3_BUCKET", ""),
			Endpoint:  e.str("S3_ENDPOINT", "s3.amazonaws.com"),
			AccessKey: e.str("S3_ACCESS_KEY", ""),
			SecretKey: e.str("S3_SECRET_KEY", ""),
			Region:    e.str("S3_REGION", e.str("AWS_REGION", "us-east-1")),
			UseSSL:    e.boolean("S3_USE_SSL", true),
			LocalDir:  e.str("LOCAL_STORE_DIR", "./temp"),
		},
		Transcription: TranscriptionConfig{
			Provider:        strings.ToLower(e.str("STT_PROVIDER", "")),
			Endpoint:        e.str("TRANSCRIBE_ENDPOINT", ""),
			APIKey:          e.str("TRANSCRIBE_API_KEY", ""),
			Language:        e.str("TRANSCRIBE_LANGUAGE", "ja-JP"),
			PollInterval:    e.duration("POLL_INTERVAL", time.Second),
			PollMaxAttempts: e.integer("POLL_MAX_ATTEMPTS", 60),
			MaxAudioBytes:   int64(e.integer("MAX_AUDIO_BYTES", 25<<20)),
			Formats:         e.list("AUDIO_FORMATS", "webm,wav,mp3,ogg,m4a,mp4"),
			DeepgramAPIKey:  e.str("DEEPGRAM_API_KEY", ""),
			OpenAIAPIKey:    e.str("OPENAI_API_KEY", ""),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(e.str("LLM_PROVIDER", LLMOpenAI)),
			OpenAIAPIKey:      e.str("OPENAI_API_KEY", ""),
			OpenAIModel:       e.str("OPENAI_MODEL", "gpt-4o-mini"),
			PerplexityAPIKey:  e.str("PERPLEXITY_API_KEY", ""),
			PerplexityModel:   e.str("PERPLEXITY_MODEL", "sonar"),
			MaxTokens:         e.integer("LLM_MAX_TOKENS", 1000),
			SystemPrompt:      e.str("SYSTEM_PROMPT", ""),
			HistoryTokenLimit: e.integer("HISTORY_TOKEN_LIMIT", 90000),
		},
		Speech: SpeechConfig{
			ElevenLabsAPIKey: e.str("ELEVENLABS_API_KEY", ""),
			VoiceID:          e.str("ELEVENLABS_VOICE_ID", ""),
			Retention:        e.duration("SPEECH_RETENTION", 5*time.Minute),
			SignedURLTTL:     e.duration("SIGNED_URL_TTL", time.Hour),
		},
		Conversations: ConversationConfig{
			TTL:             e.duration("CONVERSATION_TTL", 24*time.Hour),
			Max:             e.integer("CONVERSATION_MAX", 10000),
			JanitorInterval: e.duration("CONVERSATION_SWEEP_INTERVAL", time.Minute),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Transcription.Provider == "" {
		cfg.Transcription.Provider = defaultSTT(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// асинхронные задачи, если есть и бакет, и сервис задач; иначе Whisper
func defaultSTT(cfg *Config) string {
	if cfg.Storage.Remote() && cfg.Transcription.Endpoint != "" {
		return STTJob
	}
	return STTWhisper
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech config: %w", err)
	}
	if err := c.Conversations.Validate(); err != nil {
		return fmt.Errorf("conversation config: %w", err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log level must be one of debug, info, warn, error, got '%s'", c.LogLevel)
	}
	return nil
}

func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}
	if h.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative, got %s", h.RequestTimeout)
	}
	if h.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit cannot be negative, got %d", h.RateLimitPerMinute)
	}
	return nil
}

func (s *StorageConfig) Validate() error {
	if s.Remote() {
		if s.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT cannot be empty when S3_BUCKET is set")
		}
		if (s.AccessKey == "") != (s.SecretKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
		return nil
	}
	if s.LocalDir == "" {
		return fmt.Errorf("LOCAL_STORE_DIR cannot be empty without S3_BUCKET")
	}
	return nil
}

// Validate не требует ключей: без них соответствующий вызов вернёт
// ServiceUnavailable, а процесс всё равно поднимется.
func (t *TranscriptionConfig) Validate() error {
	switch t.Provider {
	case STTWhisper, STTDeepgram:
	case STTJob:
		if t.Endpoint == "" {
			return fmt.Errorf("TRANSCRIBE_ENDPOINT is required for STT_PROVIDER=job")
		}
	default:
		return fmt.Errorf("STT_PROVIDER must be 'whisper', 'deepgram' or 'job', got '%s'", t.Provider)
	}

	if t.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", t.PollInterval)
	}
	if t.PollMaxAttempts < 1 {
		return fmt.Errorf("poll max attempts must be at least 1, got %d", t.PollMaxAttempts)
	}
	if t.MaxAudioBytes < 1 {
		return fmt.Errorf("max audio bytes must be positive, got %d", t.MaxAudioBytes)
	}
	if len(t.Formats) == 0 {
		return fmt.Errorf("AUDIO_FORMATS cannot be empty")
	}
	return nil
}

func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case LLMOpenAI, LLMPerplexity:
	default:
		return fmt.Errorf("LLM_PROVIDER must be 'openai' or 'perplexity', got '%s'", l.Provider)
	}
	if l.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be at least 1, got %d", l.MaxTokens)
	}
	if l.HistoryTokenLimit < 0 {
		return fmt.Errorf("history token limit cannot be negative, got %d", l.HistoryTokenLimit)
	}
	return nil
}

func (s *SpeechConfig) Validate() error {
	if s.Retention <= 0 {
		return fmt.Errorf("speech retention must be positive, got %s", s.Retention)
	}
	if s.SignedURLTTL <= 0 {
		return fmt.Errorf("signed url ttl must be positive, got %s", s.SignedURLTTL)
	}
	return nil
}

func (c *ConversationConfig) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("conversation ttl cannot be negative, got %s", c.TTL)
	}
	if c.Max < 0 {
		return fmt.Errorf("conversation max cannot be negative, got %d", c.Max)
	}
	if c.TTL > 0 && c.JanitorInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive when ttl is set, got %s", c.JanitorInterval)
	}
	return nil
}

// env копит ошибки разбора, чтобы показать все сразу
type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

// duration понимает "90s", "5m" и голое число секунд
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (e *env) list(key, def string) []string {
	var out []string
	for _, item := range strings.Split(e.str(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
