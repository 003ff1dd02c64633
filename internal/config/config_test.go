package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(envOf(nil))
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.HTTP.Port)
	require.Equal(t, 120*time.Second, cfg.HTTP.RequestTimeout)
	require.False(t, cfg.Storage.Remote())
	require.Equal(t, "./temp", cfg.Storage.LocalDir)
	require.Equal(t, "us-east-1", cfg.Storage.Region)
	require.Equal(t, STTWhisper, cfg.Transcription.Provider)
	require.Equal(t, "ja-JP", cfg.Transcription.Language)
	require.Equal(t, time.Second, cfg.Transcription.PollInterval)
	require.Equal(t, 60, cfg.Transcription.PollMaxAttempts)
	require.Equal(t, int64(25<<20), cfg.Transcription.MaxAudioBytes)
	require.Equal(t, []string{"webm", "wav", "mp3", "ogg", "m4a", "mp4"}, cfg.Transcription.Formats)
	require.Equal(t, LLMOpenAI, cfg.LLM.Provider)
	require.Equal(t, 1000, cfg.LLM.MaxTokens)
	require.False(t, cfg.Speech.Enabled())
	require.Equal(t, 5*time.Minute, cfg.Speech.Retention)
	require.Equal(t, time.Hour, cfg.Speech.SignedURLTTL)
	require.Equal(t, 24*time.Hour, cfg.Conversations.TTL)
}

func TestParseRemoteSetup(t *testing.T) {
	cfg, err := Parse(envOf(map[string]string{
		"PORT":                "8080",
		"REQUEST_TIMEOUT":     "90",
		"S3_BUCKET":           "voice-bucket",
		"AWS_REGION":          "ap-northeast-1",
		"S3_USE_SSL":          "false",
		"TRANSCRIBE_ENDPOINT": "https://transcribe.internal",
		"POLL_INTERVAL":       "500ms",
		"AUDIO_FORMATS":       " webm , wav ,, ",
		"ELEVENLABS_API_KEY":  "el-key",
		"LLM_PROVIDER":        "Perplexity",
	}))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, 90*time.Second, cfg.HTTP.RequestTimeout)
	require.True(t, cfg.Storage.Remote())
	require.Equal(t, "ap-northeast-1", cfg.Storage.Region)
	require.False(t, cfg.Storage.UseSSL)
	require.Equal(t, STTJob, cfg.Transcription.Provider)
	require.Equal(t, 500*time.Millisecond, cfg.Transcription.PollInterval)
	require.Equal(t, []string{"webm", "wav"}, cfg.Transcription.Formats)
	require.True(t, cfg.Speech.Enabled())
	require.Equal(t, LLMPerplexity, cfg.LLM.Provider)
}

func TestS3RegionWinsOverAWSRegion(t *testing.T) {
	cfg, err := Parse(envOf(map[string]string{"S3_REGION": "eu-west-1", "AWS_REGION": "us-west-2"}))
	require.NoError(t, err)
	require.Equal(t, "eu-west-1", cfg.Storage.Region)
}

func TestParseReportsAllBadValues(t *testing.T) {
	_, err := Parse(envOf(map[string]string{
		"PORT":            "eighty",
		"S3_USE_SSL":      "maybe",
		"REQUEST_TIMEOUT": "forever",
	}))
	require.Error(t, err)
	require.ErrorContains(t, err, "PORT")
	require.ErrorContains(t, err, "S3_USE_SSL")
	require.ErrorContains(t, err, "REQUEST_TIMEOUT")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]string
		errorMsg string
	}{
		{
			name:     "port out of range",
			vars:     map[string]string{"PORT": "70000"},
			errorMsg: "port must be between 1 and 65535",
		},
		{
			name:     "unknown stt provider",
			vars:     map[string]string{"STT_PROVIDER": "vosk"},
			errorMsg: "STT_PROVIDER must be",
		},
		{
			name:     "job provider without endpoint",
			vars:     map[string]string{"STT_PROVIDER": "job", "S3_BUCKET": "b"},
			errorMsg: "TRANSCRIBE_ENDPOINT is required",
		},
		{
			name:     "half of static credentials",
			vars:     map[string]string{"S3_BUCKET": "b", "S3_ACCESS_KEY": "ak"},
			errorMsg: "must be set together",
		},
		{
			name:     "zero poll attempts",
			vars:     map[string]string{"POLL_MAX_ATTEMPTS": "0"},
			errorMsg: "poll max attempts must be at least 1",
		},
		{
			name:     "unknown llm provider",
			vars:     map[string]string{"LLM_PROVIDER": "claude"},
			errorMsg: "LLM_PROVIDER must be",
		},
		{
			name:     "bad log level",
			vars:     map[string]string{"LOG_LEVEL": "trace"},
			errorMsg: "log level must be one of",
		},
		{
			name:     "non-positive retention",
			vars:     map[string]string{"SPEECH_RETENTION": "0s"},
			errorMsg: "speech retention must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(envOf(tt.vars))
			require.Error(t, err)
			require.ErrorContains(t, err, tt.errorMsg)
		})
	}
}
