package transcription

import (
	"bytes"
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperClient — синхронное распознавание через OpenAI
type WhisperClient struct {
	client   *openai.Client
	language string
}

func NewWhisperClient(apiKey, language string) *WhisperClient {
	return &WhisperClient{
		client:   openai.NewClient(apiKey),
		language: whisperLanguage(language),
	}
}

func (c *WhisperClient) Recognize(ctx context.Context, audio []byte, format Format) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: openai.Whisper1,
		// по расширению OpenAI определяет контейнер
		FilePath: "audio" + format.Ext(),
		Reader:   bytes.NewReader(audio),
		Language: c.language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Whisper ждёт ISO-639-1: "ja-JP" → "ja"
func whisperLanguage(code string) string {
	if len(code) >= 2 {
		return code[:2]
	}
	return ""
}
