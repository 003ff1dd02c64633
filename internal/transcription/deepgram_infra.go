package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
	json "github.com/goccy/go-json"
)

const deepgramURL = "https://api.deepgram.com"

type DeepgramClient struct {
	apiKey   string
	language string
	baseURL  string
	client   *http.Client
}

func NewDeepgramClient(apiKey, language string) *DeepgramClient {
	return &DeepgramClient{
		apiKey:   apiKey,
		language: language,
		baseURL:  deepgramURL,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *DeepgramClient) Recognize(ctx context.Context, audio []byte, format Format) (string, error) {
	q := url.Values{
		"model":        {"nova-2"},
		"smart_format": {"true"},
	}
	if c.language != "" {
		q.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/listen?"+q.Encode(),
		bytes.NewReader(audio),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", format.ContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram error: %s", body)
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode deepgram: %w", err)
	}

	if len(parsed.Results.Channels) == 0 ||
		len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("%w: deepgram returned no alternatives", ports.ErrDataIncomplete)
	}

	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}
