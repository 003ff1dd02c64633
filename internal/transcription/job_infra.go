package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
	json "github.com/goccy/go-json"
)

// HTTPJobClient ходит в сервис асинхронной расшифровки:
//
//	POST {endpoint}/jobs          старт задачи
//	GET  {endpoint}/jobs/{name}   статус
type HTTPJobClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPJobClient(endpoint, apiKey string) *HTTPJobClient {
	return &HTTPJobClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type startJobRequest struct {
	JobName      string `json:"jobName"`
	MediaURI     string `json:"mediaUri"`
	MediaFormat  string `json:"mediaFormat"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type jobResponse struct {
	JobName       string `json:"jobName"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
	TranscriptURI string `json:"transcriptUri"`
}

func (c *HTTPJobClient) StartJob(ctx context.Context, in JobRequest) error {
	b, err := json.Marshal(startJobRequest{
		JobName:      in.JobName,
		MediaURI:     in.MediaURI,
		MediaFormat:  in.MediaFormat,
		LanguageCode: in.LanguageCode,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/jobs", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *HTTPJobClient) GetJob(ctx context.Context, jobName string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/jobs/"+url.PathEscape(jobName), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out jobResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode job status: %w", err)
	}

	status := JobStatus(strings.ToUpper(out.Status))
	switch status {
	case StatusInProgress, StatusCompleted, StatusFailed:
	case "QUEUED", "PENDING", "":
		status = StatusInProgress
	default:
		return nil, fmt.Errorf("unknown job status %q", out.Status)
	}

	return &Job{
		JobName:        jobName,
		Status:         status,
		FailureReason:  out.FailureReason,
		ResultLocation: out.TranscriptURI,
	}, nil
}

func (c *HTTPJobClient) FetchResult(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	// подписанные ссылки не нуждаются в ключе
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch result: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *HTTPJobClient) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcribe error: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

type transcriptPayload struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// ParseTranscript достаёт текст из результата задачи.
// Нет списка транскриптов — ErrDataIncomplete; пустой текст — не ошибка.
func ParseTranscript(payload []byte) (string, error) {
	var parsed transcriptPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode transcript: %v", ports.ErrDataIncomplete, err)
	}
	if len(parsed.Results.Transcripts) == 0 {
		return "", fmt.Errorf("%w: transcript list is empty", ports.ErrDataIncomplete)
	}

	parts := make([]string, 0, len(parsed.Results.Transcripts))
	for _, t := range parsed.Results.Transcripts {
		if txt := strings.TrimSpace(t.Transcript); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " "), nil
}
