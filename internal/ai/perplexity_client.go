package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/conversation"
)

const perplexityURL = "https://api.perplexity.ai"

type PerplexityClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewPerplexityClient(apiKey, model string) *PerplexityClient {
	if model == "" {
		model = "sonar"
	}
	return &PerplexityClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: perplexityURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *PerplexityClient) Complete(ctx context.Context, system string, history []conversation.Message) (string, error) {
	reqBody := perplexityRequest{Model: c.model}
	if system != "" {
		reqBody.Messages = append(reqBody.Messages, perplexityMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		reqBody.Messages = append(reqBody.Messages, perplexityMessage{Role: string(m.Role), Content: m.Content})
	}

	b, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewBuffer(b),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("perplexity status: %s: %s", resp.Status, body)
	}

	var out perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", errEmptyCompletion
	}

	return out.Choices[0].Message.Content, nil
}
