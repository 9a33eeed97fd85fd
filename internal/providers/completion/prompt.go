package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PromptClient posts {"prompt": ...} to /completion with a bearer token and
// reads the answer from "bot".
type PromptClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPromptClient(baseURL string, apiKey string, client *http.Client) *PromptClient {
	return &PromptClient{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient(client)}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (c *PromptClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(promptRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(c.baseURL, "/completion"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	return decodeAnswer(resp, "bot")
}
