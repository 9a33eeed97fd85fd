package completion

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

// UploadClient posts the question as a multipart form to /fileupload and
// reads the answer from "answer". It sends no credentials.
type UploadClient struct {
	baseURL string
	client  *http.Client
}

func NewUploadClient(baseURL string, client *http.Client) *UploadClient {
	return &UploadClient{baseURL: baseURL, client: newHTTPClient(client)}
}

func (c *UploadClient) Complete(ctx context.Context, prompt string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("question", prompt); err != nil {
		return "", fmt.Errorf("write question field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(c.baseURL, "/fileupload"), &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send question: %w", err)
	}
	defer resp.Body.Close()

	return decodeAnswer(resp, "answer")
}
