// Package completion implements the completion service wire contracts the
// widget can talk to.
package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAnswer is returned when a 200 response has no usable answer:
// the field is absent, null or blank.
var ErrMissingAnswer = errors.New("completion response has no answer")

// StatusError reports a non-200 completion response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("completion service returned %d: %s", e.StatusCode, e.Body)
}

const maxErrorBody = 512

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

func endpoint(baseURL string, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// decodeAnswer reads a JSON object and returns the string under field.
func decodeAnswer(resp *http.Response, field string) (string, error) {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	raw, ok := payload[field]
	if !ok || string(raw) == "null" {
		return "", fmt.Errorf("%w: field %q", ErrMissingAnswer, field)
	}
	var answer string
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", fmt.Errorf("decode %q: %w", field, err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: field %q is empty", ErrMissingAnswer, field)
	}
	return answer, nil
}
