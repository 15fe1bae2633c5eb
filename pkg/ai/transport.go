package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// apiError is a non-2xx reply from a provider.
type apiError struct {
	provider string
	status   int
	message  string
}

func (e *apiError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("%s api error: %s", e.provider, e.message)
	}
	return fmt.Sprintf("%s api error: status %d", e.provider, e.status)
}

// errorMessage pulls the human-readable message out of an error body. Gemini
// and OpenAI nest it under error.message, Ollama sends a bare error string.
func errorMessage(body []byte) string {
	var nested struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &nested) != nil || len(nested.Error) == 0 {
		return ""
	}
	var flat string
	if json.Unmarshal(nested.Error, &flat) == nil {
		return strings.TrimSpace(flat)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(nested.Error, &obj) == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

// postJSON sends payload and decodes a successful reply into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apiError{provider: provider, status: resp.StatusCode, message: errorMessage(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", provider, err)
	}
	return nil
}

func withSystem[M any](systemPrompt string, system func(string) M, user M) []M {
	if strings.TrimSpace(systemPrompt) == "" {
		return []M{user}
	}
	return []M{system(systemPrompt), user}
}
