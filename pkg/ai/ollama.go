package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// Ollama talks to a local Ollama daemon over /api/chat. Image prompts need a
// multimodal model such as llava.
type Ollama struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewOllama(baseURL, model string) *Ollama {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &Ollama{
		baseURL: baseURL,
		model:   strings.TrimSpace(model),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *Ollama) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return o.chat(ctx, systemPrompt, ollamaMessage{Role: "user", Content: userPrompt})
}

func (o *Ollama) GenerateFromImage(ctx context.Context, systemPrompt, userPrompt string, image []byte, _ string) (string, error) {
	return o.chat(ctx, systemPrompt, ollamaMessage{
		Role:    "user",
		Content: userPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
	})
}

func (o *Ollama) chat(ctx context.Context, systemPrompt string, user ollamaMessage) (string, error) {
	if o.model == "" {
		return "", errors.New("ollama model required")
	}
	req := ollamaRequest{
		Model: o.model,
		Messages: withSystem(systemPrompt, func(s string) ollamaMessage {
			return ollamaMessage{Role: "system", Content: s}
		}, user),
		Format:  "json",
		Options: map[string]any{"temperature": 0},
	}
	var resp ollamaResponse
	if err := postJSON(ctx, o.http, "ollama", o.baseURL+"/api/chat", nil, req, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			return "", fmt.Errorf("ollama model %q not available: %w", o.model, err)
		}
		return "", err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", errors.New("empty response from ollama")
	}
	return resp.Message.Content, nil
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
}
