package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// OpenAICompat calls any /chat/completions endpoint that speaks the OpenAI
// wire format (vLLM, LiteLLM, OpenRouter, OpenAI itself). baseURL carries the
// version prefix, e.g. "http://localhost:8000/v1". apiKey may be empty.
type OpenAICompat struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewOpenAICompat(baseURL, apiKey, model string) *OpenAICompat {
	return &OpenAICompat{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAICompat) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return o.complete(ctx, systemPrompt, userPrompt)
}

// GenerateFromImage attaches the image as a data URI image_url part.
func (o *OpenAICompat) GenerateFromImage(ctx context.Context, systemPrompt, userPrompt string, image []byte, mimeType string) (string, error) {
	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return o.complete(ctx, systemPrompt, []oaiPart{
		{Type: "text", Text: userPrompt},
		{Type: "image_url", ImageURL: &oaiImage{URL: uri}},
	})
}

func (o *OpenAICompat) complete(ctx context.Context, systemPrompt string, userContent any) (string, error) {
	if o.model == "" {
		return "", errors.New("openai-compat model required")
	}
	req := oaiRequest{
		Model: o.model,
		Messages: withSystem(systemPrompt, func(s string) oaiMessage {
			return oaiMessage{Role: "system", Content: s}
		}, oaiMessage{Role: "user", Content: userContent}),
		ResponseFormat: &oaiFormat{Type: "json_object"},
	}
	var header http.Header
	if o.apiKey != "" {
		header = http.Header{"Authorization": {"Bearer " + o.apiKey}}
	}

	var resp oaiResponse
	if err := postJSON(ctx, o.http, "openai-compat", o.baseURL+"/chat/completions", header, req, &resp); err != nil {
		return "", err
	}
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", errors.New("empty response from openai-compat api")
}

type oaiMessage struct {
	Role string `json:"role"`
	// string or []oaiPart
	Content any `json:"content"`
}

type oaiPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *oaiImage `json:"image_url,omitempty"`
}

type oaiImage struct {
	URL string `json:"url"`
}

type oaiFormat struct {
	Type string `json:"type"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	Temperature    float64      `json:"temperature"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
