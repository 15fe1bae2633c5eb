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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini classifies through the Google AI Studio generateContent API.
type Gemini struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewGemini requires an API key. An empty baseURL uses the public endpoint.
func NewGemini(apiKey, baseURL, model string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &Gemini{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   strings.TrimPrefix(strings.TrimSpace(model), "models/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *Gemini) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.generate(ctx, systemPrompt, geminiPart{Text: userPrompt})
}

// GenerateFromImage sends the image inline ahead of the prompt.
func (g *Gemini) GenerateFromImage(ctx context.Context, systemPrompt, userPrompt string, image []byte, mimeType string) (string, error) {
	return g.generate(ctx, systemPrompt,
		geminiPart{InlineData: &geminiBlob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
		geminiPart{Text: userPrompt},
	)
}

func (g *Gemini) generate(ctx context.Context, systemPrompt string, parts ...geminiPart) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		Config:   geminiConfig{ResponseMimeType: "application/json"},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		req.System = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	header := http.Header{"X-Goog-Api-Key": {g.apiKey}}

	var resp geminiResponse
	if err := postJSON(ctx, g.http, "gemini", url, header, req, &resp); err != nil {
		return "", err
	}
	if reason := resp.PromptFeedback.BlockReason; reason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", reason)
	}
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", errors.New("empty response from gemini")
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	System   *geminiContent  `json:"systemInstruction,omitempty"`
	Config   geminiConfig    `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}
