package ai

import (
	"context"
	"fmt"
	"strings"
)

// TextGenerator answers a user prompt under a system prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// VisionGenerator generates text about an attached image.
type VisionGenerator interface {
	GenerateFromImage(ctx context.Context, systemPrompt, userPrompt string, image []byte, mimeType string) (string, error)
}

// Generator is a provider that handles both text and image prompts.
type Generator interface {
	TextGenerator
	VisionGenerator
}

// Config selects a provider and its models.
type Config struct {
	// Provider is one of gemini, ollama, openai-compat. Empty disables generation.
	Provider    string
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
}

// New builds the text and vision generators for cfg. It returns (nil, nil, nil)
// when no provider is configured.
func New(cfg Config) (TextGenerator, VisionGenerator, error) {
	visionModel := strings.TrimSpace(cfg.VisionModel)
	if visionModel == "" {
		visionModel = cfg.TextModel
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil, nil
	case "gemini":
		text, err := NewGemini(cfg.APIKey, cfg.BaseURL, cfg.TextModel)
		if err != nil {
			return nil, nil, err
		}
		vision, err := NewGemini(cfg.APIKey, cfg.BaseURL, visionModel)
		if err != nil {
			return nil, nil, err
		}
		return text, vision, nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.TextModel), NewOllama(cfg.BaseURL, visionModel), nil
	case "openai-compat", "openai":
		return NewOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.TextModel),
			NewOpenAICompat(cfg.BaseURL, cfg.APIKey, visionModel), nil
	default:
		return nil, nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
