// Package moderation classifies submitted captions and images into a
// three-way verdict. Any classifier failure yields unsure, which routes the
// photo to manual review.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/util"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/ai"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// DefaultTimeout bounds one Moderate call.
const DefaultTimeout = 20 * time.Second

// Reasons set by the engine itself rather than the classifier.
const (
	ReasonEmptyText         = "empty_text"
	ReasonDisabled          = "moderation_disabled"
	ReasonClassifierError   = "classifier_error"
	ReasonClassifierTimeout = "classifier_timeout"
	ReasonMalformedResponse = "malformed_response"
)

var errMalformed = errors.New("malformed classifier response")

// Input is what a guest submitted.
type Input struct {
	Text  string
	Image []byte
	MIME  string
}

// Result holds the per-channel verdicts and their combination.
type Result struct {
	Text    domain.Assessment `json:"text"`
	Image   domain.Assessment `json:"image"`
	Overall domain.Verdict    `json:"overall"`
}

// Engine runs the text and image classifiers. A nil Text or Vision means
// that channel is unavailable and always yields unsure.
type Engine struct {
	Text    ai.TextGenerator
	Vision  ai.VisionGenerator
	Timeout time.Duration
}

// NewEngine builds an engine; timeout <= 0 uses DefaultTimeout.
func NewEngine(text ai.TextGenerator, vision ai.VisionGenerator, timeout time.Duration) *Engine {
	return &Engine{Text: text, Vision: vision, Timeout: timeout}
}

// Moderate classifies text and image concurrently under one deadline.
func (e *Engine) Moderate(ctx context.Context, in Input) Result {
	if e == nil {
		disabled := domain.Assessment{Verdict: domain.VerdictUnsure, Reason: ReasonDisabled}
		return Result{Text: disabled, Image: disabled, Overall: domain.VerdictUnsure}
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res Result
	var g errgroup.Group
	g.Go(func() error {
		res.Text = e.classifyText(ctx, in.Text)
		return nil
	})
	g.Go(func() error {
		res.Image = e.classifyImage(ctx, in.Image, in.MIME)
		return nil
	})
	_ = g.Wait()

	res.Overall = Combine(res.Text.Verdict, res.Image.Verdict)
	util.LoggerFromContext(ctx).Info("moderation_result",
		"text_verdict", res.Text.Verdict,
		"text_reason", res.Text.Reason,
		"image_verdict", res.Image.Verdict,
		"image_reason", res.Image.Reason,
		"overall", res.Overall,
	)
	return res
}

func (e *Engine) classifyText(ctx context.Context, text string) domain.Assessment {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Assessment{Verdict: domain.VerdictSafe, Reason: ReasonEmptyText}
	}
	if e.Text == nil {
		return domain.Assessment{Verdict: domain.VerdictUnsure, Reason: ReasonDisabled}
	}
	raw, err := e.Text.GenerateText(ctx, textPolicyPrompt, text)
	return assess(ctx, "text", raw, err)
}

func (e *Engine) classifyImage(ctx context.Context, image []byte, mime string) domain.Assessment {
	if e.Vision == nil || len(image) == 0 {
		return domain.Assessment{Verdict: domain.VerdictUnsure, Reason: ReasonDisabled}
	}
	raw, err := e.Vision.GenerateFromImage(ctx, imagePolicyPrompt, imageUserPrompt, image, mime)
	return assess(ctx, "image", raw, err)
}

func assess(ctx context.Context, channel, raw string, err error) domain.Assessment {
	logger := util.LoggerFromContext(ctx)
	if err != nil {
		reason := ReasonClassifierError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ReasonClassifierTimeout
		}
		logger.Warn("moderation_classifier_failed", "channel", channel, "reason", reason, "err", err)
		return domain.Assessment{Verdict: domain.VerdictUnsure, Reason: reason}
	}
	a, perr := ParseAssessment(raw)
	if perr != nil {
		logger.Warn("moderation_classifier_failed", "channel", channel, "reason", ReasonMalformedResponse, "err", perr)
		return domain.Assessment{Verdict: domain.VerdictUnsure, Reason: ReasonMalformedResponse}
	}
	return a
}

// Combine returns the most restrictive verdict: unsafe > unsure > safe.
// No verdicts at all is unsure.
func Combine(verdicts ...domain.Verdict) domain.Verdict {
	if len(verdicts) == 0 {
		return domain.VerdictUnsure
	}
	out := domain.VerdictSafe
	for _, v := range verdicts {
		if _, ok := domain.ParseVerdict(string(v)); !ok {
			v = domain.VerdictUnsure
		}
		if v.Rank() > out.Rank() {
			out = v
		}
	}
	return out
}

var (
	fencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	reasonCleaner = regexp.MustCompile(`[^a-z0-9_]+`)
)

// ParseAssessment reads {"verdict": ..., "reason": ...} from a model reply,
// tolerating code fences and surrounding prose.
func ParseAssessment(raw string) (domain.Assessment, error) {
	raw = strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return domain.Assessment{}, errMalformed
	}
	var payload struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return domain.Assessment{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	verdict, ok := domain.ParseVerdict(payload.Verdict)
	if !ok {
		return domain.Assessment{}, fmt.Errorf("%w: verdict %q", errMalformed, payload.Verdict)
	}
	return domain.Assessment{Verdict: verdict, Reason: normalizeReason(payload.Reason, verdict)}, nil
}

func normalizeReason(reason string, verdict domain.Verdict) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	reason = strings.Trim(reasonCleaner.ReplaceAllString(reason, "_"), "_")
	if len(reason) > 64 {
		reason = strings.TrimRight(reason[:64], "_")
	}
	if reason == "" {
		return string(verdict)
	}
	return reason
}
