package moderation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

type fakeText struct {
	reply string
	err   error
	calls atomic.Int32
	wait  time.Duration
}

func (f *fakeText) GenerateText(ctx context.Context, _, _ string) (string, error) {
	f.calls.Add(1)
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type fakeVision struct {
	reply string
	err   error
	mime  string
}

func (f *fakeVision) GenerateFromImage(_ context.Context, _, _ string, _ []byte, mime string) (string, error) {
	f.mime = mime
	return f.reply, f.err
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.Verdict
		want domain.Verdict
	}{
		{"both safe", []domain.Verdict{domain.VerdictSafe, domain.VerdictSafe}, domain.VerdictSafe},
		{"unsure wins over safe", []domain.Verdict{domain.VerdictSafe, domain.VerdictUnsure}, domain.VerdictUnsure},
		{"unsafe wins over unsure", []domain.Verdict{domain.VerdictUnsure, domain.VerdictUnsafe}, domain.VerdictUnsafe},
		{"unsafe wins over safe", []domain.Verdict{domain.VerdictUnsafe, domain.VerdictSafe}, domain.VerdictUnsafe},
		{"unknown treated as unsure", []domain.Verdict{domain.VerdictSafe, "maybe"}, domain.VerdictUnsure},
		{"empty", nil, domain.VerdictUnsure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.in...); got != tt.want {
				t.Fatalf("Combine(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.Assessment
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"verdict":"safe","reason":"wedding_greeting"}`,
			want: domain.Assessment{Verdict: domain.VerdictSafe, Reason: "wedding_greeting"},
		},
		{
			name: "code fence",
			raw:  "```json\n{\"verdict\":\"UNSAFE\",\"reason\":\"Profanity\"}\n```",
			want: domain.Assessment{Verdict: domain.VerdictUnsafe, Reason: "profanity"},
		},
		{
			name: "prose around object",
			raw:  `Here you go: {"verdict":"unsure","reason":"hard to read slang"} thanks`,
			want: domain.Assessment{Verdict: domain.VerdictUnsure, Reason: "hard_to_read_slang"},
		},
		{
			name: "missing reason",
			raw:  `{"verdict":"safe"}`,
			want: domain.Assessment{Verdict: domain.VerdictSafe, Reason: "safe"},
		},
		{name: "unknown verdict", raw: `{"verdict":"fine"}`, wantErr: true},
		{name: "not json", raw: "safe", wantErr: true},
		{name: "broken json", raw: `{"verdict":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssessment(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAssessment: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestModerateSafe(t *testing.T) {
	text := &fakeText{reply: `{"verdict":"safe","reason":"greeting"}`}
	vision := &fakeVision{reply: `{"verdict":"safe","reason":"couple_portrait"}`}
	engine := NewEngine(text, vision, time.Second)

	res := engine.Moderate(context.Background(), Input{Text: "Selamat pengantin baru", Image: []byte{1}, MIME: "image/webp"})
	if res.Overall != domain.VerdictSafe {
		t.Fatalf("expected safe, got %+v", res)
	}
	if vision.mime != "image/webp" {
		t.Fatalf("expected mime passed through, got %q", vision.mime)
	}
}

func TestModerateEmptyTextSkipsClassifier(t *testing.T) {
	text := &fakeText{reply: `{"verdict":"unsafe"}`}
	vision := &fakeVision{reply: `{"verdict":"safe","reason":"ok"}`}
	engine := NewEngine(text, vision, time.Second)

	res := engine.Moderate(context.Background(), Input{Text: "   ", Image: []byte{1}, MIME: "image/jpeg"})
	if text.calls.Load() != 0 {
		t.Fatalf("text classifier should not be called for empty text")
	}
	if res.Text.Verdict != domain.VerdictSafe || res.Text.Reason != ReasonEmptyText {
		t.Fatalf("unexpected text assessment: %+v", res.Text)
	}
	if res.Overall != domain.VerdictSafe {
		t.Fatalf("expected safe overall, got %q", res.Overall)
	}
}

func TestModerateFailuresAreUnsure(t *testing.T) {
	tests := []struct {
		name       string
		text       *fakeText
		vision     *fakeVision
		wantReason string
	}{
		{
			name:       "classifier error",
			text:       &fakeText{err: errors.New("boom")},
			vision:     &fakeVision{reply: `{"verdict":"safe"}`},
			wantReason: ReasonClassifierError,
		},
		{
			name:       "malformed response",
			text:       &fakeText{reply: "I think it is fine"},
			vision:     &fakeVision{reply: `{"verdict":"safe"}`},
			wantReason: ReasonMalformedResponse,
		},
		{
			name:       "timeout",
			text:       &fakeText{reply: `{"verdict":"safe"}`, wait: time.Second},
			vision:     &fakeVision{reply: `{"verdict":"safe"}`},
			wantReason: ReasonClassifierTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.text, tt.vision, 20*time.Millisecond)
			res := engine.Moderate(context.Background(), Input{Text: "hello", Image: []byte{1}, MIME: "image/jpeg"})
			if res.Text.Verdict != domain.VerdictUnsure || res.Text.Reason != tt.wantReason {
				t.Fatalf("unexpected text assessment: %+v", res.Text)
			}
			if res.Overall != domain.VerdictUnsure {
				t.Fatalf("expected unsure overall, got %q", res.Overall)
			}
		})
	}
}

func TestModerateUnsafeImageWins(t *testing.T) {
	engine := NewEngine(
		&fakeText{reply: `{"verdict":"safe"}`},
		&fakeVision{reply: `{"verdict":"unsafe","reason":"alcohol"}`},
		time.Second,
	)
	res := engine.Moderate(context.Background(), Input{Text: "Tahniah", Image: []byte{1}, MIME: "image/jpeg"})
	if res.Overall != domain.VerdictUnsafe || res.Image.Reason != "alcohol" {
		t.Fatalf("expected unsafe from image, got %+v", res)
	}
}

func TestModerateDisabled(t *testing.T) {
	var engine *Engine
	res := engine.Moderate(context.Background(), Input{Text: "hi"})
	if res.Overall != domain.VerdictUnsure || res.Text.Reason != ReasonDisabled {
		t.Fatalf("nil engine should be unsure, got %+v", res)
	}

	res = NewEngine(nil, nil, 0).Moderate(context.Background(), Input{Image: []byte{1}})
	if res.Overall != domain.VerdictUnsure || res.Image.Reason != ReasonDisabled {
		t.Fatalf("engine without providers should be unsure, got %+v", res)
	}
}
