package drafter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

const systemPrompt = `You are an executive assistant drafting short, professional email replies.
Acknowledge the request, commit to a timeline that matches the priority and deadline, and never invent facts.
Reply with the email body only, no subject line.`

// Anthropic составляет ответы через Claude Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

var _ domain.Drafter = (*Anthropic)(nil)

// NewAnthropic создаёт Drafter. Дополнительные опции передаются в SDK.
func NewAnthropic(apiKey, model string, maxTokens int64, opts ...option.RequestOption) (*Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is empty")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   20 * time.Second,
	}, nil
}

// Draft запрашивает у модели черновик ответа.
func (a *Anthropic) Draft(ctx context.Context, req domain.DraftRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Draft a reply to the email below.
Extracted task: %s
Deadline: %s
Priority: %s

Email:
%s`, req.Task, req.Deadline, req.Priority, clipRunes(req.EmailText, 4000))

	start := time.Now()
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	metrics.ObserveNetworkRequest("anthropic", "messages_new", a.model, start, err)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	in, out := int(message.Usage.InputTokens), int(message.Usage.OutputTokens)
	metrics.ObserveLLMGeneration(a.model, time.Since(start), in, out, in+out)

	for _, block := range message.Content {
		if block.Type == "text" {
			if text := strings.TrimSpace(block.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", errors.New("anthropic messages: пустой ответ")
}

// Fallback пробует основной Drafter и при ошибке переходит на запасной.
type Fallback struct {
	primary  domain.Drafter
	fallback domain.Drafter
	log      zerolog.Logger
}

// WithFallback создаёт Drafter с запасным вариантом.
func WithFallback(primary, fallback domain.Drafter, logger zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, log: logger.With().Str("component", "drafter").Logger()}
}

// Draft возвращает ответ основного Drafter, а при ошибке — запасного.
func (f *Fallback) Draft(ctx context.Context, req domain.DraftRequest) (string, error) {
	if f.primary != nil {
		text, err := f.primary.Draft(ctx, req)
		if err == nil {
			return text, nil
		}
		f.log.Warn().Err(err).Msg("LLM недоступна, используем шаблон")
	}
	return f.fallback.Draft(ctx, req)
}

func clipRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
