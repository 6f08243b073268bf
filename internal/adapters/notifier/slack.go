package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

// Slack отправляет сообщения в каналы Slack через Web API.
type Slack struct {
	client         *slack.Client
	defaultChannel string
}

var _ domain.Notifier = (*Slack)(nil)

// NewSlack создаёт клиента. apiURL переопределяет адрес API (пустой — slack.com).
func NewSlack(token, apiURL, defaultChannel string) (*Slack, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("slack token is empty")
	}
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return &Slack{client: slack.New(token, opts...), defaultChannel: defaultChannel}, nil
}

// Notify публикует текст в канал, при необходимости несколькими сообщениями.
func (s *Slack) Notify(ctx context.Context, channel, text string) error {
	if channel == "" {
		channel = s.defaultChannel
	}
	if channel == "" {
		return errors.New("slack channel is empty")
	}
	for _, part := range SplitMessage(text, slackLimit) {
		start := time.Now()
		_, _, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(part, false))
		metrics.ObserveNetworkRequest("slack", "chat_post_message", channel, start, err)
		if err != nil {
			metrics.NotifierSendErrors.WithLabelValues("slack").Inc()
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}
