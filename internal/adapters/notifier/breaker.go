package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"flowpilot/internal/domain"
)

// ErrUnavailable возвращается, пока автомат разомкнут.
var ErrUnavailable = errors.New("notifier temporarily unavailable")

// BreakerConfig задаёт параметры автомата.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
	Interval         time.Duration
}

// DefaultBreakerConfig — пять ошибок подряд размыкают автомат на 30 секунд.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second, Interval: time.Minute}
}

// Breaker защищает уведомитель автоматическим выключателем.
type Breaker struct {
	next domain.Notifier
	cb   *gobreaker.CircuitBreaker[struct{}]
}

var _ domain.Notifier = (*Breaker)(nil)

// WithBreaker оборачивает уведомитель.
func WithBreaker(name string, next domain.Notifier, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("notifier", name).Str("from", from.String()).Str("to", to.String()).
				Msg("состояние автомата уведомлений изменилось")
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Notify делегирует вызов, пока автомат замкнут.
func (b *Breaker) Notify(ctx context.Context, channel, text string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Notify(ctx, channel, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

// Multi рассылает уведомление во все каналы и объединяет ошибки.
type Multi []domain.Notifier

// Notify вызывает каждый уведомитель.
func (m Multi) Notify(ctx context.Context, channel, text string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, channel, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
