package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func TestSlackNotifyPostsMessage(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		mu.Lock()
		posts = append(posts, r.FormValue("channel")+"|"+r.FormValue("text"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	s, err := NewSlack("xoxb-test", srv.URL+"/api", "#general")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := s.Notify(context.Background(), "", "Urgent email received"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(posts) != 1 || posts[0] != "#general|Urgent email received" {
		t.Fatalf("неожиданные сообщения: %q", posts)
	}
}

func TestSlackNotifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	s, _ := NewSlack("xoxb-test", srv.URL+"/api", "#general")
	err := s.Notify(context.Background(), "#missing", "hi")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("ожидали channel_not_found, получили %v", err)
	}
}

func TestNewSlackRequiresToken(t *testing.T) {
	if _, err := NewSlack(" ", "", "#general"); err == nil {
		t.Fatalf("ожидали ошибку для пустого токена")
	}
}

type stubSender struct {
	chats []int64
	texts []string
	err   error
}

func (s *stubSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	msg := c.(tgbotapi.MessageConfig)
	s.chats = append(s.chats, msg.ChatID)
	s.texts = append(s.texts, msg.Text)
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifyChatSelection(t *testing.T) {
	sender := &stubSender{}
	tg := &Telegram{bot: sender, defaultChat: 42}

	if err := tg.Notify(context.Background(), "#general", "one"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := tg.Notify(context.Background(), "-100500", "two"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.chats) != 2 || sender.chats[0] != 42 || sender.chats[1] != -100500 {
		t.Fatalf("неверные чаты: %v", sender.chats)
	}

	long := strings.Repeat("a", 4000) + "\n" + strings.Repeat("b", 200)
	if err := tg.Notify(context.Background(), "", long); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.texts) != 4 {
		t.Fatalf("длинное сообщение должно разбиться на 2 части, всего %d", len(sender.texts))
	}
}

func TestTelegramNotifyWithoutChat(t *testing.T) {
	tg := &Telegram{bot: &stubSender{}}
	if err := tg.Notify(context.Background(), "", "hi"); err == nil {
		t.Fatalf("ожидали ошибку без чата")
	}
}

type failingNotifier struct {
	calls int
	err   error
}

func (f *failingNotifier) Notify(context.Context, string, string) error {
	f.calls++
	return f.err
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	boom := errors.New("boom")
	next := &failingNotifier{err: boom}
	b := WithBreaker("test", next, BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if err := b.Notify(context.Background(), "", "x"); !errors.Is(err, boom) {
			t.Fatalf("попытка %d: ожидали boom, получили %v", i, err)
		}
	}
	if err := b.Notify(context.Background(), "", "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ожидали ErrUnavailable, получили %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("разомкнутый автомат не должен вызывать уведомитель, вызовов %d", next.calls)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &failingNotifier{err: boom}
	b := &failingNotifier{}
	err := Multi{a, nil, b}.Notify(context.Background(), "", "x")
	if !errors.Is(err, boom) || a.calls != 1 || b.calls != 1 {
		t.Fatalf("неожиданный результат: %v", err)
	}
}
