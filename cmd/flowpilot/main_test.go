package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreJSON(t *testing.T) {
	out, err := run(t, "", "score", "--json", "URGENT: the CEO needs this critical fix today")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var res scoreOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("разбор JSON: %v\n%s", err, out)
	}
	if res.PriorityLevel != "High" || res.UrgencyScore == 0 || res.SenderScore == 0 {
		t.Fatalf("неожиданная оценка: %+v", res)
	}
}

func TestScoreFromStdinWithVIP(t *testing.T) {
	out, err := run(t, "note from boss@acme.com about lunch", "score", "--json", "--vip", "boss@acme.com", "-")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var res scoreOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("разбор JSON: %v", err)
	}
	if res.SenderScore != 10 {
		t.Fatalf("VIP должен дать 10 баллов отправителя, получили %d", res.SenderScore)
	}
}

func TestScoreText(t *testing.T) {
	out, err := run(t, "", "score", "please review when possible")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(out, "LOW") || !strings.Contains(out, "/100") {
		t.Fatalf("неожиданный вывод: %s", out)
	}
}

func TestConflictsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	events := `[{"title":"Design review","date":"2026-10-20","time":"10:00 AM","duration":60},
{"title":"Old sync","date":"2026-10-20","time":"10:30 AM","duration":30,"status":"cancelled"}]`
	if err := os.WriteFile(path, []byte(events), 0o600); err != nil {
		t.Fatalf("запись файла: %v", err)
	}

	out, err := run(t, "", "conflicts", "--json", "--events", path, "--date", "2026-10-20", "--time", "10:30 AM", "--duration", "30")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var res conflictsOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("разбор JSON: %v\n%s", err, out)
	}
	if !res.HasConflicts || len(res.Conflicts) != 1 || res.Conflicts[0].Title != "Design review" {
		t.Fatalf("отменённая встреча не должна конфликтовать: %+v", res)
	}
	if len(res.Suggestions) == 0 {
		t.Fatalf("ожидали предложения: %+v", res)
	}

	out, err = run(t, "", "conflicts", "--events", path, "--date", "2026-10-20", "--time", "02:00 PM")
	if err != nil || !strings.Contains(out, "is free") {
		t.Fatalf("ожидали свободный слот: %v %s", err, out)
	}
}

func TestConflictsRequiresTime(t *testing.T) {
	if _, err := run(t, "", "conflicts", "--date", "2026-10-20"); err == nil {
		t.Fatalf("без --time ожидали ошибку")
	}
	if _, err := run(t, "", "conflicts", "--date", "2026-10-20", "--time", "25:99"); err == nil {
		t.Fatalf("неверное время должно давать ошибку")
	}
}

func TestScanJSON(t *testing.T) {
	out, err := run(t, "", "scan", "--json", "Please send a wire transfer and buy a gift card")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var res scanOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("разбор JSON: %v", err)
	}
	if res.IsSafe || res.RiskScore != 30 || len(res.Checks) != 5 {
		t.Fatalf("неожиданный отчёт: %+v", res)
	}
}
