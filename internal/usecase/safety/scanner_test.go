package safety

import (
	"testing"

	"flowpilot/internal/domain"
)

func TestScanCleanText(t *testing.T) {
	report := NewScanner().Scan("Let's meet for lunch on Thursday")
	if !report.IsSafe || report.RiskScore != 0 || report.RiskLevel != "LOW" {
		t.Fatalf("чистый текст должен быть безопасным: %+v", report)
	}
	if len(report.Checks) != 5 {
		t.Fatalf("ожидали 5 проверок, получили %d", len(report.Checks))
	}
	order := []string{CategoryPII, CategorySensitive, CategoryDangerous, CategoryExternal, CategoryApproval}
	for i, c := range report.Checks {
		if c.Category != order[i] || !c.Passed || c.RiskLevel != domain.RiskLow {
			t.Fatalf("проверка %d: %+v", i, c)
		}
	}
}

func TestScanDangerousActions(t *testing.T) {
	report := NewScanner().Scan("Please send a wire transfer and buy a gift card")
	if report.IsSafe {
		t.Fatalf("опасные действия делают текст небезопасным")
	}
	if report.DangerousCount != 2 || report.RiskScore != 30 {
		t.Fatalf("ожидали 2 опасных действия и риск 30: %+v", report)
	}
	if report.Checks[2].RiskLevel != domain.RiskCritical {
		t.Fatalf("ожидали critical")
	}
}

func TestScanCombinedRisk(t *testing.T) {
	text := "My SSN is 123-45-6789. Password and bank account attached. Wire transfer to john@gmail.com, please approve."
	report := NewScanner().Scan(text)
	if report.PIICount != 1 || report.SensitiveCount != 3 || report.DangerousCount != 1 || report.ExternalCount != 1 || !report.NeedsApproval {
		t.Fatalf("неожиданные счётчики: %+v", report)
	}
	if report.RiskScore != 90 || report.RiskLevel != "HIGH" {
		t.Fatalf("ожидали риск 90/HIGH, получили %d/%s", report.RiskScore, report.RiskLevel)
	}
	if report.Checks[1].RiskLevel != domain.RiskHigh {
		t.Fatalf("больше двух чувствительных слов дают high")
	}
	if report.ContentScanned != len([]rune(text)) {
		t.Fatalf("неверный объём текста")
	}
}

func TestScanApprovalIsMediumOnly(t *testing.T) {
	report := NewScanner().Scan("Budget needs $5000, please authorize")
	if !report.IsSafe {
		t.Fatalf("запрос согласования не делает текст опасным")
	}
	if report.Checks[4].Details != "Required: Requires Authorization, Budget Request" {
		t.Fatalf("неожиданные детали: %q", report.Checks[4].Details)
	}
	if report.RiskScore != 20 || report.RiskLevel != "LOW" {
		t.Fatalf("ожидали 20/LOW, получили %d/%s", report.RiskScore, report.RiskLevel)
	}
}

func TestOverallLevel(t *testing.T) {
	cases := map[int]string{0: "LOW", 39: "LOW", 40: "MEDIUM", 69: "MEDIUM", 70: "HIGH", 100: "HIGH"}
	for score, want := range cases {
		if got := OverallLevel(score); got != want {
			t.Fatalf("OverallLevel(%d) = %s, want %s", score, got, want)
		}
	}
}
