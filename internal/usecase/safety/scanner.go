package safety

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/rulescan"
)

// Категории проверок в порядке вывода.
const (
	CategoryPII       = "PII Detection"
	CategorySensitive = "Sensitive Content"
	CategoryDangerous = "Dangerous Actions"
	CategoryExternal  = "External Recipients"
	CategoryApproval  = "Approval Workflow"
)

var riskWeights = map[domain.RiskLevel]int{
	domain.RiskCritical: 30,
	domain.RiskHigh:     20,
	domain.RiskMedium:   10,
	domain.RiskLow:      0,
}

// Scanner проверяет текст письма на чувствительные данные и подозрительные просьбы.
type Scanner struct {
	engine *rulescan.Engine
}

// NewScanner создаёт сканер со встроенным набором правил.
func NewScanner() *Scanner {
	rules := []rulescan.Rule{
		rulescan.MustPattern(CategoryPII, "SSN", 1, `\b\d{3}-?\d{2}-?\d{4}\b`),
		rulescan.MustPattern(CategoryPII, "Credit Card", 1, `\b\d{4}-?\d{4}-?\d{4}-?\d{4}\b`),
		rulescan.MustPattern(CategoryPII, "Phone Number", 1, `\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),

		rulescan.MustPattern(CategoryDangerous, "Wire Transfer Request", 1, `(?i)wire transfer`),
		rulescan.MustPattern(CategoryDangerous, "Gift Card Purchase", 1, `(?i)gift card`),
		rulescan.MustPattern(CategoryDangerous, "Urgent Payment", 1, `(?i)urgent.*payment`),
		rulescan.MustPattern(CategoryDangerous, "Suspicious Link", 1, `(?i)click.*link`),
		rulescan.MustPattern(CategoryDangerous, "Payment Update Request", 1, `(?i)update.*payment`),

		rulescan.MustPattern(CategoryExternal, "Gmail", 1, `(?i)@gmail\.com`),
		rulescan.MustPattern(CategoryExternal, "Yahoo", 1, `(?i)@yahoo\.com`),
		rulescan.MustPattern(CategoryExternal, "Hotmail", 1, `(?i)@hotmail\.com`),
		rulescan.MustPattern(CategoryExternal, "Outlook", 1, `(?i)@outlook\.com`),

		rulescan.MustPattern(CategoryApproval, "Requires Approval", 1, `(?i)approve`),
		rulescan.MustPattern(CategoryApproval, "Requires Authorization", 1, `(?i)authorize`),
		rulescan.MustPattern(CategoryApproval, "Budget Request", 1, `(?i)budget.*\$\d+`),
	}
	for _, kw := range []string{
		"password", "secret", "confidential", "private key", "api key",
		"token", "auth", "credential", "otp", "one-time", "verify",
		"bank", "account", "routing", "social security",
	} {
		rules = append(rules, rulescan.MustPattern(CategorySensitive, kw, 1, `(?i)`+strings.ReplaceAll(regexp.QuoteMeta(kw), " ", `\s+`)))
	}
	return &Scanner{engine: rulescan.New(rules...)}
}

// Scan выполняет пять проверок и агрегирует риск.
func (s *Scanner) Scan(text string) domain.SafetyReport {
	res := s.engine.Scan(text)

	pii := res.Labels(CategoryPII)
	sensitive := res.Labels(CategorySensitive)
	dangerous := res.Labels(CategoryDangerous)
	external := res.Labels(CategoryExternal)
	approval := res.Labels(CategoryApproval)

	checks := []domain.SafetyCheck{
		piiCheck(pii),
		sensitiveCheck(sensitive),
		dangerousCheck(dangerous),
		externalCheck(external),
		approvalCheck(approval),
	}

	report := domain.SafetyReport{
		Checks:         checks,
		ContentScanned: utf8.RuneCountInString(text),
		PIICount:       len(pii),
		SensitiveCount: len(sensitive),
		DangerousCount: len(dangerous),
		ExternalCount:  len(external),
		NeedsApproval:  len(approval) > 0,
		IsSafe:         true,
	}
	for _, c := range checks {
		report.RiskScore += riskWeights[c.RiskLevel]
		if c.RiskLevel == domain.RiskHigh || c.RiskLevel == domain.RiskCritical {
			report.IsSafe = false
		}
	}
	if report.RiskScore > 100 {
		report.RiskScore = 100
	}
	report.RiskLevel = OverallLevel(report.RiskScore)
	return report
}

// OverallLevel переводит итоговый риск в HIGH, MEDIUM или LOW.
func OverallLevel(score int) string {
	switch {
	case score >= 70:
		return "HIGH"
	case score >= 40:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func piiCheck(found []string) domain.SafetyCheck {
	if len(found) == 0 {
		return domain.SafetyCheck{Category: CategoryPII, Passed: true, Details: "No personal data detected", RiskLevel: domain.RiskLow, Reason: "No sensitive personal data found"}
	}
	return domain.SafetyCheck{
		Category:  CategoryPII,
		Details:   "Found: " + strings.Join(found, ", "),
		RiskLevel: domain.RiskHigh,
		Reason:    fmt.Sprintf("Contains %d type(s) of personally identifiable information", len(found)),
	}
}

func sensitiveCheck(found []string) domain.SafetyCheck {
	if len(found) == 0 {
		return domain.SafetyCheck{Category: CategorySensitive, Passed: true, Details: "No sensitive keywords", RiskLevel: domain.RiskLow, Reason: "No sensitive keywords detected"}
	}
	level := domain.RiskMedium
	if len(found) > 2 {
		level = domain.RiskHigh
	}
	shown := found
	suffix := ""
	if len(shown) > 3 {
		shown, suffix = shown[:3], "..."
	}
	return domain.SafetyCheck{
		Category:  CategorySensitive,
		Details:   "Found: " + strings.Join(found, ", "),
		RiskLevel: level,
		Reason:    fmt.Sprintf("Contains %d sensitive keyword(s): %s%s", len(found), strings.Join(shown, ", "), suffix),
	}
}

func dangerousCheck(found []string) domain.SafetyCheck {
	if len(found) == 0 {
		return domain.SafetyCheck{Category: CategoryDangerous, Passed: true, Details: "No dangerous patterns", RiskLevel: domain.RiskLow, Reason: "No dangerous patterns found"}
	}
	joined := strings.Join(found, ", ")
	return domain.SafetyCheck{
		Category:  CategoryDangerous,
		Details:   "Detected: " + joined,
		RiskLevel: domain.RiskCritical,
		Reason:    "Contains potentially fraudulent request(s): " + joined,
	}
}

func externalCheck(found []string) domain.SafetyCheck {
	if len(found) == 0 {
		return domain.SafetyCheck{Category: CategoryExternal, Passed: true, Details: "Internal only", RiskLevel: domain.RiskLow, Reason: "Internal communication only"}
	}
	joined := strings.Join(found, ", ")
	return domain.SafetyCheck{
		Category:  CategoryExternal,
		Details:   "External domains: " + joined,
		RiskLevel: domain.RiskMedium,
		Reason:    "Email involves external domain(s): " + joined,
	}
}

func approvalCheck(found []string) domain.SafetyCheck {
	if len(found) == 0 {
		return domain.SafetyCheck{Category: CategoryApproval, Passed: true, Details: "Auto-approval OK", RiskLevel: domain.RiskLow, Reason: "No approval requirements detected"}
	}
	return domain.SafetyCheck{
		Category:  CategoryApproval,
		Details:   "Required: " + strings.Join(found, ", "),
		RiskLevel: domain.RiskMedium,
		Reason:    fmt.Sprintf("Request requires %d type(s) of approval", len(found)),
	}
}
