package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/safety"
)

type checkOutput struct {
	Category  string `json:"category"`
	Passed    bool   `json:"passed"`
	Details   string `json:"details"`
	RiskLevel string `json:"risk_level"`
}

type scanOutput struct {
	RiskScore int           `json:"risk_score"`
	RiskLevel string        `json:"risk_level"`
	IsSafe    bool          `json:"is_safe"`
	Checks    []checkOutput `json:"checks"`
}

func toScanOutput(r domain.SafetyReport) scanOutput {
	out := scanOutput{RiskScore: r.RiskScore, RiskLevel: r.RiskLevel, IsSafe: r.IsSafe, Checks: make([]checkOutput, 0, len(r.Checks))}
	for _, c := range r.Checks {
		out.Checks = append(out.Checks, checkOutput{Category: c.Category, Passed: c.Passed, Details: c.Details, RiskLevel: string(c.RiskLevel)})
	}
	return out
}

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [text|-]",
		Short: "Run content safety checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			report := safety.NewScanner().Scan(text)
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, toScanOutput(report))
			}

			header(out, fmt.Sprintf("Risk %s (%d/100)", riskStyle(report.RiskLevel).Render(report.RiskLevel), report.RiskScore))
			for _, c := range report.Checks {
				fmt.Fprintf(out, "  %s %-20s %s %s\n", mark(c.Passed), c.Category,
					riskStyle(string(c.RiskLevel)).Render(fmt.Sprintf("%-8s", c.RiskLevel)), muted.Render(c.Details))
			}
			if !report.IsSafe {
				fmt.Fprintln(out, errStyle.Render("Content is not safe to act on autonomously."))
			}
			return nil
		},
	}
}
