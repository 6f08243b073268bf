package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flowpilot/internal/domain"
)

type scoreOutput struct {
	PriorityLevel       domain.PriorityLevel `json:"priority_level"`
	TotalScore          int                  `json:"total_score"`
	UrgencyScore        int                  `json:"urgency_score"`
	ImportanceScore     int                  `json:"importance_score"`
	DeadlineScore       int                  `json:"deadline_score"`
	SenderScore         int                  `json:"sender_score"`
	KeywordScore        int                  `json:"keyword_score"`
	Reasons             []string             `json:"reasons"`
	DecisionExplanation string               `json:"decision_explanation"`
}

func newScoreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "score [text|-]",
		Short: "Score email priority",
		Long:  "Score the priority of an email. Text comes from arguments or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			scorer, err := opts.scorer()
			if err != nil {
				return err
			}
			b := scorer.Score(text)
			out := cmd.OutOrStdout()
			if opts.json {
				reasons := b.Reasons
				if reasons == nil {
					reasons = []string{}
				}
				return writeJSON(out, scoreOutput{
					PriorityLevel:       b.PriorityLevel,
					TotalScore:          b.TotalScore,
					UrgencyScore:        b.UrgencyScore,
					ImportanceScore:     b.ImportanceScore,
					DeadlineScore:       b.DeadlineScore,
					SenderScore:         b.SenderScore,
					KeywordScore:        b.KeywordScore,
					Reasons:             reasons,
					DecisionExplanation: b.DecisionExplanation,
				})
			}

			var body strings.Builder
			fmt.Fprintf(&body, "%s %s\n", priorityLabel(b.PriorityLevel), bold.Render(fmt.Sprintf("%d/100", b.TotalScore)))
			fmt.Fprintf(&body, "urgency %d · importance %d · deadline %d · sender %d · keywords %d",
				b.UrgencyScore, b.ImportanceScore, b.DeadlineScore, b.SenderScore, b.KeywordScore)
			for _, r := range b.Reasons {
				fmt.Fprintf(&body, "\n%s %s", muted.Render("•"), r)
			}
			fmt.Fprintln(out, box.Render(body.String()))
			fmt.Fprintln(out, muted.Render(b.DecisionExplanation))
			return nil
		},
	}
}
