package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"flowpilot/internal/usecase/priority"
)

// Version задаётся через ldflags при сборке.
var Version = "dev"

type options struct {
	json      bool
	rulesFile string
	vips      []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "flowpilot",
		Short:         "flowpilot - offline email triage, calendar conflicts and safety checks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of styled text")
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", os.Getenv("PRIORITY_RULES_FILE"), "YAML file overriding priority rules")
	root.PersistentFlags().StringSliceVar(&opts.vips, "vip", nil, "VIP sender address or domain (repeatable)")

	root.AddCommand(
		newScoreCmd(opts),
		newConflictsCmd(opts),
		newScanCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "flowpilot version %s\n", Version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorMsg(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func (o *options) scorer() (*priority.Scorer, error) {
	cfg, err := priority.LoadConfig(o.rulesFile)
	if err != nil {
		return nil, err
	}
	cfg.VIPs = append(cfg.VIPs, o.vips...)
	return priority.NewScorer(cfg)
}

// readText берёт текст из аргументов, а без них или с "-" читает stdin.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
