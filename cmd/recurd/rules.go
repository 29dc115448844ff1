package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-recur/pkg/config"
	"github.com/mklimuk/vault-recur/pkg/logging"
	"github.com/mklimuk/vault-recur/pkg/recurrence"
)

func newRulesCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect recurrence rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(flags)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLABEL\tLABEL (FA)\tEVERY\tENABLED")
			for _, r := range s.RecurrenceRules {
				every := "-"
				if !r.IsNone() {
					every = fmt.Sprintf("%d %s", r.Amount, r.Unit)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", r.Key, r.LabelEn, r.LabelFa, every, r.Enabled)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <value>",
		Short: "Show which rule a recurrence value resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(flags)
			if err != nil {
				return err
			}
			match, ok := recurrence.NewMatcher(s.RecurrenceRules).Resolve(args[0])
			if !ok {
				return fmt.Errorf("no rule matches %q", args[0])
			}
			kind := "exact"
			if !match.Exact {
				kind = fmt.Sprintf("fuzzy, score %.2f", match.Score)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", match.Rule.Key, kind)
			return nil
		},
	})
	return cmd
}

func loadSettings(flags *rootFlags) (config.Settings, error) {
	logger, err := logging.New(logging.Options{Level: flags.logLevel, Prefix: "recurd"})
	if err != nil {
		return config.Settings{}, err
	}
	return config.NewLoader(flags.configPath, logger).Load()
}
