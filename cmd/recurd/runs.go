package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-recur/pkg/task"
)

var errNoHistory = errors.New("run history is disabled (--db or db.path)")

func newRunsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and prune the run history",
	}

	var limit int
	var notePath string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print recent runs as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newHistoryApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var runs []task.Result
			if notePath != "" {
				runs, err = a.repo.ListRunsForPath(notePath, limit)
			} else {
				runs, err = a.repo.ListRuns(limit)
			}
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []task.Result{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Number of runs to show.")
	list.Flags().StringVar(&notePath, "path", "", "Only runs for this note path.")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count runs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newHistoryApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.repo.CountByStatus()
			if err != nil {
				return err
			}
			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tRUNS")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%s\t%d\n", s, counts[task.Status(s)])
			}
			return tw.Flush()
		},
	})

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			a, err := newHistoryApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.repo.PruneBefore(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d runs\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of the oldest run to keep.")
	cmd.AddCommand(prune)

	return cmd
}

func newHistoryApp(flags *rootFlags) (*app, error) {
	a, err := newApp(flags)
	if err != nil {
		return nil, err
	}
	if a.repo == nil {
		a.Close()
		return nil, errNoHistory
	}
	return a, nil
}
