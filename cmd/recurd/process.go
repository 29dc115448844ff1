package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-recur/pkg/task"
	"github.com/mklimuk/vault-recur/pkg/vault"
)

func newProcessCmd(flags *rootFlags) *cobra.Command {
	var recur, copySubtasks, confirm bool
	cmd := &cobra.Command{
		Use:   "process <note>...",
		Short: "Process completed recurring task notes",
		Long: "Process creates the next instance of each completed recurring task and archives it.\n" +
			"Without --recur the note must be eligible, as if it had just been saved.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []task.Option
			if confirm {
				opts = append(opts, task.WithConfirmer(promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}))
			}
			a, err := newApp(flags, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			copyFlag := a.settings.CopySubtasks
			if cmd.Flags().Changed("copy-subtasks") {
				copyFlag = copySubtasks
			}

			var failed int
			for _, p := range args {
				var res *task.Result
				if cmd.Flags().Changed("recur") {
					res, err = a.engine.Process(p, recur, copyFlag)
				} else {
					res, err = a.engine.HandleChange(p)
				}
				if err != nil {
					failed++
				}
				printResult(cmd.OutOrStdout(), res)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d notes failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recur, "recur", true, "Create the next instance; --recur=false only archives.")
	cmd.Flags().BoolVar(&copySubtasks, "copy-subtasks", true, "Copy checklist items unchecked into the next instance.")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Ask before recurring when confirm_on_recur is set.")
	return cmd
}

func newArchiveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <note>...",
		Short: "Archive notes without creating a next instance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var failed int
			for _, p := range args {
				res, err := a.engine.Archive(p)
				if err != nil {
					failed++
				}
				printResult(cmd.OutOrStdout(), res)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d notes failed", failed, len(args))
			}
			return nil
		},
	}
}

func printResult(w io.Writer, res *task.Result) {
	if res == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(res)
}

// promptConfirmer asks on the terminal.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(path string, fm vault.Frontmatter) (task.Answer, error) {
	fmt.Fprintf(p.out, "%s is complete (recurrence: %v).\n[r]ecur, recur [w]ithout subtasks, [a]rchive only, [c]ancel? ", path, fm["recurrence"])
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return task.Answer{}, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "r", "recur", "":
		return task.Answer{Decision: task.DecisionRecur, CopySubtasks: true}, nil
	case "w":
		return task.Answer{Decision: task.DecisionRecur}, nil
	case "a", "archive":
		return task.Answer{Decision: task.DecisionArchive}, nil
	default:
		return task.Answer{Decision: task.DecisionCancel}, nil
	}
}
