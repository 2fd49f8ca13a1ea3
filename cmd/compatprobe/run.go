package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spachava753/compatprobe/internal/executor"
	"github.com/spachava753/compatprobe/internal/models"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <batch.yaml>",
		Short: "Run a batch of compatibility experiments",
		Long: `Run every input of a batch file: resolve the library versions each
project should be tested against, run the project's tests against them in
order until the first failure, and write the results to
<output>/.cache-experiment/<batch>/testResults.json.

A batch that already has results is not run again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			mustBind(v, f.Lookup("concurrency"), f.Lookup("limit"), f.Lookup("output"), f.Lookup("plain"))

			report, err := executor.RunFromConfig(cmd.Context(), executor.RunOptions{
				BatchPath:   args[0],
				Concurrency: v.GetInt("concurrency"),
				Limit:       v.GetInt("limit"),
				OutputDir:   v.GetString("output"),
				Progress:    cmd.ErrOrStderr(),
				Plain:       v.GetBool("plain"),
			})
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), report.Batch, report.Summary)
			return nil
		},
	}

	cmd.Flags().IntP("concurrency", "p", 0, "number of inputs tested in parallel (default: batch file, then 1)")
	cmd.Flags().IntP("limit", "c", 0, "only process the first N inputs (default: all)")
	cmd.Flags().StringP("output", "o", "", "output directory (default: batch file, then ./output)")
	cmd.Flags().Bool("plain", false, "print one line per progress event instead of a progress bar")
	return cmd
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// printSummary writes a plain-text report of a batch.
func printSummary(w io.Writer, batch string, s models.BatchSummary) {
	fmt.Fprintf(w, "\n%s\n", headerStyle.Render("Batch: "+batch))
	fmt.Fprintf(w, "Inputs: %d (%d without testable versions)\n", s.Inputs, s.EmptyWindows)
	fmt.Fprintf(w, "Runs: %d\n", s.TotalRuns)
	fmt.Fprintf(w, "Successes: %d\n", s.Successes)
	fmt.Fprintf(w, "Failures: %d\n", s.Failures)

	if len(s.Results) == 0 {
		return
	}

	fmt.Fprintln(w)
	for _, r := range s.Results {
		last := r.LastCompatible
		if last == "" {
			last = "none"
		}
		line := fmt.Sprintf("  %s -> %s: compatible up to %s", r.Project, r.LibraryPackage, successStyle.Render(last))
		if r.BrokenAt != "" {
			line += ", " + failureStyle.Render("broken at "+r.BrokenAt)
		}
		fmt.Fprintf(w, "%s (%d tested)\n", line, r.Tested)
	}
}
