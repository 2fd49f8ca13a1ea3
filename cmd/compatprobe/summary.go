package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spachava753/compatprobe/internal/config"
	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/store"
)

func newSummaryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <batch.yaml>",
		Short: "Summarize the stored results of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			mustBind(v, f.Lookup("output"), f.Lookup("json"))

			cfg, err := config.LoadBatchConfig(args[0])
			if err != nil {
				return fmt.Errorf("loading batch config: %w", err)
			}
			if out := v.GetString("output"); out != "" {
				cfg.OutputDir = out
			}

			st := store.New(cfg.OutputDir)
			ok, err := st.HasAggregate(cfg.Name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("batch %s has no results at %s", cfg.Name, st.AggregatePath(cfg.Name))
			}

			results, err := st.LoadAggregate(cfg.Name)
			if err != nil {
				return err
			}
			summary := models.Summarize(results)

			if v.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printSummary(cmd.OutOrStdout(), cfg.Name, summary)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "output directory (default: batch file, then ./output)")
	cmd.Flags().Bool("json", false, "print the summary as JSON")
	return cmd
}
