package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spachava753/compatprobe/internal/executor"
	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/registry"
	"github.com/spachava753/compatprobe/internal/semrange"
)

func newWindowCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "window <package> <range>",
		Short: "Print the versions a project depending on <range> would be tested against",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			mustBind(v, f.Lookup("registry"), f.Lookup("registry-url"), f.Lookup("registry-path"))

			reg, err := executor.NewRegistry(cmd.Context(), models.RegistryConfig{
				Type:       models.RegistryType(v.GetString("registry")),
				URL:        v.GetString("registry-url"),
				Path:       v.GetString("registry-path"),
				TimeoutSec: 30,
			})
			if err != nil {
				return fmt.Errorf("creating registry: %w", err)
			}

			versions, err := registry.Window(cmd.Context(), reg, semrange.Resolver{}, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintf(out, "no testable versions of %s for %q\n", args[0], args[1])
				return nil
			}
			for _, ver := range versions {
				fmt.Fprintf(out, "%s\t%s\n", ver.Version, ver.Hash)
			}
			return nil
		},
	}

	cmd.Flags().String("registry", string(models.RegistryNPM), "registry type (npm|file)")
	cmd.Flags().String("registry-url", "", "registry URL (default: the public npm registry)")
	cmd.Flags().String("registry-path", "", "registry snapshot file, for --registry file")
	return cmd
}
