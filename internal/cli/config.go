package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satproc/warpinit/internal/config"
)

func newConfigCmd(cctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with supervisor configuration",
	}
	cmd.AddCommand(newConfigLintCmd(cctx))
	return cmd
}

func newConfigLintCmd(cctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the manifest and the environment override file",
		RunE: func(cmd *cobra.Command, args []string) error {
			man, err := cctx.loadManifest()
			if err != nil {
				return err
			}
			if _, err := config.LoadEnvFile(man.Worker.EnvFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "manifest ok: worker %s\n", strings.Join(man.WorkerArgv(), " "))
			return nil
		},
	}
}
