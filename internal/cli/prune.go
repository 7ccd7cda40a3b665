package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"aptlyctl/internal/app"
)

type pruneOptions struct {
	DryRun bool
}

func newPruneCommand() *cobra.Command {
	opts := pruneOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop rotated snapshots outside their declared retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", true, "Only report prune actions without deleting")
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	return cmd
}

func runPrune(ctx context.Context, cmd *cobra.Command, opts pruneOptions) error {
	service := newAppService()
	result, err := service.Prune(ctx, app.PruneRequest{
		ConfigPath: viper.GetString("config"),
		DryRun:     resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range result.Deleted {
		if result.DryRun {
			fmt.Fprintf(out, "would drop: %s\n", name)
			continue
		}
		fmt.Fprintf(out, "dropped: %s\n", name)
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", skipped)
	}
	fmt.Fprintf(out, "prune complete: %d snapshots (dry-run=%t)\n", result.DeleteCount, result.DryRun)
	return nil
}
