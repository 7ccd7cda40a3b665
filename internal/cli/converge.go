package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"aptlyctl/internal/app"
	"aptlyctl/internal/types"
)

func newEntityCommand(kind types.EntityKind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
	}
	cmd.AddCommand(newActionCommand(kind, types.ActionCreate))
	cmd.AddCommand(newActionCommand(kind, types.ActionUpdate))
	return cmd
}

func newActionCommand(kind types.EntityKind, action types.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " [name]",
		Short: fmt.Sprintf("%s one declared %s, or all of them", action, kind),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runConverge(cmd.Context(), cmd, kind, action, name)
		},
	}
}

func runConverge(ctx context.Context, cmd *cobra.Command, kind types.EntityKind, action types.Action, name string) error {
	service := newAppService()
	result, err := service.Converge(ctx, app.ConvergeRequest{
		ConfigPath: viper.GetString("config"),
		Kind:       kind,
		Action:     action,
		Name:       name,
	})
	printReport(cmd.OutOrStdout(), result.Report)
	return err
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Update mirrors, create repos, rotate snapshots and update publishes in one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService()
			result, err := service.Sync(cmd.Context(), app.SyncRequest{ConfigPath: viper.GetString("config")})
			printReport(cmd.OutOrStdout(), result.Report)
			return err
		},
	}
}

type watchOptions struct {
	Interval time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run sync periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService()
			return service.Watch(cmd.Context(), app.WatchRequest{
				ConfigPath: viper.GetString("config"),
				Interval:   resolveDuration(cmd, opts.Interval, "watch_interval", "interval"),
			})
		},
	}
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Hour, "Time between sync runs")
	_ = viper.BindPFlag("watch_interval", cmd.Flags().Lookup("interval"))
	return cmd
}

func newStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print what aptly currently holds as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService()
			result, err := service.ReadState(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), result.State)
		},
	}
}

func writeYAML(out io.Writer, value any) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}

func printReport(out io.Writer, report types.RunReport) {
	for _, command := range report.Commands {
		fmt.Fprintf(out, "aptly %s\n", command)
	}
	for _, name := range report.Pruned {
		fmt.Fprintf(out, "pruned: %s\n", name)
	}
	for _, skipped := range report.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", skipped)
	}
}
