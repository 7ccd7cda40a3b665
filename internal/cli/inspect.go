package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"aptlyctl/internal/app"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Compare declared publishes with what aptly serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd)
		},
	}
}

func runInspect(cmd *cobra.Command) error {
	service := newAppService()
	result, err := service.Inspect(cmd.Context(), app.InspectRequest{
		ConfigPath: viper.GetString("config"),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, status := range result.Publishes {
		state := "in sync"
		switch {
		case !status.Present:
			state = "missing"
		case !status.InSync:
			state = "out of sync"
		}
		fmt.Fprintf(out, "- %s (%s): %s\n", status.ID, status.Variant, state)
		if status.Problem != "" {
			fmt.Fprintf(out, "  problem: %s\n", status.Problem)
			continue
		}
		if len(status.Desired) > 0 {
			fmt.Fprintf(out, "  desired: %s\n", strings.Join(status.Desired, ", "))
		}
		if len(status.Actual) > 0 {
			fmt.Fprintf(out, "  actual:  %s\n", strings.Join(status.Actual, ", "))
		}
	}
	fmt.Fprintf(out, "out of sync: %d of %d\n", len(result.OutOfSync), len(result.Publishes))
	return nil
}
