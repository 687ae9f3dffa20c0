package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"linkcheck-step/internal/step"
)

func newWaitCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "wait",
		Short: "Only wait for the URL to become ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *step.Step
			return withApp(cmd.Context(), v, func(ctx context.Context) error {
				out, err := s.Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ready after %d attempt(s) in %s\n", out.Attempts, out.Elapsed)
				return nil
			}, &s)
		},
	}
}
