package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"linkcheck-step/config"
	"linkcheck-step/internal/readiness"
	"linkcheck-step/internal/toolcache"
)

func newDoctorCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Probe the URL once and show which muffet binary would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg     *config.Config
				probe   readiness.Probe
				locator *toolcache.Locator
			)
			return withApp(cmd.Context(), v, func(ctx context.Context) error {
				out := cmd.OutOrStdout()

				path, err := locator.Locate()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "muffet:", path)
				fmt.Fprintln(out, "cache dir:", locator.CacheDir())

				if err := cfg.RequireURL(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Checking:", cfg.URL)

				probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				resp, err := probe.Get(probeCtx, cfg.URL, cfg.SkipTLSVerification)
				if err != nil {
					return fmt.Errorf("%s not reachable: %w", cfg.URL, err)
				}
				if resp.StatusCode != 200 {
					return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, cfg.URL)
				}
				fmt.Fprintf(out, "OK: %s answered 200 (%d bytes)\n", cfg.URL, len(resp.Body))
				return nil
			}, &cfg, &probe, &locator)
		},
	}
}
