package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"linkcheck-step/config"
	"linkcheck-step/internal/step"
)

func newRootCmd() *cobra.Command {
	return newRootCmdFor(config.NewViper())
}

func newRootCmdFor(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "linkcheck",
		Short:         "Wait for a URL to be ready, then check it for broken links with muffet",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadFile(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), v)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	addInputFlags(pf)
	if err := v.BindPFlags(pf); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newRunCmd(v),
		newWaitCmd(v),
		newDoctorCmd(v),
		newHistoryCmd(v),
	)
	return rootCmd
}

// addInputFlags mirrors the step inputs. Defaults match config.NewViper so an
// unchanged flag never shadows an INPUT_* env var with a different value.
func addInputFlags(fs *pflag.FlagSet) {
	fs.String(config.KeyURL, "", "URL to check")
	fs.Int(config.KeyTimeout, 30, "Per-request timeout in seconds")
	fs.Int(config.KeyMaxConnections, 10, "Maximum concurrent connections")
	fs.Int(config.KeyMaxConnectionsPerHost, 5, "Maximum concurrent connections per host")
	fs.Int(config.KeyBufferSize, 16384, "HTTP response buffer size in bytes")
	fs.Int(config.KeyMaxRedirects, 10, "Maximum redirects to follow")
	fs.StringArray(config.KeyExclude, nil, "Exclude links matching this regex (repeatable)")
	fs.Bool(config.KeyIncludeBrowserHeaders, true, "Send browser-like request headers")
	fs.Bool(config.KeySkipTLSVerification, false, "Skip TLS certificate verification")
	fs.Bool(config.KeyFailOnError, true, "Fail the step when broken links are found")
	fs.Bool(config.KeyVerbose, false, "Verbose checker output and debug logs")
	fs.Bool(config.KeyWaitForURL, false, "Wait for the URL to answer 200 before checking")
	fs.String(config.KeyWaitForContent, "", "Wait until the response body matches this regex")
	fs.String(config.KeyWaitTimeout, "300", "Readiness deadline (seconds or Go duration)")
	fs.String(config.KeyWaitInterval, "5", "Delay between readiness attempts (seconds or Go duration)")
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full step (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), v)
		},
	}
}

func runStep(ctx context.Context, v *viper.Viper) error {
	var s *step.Step
	return withApp(ctx, v, func(ctx context.Context) error {
		_, err := s.Run(ctx)
		return err
	}, &s)
}
