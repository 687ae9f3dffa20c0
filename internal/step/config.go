package step

import (
	"fmt"
	"regexp"

	"linkcheck-step/config"
	"linkcheck-step/internal/linkcheck"
	"linkcheck-step/internal/readiness"
)

// WaitConfig derives the readiness settings. An invalid content pattern is a
// configuration error, reported before any probe is sent.
func WaitConfig(cfg *config.Config) (readiness.Config, error) {
	out := readiness.Config{
		TargetURL:        cfg.URL,
		RequireReachable: cfg.WaitForURL,
		Timeout:          cfg.WaitTimeout,
		Interval:         cfg.WaitInterval,
		SkipTLSVerify:    cfg.SkipTLSVerification,
	}
	if cfg.WaitForContent != "" {
		re, err := regexp.Compile(cfg.WaitForContent)
		if err != nil {
			return readiness.Config{}, fmt.Errorf("invalid wait-for-content pattern %q: %w", cfg.WaitForContent, err)
		}
		out.ContentPattern = re
	}
	return out.Normalize(), nil
}

func CheckConfig(cfg *config.Config) linkcheck.Config {
	return linkcheck.Config{
		TargetURL:             cfg.URL,
		Timeout:               cfg.Timeout,
		MaxConnections:        cfg.MaxConnections,
		MaxConnectionsPerHost: cfg.MaxConnectionsPerHost,
		BufferSize:            cfg.BufferSize,
		MaxRedirects:          cfg.MaxRedirects,
		ExcludePatterns:       cfg.Exclude,
		IncludeBrowserHeaders: cfg.IncludeBrowserHeaders,
		SkipTLSVerify:         cfg.SkipTLSVerification,
		Verbose:               cfg.Verbose,
	}
}
