package linkcheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func baseConfig() Config {
	return Config{
		TargetURL:             "https://docs.example.test",
		Timeout:               30,
		MaxConnections:        10,
		MaxConnectionsPerHost: 5,
		BufferSize:            16384,
		MaxRedirects:          10,
	}
}

func TestBuildArgs_Defaults(t *testing.T) {
	t.Parallel()

	got := BuildArgs(baseConfig())
	require.Equal(t, []string{
		"--timeout=30",
		"--max-connections=10",
		"--max-connections-per-host=5",
		"--buffer-size=16384",
		"--max-redirections=10",
		"--color=never",
		"https://docs.example.test",
	}, got)
}

func TestBuildArgs_ExcludeSkipsBlankEntries(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.ExcludePatterns = []string{"  ", "foo.com", ""}

	var excludes []string
	for _, a := range BuildArgs(cfg) {
		if strings.HasPrefix(a, "--exclude=") {
			excludes = append(excludes, a)
		}
	}
	require.Equal(t, []string{"--exclude=foo.com"}, excludes)
}

func TestBuildArgs_ExcludeKeepsInputOrder(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.ExcludePatterns = []string{" b.test ", "a.test"}

	args := BuildArgs(cfg)
	require.Equal(t, "--exclude=b.test", args[6])
	require.Equal(t, "--exclude=a.test", args[7])
}

func TestBuildArgs_AllOptions(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.IncludeBrowserHeaders = true
	cfg.SkipTLSVerify = true
	cfg.Verbose = true

	args := BuildArgs(cfg)

	var headers []string
	for _, a := range args {
		if strings.HasPrefix(a, "--header=") {
			headers = append(headers, a)
		}
	}
	require.Len(t, headers, 4)
	require.True(t, strings.HasPrefix(headers[0], "--header=User-Agent:Mozilla/5.0"))
	require.True(t, strings.HasPrefix(headers[1], "--header=Accept:text/html"))
	require.Equal(t, "--header=Accept-Language:en-US,en;q=0.9", headers[2])
	require.Equal(t, "--header=Cache-Control:no-cache", headers[3])

	require.Contains(t, args, "--skip-tls-verification")
	require.Contains(t, args, "--verbose")
	require.Contains(t, args, "--color=never")
	require.Equal(t, "https://docs.example.test", args[len(args)-1])
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, baseConfig().Validate())

	cfg := baseConfig()
	cfg.BufferSize = 0
	require.Error(t, cfg.Validate())

	cfg = baseConfig()
	cfg.TargetURL = ""
	require.Error(t, cfg.Validate())
}
