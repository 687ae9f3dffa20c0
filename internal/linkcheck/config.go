package linkcheck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Browser-like headers sent by default; some servers reject obvious bots.
var browserHeaders = []string{
	"User-Agent:Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Accept:text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language:en-US,en;q=0.9",
	"Cache-Control:no-cache",
}

type Config struct {
	TargetURL             string `validate:"required,url"`
	Timeout               int    `validate:"gt=0"`
	MaxConnections        int    `validate:"gt=0"`
	MaxConnectionsPerHost int    `validate:"gt=0"`
	BufferSize            int    `validate:"gt=0"`
	MaxRedirects          int    `validate:"gt=0"`
	ExcludePatterns       []string
	IncludeBrowserHeaders bool
	SkipTLSVerify         bool
	Verbose               bool
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid check config: %w", err)
	}
	return nil
}

// BuildArgs translates c into muffet's command line. Colour is always off so
// the combined output stays parseable.
func BuildArgs(c Config) []string {
	args := []string{
		"--timeout=" + strconv.Itoa(c.Timeout),
		"--max-connections=" + strconv.Itoa(c.MaxConnections),
		"--max-connections-per-host=" + strconv.Itoa(c.MaxConnectionsPerHost),
		"--buffer-size=" + strconv.Itoa(c.BufferSize),
		"--max-redirections=" + strconv.Itoa(c.MaxRedirects),
		"--color=never",
	}

	for _, pattern := range c.ExcludePatterns {
		if p := strings.TrimSpace(pattern); p != "" {
			args = append(args, "--exclude="+p)
		}
	}

	if c.IncludeBrowserHeaders {
		for _, h := range browserHeaders {
			args = append(args, "--header="+h)
		}
	}
	if c.SkipTLSVerify {
		args = append(args, "--skip-tls-verification")
	}
	if c.Verbose {
		args = append(args, "--verbose")
	}

	return append(args, c.TargetURL)
}
