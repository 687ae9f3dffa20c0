package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Input keys. They double as cobra flag names, config file keys and (upper
// cased, prefixed with INPUT_) GitHub Actions input env vars.
const (
	KeyURL                   = "url"
	KeyTimeout               = "timeout"
	KeyMaxConnections        = "max-connections"
	KeyMaxConnectionsPerHost = "max-connections-per-host"
	KeyBufferSize            = "buffer-size"
	KeyMaxRedirects          = "max-redirects"
	KeyExclude               = "exclude"
	KeyIncludeBrowserHeaders = "include-browser-headers"
	KeySkipTLSVerification   = "skip-tls-verification"
	KeyFailOnError           = "fail-on-error"
	KeyVerbose               = "verbose"
	KeyWaitForURL            = "wait-for-url"
	KeyWaitForContent        = "wait-for-content"
	KeyWaitTimeout           = "wait-timeout"
	KeyWaitInterval          = "wait-interval"
)

var inputKeys = []string{
	KeyURL,
	KeyTimeout,
	KeyMaxConnections,
	KeyMaxConnectionsPerHost,
	KeyBufferSize,
	KeyMaxRedirects,
	KeyExclude,
	KeyIncludeBrowserHeaders,
	KeySkipTLSVerification,
	KeyFailOnError,
	KeyVerbose,
	KeyWaitForURL,
	KeyWaitForContent,
	KeyWaitTimeout,
	KeyWaitInterval,
}

var ErrMissingURL = errors.New("missing required input: url")

type Config struct {
	LogLevel string

	URL                   string `validate:"omitempty,url"`
	Timeout               int    `validate:"gt=0"`
	MaxConnections        int    `validate:"gt=0"`
	MaxConnectionsPerHost int    `validate:"gt=0"`
	BufferSize            int    `validate:"gt=0"`
	MaxRedirects          int    `validate:"gt=0"`
	Exclude               []string
	IncludeBrowserHeaders bool
	SkipTLSVerification   bool
	FailOnError           bool
	Verbose               bool

	WaitForURL     bool
	WaitForContent string
	WaitTimeout    time.Duration `validate:"gt=0"`
	WaitInterval   time.Duration `validate:"gt=0"`

	// Workspace is the root the report directory is created under.
	Workspace   string
	OutputFile  string
	SummaryFile string
	MuffetPath  string

	History  HistoryConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
}

// HistoryConfig enables the run history store when DSN is set.
type HistoryConfig struct {
	DSN string
}

// RedisConfig enables the latest-verdict cache when Host is set.
type RedisConfig struct {
	User      string
	Password  string
	Host      string
	Port      int
	Scheme    string
	KeyPrefix string
	TTL       time.Duration
}

// RabbitMQConfig enables verdict events when URL is set.
type RabbitMQConfig struct {
	URL             string
	Exchange        string
	RoutingKey      string
	DeclareTopology bool
}

func NewViper() *viper.Viper {
	v := viper.New()

	for _, key := range inputKeys {
		upper := strings.ToUpper(key)
		_ = v.BindEnv(key, "INPUT_"+upper, "INPUT_"+strings.ReplaceAll(upper, "-", "_"))
	}

	v.SetDefault(KeyTimeout, 30)
	v.SetDefault(KeyMaxConnections, 10)
	v.SetDefault(KeyMaxConnectionsPerHost, 5)
	v.SetDefault(KeyBufferSize, 16384)
	v.SetDefault(KeyMaxRedirects, 10)
	v.SetDefault(KeyExclude, "")
	v.SetDefault(KeyIncludeBrowserHeaders, true)
	v.SetDefault(KeySkipTLSVerification, false)
	v.SetDefault(KeyFailOnError, true)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyWaitForURL, false)
	v.SetDefault(KeyWaitForContent, "")
	v.SetDefault(KeyWaitTimeout, "300")
	v.SetDefault(KeyWaitInterval, "5")

	bindEnv(v, "log-level", "LOG_LEVEL")
	bindEnv(v, "workspace", "GITHUB_WORKSPACE")
	bindEnv(v, "output-file", "GITHUB_OUTPUT")
	bindEnv(v, "summary-file", "GITHUB_STEP_SUMMARY")
	bindEnv(v, "muffet-path", "MUFFET_PATH")
	bindEnv(v, "history.dsn", "HISTORY_DSN")
	bindEnv(v, "redis.user", "REDIS_USER")
	bindEnv(v, "redis.password", "REDIS_PASSWORD")
	bindEnv(v, "redis.host", "REDIS_HOST")
	bindEnv(v, "redis.port", "REDIS_PORT")
	bindEnv(v, "redis.scheme", "REDIS_SCHEME")
	bindEnv(v, "redis.key-prefix", "REDIS_KEY_PREFIX")
	bindEnv(v, "redis.ttl", "REDIS_VERDICT_TTL")
	bindEnv(v, "rabbitmq.url", "RABBITMQ_URL")
	bindEnv(v, "rabbitmq.exchange", "RABBITMQ_EXCHANGE")
	bindEnv(v, "rabbitmq.routing-key", "RABBITMQ_ROUTING_KEY")
	bindEnv(v, "rabbitmq.declare-topology", "RABBITMQ_DECLARE_TOPOLOGY")

	v.SetDefault("log-level", "info")
	v.SetDefault("workspace", ".")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.scheme", "redis")
	v.SetDefault("redis.key-prefix", "linkcheck:verdict:")
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("rabbitmq.exchange", "events")
	v.SetDefault("rabbitmq.routing-key", "linkcheck.verdict.v1")

	return v
}

func bindEnv(v *viper.Viper, key, env string) {
	_ = v.BindEnv(key, env)
}

// LoadFile merges a YAML/JSON/TOML config file into v. An empty path is a no-op.
func LoadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

func NewConfig(v *viper.Viper) (*Config, error) {
	waitTimeout, err := parseSeconds(v.GetString(KeyWaitTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyWaitTimeout, err)
	}
	waitInterval, err := parseSeconds(v.GetString(KeyWaitInterval))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyWaitInterval, err)
	}
	redisTTL, err := parseSeconds(v.GetString("redis.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_VERDICT_TTL: %w", err)
	}

	cfg := &Config{
		LogLevel: v.GetString("log-level"),

		URL:                   strings.TrimSpace(v.GetString(KeyURL)),
		Timeout:               v.GetInt(KeyTimeout),
		MaxConnections:        v.GetInt(KeyMaxConnections),
		MaxConnectionsPerHost: v.GetInt(KeyMaxConnectionsPerHost),
		BufferSize:            v.GetInt(KeyBufferSize),
		MaxRedirects:          v.GetInt(KeyMaxRedirects),
		Exclude:               SplitList(v.Get(KeyExclude)),
		IncludeBrowserHeaders: notFalse(v, KeyIncludeBrowserHeaders),
		SkipTLSVerification:   v.GetBool(KeySkipTLSVerification),
		FailOnError:           notFalse(v, KeyFailOnError),
		Verbose:               v.GetBool(KeyVerbose),

		WaitForURL:     v.GetBool(KeyWaitForURL),
		WaitForContent: v.GetString(KeyWaitForContent),
		WaitTimeout:    waitTimeout,
		WaitInterval:   waitInterval,

		Workspace:   v.GetString("workspace"),
		OutputFile:  v.GetString("output-file"),
		SummaryFile: v.GetString("summary-file"),
		MuffetPath:  v.GetString("muffet-path"),

		History: HistoryConfig{
			DSN: v.GetString("history.dsn"),
		},
		Redis: RedisConfig{
			User:      v.GetString("redis.user"),
			Password:  v.GetString("redis.password"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Scheme:    v.GetString("redis.scheme"),
			KeyPrefix: v.GetString("redis.key-prefix"),
			TTL:       redisTTL,
		},
		RabbitMQ: RabbitMQConfig{
			URL:             v.GetString("rabbitmq.url"),
			Exchange:        v.GetString("rabbitmq.exchange"),
			RoutingKey:      v.GetString("rabbitmq.routing-key"),
			DeclareTopology: v.GetBool("rabbitmq.declare-topology"),
		},
	}

	// Waiting for content is meaningless unless the URL is polled as well.
	if cfg.WaitForContent != "" {
		cfg.WaitForURL = true
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Redis.Host != "" && (cfg.Redis.Port <= 0 || cfg.Redis.Port > 65535) {
		return nil, fmt.Errorf("invalid REDIS_PORT %d", cfg.Redis.Port)
	}

	return cfg, nil
}

// RequireURL reports ErrMissingURL when no target URL was supplied.
func (c *Config) RequireURL() error {
	if c == nil || c.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// WaitEnabled reports whether the readiness wait should run before the check.
func (c *Config) WaitEnabled() bool {
	return c.WaitForURL || c.WaitForContent != ""
}

// SplitList flattens newline separated input (or a slice of such strings)
// into trimmed, non-empty entries, preserving order.
func SplitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(val, "\n")
	case []string:
		for _, s := range val {
			parts = append(parts, strings.Split(s, "\n")...)
		}
	case []any:
		for _, s := range val {
			parts = append(parts, strings.Split(fmt.Sprint(s), "\n")...)
		}
	default:
		parts = strings.Split(fmt.Sprint(val), "\n")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// notFalse reads a default-on input: only an explicit "false" turns it off,
// so values like "yes" keep it enabled.
func notFalse(v *viper.Viper, key string) bool {
	return !strings.EqualFold(strings.TrimSpace(v.GetString(key)), "false")
}

// parseSeconds accepts either a bare integer (seconds, the action input
// convention) or a Go duration string.
func parseSeconds(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
