package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"linkcheck-step/config"
)

type verdictSetter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisPublisher keeps the latest verdict per URL under <prefix><url>.
type RedisPublisher struct {
	client    verdictSetter
	keyPrefix string
	ttl       time.Duration
}

type NewRedisPublisherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.SugaredLogger
}

func NewRedisPublisher(p NewRedisPublisherParams) *RedisPublisher {
	cfg := p.Config.Redis
	pub := &RedisPublisher{keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}

	if strings.TrimSpace(cfg.Host) == "" {
		p.Logger.Infow("redis_disabled", "reason", "missing REDIS_HOST")
		return pub
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	opts := &redis.Options{
		Addr:     addr,
		Username: strings.TrimSpace(cfg.User),
		Password: cfg.Password,
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Scheme), "rediss") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		p.Logger.Warnw("redis_unavailable", "addr", addr, "err", err)
		return pub
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := client.Close(); err != nil {
				p.Logger.Warnw("redis_close_failed", "err", err)
			}
			return nil
		},
	})

	p.Logger.Infow("redis_enabled", "addr", addr)
	pub.client = client
	return pub
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Enabled() bool { return p.client != nil }

func (p *RedisPublisher) Key(url string) string {
	prefix := p.keyPrefix
	if prefix == "" {
		prefix = "linkcheck:verdict:"
	}
	return prefix + url
}

func (p *RedisPublisher) Publish(ctx context.Context, ev VerdictEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := p.client.Set(ctx, p.Key(ev.URL), body, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var _ Publisher = (*RedisPublisher)(nil)
