package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"linkcheck-step/config"
)

func testEvent() VerdictEvent {
	return VerdictEvent{
		RunID:            "2f1a3c1e-9d7f-4a57-8d0f-3f2b1b0a9c11",
		URL:              "https://site.test",
		Success:          false,
		BrokenLinksCount: 3,
		ExitCode:         1,
		ReportPath:       ".linkcheck/muffet-report.txt",
		Readiness:        "ready",
		FinishedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type stubPublisher struct {
	name    string
	enabled bool
	err     error
	got     []VerdictEvent
}

func (s *stubPublisher) Name() string  { return s.name }
func (s *stubPublisher) Enabled() bool { return s.enabled }
func (s *stubPublisher) Publish(_ context.Context, ev VerdictEvent) error {
	s.got = append(s.got, ev)
	return s.err
}

func TestDispatcher_SkipsDisabledAndSurvivesErrors(t *testing.T) {
	t.Parallel()

	ok := &stubPublisher{name: "ok", enabled: true}
	failing := &stubPublisher{name: "failing", enabled: true, err: errors.New("down")}
	off := &stubPublisher{name: "off"}

	d := NewDispatcher(NewDispatcherParams{
		Publishers: []Publisher{ok, failing, off, nil},
		Logger:     zap.NewNop().Sugar(),
	})

	require.Equal(t, 1, d.Publish(context.Background(), testEvent()))
	require.Len(t, ok.got, 1)
	require.Len(t, failing.got, 1)
	require.Empty(t, off.got)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	t.Parallel()

	var d *Dispatcher
	require.Equal(t, 0, d.Publish(context.Background(), testEvent()))
}

func TestAMQPPublisher_DisabledWithoutURL(t *testing.T) {
	t.Parallel()

	p := NewAMQPPublisher(NewAMQPPublisherParams{
		Lifecycle: fxtest.NewLifecycle(t),
		Config:    &config.Config{},
		Logger:    zap.NewNop().Sugar(),
	})
	require.False(t, p.Enabled())
}

func TestAMQPPublisher_Publish(t *testing.T) {
	t.Parallel()

	var gotExchange, gotKey, declared string
	var gotMsg amqp.Publishing

	p := &AMQPPublisher{
		exchange:        "ci",
		routingKey:      "linkcheck.verdict.v1",
		declareTopology: true,
		logger:          zap.NewNop().Sugar(),
		publish: func(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
			gotExchange, gotKey, gotMsg = exchange, key, msg
			return nil
		},
		declare: func(exchange string) error {
			declared = exchange
			return nil
		},
	}

	require.True(t, p.Enabled())
	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Equal(t, "ci", gotExchange)
	require.Equal(t, "ci", declared)
	require.Equal(t, "linkcheck.verdict.v1", gotKey)
	require.Equal(t, "application/json", gotMsg.ContentType)
	require.Equal(t, amqp.Persistent, gotMsg.DeliveryMode)
	require.Equal(t, testEvent().RunID, gotMsg.MessageId)

	var ev VerdictEvent
	require.NoError(t, json.Unmarshal(gotMsg.Body, &ev))
	require.Equal(t, 3, ev.BrokenLinksCount)
	require.False(t, ev.Success)
}

func TestAMQPPublisher_DeclareFailure(t *testing.T) {
	t.Parallel()

	p := &AMQPPublisher{
		declareTopology: true,
		publish: func(context.Context, string, string, bool, bool, amqp.Publishing) error {
			t.Fatal("publish must not run after a failed declare")
			return nil
		},
		declare: func(string) error { return errors.New("access refused") },
	}
	require.ErrorContains(t, p.Publish(context.Background(), testEvent()), "exchange declare events")
}

type fakeSetter struct {
	key string
	val any
	ttl time.Duration
	err error
}

func (f *fakeSetter) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.key, f.val, f.ttl = key, value, expiration
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func TestRedisPublisher_DisabledWithoutHost(t *testing.T) {
	t.Parallel()

	p := NewRedisPublisher(NewRedisPublisherParams{
		Lifecycle: fxtest.NewLifecycle(t),
		Config:    &config.Config{},
		Logger:    zap.NewNop().Sugar(),
	})
	require.False(t, p.Enabled())
}

func TestRedisPublisher_Publish(t *testing.T) {
	t.Parallel()

	setter := &fakeSetter{}
	p := &RedisPublisher{client: setter, keyPrefix: "ci:verdict:", ttl: time.Hour}

	require.True(t, p.Enabled())
	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Equal(t, "ci:verdict:https://site.test", setter.key)
	require.Equal(t, time.Hour, setter.ttl)

	var ev VerdictEvent
	require.NoError(t, json.Unmarshal(setter.val.([]byte), &ev))
	require.Equal(t, "https://site.test", ev.URL)
}

func TestRedisPublisher_PublishError(t *testing.T) {
	t.Parallel()

	p := &RedisPublisher{client: &fakeSetter{err: errors.New("READONLY")}}
	require.ErrorContains(t, p.Publish(context.Background(), testEvent()), "READONLY")
	require.Equal(t, "linkcheck:verdict:x", p.Key("x"))
}
