package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"linkcheck-step/config"
)

type AMQPPublisher struct {
	exchange        string
	routingKey      string
	declareTopology bool
	logger          *zap.SugaredLogger

	publish func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	declare func(exchange string) error
}

type NewAMQPPublisherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.SugaredLogger
}

// NewAMQPPublisher dials RABBITMQ_URL. An unset URL or an unreachable broker
// yields a disabled publisher rather than failing the step.
func NewAMQPPublisher(p NewAMQPPublisherParams) *AMQPPublisher {
	cfg := p.Config.RabbitMQ
	pub := &AMQPPublisher{
		exchange:        cfg.Exchange,
		routingKey:      cfg.RoutingKey,
		declareTopology: cfg.DeclareTopology,
		logger:          p.Logger,
	}

	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		p.Logger.Infow("rabbitmq_disabled", "reason", "missing RABBITMQ_URL")
		return pub
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		p.Logger.Warnw("rabbitmq_unavailable", "err", err)
		return pub
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.Logger.Warnw("rabbitmq_channel_failed", "err", err)
		return pub
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ch.Close()
			_ = conn.Close()
			return nil
		},
	})

	pub.publish = ch.PublishWithContext
	pub.declare = func(exchange string) error {
		return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	}

	p.Logger.Infow(
		"rabbitmq_enabled",
		"exchange", pub.exchange,
		"routing_key", pub.routingKey,
		"declare_topology", pub.declareTopology,
	)
	return pub
}

func (p *AMQPPublisher) Name() string { return "rabbitmq" }

func (p *AMQPPublisher) Enabled() bool { return p.publish != nil }

func (p *AMQPPublisher) Publish(ctx context.Context, ev VerdictEvent) error {
	ex := p.exchange
	if ex == "" {
		ex = "events"
	}
	key := p.routingKey
	if key == "" {
		key = "linkcheck.verdict.v1"
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	if p.declareTopology && p.declare != nil {
		if err := p.declare(ex); err != nil {
			return fmt.Errorf("rabbitmq exchange declare %s: %w", ex, err)
		}
	}

	return p.publish(ctx, ex, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    ev.FinishedAt,
		MessageId:    ev.RunID,
		Type:         "linkcheck/verdict",
		Body:         body,
	})
}

var _ Publisher = (*AMQPPublisher)(nil)
