// Package notify fans a finished verdict out to downstream systems.
// Delivery problems are logged and never change the verdict itself.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type VerdictEvent struct {
	RunID            string    `json:"run_id"`
	URL              string    `json:"url"`
	Success          bool      `json:"success"`
	BrokenLinksCount int       `json:"broken_links_count"`
	ExitCode         int       `json:"exit_code"`
	ReportPath       string    `json:"report_path,omitempty"`
	Readiness        string    `json:"readiness"`
	Reason           string    `json:"reason,omitempty"`
	FinishedAt       time.Time `json:"finished_at"`
}

type Publisher interface {
	Name() string
	Enabled() bool
	Publish(ctx context.Context, ev VerdictEvent) error
}

type Dispatcher struct {
	publishers []Publisher
	logger     *zap.SugaredLogger
}

type NewDispatcherParams struct {
	fx.In

	Publishers []Publisher `group:"verdict_publishers"`
	Logger     *zap.SugaredLogger
}

func NewDispatcher(p NewDispatcherParams) *Dispatcher {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{publishers: p.Publishers, logger: logger}
}

// Publish sends ev to every enabled publisher concurrently and returns how
// many accepted it.
func (d *Dispatcher) Publish(ctx context.Context, ev VerdictEvent) int {
	if d == nil {
		return 0
	}

	var (
		g         errgroup.Group
		delivered atomic.Int32
	)
	for _, p := range d.publishers {
		if p == nil || !p.Enabled() {
			continue
		}
		g.Go(func() error {
			if err := p.Publish(ctx, ev); err != nil {
				d.logger.Warnw("verdict_publish_failed", "publisher", p.Name(), "run_id", ev.RunID, "err", err)
				return nil
			}
			d.logger.Infow("verdict_published", "publisher", p.Name(), "run_id", ev.RunID)
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}
