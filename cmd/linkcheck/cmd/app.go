package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	appfx "linkcheck-step/internal/app/fx"
)

const stopTimeout = 15 * time.Second

// withApp builds the fx graph on top of v, fills targets, runs fn between
// Start and Stop, and returns fn's error.
func withApp(ctx context.Context, v *viper.Viper, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Supply(v),
		appfx.CoreAppOptions,
		appfx.StepModule,
		appfx.HistoryModule,
		appfx.NotifyModule,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx)
}
