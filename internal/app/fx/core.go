package fx

import (
	"go.uber.org/fx"

	"linkcheck-step/config"
	"linkcheck-step/internal/logs"
)

// CoreAppOptions provides config and logging. Callers supply the *viper.Viper
// so CLI flags and --config are already merged into it.
var CoreAppOptions = fx.Options(
	fx.Provide(
		config.NewConfig,
		logs.NewLogger,
		logs.NewSugaredLogger,
	),
	fx.Invoke(logs.RegisterLifecycle),
)
