package tools

import (
	"log/slog"
	"time"

	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/telemetry"
)

// BuiltinOptions override the default wiring for tests and alternate
// deployments.
type BuiltinOptions struct {
	Now           func() time.Time
	Weather       *WeatherConfig
	SearchBackend SearchBackend
}

// NewBuiltinRegistry registers the full builtin tool set against the
// configuration's timezone and sandbox.
func NewBuiltinRegistry(cfg *config.Config, sink telemetry.Sink, logger *slog.Logger, opts BuiltinOptions) *Registry {
	loc := cfg.Location()
	sb := NewSandbox(cfg.DesktopDir)

	weatherCfg := WeatherConfig{}
	if opts.Weather != nil {
		weatherCfg = *opts.Weather
	}

	r := NewRegistry(logger)
	r.MustRegister(NewTimeTool(loc, opts.Now))
	r.MustRegister(NewDateNormalizeTool(loc, opts.Now))
	r.MustRegister(NewWeatherTool(weatherCfg))
	r.MustRegister(NewMathTool())
	r.MustRegister(NewFSWriteTool(sb, sink))
	r.MustRegister(NewFileReadTool(sb))
	r.MustRegister(NewPathPlannerTool(sb))
	r.MustRegister(NewWebSearchTool(opts.SearchBackend))
	r.MustRegister(NewCalendarTool(loc))
	return r
}
