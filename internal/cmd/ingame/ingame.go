package ingame

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"time"

	"github.com/tobbstr/tickfsm"
	"github.com/tobbstr/tickfsm/internal/ingame"
	platformcmd "github.com/tobbstr/tickfsm/internal/platform/cmd"
	"github.com/tobbstr/tickfsm/internal/platform/logging"
	"github.com/tobbstr/tickfsm/internal/platform/otel"
)

// Config holds ingame command configuration.
type Config struct {
	FrameInterval time.Duration              `env:"TICKFSM_INGAME_FRAME_INTERVAL" envDefault:"16ms"`
	DemoDuration  time.Duration              `env:"TICKFSM_INGAME_DEMO_DURATION"  envDefault:"5s"`
	ResultTicks   int                        `env:"TICKFSM_INGAME_RESULT_TICKS"   envDefault:"60"`
	Rounds        int                        `env:"TICKFSM_INGAME_ROUNDS"         envDefault:"3"`
	ErrorMode     tickfsm.UnhandledErrorMode `env:"TICKFSM_INGAME_ERROR_MODE"     envDefault:"catch"`
	LogLevel      slog.Level                 `env:"TICKFSM_LOG_LEVEL"             envDefault:"info"`
	LogFormat     logging.Format             `env:"TICKFSM_LOG_FORMAT"            envDefault:"text"`
	Telemetry     otel.Config
}

// ParseConfig parses env and flags into a Config. Flags take precedence.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "time between two ticks")
	fs.DurationVar(&cfg.DemoDuration, "demo-duration", cfg.DemoDuration, "how long a demo runs")
	fs.IntVar(&cfg.ResultTicks, "result-ticks", cfg.ResultTicks, "ticks the result of a round is shown")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "rounds played before shutting down")
	fs.TextVar(&cfg.ErrorMode, "error-mode", cfg.ErrorMode, "handling of state failures: throw, catch or catch-state")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum log level")
	fs.TextVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.Telemetry.Endpoint, "otel-endpoint", cfg.Telemetry.Endpoint, "OTLP/HTTP endpoint URL, empty disables tracing")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run plays the scene until all rounds are played or ctx is done.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	logger := logging.New(
		logging.WithOutput(out),
		logging.WithFormat(cfg.LogFormat),
		logging.WithLevel(cfg.LogLevel),
		logging.WithService(platformcmd.ServiceIngame),
	)

	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceIngame, platformcmd.RunOptions{
		Logger:    logger,
		Telemetry: cfg.Telemetry,
	}, func(ctx context.Context) error {
		controller, err := ingame.NewController(ingame.Config{
			FrameInterval: cfg.FrameInterval,
			DemoDuration:  cfg.DemoDuration,
			ResultTicks:   cfg.ResultTicks,
			Rounds:        cfg.Rounds,
			ErrorMode:     cfg.ErrorMode,
		}, ingame.WithLogger(logger))
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "scene starting", slog.Int("rounds", cfg.Rounds), slog.String("error_mode", cfg.ErrorMode.String()))
		return controller.Run(ctx)
	})
}
