package output

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pulkyeet/flashswap-arb/internal/config"
)

// Setup configures the global zerolog logger and returns it
func Setup(cfg config.LoggingConfig) zerolog.Logger {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	switch cfg.Format {
	case "json":
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return log.Logger
}
