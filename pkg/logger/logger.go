package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true" default:"info"`
	Service      string `split_words:"true" default:"bitebot"`
}

var DefaultConfig = &Config{
	Level:   "info",
	Service: "bitebot",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global logger.
func Init(opts ...Config) {
	conf := safe(opts...)

	var out io.Writer = os.Stdout
	if conf.PrettyFormat {
		out = zerolog.NewConsoleWriter()
	}
	log.Logger = New(out, *conf).With().Caller().Stack().Logger()
}

// New builds a logger writing to w. Debug wins over Level.
func New(w io.Writer, conf Config) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if svc := strings.TrimSpace(conf.Service); svc != "" {
		logger = logger.With().Str("service", svc).Logger()
	}
	return logger.Level(level(conf))
}

func level(conf Config) zerolog.Level {
	if conf.Debug {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
