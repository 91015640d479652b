package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ogurasousui/orgchart/internal/platform/config"
	"github.com/rs/zerolog"
)

// New は設定に従って zerolog.Logger を構築します。w が nil の場合は標準出力に書き出します。
func New(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging: parse level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "orgchart").
		Logger(), nil
}
