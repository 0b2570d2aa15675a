package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var once sync.Once

var log zerolog.Logger

// Get returns the process logger. The level is read from LOG_LEVEL and
// defaults to info; ENVIRONMENT=local switches to human readable output.
func Get() zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano

		level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
		}

		var output io.Writer = os.Stdout
		if env := os.Getenv("ENVIRONMENT"); env == "" || env == "local" {
			output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}

		log = zerolog.New(output).
			Level(level).
			With().
			Timestamp().
			Str("service", "collab-server").
			Logger()
	})

	return log
}
