package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	color := false
	if f, ok := w.(*os.File); ok {
		color = isTerminal(f)
	}
	cw := zerolog.ConsoleWriter{Out: w, NoColor: !color, TimeFormat: time.TimeOnly}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}
