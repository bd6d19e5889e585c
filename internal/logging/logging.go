package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global zerolog logger: human-readable console output
// plus a rotating JSON file under <root>/data/logs, matching the process
// logs the batch scripts have always written there.
func Setup(level, root string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logDir := filepath.Join(root, "data", "logs")
	_ = os.MkdirAll(logDir, 0o755)

	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "process.log"),
		MaxSize:    20, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(io.MultiWriter(console, fileSink)).With().Timestamp().Logger()
}

// Component returns a logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
