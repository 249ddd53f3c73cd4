package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"tender_watch/internal/infra/config"
)

// Log is the global logger instance.
var Log = logrus.New()

// Init configures the global logger from application configuration.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("invalid log level %q, defaulting to info: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	switch cfg.Environment {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.Debugf("log level set to %s for environment %s", Log.GetLevel(), cfg.Environment)
}

// Component returns the global logger bound with a component field, so
// each subsystem's entries are attributable.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
