// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"community_content_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "community_content_bot"

// Log is the global logger instance
var Log = logrus.New()

// base carries the fields every component entry starts from.
var base = logrus.NewEntry(Log)

// Init configures the global logger for cfg and writes to stdout.
func Init(cfg *config.AppConfig) {
	configure(cfg, os.Stdout)
}

func configure(cfg *config.AppConfig, out io.Writer) {
	Log.SetOutput(out)
	env := strings.ToLower(cfg.Environment)

	Log.SetLevel(logrus.InfoLevel)
	level, levelErr := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if levelErr == nil {
		Log.SetLevel(level)
	}

	// Production logs are shipped as JSON and keyed by the component field.
	if env == "production" || env == "staging" {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
		base = Log.WithFields(logrus.Fields{"service": serviceName, "environment": env})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		base = logrus.NewEntry(Log)
	}

	if levelErr != nil {
		base.WithError(levelErr).Warnf("Invalid log level %q, using info", cfg.LogLevel)
	}
}

// Component returns an entry tagged with the component name on top of the
// service fields set by Init.
func Component(name string) *logrus.Entry {
	return base.WithField("component", name)
}
