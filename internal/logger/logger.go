package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// Log is usable before Init; it then writes to stderr only.
var Log = logrus.New()

var errorLevels = []logrus.Level{
	logrus.PanicLevel,
	logrus.FatalLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
}

// Init sends info and debug lines to stdout, warnings and errors to stderr,
// and everything to logDir/dbseed.log. An empty logDir disables the file.
func Init(logDir, level, format string) error {
	l := logrus.New()
	l.SetOutput(io.Discard)

	lvl, levelErr := logrus.ParseLevel(level)
	if levelErr != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	l.AddHook(&writer.Hook{Writer: os.Stderr, LogLevels: errorLevels})
	l.AddHook(&writer.Hook{Writer: os.Stdout, LogLevels: []logrus.Level{logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel}})

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}
		logFile, err := os.OpenFile(filepath.Join(logDir, "dbseed.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		l.AddHook(&writer.Hook{Writer: logFile, LogLevels: logrus.AllLevels})
	}

	if levelErr != nil {
		l.Warnf("unknown log level %q, using info", level)
	}
	Log = l
	return nil
}
