package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger: JSON output on stdout with
// timestamp/level/message keys.  Unknown level strings fall back to info.
func Init(level string) {
	InitWithOutput(level, os.Stdout)
}

// InitWithOutput is Init with an explicit writer.
func InitWithOutput(level string, out io.Writer) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logrus.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
