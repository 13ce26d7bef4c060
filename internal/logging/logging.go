package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var root = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel changes the global log level; unknown names are ignored.
func SetLevel(level string) {
	if lv, err := logrus.ParseLevel(level); err == nil {
		root.SetLevel(lv)
	}
}

// Component returns an entry tagged with the subsystem name.
func Component(name string) *logrus.Entry {
	return root.WithField("component", name)
}
