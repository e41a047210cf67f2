package logsink

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hugodutka/radioterm/internal/channels"
)

// New builds the logger every queued line goes through.
func New(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// Run drains the log queue. Workers never write to stderr themselves;
// this loop is the only writer, which keeps log lines whole.
func Run(b *channels.Bundle, logger *logrus.Logger) {
	for {
		logger.Info(b.Log.Recv())
	}
}
