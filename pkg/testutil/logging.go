package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Importing testutil silences logrus unless the test binary runs verbose.
func init() {
	logrus.SetLevel(logrus.TraceLevel)
	if !isVerbose() {
		logrus.SetOutput(io.Discard)
	}
}

func isVerbose() bool {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.v") && arg != "-test.v=false" {
			return true
		}
	}
	return false
}

// DisableLogging discards logrus output until reset is called, which restores
// the previous output and level.
func DisableLogging() (reset func()) {
	logger := logrus.StandardLogger()
	out, level := logger.Out, logger.GetLevel()

	logger.SetOutput(io.Discard)
	return func() {
		logger.SetOutput(out)
		logger.SetLevel(level)
	}
}
