package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Packages that import testutil log everything, but only print it under -v
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	if !isVerboseTestRun(os.Args[1:]) {
		logrus.SetOutput(io.Discard)
	}
}

func isVerboseTestRun(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-test.v", "-test.v=true", "-test.v=test2json":
			return true
		}
	}
	return false
}
