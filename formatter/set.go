package formatter

import "github.com/sirupsen/logrus"

// SetTextFormatter set the formatter for given logger.
func SetTextFormatter(logger *logrus.Logger) {
	logger.Formatter = NewTextFormatter()
	logger.ReportCaller = true
	logger.AddHook(NewContextHook())
}

// SetPlainFormatter strips timestamps and source information. Used for interactive CLI output.
func SetPlainFormatter(logger *logrus.Logger) {
	logger.Formatter = &PlainFormatter{}
	logger.ReportCaller = false
}
