package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var levelDesc = []string{"PANC", "FATL", "ERRO", "WARN", "INFO", "DEBG", "TRAC"}

// TextFormatter formats logs into text with included source code's path
type TextFormatter struct {
	timestampFormat string
	levelDesc       []string
}

// NewTextFormatter create new TextFormatter instance
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		levelDesc:       levelDesc,
		timestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// Format renders a single log entry
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	fields := formatFields(entry.Data)
	level := f.parseLevel(entry.Level)

	return []byte(fmt.Sprintf("%s %s %s%s: %s\n", entry.Time.Format(f.timestampFormat), level, fields, entry.Data["source"], entry.Message)), nil
}

func (f *TextFormatter) parseLevel(level logrus.Level) string {
	if len(f.levelDesc) <= int(level) {
		return ""
	}

	return f.levelDesc[level]
}

// PlainFormatter renders the message with its fields only. Used by the CLI where timestamps are noise.
type PlainFormatter struct{}

// Format renders a single log entry
func (f *PlainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s%s\n", formatFields(entry.Data), entry.Message)), nil
}

func formatFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if k == "source" {
			continue
		}
		keys = append(keys, fmt.Sprintf("%s: %v", k, v))
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)
	return fmt.Sprintf("[%s] ", strings.Join(keys, ", "))
}

var _ logrus.Formatter = (*TextFormatter)(nil)
var _ logrus.Formatter = (*PlainFormatter)(nil)
