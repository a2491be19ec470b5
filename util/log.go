package util

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/netbirdio/codepush/formatter"
)

const (
	// LogConsole makes InitLog write to stderr
	LogConsole = "console"
)

// InitLog parses and sets log-level input
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	log.SetOutput(logWriter(logPath))
	formatter.SetTextFormatter(log.StandardLogger())
	log.SetLevel(level)
	return nil
}

func logWriter(logPath string) io.Writer {
	if logPath == "" || logPath == LogConsole {
		return os.Stderr
	}

	return &lumberjack.Logger{
		// Log file absolute path, os agnostic
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    5, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}
