package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	resultFile = "last-install.json"
)

// Result is the outcome of the last download and install attempt
type Result struct {
	Success     bool      `json:"success" yaml:"success"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	PackageHash string    `json:"packageHash" yaml:"packageHash"`
	Label       string    `json:"label" yaml:"label"`
	ExecutedAt  time.Time `json:"executedAt" yaml:"executedAt"`
}

// ResultHandler handles reading and writing install results
type ResultHandler struct {
	resultFile string
}

// NewResultHandler creates a handler storing "last-install.json" in the given directory
func NewResultHandler(dir string) *ResultHandler {
	return &ResultHandler{
		resultFile: filepath.Join(dir, resultFile),
	}
}

// Write writes the install result to a file for the CLI to read
func (rh *ResultHandler) Write(result Result) error {
	log.Debugf("write out install result to: %s", rh.resultFile)
	dir := filepath.Dir(rh.resultFile)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.Errorf("failed to create directory %s: %v", dir, err)
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	// Write to a temporary file first, then rename for atomic operation
	tmpPath := rh.resultFile + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		log.Errorf("failed to create temp file: %s", err)
		return err
	}

	if err := os.Rename(tmpPath, rh.resultFile); err != nil {
		if cleanupErr := os.Remove(tmpPath); cleanupErr != nil {
			log.Warnf("failed to remove temp result file: %v", cleanupErr)
		}
		return err
	}

	return nil
}

// Read returns the last recorded result, nil when there is none
func (rh *ResultHandler) Read() (*Result, error) {
	data, err := os.ReadFile(rh.resultFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid result format: %w", err)
	}
	return &result, nil
}

// Cleanup removes the result file if it exists
func (rh *ResultHandler) Cleanup() error {
	err := os.Remove(rh.resultFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	log.Debugf("delete install result file: %s", rh.resultFile)
	return nil
}
