// Package logging sets up the file-backed diagnostic logger.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// New builds a production logger writing to the given file. The monitor owns
// the terminal while it runs, so diagnostics never go to stdout/stderr. A
// logging failure must not keep the monitor from starting: callers get a nop
// logger and the underlying error to report however they see fit.
func New(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zap.NewNop(), err
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop(), err
	}
	return logger, nil
}
