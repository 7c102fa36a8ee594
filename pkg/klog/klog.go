// Package klog configures the leveled loggers used by every kernel subsystem.
package klog

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
)

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{module:-7s} %{level:.4s} %{message}`,
)

// Setup routes all kernel loggers to w at the given level
// ("debug", "info", "notice", "warning", "error", "critical").
func Setup(w io.Writer, level string) error {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return fmt.Errorf("klog: %w", err)
	}
	backend := logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), format)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}

// New returns the logger of a subsystem.
func New(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}
