package logger_test

import (
	"log/slog"

	"github.com/TNO/knowledge-engine/pkg/logger"
)

func ExampleNewDefaultLogger() {
	// Create a logger with default settings
	log := logger.NewDefaultLogger(slog.LevelDebug)

	// Log different levels
	log.Debug("Awaiting long poll")
	log.Info("Registered knowledge base") // Will be green in terminal
	log.Warn("Using empty binding set")   // Will be yellow in terminal
	log.Error("Long poll terminated")     // Will be red in terminal
}

func ExampleNewLogger() {
	// Create a logger with custom configuration
	log := logger.NewLogger(logger.Config{Level: slog.LevelInfo, Format: "json"})

	// Log with attributes
	log.Info("Handling request", "ki", "http://example.org/kb2/interaction/1", "bindings", 2)
	log.Warn("Lease renewal failed", "kb", "http://example.org/kb1")
}
