package main

import (
	"log/slog"

	"github.com/TNO/knowledge-engine/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    Knowledge Engine Client Logger Demo")
	log.Info("============================================")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("Lifecycle events are highlighted in green:")
	log.Info("Registered knowledge base", "kb", "http://example.org/kb1")
	log.Info("Registered knowledge interaction", "ki", "http://example.org/kb1/interaction/ask")
	log.Info("Renewed lease", "kb", "http://example.org/kb1", "expires", "2030-01-01T00:00:00Z")
	log.Debug("Awaiting long poll", "kb", "http://example.org/kb2")
	log.Warn("Using empty binding set", "ki", "http://example.org/kb2/interaction/answer")
	log.Error("Long poll terminated", "kb", "http://example.org/kb2", "error", "410 Gone")
}
