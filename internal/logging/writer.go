package logging

import (
	"log/slog"
	"strings"
)

// ToolWriter is an io.Writer implementation that forwards external tool output to slog.
type ToolWriter struct {
	logger *slog.Logger
	tool   string
}

// NewToolWriter constructs a ToolWriter bound to the provided logger and tool name.
func NewToolWriter(logger *slog.Logger, tool string) *ToolWriter {
	return &ToolWriter{logger: logger, tool: tool}
}

// Write logs each non-empty line at info level, tagged with the tool name.
func (w *ToolWriter) Write(p []byte) (int, error) {
	if w.logger != nil {
		for _, line := range strings.Split(string(p), "\n") {
			line = strings.TrimRight(line, "\r")
			if line != "" {
				w.logger.Info(line, "tool", w.tool)
			}
		}
	}
	return len(p), nil
}
