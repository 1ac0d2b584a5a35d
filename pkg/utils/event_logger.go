package utils

import (
	"fmt"
	"io"
	"os"
)

// EventLogger records the compression lifecycle events on top of a
// StructuredLogger and retains recent lines for the debugging accessor.
// Components receive an EventLogger at construction; there is no global
// instance.
type EventLogger struct {
	logger *StructuredLogger
	ring   *RingWriter
}

// EventLoggerConfig configures the event logger sink
type EventLoggerConfig struct {
	// Level is the minimum level written to the sink
	Level LogLevel

	// Output receives formatted lines; defaults to stdout
	Output io.Writer

	// Rotation, when set, adds a rotating file sink
	Rotation *RotationConfig

	// RingSize is how many recent lines to retain for RecentLines
	RingSize int
}

// NewEventLogger creates an event logger with a bounded recent-lines ring
func NewEventLogger(config *EventLoggerConfig) (*EventLogger, error) {
	if config == nil {
		config = &EventLoggerConfig{Level: INFO, RingSize: 500}
	}

	ring := NewRingWriter(config.RingSize)

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	base, err := NewStructuredLogger(&StructuredLoggerConfig{
		Level:         config.Level,
		Output:        io.MultiWriter(output, ring),
		Format:        FormatText,
		IncludeCaller: false,
		Rotation:      config.Rotation,
	})
	if err != nil {
		return nil, err
	}

	return &EventLogger{
		logger: base,
		ring:   ring,
	}, nil
}

// Logger returns the underlying structured logger for component-tagged use
func (el *EventLogger) Logger() *StructuredLogger {
	return el.logger
}

// Compression records a successful compression event
func (el *EventLogger) Compression(path string, originalSize, compressedSize int64, method string) {
	ratio := 0.0
	if originalSize > 0 {
		ratio = (1 - float64(compressedSize)/float64(originalSize)) * 100
	}
	el.logger.Info(fmt.Sprintf("Compressed: %s (%s -> %s, %.1f%% reduction)",
		path, FormatBytes(originalSize), FormatBytes(compressedSize), ratio),
		map[string]interface{}{"method": method})
}

// Decompression records the outcome of a decompression attempt
func (el *EventLogger) Decompression(path string, success bool, errText string) {
	if success {
		el.logger.Info(fmt.Sprintf("Decompressed: %s", path))
		return
	}
	el.logger.Error(fmt.Sprintf("Decompression failed: %s", path),
		map[string]interface{}{"error": errText})
}

// ScanSummary records the outcome of one directory scan
func (el *EventLogger) ScanSummary(filesScanned, eligible int, diskUsedPercent float64) {
	el.logger.Info(fmt.Sprintf("Scan complete: %d files scanned, %d eligible", filesScanned, eligible),
		map[string]interface{}{"disk_used_percent": fmt.Sprintf("%.1f", diskUsedPercent)})
}

// ThresholdTrigger records a disk usage threshold crossing
func (el *EventLogger) ThresholdTrigger(usagePercent, threshold float64) {
	el.logger.Warn(fmt.Sprintf("Disk usage %.1f%% reached threshold %.1f%%, triggering compression",
		usagePercent, threshold))
}

// Info records a free-text informational message
func (el *EventLogger) Info(message string) {
	el.logger.Info(message)
}

// Warning records a free-text warning
func (el *EventLogger) Warning(message string) {
	el.logger.Warn(message)
}

// Error records a free-text error
func (el *EventLogger) Error(message string) {
	el.logger.Error(message)
}

// RecentLines returns up to n recent formatted log lines, oldest first
func (el *EventLogger) RecentLines(n int) []string {
	return el.ring.Recent(n)
}

// Close releases the underlying sink resources
func (el *EventLogger) Close() error {
	return el.logger.Close()
}
