package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives batch progress. Implementations are called from a
// single goroutine per run.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(number int, err error)
}

// NoOpProgressCallback ignores all progress events.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)        {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a single-line progress bar.
type ConsoleProgressCallback struct {
	mu             sync.Mutex
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	start          time.Time
	lastUpdate     time.Time
}

// NewConsoleProgressCallback writes to w, or stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{writer: w, prefix: prefix, width: 40, updateInterval: 100 * time.Millisecond}
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if total <= 0 || (now.Sub(c.lastUpdate) < c.updateInterval && current < total) {
		return
	}
	c.lastUpdate = now

	filled := c.width * current / total
	bar := strings.Repeat("#", filled) + strings.Repeat("-", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d", c.prefix, bar, current, total)
	if elapsed := now.Sub(c.start); elapsed > 0 && current > 0 {
		line += fmt.Sprintf(" %.1f img/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.start).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(number int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%simage %d: %v\n", c.prefix, number, err)
}

// LogProgressCallback reports progress through slog every interval images.
type LogProgressCallback struct {
	mu       sync.Mutex
	logger   *slog.Logger
	interval int
	lastLog  int
	start    time.Time
}

// NewLogProgressCallback logs through logger, or slog.Default() when nil.
func NewLogProgressCallback(logger *slog.Logger, interval int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10
	}
	return &LogProgressCallback{logger: logger, interval: interval}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = time.Now()
	l.lastLog = 0
	l.logger.Info("Batch started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Info("Batch progress", "current", current, "total", total,
		"elapsed", time.Since(l.start).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info("Batch completed", "elapsed", time.Since(l.start).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(number int, err error) {
	l.logger.Warn("Image failed", "number", number, "error", err)
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(number int, err error) {
	for _, cb := range m {
		cb.OnError(number, err)
	}
}
