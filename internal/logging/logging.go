package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger provides topic-based debug logging with minimal overhead when disabled.
// Topics are resolved on every call, so package-level loggers created before
// Configure pick up the configured topics.
type Logger struct {
	topic string
}

type topicSet map[string]bool

var enabledTopics atomic.Pointer[topicSet]

func init() {
	// DEBUG_TOPICS=parser,compiler,backtest or DEBUG_TOPICS=all
	Configure(os.Getenv("DEBUG_TOPICS"))
}

// Configure replaces the enabled topics from a comma separated list.
// "all" enables everything. Enabling any topic switches slog to DEBUG level.
func Configure(topics string) {
	set := topicSet{}
	for _, topic := range strings.Split(topics, ",") {
		topic = strings.TrimSpace(topic)
		switch topic {
		case "":
		case "all", "*":
			set["*"] = true
		default:
			set[topic] = true
		}
	}
	enabledTopics.Store(&set)

	if len(set) > 0 {
		configureSlog(slog.LevelDebug)
	}
}

// Topics returns the currently enabled topics.
func Topics() []string {
	set := *enabledTopics.Load()
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}

// configureSlog sets slog's default logger to a text handler at the given level
func configureSlog(level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// New creates a new topic-specific logger
// Usage: var backtestLog = logging.New("backtest")
func New(topic string) *Logger {
	return &Logger{topic: topic}
}

// Debug logs a debug message if this topic is enabled
func (l *Logger) Debug(msg string, args ...any) {
	if !l.Enabled() {
		return
	}
	slog.Debug(msg, l.withTopic(args)...)
}

// Info logs an info message if this topic is enabled
func (l *Logger) Info(msg string, args ...any) {
	if !l.Enabled() {
		return
	}
	slog.Info(msg, l.withTopic(args)...)
}

// Warn logs a warning message if this topic is enabled
func (l *Logger) Warn(msg string, args ...any) {
	if !l.Enabled() {
		return
	}
	slog.Warn(msg, l.withTopic(args)...)
}

func (l *Logger) withTopic(args []any) []any {
	return append([]any{"topic", l.topic}, args...)
}

// Enabled returns true if this logger's topic is enabled.
// Useful for expensive computations: if log.Enabled() { ... }
func (l *Logger) Enabled() bool {
	set := *enabledTopics.Load()
	return set["*"] || set[l.topic]
}
