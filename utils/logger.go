package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// LogLevel enumerates severity tiers.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel maps a level name (any case) to its LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	for i, n := range levelNames {
		if strings.EqualFold(s, n) {
			return LogLevel(i), nil
		}
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

var levelStyles = [...]lipgloss.Style{
	DEBUG: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	INFO:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	WARN:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
	ERROR: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	FATAL: lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Bold(true),
}

// Logger is a concurrency-safe, levelled logger used across the pipeline.
// Console lines get a coloured level tag when stdout is a terminal; the
// optional log file always receives plain text.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	console *log.Logger
	styled  bool
	plain   *log.Logger
	file    *os.File
}

var (
	globalLogger *Logger
	logOnce      sync.Once
)

// InitLogger creates the singleton logger. Call once at startup.
func InitLogger(minLevel LogLevel, logFilePath string) *Logger {
	logOnce.Do(func() {
		globalLogger = newLogger(minLevel, os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))

		if logFilePath != "" {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				log.Printf("[WARN] could not open log file %s: %v\n", logFilePath, err)
				return
			}
			globalLogger.file = f
			globalLogger.plain = log.New(f, "", 0)
		}
	})
	return globalLogger
}

func newLogger(minLevel LogLevel, console io.Writer, styled bool) *Logger {
	return &Logger{
		level:   minLevel,
		console: log.New(console, "", 0),
		styled:  styled,
	}
}

// L returns the global logger, initialising a stdout-only DEBUG logger
// if InitLogger has not been called.
func L() *Logger {
	if globalLogger == nil {
		return InitLogger(DEBUG, "")
	}
	return globalLogger
}

// SetLevel changes the minimum level that is emitted.
func (l *Logger) SetLevel(lvl LogLevel) {
	l.mu.Lock()
	l.level = lvl
	l.mu.Unlock()
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
		l.plain = nil
	}
}

func (l *Logger) log(lvl LogLevel, format string, args ...any) {
	l.mu.Lock()
	if lvl < l.level {
		l.mu.Unlock()
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	tag := "[" + lvl.String() + "]"
	if l.styled {
		l.console.Printf("%s %s  %s", levelStyles[lvl].Render(tag), ts, msg)
	} else {
		l.console.Printf("%s %s  %s", tag, ts, msg)
	}
	if l.plain != nil {
		l.plain.Printf("%s %s  %s", tag, ts, msg)
	}
	l.mu.Unlock()

	if lvl == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) Debug(f string, a ...any) { l.log(DEBUG, f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.log(INFO, f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.log(WARN, f, a...) }
func (l *Logger) Error(f string, a ...any) { l.log(ERROR, f, a...) }
func (l *Logger) Fatal(f string, a ...any) { l.log(FATAL, f, a...) }
