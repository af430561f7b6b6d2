package logging

// Levelled logging for mbcompose

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

var levelNames = map[string]LogLevel{
	"silent":  LogLevelSilent,
	"error":   LogLevelError,
	"info":    LogLevelInfo,
	"verbose": LogLevelVerbose,
	"debug":   LogLevelDebug,
}

// ParseLevel maps a --log-level value to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q (want silent, error, info, verbose or debug)", s)
}

// Logger writes levelled messages to stdout/stderr and an optional file.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// NewLogger creates a new logger. An empty logFile disables file output.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{
		level:  LogLevelSilent,
		stdout: log.New(io.Discard, "", 0),
		stderr: log.New(io.Discard, "", 0),
	}
}

// SetOutput redirects console output.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = log.New(stdout, "", 0)
	l.stderr = log.New(stderr, "", 0)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...any) {
	l.logf(LogLevelError, "ERROR: ", format, v, true)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...any) {
	l.logf(LogLevelInfo, "INFO: ", format, v, false)
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...any) {
	l.logf(LogLevelVerbose, "VERBOSE: ", format, v, false)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...any) {
	l.logf(LogLevelDebug, "DEBUG: ", format, v, false)
}

func (l *Logger) logf(min LogLevel, prefix, format string, v []any, isError bool) {
	if l.GetLevel() < min {
		return
	}
	l.write(prefix+fmt.Sprintf(format, v...), isError)
}

// write sends msg to the file, and to the console: errors to stderr, the
// rest to stdout only at verbose or debug.
func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}

	if isError {
		l.stderr.Println(msg)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(msg)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogExchange records one request/response exchange with a device.
// Successes are verbose, failures info.
func (l *Logger) LogExchange(target, function string, txID uint16, success bool, rtt time.Duration, err error) {
	status := "OK"
	if !success {
		status = "FAILED"
	}
	var errStr string
	if err != nil {
		errStr = fmt.Sprintf(" - error: %v", err)
	}

	msg := fmt.Sprintf("%s %s tx=0x%04X on %s (RTT: %.3fms)%s",
		status, function, txID, target, float64(rtt.Microseconds())/1000, errStr)
	if success {
		l.Verbose("%s", msg)
	} else {
		l.Info("%s", msg)
	}
}

// LogHex logs data as space separated hex bytes at debug level.
func (l *Logger) LogHex(label string, data []byte) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	l.Debug("%s: %s", label, FormatHex(data))
}

// FormatHex renders data as "01 03 02 00 03".
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	s := hex.EncodeToString(data)
	var b strings.Builder
	b.Grow(len(s) + len(data) - 1)
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+2])
	}
	return b.String()
}
