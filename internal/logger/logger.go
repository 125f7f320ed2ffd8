package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel = LevelInfo
	logger       = stdlog.New(os.Stderr, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// SetOutput redirects all log output. Used by tests to silence or capture logs.
func SetOutput(w io.Writer) {
	logger = stdlog.New(w, "", 0)
}

func log(level Level, scope, format string, v ...any) {
	if level < currentLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	var prefix string
	if scope == "" {
		prefix = fmt.Sprintf("[%s] [%s] ", timestamp, level.String())
	} else {
		prefix = fmt.Sprintf("[%s] [%s] [%s] ", timestamp, level.String(), scope)
	}
	message := fmt.Sprintf(format, v...)
	logger.Println(prefix + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, "", format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, "", format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, "", format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, "", format, v...)
}

// Scoped is a logger that tags every line with a subsystem name, so output
// from the tree, the worker and the stores can be told apart.
type Scoped struct {
	scope string
}

func WithScope(scope string) *Scoped {
	return &Scoped{scope: scope}
}

func (s *Scoped) Debug(format string, v ...any) {
	log(LevelDebug, s.scope, format, v...)
}

func (s *Scoped) Info(format string, v ...any) {
	log(LevelInfo, s.scope, format, v...)
}

func (s *Scoped) Warn(format string, v ...any) {
	log(LevelWarn, s.scope, format, v...)
}

func (s *Scoped) Error(format string, v ...any) {
	log(LevelError, s.scope, format, v...)
}
