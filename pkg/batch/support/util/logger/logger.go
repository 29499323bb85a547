// Package logger provides the leveled logging utility used throughout the
// Hourglass batch application. It wraps the standard `log` package and
// filters messages against a globally configured level.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelTrace is the most verbose level, used for per-row diagnostics
	// inside the dataset engine.
	LevelTrace LogLevel = iota
	// LevelDebug is the log level used for detailed debugging information.
	LevelDebug
	// LevelInfo is the log level used for general informational messages.
	LevelInfo
	// LevelWarn is the log level used for potential issues, including the
	// join-cardinality warnings emitted by the pipeline stages.
	LevelWarn
	// LevelError is the log level used for error messages.
	LevelError
	// LevelFatal is the log level used for fatal errors that cause
	// application termination.
	LevelFatal
	// LevelSilent suppresses all output. A Fatalf call still terminates the
	// process, it just does so quietly.
	LevelSilent
)

// logLevel is the currently set global log level. Only messages at or above
// this level will be output.
var logLevel = LevelInfo

// SetLogLevel sets the global log level for the application.
// Valid string values are "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"
// and "SILENT" (case-insensitive).
// If an invalid value is specified, the default "INFO" level is used and a
// notice is printed, so a typo in configuration never silences a run.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "TRACE":
		logLevel = LevelTrace
	case "DEBUG":
		logLevel = LevelDebug
	case "INFO":
		logLevel = LevelInfo
	case "WARN":
		logLevel = LevelWarn
	case "ERROR":
		logLevel = LevelError
	case "FATAL":
		logLevel = LevelFatal
	case "SILENT":
		logLevel = LevelSilent
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel = LevelInfo
	}
}

// CurrentLevel returns the currently configured global log level.
func CurrentLevel() LogLevel {
	return logLevel
}

// SetOutput redirects log output. Tests use this to assert on emitted
// warnings.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Tracef formats and outputs a TRACE level log message.
// It is only output if the current log level is TRACE.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Tracef(format string, v ...interface{}) {
	if logLevel <= LevelTrace {
		log.Printf("[TRACE] "+format, v...)
	}
}

// Debugf formats and outputs a DEBUG level log message.
// It is only output if the current log level is DEBUG or lower.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Debugf(format string, v ...interface{}) {
	if logLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
// It is only output if the current log level is INFO or lower.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Infof(format string, v ...interface{}) {
	if logLevel <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
// It is only output if the current log level is WARN or lower.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Warnf(format string, v ...interface{}) {
	if logLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
// It is only output if the current log level is ERROR or lower.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Errorf(format string, v ...interface{}) {
	if logLevel <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf formats and outputs a FATAL level log message,
// then terminates the program by calling os.Exit(1).
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Fatalf(format string, v ...interface{}) {
	if logLevel <= LevelFatal {
		log.Fatalf("[FATAL] "+format, v...)
		return
	}
	log.SetOutput(io.Discard)
	log.Fatalf("[FATAL] "+format, v...)
}
