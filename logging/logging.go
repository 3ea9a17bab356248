package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sync"
	"time"

	"cloud.google.com/go/logging"
	"golang.org/x/net/context"

	"github.com/micromeda/micromeda-server/config"
)

// Logger is a request scoped logger. Component names the part of the
// server the lines come from and is attached to every entry.
type Logger struct {
	*logging.Logger
	Component string
}

// Context keys whose values are attached to every log line.
const (
	ContextKeyRequestId = "request_id"
	ContextKeyResultKey = "result_key"
)

// Singleton StackDriver client and logger instances.
var stackDriverClient *logging.Client
var stackDriverLogger = &Logger{}

// Static configuration variables initialized at runtime.
var logLevel uint
var stackDriverEnabled bool
var connectTimeout time.Duration
var projectID string

// output is where the console lines go.
var output io.Writer = os.Stdout
var outputLock sync.Mutex

// Log levels.
const (
	logLevelFirst = iota
	logLevelCritical
	logLevelError
	logLevelWarn
	logLevelInfo
	logLevelDebug
	logLevelLast
)

var logLabels = []string{
	"",
	"\x1b[0;37;41m  CRIT \x1b[m",
	"\x1b[0;30;41m ERROR \x1b[m",
	"\x1b[0;30;43m  WARN \x1b[m",
	"\x1b[0;30;47m  INFO \x1b[m",
	"\x1b[0;30;42m DEBUG \x1b[m",
	"",
}

var logSeverities = []logging.Severity{
	logging.Default,
	logging.Critical,
	logging.Error,
	logging.Warning,
	logging.Info,
	logging.Debug,
	logging.Default,
}

func init() {
	logLevel = config.GetUint("LOG_LEVEL")
	stackDriverEnabled = config.GetBool("STACKDRIVER_ENABLED")
	connectTimeout = config.GetMilliseconds("GRPC_CONNECT_TIMEOUT_MS")
	projectID = config.GetString("PROJECT_ID")
}

// Initialize connects to Cloud Logging when it is enabled.
// NOTE: This should always be the first module initialized.
func Initialize(ctx context.Context) {
	if !stackDriverEnabled {
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var err error
	stackDriverClient, err = logging.NewClient(timeoutCtx, projectID)
	if err != nil {
		panic(err)
	}
	if err = stackDriverClient.Ping(timeoutCtx); err != nil {
		panic(err)
	}
	stackDriverLogger = &Logger{Logger: stackDriverClient.Logger(config.GetString("SERVICE_NAME"))}
}

// Finalize flushes pending entries and closes the Cloud Logging client.
func Finalize() {
	if stackDriverClient == nil || stackDriverLogger == nil {
		return
	}

	if err := stackDriverClient.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "\r\x1b[100m%s\x1b[m %s\x1b[m %s\n",
			time.Now().Format("2006-01-02 15:04:05.000"), logLabels[logLevelError], err.Error())
	}
}

// SetOutput redirects console output. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outputLock.Lock()
	defer outputLock.Unlock()
	previous := output
	output = w
	return previous
}

// SetLevel changes the maximum level that gets logged.
func SetLevel(level uint) {
	logLevel = level
}

// NewLogger returns a new logger for the given component.
func NewLogger(component string) (*Logger, error) {
	var logger *logging.Logger
	if stackDriverClient != nil {
		logger = stackDriverClient.Logger(config.GetString("SERVICE_NAME"))
	}
	return &Logger{Logger: logger, Component: component}, nil
}

// Critical logs a message of critical severity.
func Critical(ctx context.Context, format string, args ...interface{}) {
	logWithLineNumber(ctx, "", logLevelCritical, format, args...)
}

// Critical logs a message of critical severity using the given logger.
func (logger *Logger) Critical(ctx context.Context, format string, args ...interface{}) {
	logWithLineNumber(ctx, logger.name(), logLevelCritical, format, args...)
}

// Error logs a message of error severity.
func Error(ctx context.Context, format string, args ...interface{}) {
	logWithLineNumber(ctx, "", logLevelError, format, args...)
}

// Error logs a message of error severity using the given logger.
func (logger *Logger) Error(ctx context.Context, format string, args ...interface{}) {
	logWithLineNumber(ctx, logger.name(), logLevelError, format, args...)
}

// Warn logs a message of warning severity.
func Warn(ctx context.Context, format string, args ...interface{}) {
	log(ctx, "", logLevelWarn, format, args...)
}

// Warn logs a message of warning severity using the given logger.
func (logger *Logger) Warn(ctx context.Context, format string, args ...interface{}) {
	log(ctx, logger.name(), logLevelWarn, format, args...)
}

// Info logs a message of informational severity.
func Info(ctx context.Context, format string, args ...interface{}) {
	log(ctx, "", logLevelInfo, format, args...)
}

// Info logs a message of informational severity using the given logger.
func (logger *Logger) Info(ctx context.Context, format string, args ...interface{}) {
	log(ctx, logger.name(), logLevelInfo, format, args...)
}

// Debug logs a message of debugging severity.
func Debug(ctx context.Context, format string, args ...interface{}) {
	log(ctx, "", logLevelDebug, format, args...)
}

// Debug logs a message of debugging severity using the given logger.
func (logger *Logger) Debug(ctx context.Context, format string, args ...interface{}) {
	log(ctx, logger.name(), logLevelDebug, format, args...)
}

func (logger *Logger) name() string {
	if logger == nil {
		return ""
	}
	return logger.Component
}

func log(ctx context.Context, component string, level uint, format string, args ...interface{}) {
	if level <= logLevelFirst || level >= logLevelLast || level > logLevel {
		return
	}

	message := fmt.Sprintf(format, args...)
	if component != "" {
		message = fmt.Sprintf("[%s] %s", component, message)
	}

	var requestID, resultKey string
	if ctx != nil {
		requestID, _ = ctx.Value(ContextKeyRequestId).(string)
		resultKey, _ = ctx.Value(ContextKeyResultKey).(string)
	}

	if stackDriverClient != nil && stackDriverLogger != nil && stackDriverLogger.Logger != nil {
		stackDriverLogger.Log(logging.Entry{
			Severity: logSeverities[level],
			Payload:  message,
			Labels: map[string]string{
				ContextKeyRequestId: requestID,
				ContextKeyResultKey: resultKey,
			},
		})
	}

	nowInString := time.Now().Format("2006-01-02 15:04:05.000")

	outputLock.Lock()
	defer outputLock.Unlock()
	fmt.Fprintf(output,
		"\r\x1b[m\x1b[100m%s\x1b[m %s\x1b[m \x1b[100m%12s\x1b[m %s\n",
		nowInString, logLabels[level], requestID, message)
}

// logWithLineNumber performs usual logging but appends the caller position.
func logWithLineNumber(ctx context.Context, component string, level uint, format string,
	args ...interface{}) {
	_, filepath, line, ok := runtime.Caller(2)
	if ok {
		format = fmt.Sprintf("%s (%s:%d)", format, path.Base(filepath), line)
	}
	log(ctx, component, level, format, args...)
}
