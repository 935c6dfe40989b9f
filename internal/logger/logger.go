package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFilename = "ordersync.log"
)

var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
var Writer io.Writer = os.Stdout

var logFilePath string

type requestIDKey struct{}

// Init configures the package logger. format is "console" or "json".
func Init(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "console") {
		Writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.DateTime,
		}
	} else {
		Writer = os.Stdout
	}

	zLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		zLevel = zerolog.InfoLevel
	}

	Logger = zerolog.New(Writer).
		With().
		Timestamp().
		Logger().
		Level(zLevel)

	if zLevel <= zerolog.DebugLevel {
		Logger = Logger.With().Caller().Logger()
		Logger.Debug().Msg("caller reporting enabled in debug mode")
	}
}

// AddFileLogger tees log output into a rotated file under dir.
func AddFileLogger(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	logFilePath = filepath.Join(dir, logFilename)
	fileLogger := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
	}

	multi := zerolog.MultiLevelWriter(Writer, fileLogger)
	Writer = multi

	Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger().
		Level(Logger.GetLevel())

	return nil
}

func GetLogFilePath() string {
	return logFilePath
}

// WithRequestID attaches a correlation id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id attached to ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ctx returns a child logger tagged with the request id carried by ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger
	if id := RequestID(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}
