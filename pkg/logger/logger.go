package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Logger is the leveled, key/value logger used by the codecs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type discard struct{}

func (discard) Error(string, ...any) {}
func (discard) Warn(string, ...any)  {}
func (discard) Info(string, ...any)  {}
func (discard) Debug(string, ...any) {}

// Discard drops every message.
var Discard Logger = discard{}

// LogBuild assembles a zerolog backed Logger.
type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

// LogData is the result of LogBuild.Make. Close releases the log file when
// the builder was given a path.
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level by name: debug, info, warn or error.
func (build *LogBuild) Level(name string) *LogBuild {
	if lvl, err := zerolog.ParseLevel(name); err == nil && name != "" {
		build.level = lvl
	}
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stderr
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Logger = zerolog.New(writer).Level(build.level).With().Timestamp().Logger()
	return logData, nil
}

// Leveled adapts the built zerolog logger to Logger.
func (logData *LogData) Leveled() *ZeroLogger {
	return NewZeroLogger(logData.Logger)
}

func (logData *LogData) Close() error {
	if logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}

// ZeroLogger implements Logger on top of zerolog. Arguments are key/value
// pairs, as with log/slog.
type ZeroLogger struct {
	logger zerolog.Logger
}

func NewZeroLogger(l zerolog.Logger) *ZeroLogger {
	return &ZeroLogger{logger: l}
}

func (z *ZeroLogger) Error(msg string, args ...any) {
	z.emit(z.logger.Error(), msg, args)
}

func (z *ZeroLogger) Warn(msg string, args ...any) {
	z.emit(z.logger.Warn(), msg, args)
}

func (z *ZeroLogger) Info(msg string, args ...any) {
	z.emit(z.logger.Info(), msg, args)
}

func (z *ZeroLogger) Debug(msg string, args ...any) {
	z.emit(z.logger.Debug(), msg, args)
}

func (z *ZeroLogger) emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 == len(args) {
			ev = ev.Interface("!BADKEY", args[i])
			break
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
