package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultFilename = "coupon.log"
	maxSizeMB       = 100
	maxBackups      = 7
	maxAgeDays      = 30
)

// Options selects the release-mode sink. With Stdout unset, logs rotate under
// Dir (./logs when empty).
type Options struct {
	Dir      string
	Filename string
	Stdout   bool
}

// L is the process-wide logger, nil until Init.
var L *zap.Logger

// Init builds the process logger and installs it as zap's global.
func Init(mode string, opts Options) *zap.Logger {
	L = New(mode, opts)
	zap.ReplaceGlobals(L)
	return L
}

// New returns a console logger at debug level in debug mode and a JSON logger
// at info level otherwise.
func New(mode string, opts Options) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	if strings.EqualFold(strings.TrimSpace(mode), "debug") {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stdout), zap.DebugLevel)
		return zap.New(core, zap.AddCaller())
	}

	sink := zapcore.AddSync(os.Stdout)
	if !opts.Stdout {
		sink = zapcore.AddSync(rotatingFile(opts))
	}
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, zap.InfoLevel), zap.AddCaller())
}

func rotatingFile(opts Options) *lumberjack.Logger {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = "logs"
	}
	name := strings.TrimSpace(opts.Filename)
	if name == "" {
		name = defaultFilename
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// Z returns the process logger, or zap's global before Init runs.
func Z() *zap.Logger {
	if L != nil {
		return L
	}
	return zap.L()
}

func S() *zap.SugaredLogger {
	return Z().Sugar()
}

func Infow(message string, kv ...interface{}) {
	S().Infow(message, kv...)
}

func Warnw(message string, kv ...interface{}) {
	S().Warnw(message, kv...)
}
