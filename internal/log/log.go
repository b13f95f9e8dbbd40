package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu     sync.Mutex
	sugar  *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	initMu sync.Once
)

// Init builds the process-wide logger. env "production" selects the JSON
// production encoder; anything else gets the colored development console.
// Calling Init again replaces the logger.
func Init(env string, l Level) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = level
	SetLevel(l)

	built, err := cfg.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	mu.Lock()
	if sugar != nil {
		_ = sugar.Sync()
	}
	sugar = built.Sugar()
	mu.Unlock()
}

// SetLevel changes the minimum level. Unknown values fall back to INFO.
func SetLevel(l Level) {
	switch Level(strings.ToUpper(string(l))) {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Sync flushes buffered entries.
func Sync() {
	if s := current(); s != nil {
		_ = s.Sync()
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

func current() *zap.SugaredLogger {
	initMu.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if sugar == nil {
			sugar = zap.New(zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.Lock(os.Stderr),
				level,
			)).Sugar()
		}
	})
	mu.Lock()
	defer mu.Unlock()
	return sugar
}
