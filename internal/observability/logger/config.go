package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultService = "toolgate"

// Config es el subconjunto de app.* que afecta al logging.
type Config struct {
	// Env: "dev" usa consola coloreada; "staging" y "prod" emiten JSON.
	Env string
	// Level: debug | info | warn | error. Vacío => info.
	Level string
	// ServiceName y Version se agregan a cada línea. ServiceName vacío => "toolgate".
	ServiceName string
	Version     string
}

func (c Config) structured() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "prod", "production", "staging":
		return true
	}
	return false
}

func build(cfg Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.structured() {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	opts := []zap.Option{zap.AddCaller()}
	if cfg.structured() {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	l, err := zcfg.Build(opts...)
	if err != nil {
		l = zap.NewExample()
	}

	svc := cfg.ServiceName
	if svc == "" {
		svc = defaultService
	}
	fields := []zap.Field{zap.String("service", svc)}
	if cfg.Version != "" {
		fields = append(fields, zap.String("version", cfg.Version))
	}
	return l.With(fields...)
}

func parseLevel(lvl string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(lvl)))); err != nil || lvl == "" {
		return zapcore.InfoLevel
	}
	return l
}
