package logger

import (
	"go.uber.org/zap"
)

var (
	ZapLogger        *zap.Logger
	SugaredZapLogger *zap.SugaredLogger
)

func init() {
	ZapLogger, _ = zap.NewDevelopment(zap.AddCaller(), zap.AddCallerSkip(1))
	SugaredZapLogger = ZapLogger.Sugar()
}

func Debugf(template string, args ...interface{}) {
	SugaredZapLogger.Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	SugaredZapLogger.Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	SugaredZapLogger.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	SugaredZapLogger.Errorf(template, args...)
}

// CustomLogger carries contextual fields, e.g. the document a model
// orchestrates for.
type CustomLogger struct {
	sugared *zap.SugaredLogger
}

func NewCustomLogger() *CustomLogger {
	return &CustomLogger{sugared: ZapLogger.WithOptions(zap.AddCallerSkip(0)).Sugar()}
}

func (l *CustomLogger) With(args ...interface{}) *CustomLogger {
	return &CustomLogger{sugared: l.sugared.With(args...)}
}

func (l *CustomLogger) Debugf(template string, args ...interface{}) {
	l.sugared.Debugf(template, args...)
}

func (l *CustomLogger) Infof(template string, args ...interface{}) {
	l.sugared.Infof(template, args...)
}

func (l *CustomLogger) Warnf(template string, args ...interface{}) {
	l.sugared.Warnf(template, args...)
}

func (l *CustomLogger) Errorf(template string, args ...interface{}) {
	l.sugared.Errorf(template, args...)
}
