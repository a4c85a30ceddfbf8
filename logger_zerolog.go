package rews

import (
	"fmt"

	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	inner zerolog.Logger
}

// NewZerologLogger wraps the given zerolog.Logger so it can be injected
// through Config.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{inner: l}
}

func (z *zerologLogger) WithField(key string, value any) Logger {
	return &zerologLogger{inner: z.inner.With().Interface(key, value).Logger()}
}

func (z *zerologLogger) Debug(args ...any) {
	z.inner.Debug().Msg(fmt.Sprint(args...))
}

func (z *zerologLogger) Debugf(format string, args ...any) {
	z.inner.Debug().Msgf(format, args...)
}

func (z *zerologLogger) Debugln(args ...any) {
	z.inner.Debug().Msg(fmt.Sprintln(args...))
}

func (z *zerologLogger) Info(args ...any) {
	z.inner.Info().Msg(fmt.Sprint(args...))
}

func (z *zerologLogger) Infof(format string, args ...any) {
	z.inner.Info().Msgf(format, args...)
}

func (z *zerologLogger) Infoln(args ...any) {
	z.inner.Info().Msg(fmt.Sprintln(args...))
}

func (z *zerologLogger) Warn(args ...any) {
	z.inner.Warn().Msg(fmt.Sprint(args...))
}

func (z *zerologLogger) Warnf(format string, args ...any) {
	z.inner.Warn().Msgf(format, args...)
}

func (z *zerologLogger) Warnln(args ...any) {
	z.inner.Warn().Msg(fmt.Sprintln(args...))
}

func (z *zerologLogger) Error(args ...any) {
	z.inner.Error().Msg(fmt.Sprint(args...))
}

func (z *zerologLogger) Errorf(format string, args ...any) {
	z.inner.Error().Msgf(format, args...)
}

func (z *zerologLogger) Errorln(args ...any) {
	z.inner.Error().Msg(fmt.Sprintln(args...))
}
