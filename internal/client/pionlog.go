package client

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// zerologFactory sends pion's internal logging through zerolog, one child
// logger per pion scope (ice, dtls, sctp...).
type zerologFactory struct {
	base zerolog.Logger
}

func (f zerologFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{l: f.base.With().Str("pion", scope).Logger()}
}

// pionLogger demotes pion's debug and info output by one level. Its info
// level is chatty enough to drown session logs otherwise.
type pionLogger struct {
	l zerolog.Logger
}

func (p pionLogger) Trace(msg string)                  { p.l.Trace().Msg(msg) }
func (p pionLogger) Tracef(format string, args ...any) { p.l.Trace().Msgf(format, args...) }
func (p pionLogger) Debug(msg string)                  { p.l.Trace().Msg(msg) }
func (p pionLogger) Debugf(format string, args ...any) { p.l.Trace().Msgf(format, args...) }
func (p pionLogger) Info(msg string)                   { p.l.Debug().Msg(msg) }
func (p pionLogger) Infof(format string, args ...any)  { p.l.Debug().Msgf(format, args...) }
func (p pionLogger) Warn(msg string)                   { p.l.Warn().Msg(msg) }
func (p pionLogger) Warnf(format string, args ...any)  { p.l.Warn().Msgf(format, args...) }
func (p pionLogger) Error(msg string)                  { p.l.Error().Msg(msg) }
func (p pionLogger) Errorf(format string, args ...any) { p.l.Error().Msgf(format, args...) }
