package pg

import (
	"context"
	"strings"
	"time"

	"ruleexplain/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL     string
	Args    []any
	Elapsed time.Duration
	Err     error
	Slow    bool
}

// QueryTracer receives every traced statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements under component=pg
// It pins the logger to debug so LOG_SQL works whatever the process level is
func Tracer(root logger.Logger) QueryTracer {
	return &zlTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	e := z.log.Debug()
	switch {
	case ev.Err != nil:
		e = z.log.Error().Err(ev.Err)
	case ev.Slow:
		e = z.log.Warn()
	}
	e.Dur("elapsed", ev.Elapsed).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Int("args", len(ev.Args)).
		Msg("pg query")
}

// compact folds any whitespace run into one space and trims the ends
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
