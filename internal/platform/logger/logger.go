// Package logger owns the process root zerolog logger
// Handlers take a child from C so request id and operator ride along; background work uses Named
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ruleexplain/internal/platform/config/raw"
	pnet "ruleexplain/internal/platform/net"

	"github.com/rs/zerolog"
)

// Logger is the logging type handed around the codebase
type Logger = zerolog.Logger

// Options shape the root logger
type Options struct {
	Level     string
	Format    string // json or console
	Service   string
	Component string
	Writer    io.Writer // stdout when nil

	WithCaller bool
	// SampleEvery keeps one line in N; 0 and 1 keep all
	SampleEvery int
}

// FromEnv reads LOG_* without going through config, which itself logs
func FromEnv() Options {
	env := raw.New().Prefix("LOG_")
	return Options{
		Level:       env.Get("LEVEL", "debug"),
		Format:      strings.ToLower(env.Get("FORMAT", "console")),
		Service:     env.Get("SERVICE", ""),
		Component:   env.Get("COMPONENT", ""),
		WithCaller:  env.GetBool("CALLER", false),
		SampleEvery: env.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	root     atomic.Pointer[Logger]
	initOnce sync.Once
)

// New builds a logger from opt without installing it
func New(opt Options) Logger {
	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	b := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Service != "" {
		b = b.Str("service", opt.Service)
	}
	if opt.Component != "" {
		b = b.Str("component", opt.Component)
	}
	if opt.WithCaller {
		b = b.Caller()
	}
	l := b.Logger()
	if opt.SampleEvery > 1 {
		l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return l
}

// Replace installs l as the root
func Replace(l Logger) { root.Store(&l) }

// Init builds the root from opt and installs it
func Init(opt Options) { Replace(New(opt)) }

// Get returns the root, building it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	initOnce.Do(func() {
		if root.Load() == nil {
			Init(FromEnv())
		}
	})
	return root.Load()
}

// parseLevel accepts zerolog level names plus "warning"; anything else is debug
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.DebugLevel
	}
	return lvl
}

// C is the root enriched with the request id and operator found on ctx
func C(ctx context.Context) *Logger {
	b := Get().With()
	if id := pnet.RequestID(ctx); id != "" {
		b = b.Str("request_id", id)
	}
	if op := pnet.Operator(ctx); op != "" {
		b = b.Str("operator", op)
	}
	l := b.Logger()
	return &l
}

// Named is the root tagged with component
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}
