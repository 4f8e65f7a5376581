// Package logging hands out per-subsystem loggers that share one backend and
// one level.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/decred/slog"
)

// Subsystem tags.
const (
	SubsysRelay = "RELAY"
	SubsysSync  = "SYNC"
	SubsysSim   = "SIM"
	SubsysHTTP  = "HTTP"
	SubsysPeer  = "PEER"
)

// LogBackend creates subsystem loggers writing to a shared writer.
type LogBackend struct {
	backend *slog.Backend

	mu      sync.Mutex
	level   slog.Level
	loggers map[string]slog.Logger
}

// NewLogBackend returns a backend writing to w at the named level
// (trace, debug, info, warn, error, critical, off).
func NewLogBackend(w io.Writer, level string) (*LogBackend, error) {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	if w == nil {
		w = os.Stderr
	}
	return &LogBackend{
		backend: slog.NewBackend(w),
		level:   lvl,
		loggers: make(map[string]slog.Logger),
	}, nil
}

// Logger returns the logger for a subsystem, creating it on first use.
func (b *LogBackend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	l := b.backend.Logger(subsystem)
	l.SetLevel(b.level)
	b.loggers[subsystem] = l
	return l
}

// SetLevel changes the level of every subsystem.
func (b *LogBackend) SetLevel(level string) error {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = lvl
	for _, l := range b.loggers {
		l.SetLevel(lvl)
	}
	return nil
}

// Subsystems lists the subsystems created so far.
func (b *LogBackend) Subsystems() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.loggers))
	for name := range b.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Disabled is a logger that drops everything, for tests and optional wiring.
var Disabled = slog.Disabled
