// Package diag provides the diagnostic sink shared by coordinators and their supervisor.
package diag

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink serializes writes to a logrus logger so that groups of lines emitted by
// one coordinator are not interleaved with another's. The lock only orders
// output; it protects no coordinator state.
type Sink struct {
	mu    *sync.Mutex
	entry *logrus.Entry
}

// NewSink wraps logger. A nil logger uses logrus.StandardLogger().
func NewSink(logger *logrus.Logger) *Sink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sink{mu: &sync.Mutex{}, entry: logrus.NewEntry(logger)}
}

// With returns a Sink that adds fields to every line and shares this Sink's lock.
func (s *Sink) With(fields logrus.Fields) *Sink {
	return &Sink{mu: s.mu, entry: s.entry.WithFields(fields)}
}

// Atomically runs fn while holding the lock, so every line fn logs is contiguous.
func (s *Sink) Atomically(fn func(log *logrus.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.entry)
}

// Enabled reports whether level would be emitted.
func (s *Sink) Enabled(level logrus.Level) bool {
	return s.entry.Logger.IsLevelEnabled(level)
}

func (s *Sink) Debugf(format string, args ...any) {
	s.Atomically(func(log *logrus.Entry) { log.Debugf(format, args...) })
}

func (s *Sink) Infof(format string, args ...any) {
	s.Atomically(func(log *logrus.Entry) { log.Infof(format, args...) })
}

func (s *Sink) Warnf(format string, args ...any) {
	s.Atomically(func(log *logrus.Entry) { log.Warnf(format, args...) })
}

func (s *Sink) Errorf(format string, args ...any) {
	s.Atomically(func(log *logrus.Entry) { log.Errorf(format, args...) })
}
