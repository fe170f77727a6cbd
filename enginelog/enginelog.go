// Package enginelog provides the structured logging conventions shared by
// disk, bufferpool and heapfile. It wraps a single logrus.Logger so page
// I/O, eviction and heap-growth events carry consistent fields
// (component, page_id) instead of each package formatting its own lines.
package enginelog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

// Logger returns the shared engine logger, created on first use with a
// text formatter writing to stderr at info level. Call SetLevel to raise
// verbosity (e.g. to debug for page-level tracing).
func Logger() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.Out = os.Stderr
		base.Level = logrus.InfoLevel
		base.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	})
	return base
}

// SetLevel adjusts the shared logger's verbosity. Raising it to
// logrus.DebugLevel shows per-page reads/writes and eviction write-backs.
func SetLevel(level logrus.Level) {
	Logger().SetLevel(level)
}

// Component returns a field-scoped entry for one engine component, e.g.
// Component("bufferpool").WithField("frame_id", 3).Debug("evicted").
func Component(name string) *logrus.Entry {
	return Logger().WithField("component", name)
}
