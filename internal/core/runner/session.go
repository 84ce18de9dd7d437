package runner

import (
	"sync"

	"autorunner/internal/core/script"
)

// guardedSession owns the shutdown sequence of a browser session: one
// best-effort before-quit screenshot, then the real close, with close
// errors reported but never propagated. sync.Once makes close
// idempotent, so an in-script quit plus the deferred cleanup still
// results in exactly one screenshot attempt and one close.
type guardedSession struct {
	script.Session
	beforeQuit func()
	onCloseErr func(error)
	once       sync.Once
}

func (g *guardedSession) Close() error {
	g.once.Do(func() {
		if g.beforeQuit != nil {
			g.beforeQuit()
		}
		if err := g.Session.Close(); err != nil && g.onCloseErr != nil {
			g.onCloseErr(err)
		}
	})
	return nil
}
