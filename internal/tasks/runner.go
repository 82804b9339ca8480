package tasks

import (
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// Runner owns detached background work (scrobbles, imports) so request
// handlers can fire and forget while shutdown still gets a chance to drain.
// A panicking task is logged and absorbed; it never takes the process down.
type Runner struct {
	wg sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{}
}

// Go runs fn on its own goroutine. name only shows up in logs.
func (r *Runner) Go(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		var catcher panics.Catcher
		catcher.Try(fn)
		if recovered := catcher.Recovered(); recovered != nil {
			log.Printf("[tasks] %s panicked: %v", name, recovered)
		}
	}()
}

// Wait blocks until every task has finished, or until the timeout elapses.
// It reports whether the drain completed.
func (r *Runner) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
