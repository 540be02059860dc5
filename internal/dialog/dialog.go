// Package dialog is the confirmation prompt shown while a slow paste is
// pending. Rendering belongs to the desktop shell; the store only needs to
// open the prompt, learn when the user dismisses it, and close it.
package dialog

import (
	"log/slog"
	"sync"
)

// Prompt describes one pending paste.
type Prompt struct {
	User   int32
	Bundle string
}

// Dialog shows and hides paste prompts.
type Dialog interface {
	// Show opens the prompt. cancel must be called at most once if the user
	// dismisses it; it is safe to call after the paste has completed.
	Show(p Prompt, cancel func()) error
	// Close hides the prompt once the paste has completed.
	Close(p Prompt)
}

// Headless logs prompts instead of showing them. It never cancels.
type Headless struct{}

func (Headless) Show(p Prompt, _ func()) error {
	slog.Info("paste is taking longer than expected", "user", p.User, "bundle", p.Bundle)
	return nil
}

func (Headless) Close(Prompt) {}

// Recorder remembers the cancel function of the open prompt so a caller
// outside the store (an RPC, a test) can dismiss it.
type Recorder struct {
	mu    sync.Mutex
	open  map[Prompt]func()
	shown int
}

func NewRecorder() *Recorder {
	return &Recorder{open: make(map[Prompt]func())}
}

func (r *Recorder) Show(p Prompt, cancel func()) error {
	slog.Info("paste is taking longer than expected; run clipd dismiss to cancel", "user", p.User, "bundle", p.Bundle)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[p] = cancel
	r.shown++
	return nil
}

func (r *Recorder) Close(p Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, p)
}

// Dismiss cancels the open prompt for p. It reports whether one was open.
func (r *Recorder) Dismiss(p Prompt) bool {
	r.mu.Lock()
	cancel, ok := r.open[p]
	delete(r.open, p)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shown returns how many prompts have been opened.
func (r *Recorder) Shown() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

// IsOpen reports whether a prompt for p is showing.
func (r *Recorder) IsOpen(p Prompt) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.open[p]
	return ok
}
