package notify

import "sync"

// Nop is a no-op Channel for load testing and simulations.
type Nop struct{}

func (Nop) SetViewStarted() error      { return nil }
func (Nop) SetViewPaused() error       { return nil }
func (Nop) SetViewStopped() error      { return nil }
func (Nop) SetViewKicked(string) error { return nil }
func (Nop) SetBoardView(string) error  { return nil }
func (Nop) RefreshRequestView() error  { return nil }
func (Nop) SendNotice(string) error    { return nil }

// Recorder is a Channel that records every delivery, for tests and the
// simulate command.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) SetViewStarted() error             { return r.record("started") }
func (r *Recorder) SetViewPaused() error              { return r.record("paused") }
func (r *Recorder) SetViewStopped() error             { return r.record("stopped") }
func (r *Recorder) SetViewKicked(action string) error { return r.record("kicked:" + action) }
func (r *Recorder) SetBoardView(notice string) error  { return r.record("board:" + notice) }
func (r *Recorder) RefreshRequestView() error         { return r.record("requests") }
func (r *Recorder) SendNotice(msg string) error       { return r.record("notice:" + msg) }

// Events returns a snapshot of recorded deliveries in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}
