package notify

import (
	"sync"

	"metareview/internal/domain/notifications"
)

// Event is one notification addressed to users and/or raw email addresses.
type Event struct {
	Kind          notifications.Kind
	Recipients    []uint
	Emails        []string
	Title         string
	Message       string
	Link          string
	ProjectID     *uint
	JoinRequestID *uint
	SendEmail     bool
}

// Publisher accepts events once the state they describe has been committed.
type Publisher interface {
	Publish(events ...Event)
}

// Unique drops zero ids, duplicates and exclude, keeping the first-seen order.
func Unique(ids []uint, exclude uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfKind(k notifications.Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
