package upstream

import "github.com/google/uuid"

// Event is a bitset identifying the kinds of transitions a Watcher can
// subscribe to.
type Event int

const (
	EventOnline Event = 1 << iota
	EventOffline
	EventSuccess
	EventFailure
)

// EventAll is the union of every event kind.
const EventAll = EventOnline | EventOffline | EventSuccess | EventFailure

// WatchFunc is invoked synchronously, with the owning List's lock held,
// whenever a subscribed event fires. up is the upstream the event concerns
// and count is the current error count at the time of the event.
type WatchFunc func(ev Event, up *Upstream, count int)

// watcher is one registered subscription.
type watcher struct {
	id   uuid.UUID
	mask Event
	fn   WatchFunc
	// dtor runs when the watcher is removed (explicitly, or because its
	// List is closed), for releasing any user data the caller transferred
	// to the watcher at registration time.
	dtor func()
}

// Watch subscribes fn to events in mask on the list. It panics if mask is
// empty — registering a watcher with no events to observe is a programming
// error, not a runtime condition, matching spec §7's "aborts" language.
// It returns a handle that Unwatch accepts to cancel the subscription.
func (l *List) Watch(mask Event, fn WatchFunc, dtor func()) uuid.UUID {
	if mask == 0 {
		panic("upstream: Watch called with an empty event mask")
	}

	w := &watcher{id: uuid.New(), mask: mask, fn: fn, dtor: dtor}

	l.mu.Lock()
	l.watchers = append(l.watchers, w)
	l.mu.Unlock()

	return w.id
}

// Unwatch removes a previously registered watcher, running its destructor
// if it has one.
func (l *List) Unwatch(id uuid.UUID) {
	l.mu.Lock()
	var removed *watcher
	kept := l.watchers[:0]
	for _, w := range l.watchers {
		if w.id == id {
			removed = w
			continue
		}
		kept = append(kept, w)
	}
	l.watchers = kept
	l.mu.Unlock()

	if removed != nil && removed.dtor != nil {
		removed.dtor()
	}
}

// emit delivers ev to every watcher subscribed to it. Callers must hold
// l.mu for the duration of the state transition that produced ev; emit
// itself does not lock, since it is always called from within a section
// that already holds the list's lock.
func (l *List) emit(ev Event, up *Upstream, count int) {
	for _, w := range l.watchers {
		if w.mask&ev != 0 {
			w.fn(ev, up, count)
		}
	}
}

// closeWatchers runs every remaining watcher's destructor, used when a
// List is closed.
func (l *List) closeWatchers() {
	for _, w := range l.watchers {
		if w.dtor != nil {
			w.dtor()
		}
	}
	l.watchers = nil
}
