package rods

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event names a lifecycle point hooks can attach to.
type Event int

const (
	// EventSave fires around every Entity.Save, for inserts and updates alike.
	EventSave Event = iota + 1
)

func (ev Event) String() string {
	switch ev {
	case EventSave:
		return "save"
	default:
		return fmt.Sprintf("event(%d)", int(ev))
	}
}

// ParseEvent maps an event name to its Event.
func ParseEvent(name string) (Event, error) {
	switch name {
	case "save":
		return EventSave, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

func (ev Event) valid() bool { return ev == EventSave }

// Args is the caller-supplied argument bag passed through Save to its hooks.
type Args map[string]any

// PreHook runs before the outgoing payload is computed and may mutate the
// entity's fields. Returning an error aborts the operation before any write.
type PreHook func(ctx context.Context, args Args, e *Entity) error

// PostHook runs after a successful write. orig is the entity's snapshot from
// before the operation began, payload is exactly what was sent to storage.
type PostHook func(ctx context.Context, args Args, orig, payload Fields)

// hookTable is the per-mapper registry shared by every model the mapper
// binds. Each event holds at most one pre and one post hook; registering
// again replaces the previous hook.
type hookTable struct {
	mu   sync.RWMutex
	pre  map[Event]PreHook
	post map[Event]PostHook
}

func newHookTable() *hookTable {
	return &hookTable{
		pre:  make(map[Event]PreHook),
		post: make(map[Event]PostHook),
	}
}

func (h *hookTable) setPre(ev Event, fn PreHook) error {
	if !ev.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if fn == nil {
		delete(h.pre, ev)
	} else {
		h.pre[ev] = fn
	}
	return nil
}

func (h *hookTable) setPost(ev Event, fn PostHook) error {
	if !ev.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if fn == nil {
		delete(h.post, ev)
	} else {
		h.post[ev] = fn
	}
	return nil
}

func (h *hookTable) preHook(ev Event) PreHook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pre[ev]
}

func (h *hookTable) postHook(ev Event) PostHook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.post[ev]
}

// Timestamps returns a pre-save hook that stamps the created column on new
// entities and the updated column on every save. Either name may be empty to
// skip it; now defaults to time.Now.
func Timestamps(created, updated string, now func() time.Time) PreHook {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, _ Args, e *Entity) error {
		ts := now().UTC()
		if created != "" && e.IsNew() && e.Get(created) == nil {
			e.Set(created, ts)
		}
		if updated != "" {
			e.Set(updated, ts)
		}
		return nil
	}
}
