// Package hierarchy holds the annotation objects of one image entry and the
// workflow log of commands that produced them.
package hierarchy

import (
	"sync"

	"atlasroi/internal/models"
)

// Event describes a change to the top-level objects of a hierarchy
type Event struct {
	Added   []*models.Annotation
	Removed []*models.Annotation
}

// Listener is notified after every change. Listeners run on the goroutine
// that made the change, outside the hierarchy lock.
type Listener func(Event)

// Hierarchy is the object hierarchy of a single image entry. It is safe for
// concurrent use.
type Hierarchy struct {
	mu        sync.RWMutex
	objects   []*models.Annotation
	listeners []Listener
	workflow  *Workflow
}

// New creates an empty hierarchy
func New() *Hierarchy {
	return &Hierarchy{workflow: &Workflow{}}
}

// AddObjects appends top-level objects in order
func (h *Hierarchy) AddObjects(objs ...*models.Annotation) {
	if len(objs) == 0 {
		return
	}
	h.mu.Lock()
	h.objects = append(h.objects, objs...)
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()

	notify(listeners, Event{Added: objs})
}

// RemoveObjects removes the given top-level objects together with their
// descendants. Objects not at the top level are ignored. It returns the
// removed objects.
func (h *Hierarchy) RemoveObjects(objs ...*models.Annotation) []*models.Annotation {
	drop := make(map[*models.Annotation]bool, len(objs))
	for _, o := range objs {
		drop[o] = true
	}

	h.mu.Lock()
	var removed []*models.Annotation
	kept := h.objects[:0]
	for _, o := range h.objects {
		if drop[o] {
			removed = append(removed, o)
			continue
		}
		kept = append(kept, o)
	}
	for i := len(kept); i < len(h.objects); i++ {
		h.objects[i] = nil
	}
	h.objects = kept
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()

	if len(removed) > 0 {
		notify(listeners, Event{Removed: removed})
	}
	return removed
}

// TopLevel returns a snapshot of the top-level objects
func (h *Hierarchy) TopLevel() []*models.Annotation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*models.Annotation(nil), h.objects...)
}

// Find returns the top-level objects matching pred
func (h *Hierarchy) Find(pred func(*models.Annotation) bool) []*models.Annotation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*models.Annotation
	for _, o := range h.objects {
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// Count returns the number of objects in the hierarchy, descendants included
func (h *Hierarchy) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, o := range h.objects {
		n += o.Count()
	}
	return n
}

// Subscribe registers a listener for future changes
func (h *Hierarchy) Subscribe(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Workflow returns the workflow log of the entry
func (h *Hierarchy) Workflow() *Workflow {
	return h.workflow
}

func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}
