package notify

import (
	"sync"
	"time"
)

//DefaultRecent is the per client recent list size
const DefaultRecent = 10

//Ring is the bounded per client notification list, most recent N,
//newest first. Entries auto expire and can be dismissed early.
type Ring struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

//NewRing creates a ring keeping at most limit entries
func NewRing(limit int) *Ring {
	if limit < 1 {
		limit = DefaultRecent
	}
	return &Ring{limit: limit}
}

//Add prepends n, evicting the oldest entry beyond the limit
func (r *Ring) Add(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]Notification{n}, r.items...)
	if len(r.items) > r.limit {
		r.items = r.items[:r.limit]
	}
}

//List returns live entries newest first, pruning expired ones
func (r *Ring) List(now time.Time) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := r.items[:0]
	for _, n := range r.items {
		if !n.Expired(now) {
			live = append(live, n)
		}
	}
	r.items = live
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

//Dismiss removes the entry with id, reports if it was present
func (r *Ring) Dismiss(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.items {
		if n.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true
		}
	}
	return false
}
