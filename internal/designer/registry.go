package designer

import "github.com/google/uuid"

// registry keeps entities in insertion order with O(1) lookup by id.
// An id is never handed out twice: removed ids are retired for the
// lifetime of the registry.
type registry[T any] struct {
	idOf    func(*T) *string
	order   []string
	items   map[string]*T
	retired map[string]struct{}
}

func newRegistry[T any](idOf func(*T) *string) *registry[T] {
	return &registry[T]{
		idOf:    idOf,
		items:   map[string]*T{},
		retired: map[string]struct{}{},
	}
}

// claim returns want when it is free, otherwise a fresh UUID.
func (r *registry[T]) claim(want string) string {
	if want != "" && r.free(want) {
		return want
	}
	for {
		id := uuid.NewString()
		if r.free(id) {
			return id
		}
	}
}

func (r *registry[T]) free(id string) bool {
	if _, used := r.items[id]; used {
		return false
	}
	_, gone := r.retired[id]
	return !gone
}

// add stores item under its own id when free, or under a new one, and
// returns the id used.
func (r *registry[T]) add(item T) string {
	id := r.claim(*r.idOf(&item))
	*r.idOf(&item) = id
	r.items[id] = &item
	r.order = append(r.order, id)
	return id
}

func (r *registry[T]) get(id string) (*T, bool) {
	item, ok := r.items[id]
	return item, ok
}

func (r *registry[T]) remove(id string) bool {
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	r.retired[id] = struct{}{}
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// replace swaps the whole collection. Entities keeping an existing id stay
// addressable under it; ids that disappear are retired.
func (r *registry[T]) replace(items []T) {
	old := r.items
	r.items = make(map[string]*T, len(items))
	r.order = make([]string, 0, len(items))
	for _, item := range items {
		r.add(item)
	}
	for id := range old {
		if _, kept := r.items[id]; !kept {
			r.retired[id] = struct{}{}
		}
	}
}

// reset retires every current id before loading items, so nothing loaded
// can take over an earlier entity's identity.
func (r *registry[T]) reset(items []T) {
	for id := range r.items {
		r.retired[id] = struct{}{}
	}
	r.items = make(map[string]*T, len(items))
	r.order = make([]string, 0, len(items))
	for _, item := range items {
		r.add(item)
	}
}

func (r *registry[T]) count() int { return len(r.order) }

// each visits entities in order.
func (r *registry[T]) each(fn func(*T)) {
	for _, id := range r.order {
		fn(r.items[id])
	}
}
