package visibility

import "github.com/Faultbox/midgard-vis/internal/visengine"

// Registry maps visibility nodes back to host objects. It never owns
// them; a missing entry means the object is gone.
type Registry[T any] struct {
	items map[visengine.NodeID]T
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[visengine.NodeID]T)}
}

// Add binds node to item, replacing any previous binding.
func (r *Registry[T]) Add(node visengine.NodeID, item T) {
	r.items[node] = item
}

// Remove unbinds node.
func (r *Registry[T]) Remove(node visengine.NodeID) {
	delete(r.items, node)
}

// Lookup returns the item bound to node.
func (r *Registry[T]) Lookup(node visengine.NodeID) (T, bool) {
	item, ok := r.items[node]
	return item, ok
}

// Len returns the number of bindings.
func (r *Registry[T]) Len() int { return len(r.items) }
