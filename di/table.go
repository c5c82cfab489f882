package di

import "sync"

// Table is a key/value layer that falls back to a parent layer on a miss.
// Writes only ever touch the local layer, so a child shadows its parent
// without mutating it.
type Table[V any] struct {
	mu     sync.RWMutex
	local  map[Key]V
	parent *Table[V]
}

// NewTable creates a table layered on top of parent. parent may be nil.
func NewTable[V any](parent *Table[V]) *Table[V] {
	return &Table[V]{
		local:  make(map[Key]V),
		parent: parent,
	}
}

// Get returns the value for k from the nearest layer that has it.
func (t *Table[V]) Get(k Key) (V, bool) {
	v, _, ok := t.lookup(k)
	return v, ok
}

// Has reports whether k is bound in this layer or any ancestor.
func (t *Table[V]) Has(k Key) bool {
	_, _, ok := t.lookup(k)
	return ok
}

// Depth returns how many layers up k was found: 0 for local, -1 if absent.
func (t *Table[V]) Depth(k Key) int {
	_, depth, ok := t.lookup(k)
	if !ok {
		return -1
	}
	return depth
}

func (t *Table[V]) lookup(k Key) (V, int, bool) {
	depth := 0
	for cur := t; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.local[k]
		cur.mu.RUnlock()
		if ok {
			return v, depth, true
		}
		depth++
	}
	var zero V
	return zero, -1, false
}

// Set binds k in the local layer.
func (t *Table[V]) Set(k Key, v V) {
	t.mu.Lock()
	t.local[k] = v
	t.mu.Unlock()
}

// Clear empties the local layer. Ancestors are untouched.
func (t *Table[V]) Clear() {
	t.mu.Lock()
	t.local = make(map[Key]V)
	t.mu.Unlock()
}

// Len returns the number of local entries.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.local)
}

// Keys returns the local keys in no particular order.
func (t *Table[V]) Keys() []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]Key, 0, len(t.local))
	for k := range t.local {
		keys = append(keys, k)
	}
	return keys
}

// Values returns the local values in no particular order.
func (t *Table[V]) Values() []V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	values := make([]V, 0, len(t.local))
	for _, v := range t.local {
		values = append(values, v)
	}
	return values
}

// Parent returns the layer this table falls back to.
func (t *Table[V]) Parent() *Table[V] { return t.parent }
