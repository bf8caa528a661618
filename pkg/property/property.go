// Package property provides typed per-element data columns for meshes.
//
// A column stores one value per mesh element (vertex, face or region)
// and is kept in lock-step with the mesh topology by its owner: when an
// element is created or deleted, the owner grows or shrinks every
// column of that element class. Columns support copy-on-write sharing
// through an explicit owner count, mirroring the sharing model of
// halfedge.Topology.
package property

// Column is a reference-counted slice of per-element values.
type Column[T any] struct {
	refs int
	data []T
}

// NewColumn creates a column of n zero values with a single owner.
func NewColumn[T any](n int) *Column[T] {
	return &Column[T]{refs: 1, data: make([]T, n)}
}

// FromSlice wraps an existing slice in a single-owner column. The
// column takes ownership of the slice.
func FromSlice[T any](data []T) *Column[T] {
	return &Column[T]{refs: 1, data: data}
}

// Retain registers an additional logical owner.
func (c *Column[T]) Retain() *Column[T] {
	c.refs++
	return c
}

// Release drops one logical owner.
func (c *Column[T]) Release() {
	if c.refs <= 0 {
		panic("property: Release without matching owner")
	}
	c.refs--
}

// Shared reports whether more than one owner references the column.
// Mutating a shared column is a programmer error; owners must replace
// their reference with Clone() first.
func (c *Column[T]) Shared() bool { return c.refs > 1 }

// Clone returns a deep copy with a single owner.
func (c *Column[T]) Clone() *Column[T] {
	return &Column[T]{refs: 1, data: append([]T(nil), c.data...)}
}

// Len returns the number of elements.
func (c *Column[T]) Len() int { return len(c.data) }

// Data exposes the backing slice. Callers must not grow it.
func (c *Column[T]) Data() []T { return c.data }

// At returns the value of element i.
func (c *Column[T]) At(i int) T { return c.data[i] }

// Set overwrites the value of element i.
func (c *Column[T]) Set(i int, v T) { c.data[i] = v }

// Append adds values for newly created elements.
func (c *Column[T]) Append(v ...T) { c.data = append(c.data, v...) }

// Grow appends n zero values.
func (c *Column[T]) Grow(n int) {
	var zero T
	for i := 0; i < n; i++ {
		c.data = append(c.data, zero)
	}
}

// Truncate shrinks the column to n elements.
func (c *Column[T]) Truncate(n int) { c.data = c.data[:n] }

// SwapRemove moves the last value into slot i and shrinks the column by
// one, matching the swap-with-last deletion order of the topology.
func (c *Column[T]) SwapRemove(i int) {
	last := len(c.data) - 1
	c.data[i] = c.data[last]
	c.data = c.data[:last]
}

// Fill sets every element to v.
func (c *Column[T]) Fill(v T) {
	for i := range c.data {
		c.data[i] = v
	}
}
