// Package scene defines the registry of named objects produced by
// script evaluation. A scene is never mutated after evaluation; each
// evaluation produces a fresh one.
package scene

import (
	"github.com/perimesh/perimesh/pkg/renderable"
	"github.com/perimesh/perimesh/pkg/surface"
)

// Kind enumerates the types of objects held by a scene.
type Kind int

const (
	KindMesh Kind = iota
	KindRenderable
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindRenderable:
		return "renderable"
	default:
		return "unknown"
	}
}

// Entry is a single named object in the scene.
type Entry struct {
	Name       string
	Kind       Kind
	Mesh       *surface.Mesh
	Renderable *renderable.Mesh
}

// Scene holds the named outputs of one evaluation, in definition order.
type Scene struct {
	entries map[string]*Entry
	order   []string
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{entries: make(map[string]*Entry)}
}

// add registers an entry, replacing any previous object with the same
// name while keeping its position in the definition order.
func (s *Scene) add(e *Entry) {
	if _, ok := s.entries[e.Name]; !ok {
		s.order = append(s.order, e.Name)
	}
	s.entries[e.Name] = e
}

// AddMesh registers a named surface mesh.
func (s *Scene) AddMesh(name string, m *surface.Mesh) {
	s.add(&Entry{Name: name, Kind: KindMesh, Mesh: m})
}

// AddRenderable registers a named renderable mesh.
func (s *Scene) AddRenderable(name string, m *renderable.Mesh) {
	s.add(&Entry{Name: name, Kind: KindRenderable, Renderable: m})
}

// Lookup returns the entry with the given name, or nil.
func (s *Scene) Lookup(name string) *Entry {
	return s.entries[name]
}

// Mesh returns the named surface mesh, or nil if the name is unknown
// or bound to a different kind.
func (s *Scene) Mesh(name string) *surface.Mesh {
	if e := s.entries[name]; e != nil && e.Kind == KindMesh {
		return e.Mesh
	}
	return nil
}

// Renderable returns the named renderable mesh, or nil.
func (s *Scene) Renderable(name string) *renderable.Mesh {
	if e := s.entries[name]; e != nil && e.Kind == KindRenderable {
		return e.Renderable
	}
	return nil
}

// Names returns all entry names in definition order.
func (s *Scene) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the number of entries.
func (s *Scene) Count() int {
	return len(s.entries)
}
