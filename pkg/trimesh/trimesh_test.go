package trimesh

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestClipKeepsAndDrops(t *testing.T) {
	m := New()
	// Triangle entirely below z=1 and one entirely above.
	a := m.AddVertex(r3.Vec{})
	b := m.AddVertex(r3.Vec{X: 1})
	c := m.AddVertex(r3.Vec{Y: 1})
	m.AddFace(a, b, c).Material = 5
	d := m.AddVertex(r3.Vec{Z: 2})
	e := m.AddVertex(r3.Vec{X: 1, Z: 2})
	f := m.AddVertex(r3.Vec{Y: 1, Z: 2})
	m.AddFace(d, e, f)

	out := m.ClipAtPlane(Plane{Normal: r3.Vec{Z: 1}, Dist: 1})
	if len(out.Faces) != 1 {
		t.Fatalf("kept %d faces, want 1", len(out.Faces))
	}
	if out.Faces[0].Material != 5 {
		t.Errorf("Material = %d, want 5", out.Faces[0].Material)
	}
	if len(out.Vertices) != 3 {
		t.Errorf("kept %d vertices, want 3", len(out.Vertices))
	}
}

func TestClipSplitsStraddlingTriangle(t *testing.T) {
	m := New()
	a := m.AddVertex(r3.Vec{Z: -1})
	b := m.AddVertex(r3.Vec{X: 2, Z: -1})
	c := m.AddVertex(r3.Vec{X: 1, Z: 1})
	m.AddFace(a, b, c)

	out := m.ClipAtPlane(Plane{Normal: r3.Vec{Z: 1}})
	// Two corners kept: quad split into two triangles.
	if len(out.Faces) != 2 {
		t.Fatalf("got %d faces, want 2", len(out.Faces))
	}
	for _, f := range out.Faces {
		for _, v := range f.V {
			if out.Vertices[v].Z > 1e-12 {
				t.Errorf("vertex %v survived on the removed side", out.Vertices[v])
			}
		}
	}
	// Cut vertices sit exactly on the plane at the midpoints.
	onPlane := 0
	for _, v := range out.Vertices {
		if math.Abs(v.Z) < 1e-12 && v.Z == 0 {
			onPlane++
		}
	}
	if onPlane != 2 {
		t.Errorf("cut vertices on plane = %d, want 2", onPlane)
	}
}

func TestClipSharedEdgeIsWatertight(t *testing.T) {
	// Two triangles sharing the straddling edge a-c must share the cut
	// vertex instead of duplicating it.
	m := New()
	a := m.AddVertex(r3.Vec{Z: -1})
	b := m.AddVertex(r3.Vec{X: 1, Z: -1})
	c := m.AddVertex(r3.Vec{Z: 1})
	d := m.AddVertex(r3.Vec{X: -1, Z: -1})
	m.AddFace(a, b, c)
	m.AddFace(a, c, d)

	out := m.ClipAtPlane(Plane{Normal: r3.Vec{Z: 1}})
	seen := make(map[r3.Vec]int)
	for _, v := range out.Vertices {
		seen[v]++
	}
	for v, n := range seen {
		if n > 1 {
			t.Errorf("vertex %v duplicated %d times", v, n)
		}
	}
}
