package sdfsurface

import (
	"context"
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/surface"
)

func sphereSolid(t *testing.T, radius float64) sdf.SDF3 {
	t.Helper()
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		t.Fatalf("Sphere3D failed: %v", err)
	}
	return s
}

func TestFromSDFSphere(t *testing.T) {
	s := sphereSolid(t, 10)
	m, err := FromSDF(s, Options{MeshCells: 32})
	if err != nil {
		t.Fatalf("FromSDF failed: %v", err)
	}
	if m.FaceCount() == 0 {
		t.Fatal("expected non-zero face count")
	}
	if !m.Topology().IsClosed() {
		t.Fatal("sphere tessellation is not closed")
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("mesh is inconsistent: %v", err)
	}
	if got := m.RegionCount(); got != 2 {
		t.Fatalf("region count = %d, want 2", got)
	}
	for face := 0; face < m.FaceCount(); face++ {
		if m.FaceRegion(face) != 1 {
			t.Fatalf("face %d bounds region %d, want 1", face, m.FaceRegion(face))
		}
	}
	// All vertices of a sphere tessellation should sit near the surface.
	for v := 0; v < m.VertexCount(); v++ {
		if r := r3.Norm(m.VertexPosition(v)); math.Abs(r-10) > 2 {
			t.Fatalf("vertex %d at radius %f, expected ~10", v, r)
		}
	}
}

func TestFromSDFDerivedCell(t *testing.T) {
	box, err := sdf.Box3D(v3.Vec{X: 40, Y: 20, Z: 10}, 0)
	if err != nil {
		t.Fatalf("Box3D failed: %v", err)
	}
	m, err := FromSDF(box, Options{MeshCells: 24})
	if err != nil {
		t.Fatalf("FromSDF failed: %v", err)
	}
	cl := m.Cell()
	for dim := 0; dim < 3; dim++ {
		if cl.Periodic(dim) {
			t.Errorf("derived cell is periodic along axis %d", dim)
		}
	}
	// The derived cell must contain every vertex.
	const eps = 1e-9
	for v := 0; v < m.VertexCount(); v++ {
		red := cl.AbsoluteToReduced(m.VertexPosition(v))
		for _, c := range []float64{red.X, red.Y, red.Z} {
			if c < -eps || c > 1+eps {
				t.Fatalf("vertex %d at reduced %v lies outside the derived cell", v, red)
			}
		}
	}
}

func TestFromSDFLocateAndSmooth(t *testing.T) {
	s := sphereSolid(t, 10)
	m, err := FromSDF(s, Options{MeshCells: 32})
	if err != nil {
		t.Fatalf("FromSDF failed: %v", err)
	}
	region, err := m.LocatePoint(r3.Vec{}, 1e-9, nil)
	if err != nil {
		t.Fatalf("LocatePoint failed: %v", err)
	}
	if region != 1 {
		t.Errorf("center located in region %d, want 1", region)
	}
	if err := m.Smooth(context.Background(), 4, surface.DefaultSmoothingPassBand, surface.DefaultSmoothingLambda); err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}
	for v := 0; v < m.VertexCount(); v++ {
		if r := r3.Norm(m.VertexPosition(v)); math.Abs(r-10) > 3 {
			t.Fatalf("vertex %d drifted to radius %f after smoothing", v, r)
		}
	}
}
