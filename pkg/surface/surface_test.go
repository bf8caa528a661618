package surface

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/cell"
)

const testEpsilon = 1e-9

func cubeCorners() []r3.Vec {
	return []r3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1},
	}
}

// newTestMesh creates a mesh in a large non-periodic cell with region 0
// reserved for empty space.
func newTestMesh(t *testing.T) *Mesh {
	t.Helper()
	c, err := cell.NewOrthogonal(100, 100, 100, r3.Vec{X: -50, Y: -50, Z: -50}, [3]bool{})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMesh(c)
	m.CreateRegion(0, 0, 0)
	m.SetSpaceFillingRegion(0)
	return m
}

func spherePoints(n int, radius float64) []r3.Vec {
	rng := rand.New(rand.NewSource(1))
	pts := make([]r3.Vec, n)
	for i := range pts {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		pts[i] = r3.Scale(radius/r3.Norm(v), v)
	}
	return pts
}

func TestConstructConvexHullCube(t *testing.T) {
	m := newTestMesh(t)
	region := m.ConstructConvexHull(cubeCorners(), testEpsilon)

	if region != 1 {
		t.Errorf("hull region = %d, want 1", region)
	}
	if got, want := m.VertexCount(), 8; got != want {
		t.Errorf("VertexCount = %d, want %d", got, want)
	}
	if got, want := m.FaceCount(), 12; got != want {
		t.Errorf("FaceCount = %d, want %d", got, want)
	}
	if got, want := m.EdgeCount(), 36; got != want {
		t.Errorf("EdgeCount = %d, want %d", got, want)
	}
	if !m.Topology().IsClosed() {
		t.Error("hull is not closed")
	}
	for face := 0; face < m.FaceCount(); face++ {
		if m.FaceRegion(face) != region {
			t.Errorf("face %d bounds region %d, want %d", face, m.FaceRegion(face), region)
		}
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}

	// No input point may end up outside the hull.
	for _, p := range cubeCorners() {
		for face := 0; face < m.FaceCount(); face++ {
			if d := m.facePlane(face).pointDistance(p); d > 1e-6 {
				t.Errorf("point %v lies %g outside face %d", p, d, face)
			}
		}
	}
}

func TestConstructConvexHullRandomPoints(t *testing.T) {
	m := newTestMesh(t)
	rng := rand.New(rand.NewSource(7))
	pts := make([]r3.Vec, 200)
	for i := range pts {
		pts[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	}
	input := append([]r3.Vec(nil), pts...)
	m.ConstructConvexHull(input, testEpsilon)

	if !m.Topology().IsClosed() {
		t.Fatal("hull is not closed")
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	for i, p := range pts {
		for face := 0; face < m.FaceCount(); face++ {
			if d := m.facePlane(face).pointDistance(p); d > 1e-6 {
				t.Fatalf("point %d lies %g outside face %d", i, d, face)
			}
		}
	}
}

func TestConstructConvexHullDegenerate(t *testing.T) {
	t.Run("too few points", func(t *testing.T) {
		m := newTestMesh(t)
		region := m.ConstructConvexHull([]r3.Vec{{}, {X: 1}, {Y: 1}}, testEpsilon)
		if region != 1 {
			t.Errorf("region = %d, want 1", region)
		}
		if m.FaceCount() != 0 || m.VertexCount() != 0 {
			t.Error("degenerate input must not add mesh elements")
		}
	})
	t.Run("coplanar points", func(t *testing.T) {
		m := newTestMesh(t)
		m.ConstructConvexHull([]r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 2}}, testEpsilon)
		if m.FaceCount() != 0 {
			t.Error("coplanar input must not add faces")
		}
	})
}

func TestJoinCoplanarFacesCube(t *testing.T) {
	m := newTestMesh(t)
	m.ConstructConvexHull(cubeCorners(), testEpsilon)
	m.JoinCoplanarFaces(0.01)

	if got, want := m.FaceCount(), 6; got != want {
		t.Fatalf("FaceCount = %d, want %d", got, want)
	}
	if got, want := m.EdgeCount(), 24; got != want {
		t.Errorf("EdgeCount = %d, want %d", got, want)
	}
	for face := 0; face < m.FaceCount(); face++ {
		if n := m.Topology().FaceEdgeCount(face); n != 4 {
			t.Errorf("face %d has %d edges, want 4", face, n)
		}
	}
	if !m.Topology().IsClosed() {
		t.Error("mesh no longer closed after joining")
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestSplitFace(t *testing.T) {
	m := newTestMesh(t)
	region := m.CreateRegion(0, 0, 0)
	m.CreateVertices([]r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}})
	face := m.CreateFace([]int{0, 1, 2, 3}, region)

	topo := m.Topology()
	edge1 := topo.FirstFaceEdge(face) // 0 -> 1
	edge2 := topo.NextFaceEdge(topo.NextFaceEdge(edge1))
	newEdge := m.SplitFace(edge1, edge2)

	if got, want := m.FaceCount(), 2; got != want {
		t.Fatalf("FaceCount = %d, want %d", got, want)
	}
	topo = m.Topology()
	if topo.Vertex1(newEdge) != 1 || topo.Vertex2(newEdge) != 3 {
		t.Errorf("split edge runs %d -> %d, want 1 -> 3", topo.Vertex1(newEdge), topo.Vertex2(newEdge))
	}
	for f := 0; f < 2; f++ {
		if n := topo.FaceEdgeCount(f); n != 3 {
			t.Errorf("face %d has %d edges, want 3", f, n)
		}
	}
	if m.FaceRegion(1) != region {
		t.Errorf("new face bounds region %d, want %d", m.FaceRegion(1), region)
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestSplitEdge(t *testing.T) {
	m := newTestMesh(t)
	m.ConstructConvexHull(cubeCorners(), testEpsilon)
	vertices, edges := m.VertexCount(), m.EdgeCount()

	topo := m.Topology()
	edge := topo.FirstFaceEdge(0)
	v1, v2 := topo.Vertex1(edge), topo.Vertex2(edge)
	mid := r3.Scale(0.5, r3.Add(m.VertexPosition(v1), m.VertexPosition(v2)))

	vertex := m.SplitEdge(edge, mid)

	if got, want := m.VertexCount(), vertices+1; got != want {
		t.Errorf("VertexCount = %d, want %d", got, want)
	}
	// Both halves of the edge pair are split.
	if got, want := m.EdgeCount(), edges+2; got != want {
		t.Errorf("EdgeCount = %d, want %d", got, want)
	}
	if p := m.VertexPosition(vertex); r3.Norm(r3.Sub(p, mid)) > testEpsilon {
		t.Errorf("new vertex at %v, want %v", p, mid)
	}
	topo = m.Topology()
	if topo.Vertex2(edge) != vertex {
		t.Errorf("edge now leads to vertex %d, want %d", topo.Vertex2(edge), vertex)
	}
	if topo.Vertex1(edge) != v1 {
		t.Errorf("edge origin changed to %d, want %d", topo.Vertex1(edge), v1)
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestTransformVertices(t *testing.T) {
	m := newTestMesh(t)
	m.ConstructConvexHull(cubeCorners(), testEpsilon)
	m.ComputeFaceNormals()

	// Rotate a quarter turn about z, then shift along x.
	rot := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})
	m.TransformVertices(rot, r3.Vec{X: 2})

	for v := 0; v < m.VertexCount(); v++ {
		p := m.VertexPosition(v)
		if p.X < 1-testEpsilon || p.X > 2+testEpsilon {
			t.Errorf("vertex %d at x = %g, want [1, 2]", v, p.X)
		}
		if p.Y < -testEpsilon || p.Y > 1+testEpsilon {
			t.Errorf("vertex %d at y = %g, want [0, 1]", v, p.Y)
		}
	}
	if m.HasFaceNormals() {
		t.Error("stale face normals survived the transformation")
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestSmoothSphereStaysSpherical(t *testing.T) {
	m := newTestMesh(t)
	m.ConstructConvexHull(spherePoints(200, 1), testEpsilon)
	if err := m.Smooth(context.Background(), 8, DefaultSmoothingPassBand, DefaultSmoothingLambda); err != nil {
		t.Fatal(err)
	}
	// The lambda/mu pass pair keeps an already-smooth surface close to
	// its original shape.
	for v := 0; v < m.VertexCount(); v++ {
		r := r3.Norm(m.VertexPosition(v))
		if r < 0.8 || r > 1.2 {
			t.Fatalf("vertex %d drifted to radius %g", v, r)
		}
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestSmoothPassBand(t *testing.T) {
	base := newTestMesh(t)
	base.ConstructConvexHull(spherePoints(200, 1), testEpsilon)

	narrow := base.Clone()
	wide := base.Clone()
	if err := narrow.Smooth(context.Background(), 8, DefaultSmoothingPassBand, DefaultSmoothingLambda); err != nil {
		t.Fatal(err)
	}
	if err := wide.Smooth(context.Background(), 8, 0.5, DefaultSmoothingLambda); err != nil {
		t.Fatal(err)
	}

	mean := func(m *Mesh) float64 {
		var sum float64
		for v := 0; v < m.VertexCount(); v++ {
			sum += r3.Norm(m.VertexPosition(v))
		}
		return sum / float64(m.VertexCount())
	}
	// A wider pass band strengthens the inflating mu pass, so the faired
	// sphere must end up larger than with the default pass band.
	if mean(wide) <= mean(narrow) {
		t.Errorf("mean radius with kPB=0.5 (%g) not above kPB=0.1 (%g)",
			mean(wide), mean(narrow))
	}
}

func TestSmoothErrors(t *testing.T) {
	t.Run("open mesh", func(t *testing.T) {
		m := newTestMesh(t)
		m.CreateVertices([]r3.Vec{{}, {X: 1}, {Y: 1}})
		m.CreateFace([]int{0, 1, 2}, 0)
		if err := m.Smooth(context.Background(), 1, DefaultSmoothingPassBand, DefaultSmoothingLambda); err != ErrNotClosed {
			t.Errorf("err = %v, want ErrNotClosed", err)
		}
	})
	t.Run("cancellation", func(t *testing.T) {
		m := newTestMesh(t)
		m.ConstructConvexHull(cubeCorners(), testEpsilon)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := m.Smooth(ctx, 5, DefaultSmoothingPassBand, DefaultSmoothingLambda); err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestLocatePoint(t *testing.T) {
	m := newTestMesh(t)
	region := m.ConstructConvexHull(cubeCorners(), testEpsilon)

	tests := []struct {
		name  string
		point r3.Vec
		want  int
	}{
		{"center", r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, region},
		{"near corner inside", r3.Vec{X: 0.9, Y: 0.9, Z: 0.9}, region},
		{"far outside", r3.Vec{X: 10, Y: 10, Z: 10}, 0},
		{"outside near face", r3.Vec{X: 0.5, Y: 0.5, Z: 1.5}, 0},
		{"on surface", r3.Vec{X: 0.5, Y: 0.5, Z: 1}, InvalidIndex},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.LocatePoint(tc.point, 1e-6, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("LocatePoint(%v) = %d, want %d", tc.point, got, tc.want)
			}
		})
	}
}

func TestLocatePointEmptyMesh(t *testing.T) {
	m := newTestMesh(t)
	got, err := m.LocatePoint(r3.Vec{X: 1, Y: 2, Z: 3}, 1e-6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("LocatePoint on empty mesh = %d, want space-filling region 0", got)
	}
}

func TestLocatePointPeriodicImage(t *testing.T) {
	// A hull near the cell boundary must classify points through the
	// periodic image.
	c, err := cell.NewOrthogonal(4, 4, 4, r3.Vec{}, [3]bool{true, true, true})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMesh(c)
	m.CreateRegion(0, 0, 0)
	m.SetSpaceFillingRegion(0)
	region := m.ConstructConvexHull(cubeCorners(), testEpsilon)

	// (4.5, 0.5, 0.5) wraps to (0.5, 0.5, 0.5), the hull center.
	got, err := m.LocatePoint(r3.Vec{X: 4.5, Y: 0.5, Z: 0.5}, 1e-6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != region {
		t.Errorf("LocatePoint through periodic image = %d, want %d", got, region)
	}
}

func TestConvertToTriMesh(t *testing.T) {
	m := newTestMesh(t)
	m.ConstructConvexHull(cubeCorners(), testEpsilon)
	m.JoinCoplanarFaces(0.01)

	tm, faceMap := m.ConvertToTriMesh(true, nil)
	if got, want := len(tm.Faces), 12; got != want {
		t.Fatalf("triangle count = %d, want %d", got, want)
	}
	if len(faceMap) != len(tm.Faces) {
		t.Fatalf("face map has %d entries for %d triangles", len(faceMap), len(tm.Faces))
	}
	for i, f := range tm.Faces {
		if f.Material != faceMap[i] {
			t.Errorf("triangle %d: material %d != face map entry %d", i, f.Material, faceMap[i])
		}
		if faceMap[i] < 0 || faceMap[i] >= m.FaceCount() {
			t.Errorf("face map entry %d out of range", faceMap[i])
		}
		if !tm.HasNormals {
			continue
		}
		for c, n := range f.Normals {
			if r3.Norm(n) == 0 {
				t.Errorf("triangle %d corner %d has zero normal", i, c)
			}
		}
	}
}

func TestCopyOnWrite(t *testing.T) {
	m := newTestMesh(t)
	m.ConstructConvexHull(cubeCorners(), testEpsilon)

	clone := m.Clone()
	clone.SetVertexPosition(0, r3.Vec{X: -5})
	if got := m.VertexPosition(0); got.X == -5 {
		t.Error("mutating the clone moved the original's vertex")
	}
	clone.DeleteFace(0)
	if m.FaceCount() != 12 {
		t.Error("mutating the clone changed the original's topology")
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
	if err := clone.Validate(); err != nil {
		t.Error(err)
	}
}

func TestMakeManifold(t *testing.T) {
	m := newTestMesh(t)
	region := m.CreateRegion(0, 0, 0)
	// Two tetrahedra sharing vertex 0.
	m.CreateVertices([]r3.Vec{
		{}, {X: 1}, {Y: 1}, {Z: 1},
		{X: -1}, {Y: -1}, {Z: -1},
	})
	for _, loop := range [][]int{{0, 1, 3}, {2, 0, 3}, {0, 2, 1}, {1, 2, 3}} {
		m.CreateFace(loop, region)
	}
	for _, loop := range [][]int{{0, 4, 6}, {5, 0, 6}, {0, 5, 4}, {4, 5, 6}} {
		m.CreateFace(loop, region)
	}
	if !m.ConnectOppositeHalfedges() {
		t.Fatal("mesh should be closable")
	}

	if split := m.MakeManifold(); split != 1 {
		t.Errorf("split vertices = %d, want 1", split)
	}
	if got, want := m.VertexCount(), 8; got != want {
		t.Fatalf("VertexCount = %d, want %d", got, want)
	}
	if got := m.VertexPosition(7); got != (r3.Vec{}) {
		t.Errorf("duplicated vertex has position %v, want origin", got)
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestDeleteRegion(t *testing.T) {
	m := newTestMesh(t)
	r1 := m.CreateRegion(1, 10, 20)
	r2 := m.CreateRegion(2, 30, 40)
	m.CreateVertices([]r3.Vec{{}, {X: 1}, {Y: 1}})
	m.CreateFace([]int{0, 1, 2}, r2)

	m.DeleteRegion(r1) // moves r2 into slot 1
	if got, want := m.RegionCount(), 2; got != want {
		t.Fatalf("RegionCount = %d, want %d", got, want)
	}
	if m.FaceRegion(0) != 1 {
		t.Errorf("face region = %d, want remapped 1", m.FaceRegion(0))
	}
	if m.RegionPhase(1) != 2 || m.RegionVolume(1) != 30 {
		t.Error("moved region lost its attributes")
	}
	if math.Abs(m.RegionSurfaceArea(1)-40) > 0 {
		t.Error("moved region lost its surface area")
	}
}
