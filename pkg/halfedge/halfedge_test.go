package halfedge

import "testing"

// tetrahedron builds a closed tetrahedron over four vertices.
func tetrahedron(t *testing.T) *Topology {
	t.Helper()
	topo := New()
	topo.CreateVertices(4)
	for _, loop := range [][]int{{0, 1, 3}, {2, 0, 3}, {0, 2, 1}, {1, 2, 3}} {
		topo.CreateFaceAndEdges(loop)
	}
	if !topo.ConnectOppositeHalfedges() {
		t.Fatal("tetrahedron should be closable")
	}
	return topo
}

func checkInvariants(t *testing.T, topo *Topology) {
	t.Helper()
	for e := 0; e < topo.EdgeCount(); e++ {
		if next := topo.NextFaceEdge(e); topo.PrevFaceEdge(next) != e {
			t.Errorf("edge %d: prev(next) = %d, want %d", e, topo.PrevFaceEdge(next), e)
		}
		if topo.AdjacentFace(e) != topo.AdjacentFace(topo.NextFaceEdge(e)) {
			t.Errorf("edge %d: face changes along cycle", e)
		}
		if opp := topo.OppositeEdge(e); opp != InvalidIndex {
			if topo.OppositeEdge(opp) != e {
				t.Errorf("edge %d: opposite link not symmetric", e)
			}
			if topo.Vertex1(e) != topo.Vertex2(opp) || topo.Vertex2(e) != topo.Vertex1(opp) {
				t.Errorf("edge %d: opposite edge does not run in reverse", e)
			}
		}
	}
	for v := 0; v < topo.VertexCount(); v++ {
		for e := topo.FirstVertexEdge(v); e != InvalidIndex; e = topo.NextVertexEdge(e) {
			if topo.Vertex1(e) != v {
				t.Errorf("vertex %d: edge %d in list originates at %d", v, e, topo.Vertex1(e))
			}
		}
	}
	for f := 0; f < topo.FaceCount(); f++ {
		if first := topo.FirstFaceEdge(f); first != InvalidIndex && topo.AdjacentFace(first) != f {
			t.Errorf("face %d: first edge belongs to face %d", f, topo.AdjacentFace(first))
		}
	}
}

func TestTetrahedron(t *testing.T) {
	topo := tetrahedron(t)

	if got, want := topo.VertexCount(), 4; got != want {
		t.Errorf("VertexCount = %d, want %d", got, want)
	}
	if got, want := topo.FaceCount(), 4; got != want {
		t.Errorf("FaceCount = %d, want %d", got, want)
	}
	if got, want := topo.EdgeCount(), 12; got != want {
		t.Errorf("EdgeCount = %d, want %d", got, want)
	}
	if !topo.IsClosed() {
		t.Error("IsClosed = false, want true")
	}
	for v := 0; v < 4; v++ {
		if got := topo.VertexEdgeCount(v); got != 3 {
			t.Errorf("VertexEdgeCount(%d) = %d, want 3", v, got)
		}
	}
	for f := 0; f < 4; f++ {
		if got := topo.FaceEdgeCount(f); got != 3 {
			t.Errorf("FaceEdgeCount(%d) = %d, want 3", f, got)
		}
	}
	checkInvariants(t, topo)
}

func TestFindEdge(t *testing.T) {
	topo := tetrahedron(t)
	e := topo.FindEdge(0, 1, 3)
	if e == InvalidIndex {
		t.Fatal("FindEdge(0, 1, 3) = InvalidIndex")
	}
	if topo.Vertex1(e) != 1 || topo.Vertex2(e) != 3 {
		t.Errorf("FindEdge returned edge %d -> %d, want 1 -> 3", topo.Vertex1(e), topo.Vertex2(e))
	}
	if topo.FindEdge(0, 1, 2) != InvalidIndex {
		t.Error("FindEdge(0, 1, 2) should not exist in face 0")
	}
}

func TestDeleteFace(t *testing.T) {
	topo := tetrahedron(t)
	topo.DeleteFace(1)

	if got, want := topo.FaceCount(), 3; got != want {
		t.Errorf("FaceCount = %d, want %d", got, want)
	}
	if got, want := topo.EdgeCount(), 9; got != want {
		t.Errorf("EdgeCount = %d, want %d", got, want)
	}
	if topo.IsClosed() {
		t.Error("IsClosed = true after removing a face, want false")
	}
	open := 0
	for e := 0; e < topo.EdgeCount(); e++ {
		if !topo.HasOppositeEdge(e) {
			open++
		}
	}
	if open != 3 {
		t.Errorf("open boundary edges = %d, want 3", open)
	}
	checkInvariants(t, topo)
}

func TestDeleteVertex(t *testing.T) {
	topo := New()
	topo.CreateVertices(3)
	topo.CreateFaceAndEdges([]int{0, 1, 2})
	topo.CreateVertex() // isolated vertex 3
	topo.CreateVertex() // vertex 4, joined to 0 by a two-edge face
	face := topo.CreateFace()
	topo.CreateEdge(4, 0, face)
	topo.CreateEdge(0, 4, face)

	topo.DeleteVertex(3) // moves vertex 4 into slot 3
	if got, want := topo.VertexCount(), 4; got != want {
		t.Fatalf("VertexCount = %d, want %d", got, want)
	}
	moved := topo.FirstVertexEdge(3)
	if moved == InvalidIndex {
		t.Fatal("moved vertex lost its edge list")
	}
	if topo.Vertex1(moved) != 3 {
		t.Errorf("moved vertex edge originates at %d, want 3", topo.Vertex1(moved))
	}
	if topo.Vertex2(topo.NextFaceEdge(moved)) != 3 {
		t.Error("incoming edge of moved vertex was not updated")
	}
	checkInvariants(t, topo)
}

func TestSplitEdge(t *testing.T) {
	// Two triangles sharing the edge 1-2.
	topo := New()
	topo.CreateVertices(4)
	topo.CreateFaceAndEdges([]int{0, 1, 2})
	topo.CreateFaceAndEdges([]int{2, 1, 3})
	topo.ConnectOppositeHalfedges()

	edge := topo.FindEdge(0, 1, 2)
	if edge == InvalidIndex {
		t.Fatal("shared edge not found")
	}
	mid := topo.CreateVertex()
	topo.SplitEdge(edge, mid)

	if got, want := topo.EdgeCount(), 8; got != want {
		t.Errorf("EdgeCount = %d, want %d", got, want)
	}
	if got, want := topo.FaceEdgeCount(0), 4; got != want {
		t.Errorf("FaceEdgeCount(0) = %d, want %d", got, want)
	}
	if got, want := topo.FaceEdgeCount(1), 4; got != want {
		t.Errorf("FaceEdgeCount(1) = %d, want %d", got, want)
	}
	if topo.Vertex2(edge) != mid {
		t.Errorf("split edge leads to %d, want new vertex %d", topo.Vertex2(edge), mid)
	}
	if got := topo.VertexEdgeCount(mid); got != 2 {
		t.Errorf("VertexEdgeCount(mid) = %d, want 2", got)
	}
	checkInvariants(t, topo)
}

func TestFlipFaces(t *testing.T) {
	topo := tetrahedron(t)
	topo.FlipFaces()

	// Edge 0 was created as 0 -> 1 and must now run 1 -> 0.
	if topo.Vertex1(0) != 1 || topo.Vertex2(0) != 0 {
		t.Errorf("edge 0 runs %d -> %d after flip, want 1 -> 0", topo.Vertex1(0), topo.Vertex2(0))
	}
	if !topo.IsClosed() {
		t.Error("mesh no longer closed after flip")
	}
	for f := 0; f < topo.FaceCount(); f++ {
		if got := topo.FaceEdgeCount(f); got != 3 {
			t.Errorf("FaceEdgeCount(%d) = %d, want 3", f, got)
		}
	}
	checkInvariants(t, topo)
}

func TestVisitVertexManifold(t *testing.T) {
	t.Run("closed fan", func(t *testing.T) {
		topo := tetrahedron(t)
		var edges []int
		closed := topo.VisitVertexManifold(0, func(e int) { edges = append(edges, e) })
		if !closed {
			t.Error("closed = false, want true")
		}
		if len(edges) != 3 {
			t.Errorf("visited %d edges, want 3", len(edges))
		}
	})
	t.Run("open boundary", func(t *testing.T) {
		topo := New()
		topo.CreateVertices(3)
		topo.CreateFaceAndEdges([]int{0, 1, 2})
		if closed := topo.VisitVertexManifold(0, func(int) {}); closed {
			t.Error("closed = true on a lone triangle, want false")
		}
	})
}

func TestMakeManifold(t *testing.T) {
	// Two tetrahedra joined at vertex 0 only.
	topo := New()
	topo.CreateVertices(7)
	for _, loop := range [][]int{{0, 1, 3}, {2, 0, 3}, {0, 2, 1}, {1, 2, 3}} {
		topo.CreateFaceAndEdges(loop)
	}
	for _, loop := range [][]int{{0, 4, 6}, {5, 0, 6}, {0, 5, 4}, {4, 5, 6}} {
		topo.CreateFaceAndEdges(loop)
	}
	if !topo.ConnectOppositeHalfedges() {
		t.Fatal("mesh should be closable")
	}

	var duplicated []int
	split := topo.MakeManifold(func(v int) { duplicated = append(duplicated, v) })

	if split != 1 {
		t.Errorf("split vertices = %d, want 1", split)
	}
	if len(duplicated) != 1 || duplicated[0] != 0 {
		t.Errorf("duplicated = %v, want [0]", duplicated)
	}
	if got, want := topo.VertexCount(), 8; got != want {
		t.Errorf("VertexCount = %d, want %d", got, want)
	}
	if got := topo.VertexEdgeCount(0); got != 3 {
		t.Errorf("VertexEdgeCount(0) = %d, want 3", got)
	}
	if got := topo.VertexEdgeCount(7); got != 3 {
		t.Errorf("VertexEdgeCount(7) = %d, want 3", got)
	}
	if !topo.IsClosed() {
		t.Error("mesh no longer closed after MakeManifold")
	}
	checkInvariants(t, topo)
}

func TestCloneSharing(t *testing.T) {
	topo := tetrahedron(t)
	if topo.Shared() {
		t.Error("fresh topology reported as shared")
	}
	topo.Retain()
	if !topo.Shared() {
		t.Error("retained topology not reported as shared")
	}
	clone := topo.Clone()
	topo.Release()
	if topo.Shared() {
		t.Error("topology still shared after release")
	}
	clone.DeleteFace(0)
	if topo.FaceCount() != 4 {
		t.Error("mutating the clone changed the original")
	}
}
