// Package halfedge implements a polygonal mesh topology stored as a
// half-edge data structure.
//
// Each half-edge is adjacent to exactly one face and knows the next and
// previous half-edges around that face, the vertex it leads to, its
// opposite half-edge (if the mesh is closed at that edge) and the next
// half-edge in the linked list of half-edges leaving the same vertex.
// The structure stores topology only; vertex coordinates and other
// per-element data live in separate property columns kept in lock-step
// by the owning surface mesh.
package halfedge

// InvalidIndex marks an unset vertex/edge/face reference.
const InvalidIndex = -1

// Topology holds the connectivity of vertices, half-edges and faces.
// All elements are addressed by dense int indices. Deleting an element
// moves the last element into its slot (swap-with-last), so indices are
// not stable across deletions.
type Topology struct {
	refs int // number of logical owners, for copy-on-write sharing

	// Per-vertex: first outgoing half-edge.
	vertexEdges []int

	// Per-face: first half-edge of the cycle, and the opposite face.
	faceEdges     []int
	oppositeFaces []int

	// Per-half-edge.
	edgeFaces         []int // adjacent face
	edgeVertices      []int // vertex the half-edge leads to
	nextVertexEdges   []int // next in the vertex' list of outgoing edges
	nextFaceEdges     []int // next in the face cycle
	prevFaceEdges     []int // previous in the face cycle
	oppositeEdges     []int // reverse half-edge, InvalidIndex at open boundaries
	nextManifoldEdges []int // next incident manifold sheet around the edge
}

// New returns an empty topology owned by a single holder.
func New() *Topology {
	return &Topology{refs: 1}
}

// Retain registers an additional logical owner of this topology.
// Mutating a topology with more than one owner is a programmer error;
// owners must replace their reference with Clone() first.
func (t *Topology) Retain() *Topology {
	t.refs++
	return t
}

// Release drops one logical owner.
func (t *Topology) Release() {
	if t.refs <= 0 {
		panic("halfedge: Release without matching owner")
	}
	t.refs--
}

// Shared reports whether more than one owner currently references the topology.
func (t *Topology) Shared() bool {
	return t.refs > 1
}

// Clone returns a deep copy owned by a single holder.
func (t *Topology) Clone() *Topology {
	c := &Topology{refs: 1}
	c.vertexEdges = append([]int(nil), t.vertexEdges...)
	c.faceEdges = append([]int(nil), t.faceEdges...)
	c.oppositeFaces = append([]int(nil), t.oppositeFaces...)
	c.edgeFaces = append([]int(nil), t.edgeFaces...)
	c.edgeVertices = append([]int(nil), t.edgeVertices...)
	c.nextVertexEdges = append([]int(nil), t.nextVertexEdges...)
	c.nextFaceEdges = append([]int(nil), t.nextFaceEdges...)
	c.prevFaceEdges = append([]int(nil), t.prevFaceEdges...)
	c.oppositeEdges = append([]int(nil), t.oppositeEdges...)
	c.nextManifoldEdges = append([]int(nil), t.nextManifoldEdges...)
	return c
}

// Clear removes all faces, edges and vertices.
func (t *Topology) Clear() {
	t.vertexEdges = t.vertexEdges[:0]
	t.faceEdges = t.faceEdges[:0]
	t.oppositeFaces = t.oppositeFaces[:0]
	t.edgeFaces = t.edgeFaces[:0]
	t.edgeVertices = t.edgeVertices[:0]
	t.nextVertexEdges = t.nextVertexEdges[:0]
	t.nextFaceEdges = t.nextFaceEdges[:0]
	t.prevFaceEdges = t.prevFaceEdges[:0]
	t.oppositeEdges = t.oppositeEdges[:0]
	t.nextManifoldEdges = t.nextManifoldEdges[:0]
}

// VertexCount returns the number of vertices.
func (t *Topology) VertexCount() int { return len(t.vertexEdges) }

// FaceCount returns the number of faces.
func (t *Topology) FaceCount() int { return len(t.faceEdges) }

// EdgeCount returns the number of half-edges.
func (t *Topology) EdgeCount() int { return len(t.edgeFaces) }

// CreateVertex adds a new isolated vertex and returns its index.
func (t *Topology) CreateVertex() int {
	t.vertexEdges = append(t.vertexEdges, InvalidIndex)
	return len(t.vertexEdges) - 1
}

// CreateVertices adds n new isolated vertices.
func (t *Topology) CreateVertices(n int) {
	for i := 0; i < n; i++ {
		t.vertexEdges = append(t.vertexEdges, InvalidIndex)
	}
}

// CreateFace adds a new face without any edges and returns its index.
func (t *Topology) CreateFace() int {
	t.faceEdges = append(t.faceEdges, InvalidIndex)
	t.oppositeFaces = append(t.oppositeFaces, InvalidIndex)
	return len(t.faceEdges) - 1
}

// CreateFaceAndEdges adds a new face bounded by the given vertex loop,
// creating the connecting half-edges as well. The face's first edge
// originates at vertices[0].
func (t *Topology) CreateFaceAndEdges(vertices []int) int {
	if len(vertices) < 2 {
		panic("halfedge: a face needs at least two vertices")
	}
	face := t.CreateFace()
	for i := 0; i < len(vertices); i++ {
		t.CreateEdge(vertices[i], vertices[(i+1)%len(vertices)], face)
	}
	return face
}

// CreateEdge adds a new half-edge from vertex1 to vertex2 adjacent to the
// given face, appending it at the end of the face's edge cycle.
// Returns the index of the new half-edge.
func (t *Topology) CreateEdge(vertex1, vertex2, face int) int {
	edge := len(t.edgeFaces)
	t.edgeFaces = append(t.edgeFaces, face)
	t.edgeVertices = append(t.edgeVertices, vertex2)

	// Insert into the linked list of edges leaving vertex1.
	t.nextVertexEdges = append(t.nextVertexEdges, t.vertexEdges[vertex1])
	t.vertexEdges[vertex1] = edge

	// Insert into the face's edge cycle.
	if first := t.faceEdges[face]; first != InvalidIndex {
		last := t.prevFaceEdges[first]
		t.nextFaceEdges = append(t.nextFaceEdges, first)
		t.prevFaceEdges = append(t.prevFaceEdges, last)
		t.nextFaceEdges[last] = edge
		t.prevFaceEdges[first] = edge
	} else {
		t.nextFaceEdges = append(t.nextFaceEdges, edge)
		t.prevFaceEdges = append(t.prevFaceEdges, edge)
		t.faceEdges[face] = edge
	}

	t.oppositeEdges = append(t.oppositeEdges, InvalidIndex)
	t.nextManifoldEdges = append(t.nextManifoldEdges, InvalidIndex)
	return edge
}

// CreateEdgeAfter adds a new half-edge from vertex1 to vertex2 adjacent
// to the given face, inserted into the face cycle directly after the
// half-edge afterEdge.
func (t *Topology) CreateEdgeAfter(vertex1, vertex2, face, afterEdge int) int {
	edge := len(t.edgeFaces)
	t.edgeFaces = append(t.edgeFaces, face)
	t.edgeVertices = append(t.edgeVertices, vertex2)

	t.nextVertexEdges = append(t.nextVertexEdges, t.vertexEdges[vertex1])
	t.vertexEdges[vertex1] = edge

	succ := t.nextFaceEdges[afterEdge]
	t.nextFaceEdges = append(t.nextFaceEdges, succ)
	t.prevFaceEdges = append(t.prevFaceEdges, afterEdge)
	t.nextFaceEdges[afterEdge] = edge
	t.prevFaceEdges[succ] = edge
	if t.faceEdges[face] == InvalidIndex {
		t.faceEdges[face] = edge
	}

	t.oppositeEdges = append(t.oppositeEdges, InvalidIndex)
	t.nextManifoldEdges = append(t.nextManifoldEdges, InvalidIndex)
	return edge
}

// CreateOppositeEdge creates a half-edge running in reverse direction of
// the given edge, adjacent to the given face, and links the two as
// opposites.
func (t *Topology) CreateOppositeEdge(edge, face int) int {
	if t.HasOppositeEdge(edge) {
		panic("halfedge: edge already has an opposite")
	}
	opp := t.CreateEdge(t.Vertex2(edge), t.Vertex1(edge), face)
	t.LinkOppositeEdges(edge, opp)
	return opp
}

// SplitEdge inserts the given vertex in the middle of an existing edge
// (and of its opposite edge, if present). The half of the original edge
// leading to the new vertex keeps the original edge index.
func (t *Topology) SplitEdge(edge, vertex int) {
	oldV2 := t.Vertex2(edge)
	t.edgeVertices[edge] = vertex
	cont := t.CreateEdgeAfter(vertex, oldV2, t.AdjacentFace(edge), edge)

	opp := t.OppositeEdge(edge)
	if opp == InvalidIndex {
		return
	}
	t.edgeVertices[opp] = vertex
	oppCont := t.CreateEdgeAfter(vertex, t.Vertex2(t.prevFaceEdges[edge]), t.AdjacentFace(opp), opp)
	// Re-cross the opposite links: edge..vertex pairs with oppCont,
	// cont pairs with the shortened opp.
	t.oppositeEdges[edge] = oppCont
	t.oppositeEdges[oppCont] = edge
	t.oppositeEdges[cont] = opp
	t.oppositeEdges[opp] = cont
}

// FirstVertexEdge returns the first outgoing half-edge of a vertex, or
// InvalidIndex for an isolated vertex.
func (t *Topology) FirstVertexEdge(vertex int) int { return t.vertexEdges[vertex] }

// NextVertexEdge returns the successor of edge in its origin vertex'
// list of outgoing half-edges.
func (t *Topology) NextVertexEdge(edge int) int { return t.nextVertexEdges[edge] }

// FirstFaceEdge returns the leading half-edge of a face's cycle.
func (t *Topology) FirstFaceEdge(face int) int { return t.faceEdges[face] }

// SetFirstFaceEdge makes edge the leading half-edge of the face's cycle.
func (t *Topology) SetFirstFaceEdge(face, edge int) { t.faceEdges[face] = edge }

// SecondFaceEdge returns the half-edge following the leading half-edge.
func (t *Topology) SecondFaceEdge(face int) int { return t.nextFaceEdges[t.faceEdges[face]] }

// NextFaceEdge returns the successor of edge along its face's cycle.
func (t *Topology) NextFaceEdge(edge int) int { return t.nextFaceEdges[edge] }

// SetNextFaceEdge overwrites the face-cycle successor of edge.
func (t *Topology) SetNextFaceEdge(edge, next int) { t.nextFaceEdges[edge] = next }

// PrevFaceEdge returns the predecessor of edge along its face's cycle.
func (t *Topology) PrevFaceEdge(edge int) int { return t.prevFaceEdges[edge] }

// SetPrevFaceEdge overwrites the face-cycle predecessor of edge.
func (t *Topology) SetPrevFaceEdge(edge, prev int) { t.prevFaceEdges[edge] = prev }

// Vertex1 returns the vertex the half-edge originates from.
func (t *Topology) Vertex1(edge int) int { return t.edgeVertices[t.prevFaceEdges[edge]] }

// Vertex2 returns the vertex the half-edge leads to.
func (t *Topology) Vertex2(edge int) int { return t.edgeVertices[edge] }

// AdjacentFace returns the face the half-edge borders.
func (t *Topology) AdjacentFace(edge int) int { return t.edgeFaces[edge] }

// SetAdjacentFace reassigns the face the half-edge borders.
func (t *Topology) SetAdjacentFace(edge, face int) { t.edgeFaces[edge] = face }

// FirstFaceVertex returns the origin of the face's leading half-edge.
func (t *Topology) FirstFaceVertex(face int) int { return t.Vertex1(t.faceEdges[face]) }

// SecondFaceVertex returns the destination of the face's leading half-edge.
func (t *Topology) SecondFaceVertex(face int) int { return t.Vertex2(t.faceEdges[face]) }

// ThirdFaceVertex returns the destination of the face's second half-edge.
func (t *Topology) ThirdFaceVertex(face int) int { return t.Vertex2(t.SecondFaceEdge(face)) }

// OppositeEdge returns the reverse half-edge, or InvalidIndex at an open
// boundary.
func (t *Topology) OppositeEdge(edge int) int { return t.oppositeEdges[edge] }

// HasOppositeEdge reports whether the half-edge is linked to a reverse
// half-edge.
func (t *Topology) HasOppositeEdge(edge int) bool { return t.oppositeEdges[edge] != InvalidIndex }

// OppositeFace returns the face linked as the opposite of face, or
// InvalidIndex.
func (t *Topology) OppositeFace(face int) int { return t.oppositeFaces[face] }

// HasOppositeFace reports whether the face is linked to an opposite face.
func (t *Topology) HasOppositeFace(face int) bool { return t.oppositeFaces[face] != InvalidIndex }

// NextManifoldEdge returns the next incident manifold sheet when going
// around the given half-edge, or InvalidIndex.
func (t *Topology) NextManifoldEdge(edge int) int { return t.nextManifoldEdges[edge] }

// SetNextManifoldEdge records the next incident manifold sheet around the
// given half-edge.
func (t *Topology) SetNextManifoldEdge(edge, next int) { t.nextManifoldEdges[edge] = next }

// CountManifolds determines the number of manifold sheets incident on a
// half-edge. Returns 0 if no manifold links are present.
func (t *Topology) CountManifolds(edge int) int {
	e := t.NextManifoldEdge(edge)
	if e == InvalidIndex {
		return 0
	}
	count := 1
	for ; e != edge; e = t.NextManifoldEdge(e) {
		count++
	}
	return count
}

// LinkOppositeEdges wires two half-edges as each other's reverse.
// The edges must run between the same pair of vertices in opposite
// directions and must not be linked yet.
func (t *Topology) LinkOppositeEdges(edge1, edge2 int) {
	if t.HasOppositeEdge(edge1) || t.HasOppositeEdge(edge2) {
		panic("halfedge: edge already has an opposite")
	}
	t.oppositeEdges[edge1] = edge2
	t.oppositeEdges[edge2] = edge1
}

// LinkOppositeFaces wires two faces as each other's opposite.
func (t *Topology) LinkOppositeFaces(face1, face2 int) {
	if t.HasOppositeFace(face1) || t.HasOppositeFace(face2) {
		panic("halfedge: face already has an opposite")
	}
	t.oppositeFaces[face1] = face2
	t.oppositeFaces[face2] = face1
}

// VertexEdgeCount counts the outgoing half-edges of a vertex.
func (t *Topology) VertexEdgeCount(vertex int) int {
	n := 0
	for e := t.vertexEdges[vertex]; e != InvalidIndex; e = t.nextVertexEdges[e] {
		n++
	}
	return n
}

// FaceEdgeCount counts the half-edges of a face's cycle.
func (t *Topology) FaceEdgeCount(face int) int {
	first := t.faceEdges[face]
	if first == InvalidIndex {
		return 0
	}
	n := 0
	e := first
	for {
		n++
		e = t.nextFaceEdges[e]
		if e == first {
			return n
		}
	}
}

// FindEdge searches the half-edges of a face for one connecting the two
// given vertices, returning InvalidIndex if there is none.
func (t *Topology) FindEdge(face, v1, v2 int) int {
	first := t.faceEdges[face]
	e := first
	ev1 := t.Vertex1(e)
	for {
		ev2 := t.Vertex2(e)
		if ev1 == v1 && ev2 == v2 {
			return e
		}
		e = t.nextFaceEdges[e]
		ev1 = ev2
		if e == first {
			return InvalidIndex
		}
	}
}

// VisitVertexManifold walks the fan of half-edges leaving the vertex that
// belong to the same manifold sheet as its first outgoing half-edge,
// calling fn for each one. It reports whether the walk returned to the
// start (a closed fan); the walk stops early with closed=false if it
// runs off an open boundary. The walk is bounded by the edge count, so
// it terminates even on corrupted topology.
func (t *Topology) VisitVertexManifold(vertex int, fn func(edge int)) (closed bool) {
	first := t.vertexEdges[vertex]
	if first == InvalidIndex {
		return false
	}
	e := first
	for i := 0; i <= t.EdgeCount(); i++ {
		fn(e)
		prev := t.prevFaceEdges[e]
		e = t.oppositeEdges[prev]
		if e == InvalidIndex {
			return false
		}
		if e == first {
			return true
		}
	}
	panic("halfedge: vertex manifold walk did not terminate")
}

// ConnectOppositeHalfedges tries to wire every half-edge with a reverse
// half-edge. It reports whether the mesh is closed afterwards, i.e.
// every half-edge found an opposite.
func (t *Topology) ConnectOppositeHalfedges() bool {
	closed := true
	for edge := 0; edge < t.EdgeCount(); edge++ {
		if t.oppositeEdges[edge] != InvalidIndex {
			continue
		}
		// Search the edge list of the destination vertex for a
		// half-edge leading back to the origin.
		v1 := t.Vertex1(edge)
		found := false
		for e := t.vertexEdges[t.Vertex2(edge)]; e != InvalidIndex; e = t.nextVertexEdges[e] {
			if t.Vertex2(e) == v1 && !t.HasOppositeEdge(e) {
				t.oppositeEdges[edge] = e
				t.oppositeEdges[e] = edge
				found = true
				break
			}
		}
		if !found {
			closed = false
		}
	}
	return closed
}

// ConnectVertexOpposites links each half-edge leaving the given vertex to
// a reverse half-edge leading back to it. All required reverse
// half-edges must exist.
func (t *Topology) ConnectVertexOpposites(vertex int) {
	for e := t.vertexEdges[vertex]; e != InvalidIndex; e = t.nextVertexEdges[e] {
		if t.HasOppositeEdge(e) {
			continue
		}
		for o := t.vertexEdges[t.Vertex2(e)]; o != InvalidIndex; o = t.nextVertexEdges[o] {
			if t.Vertex2(o) == vertex && !t.HasOppositeEdge(o) {
				t.LinkOppositeEdges(e, o)
				break
			}
		}
		if !t.HasOppositeEdge(e) {
			panic("halfedge: no reverse half-edge found at vertex")
		}
	}
}

// IsClosed reports whether every half-edge is linked to an opposite
// half-edge, i.e. the mesh is a closed two-dimensional manifold.
func (t *Topology) IsClosed() bool {
	for _, opp := range t.oppositeEdges {
		if opp == InvalidIndex {
			return false
		}
	}
	return true
}

// FlipFaces inverts the orientation of every face in the mesh.
func (t *Topology) FlipFaces() {
	for _, first := range t.faceEdges {
		if first == InvalidIndex {
			continue
		}
		e := first
		for {
			t.transferEdgeToVertex(e, t.Vertex1(e), t.Vertex2(e), false)
			e = t.nextFaceEdges[e]
			if e == first {
				break
			}
		}
		v1 := t.Vertex1(e)
		for {
			t.edgeVertices[e], v1 = v1, t.edgeVertices[e]
			t.nextFaceEdges[e], t.prevFaceEdges[e] = t.prevFaceEdges[e], t.nextFaceEdges[e]
			// next/prev are already swapped here, so the old walking
			// direction continues through the prev pointer.
			e = t.prevFaceEdges[e]
			if e == first {
				break
			}
		}
	}
}

// TransferFaceBoundaryToVertex moves the boundary corner formed by the
// given edge and its successor onto a different vertex.
func (t *Topology) TransferFaceBoundaryToVertex(edge, newVertex int) {
	oldVertex := t.Vertex2(edge)
	if newVertex == oldVertex {
		return
	}
	next := t.nextFaceEdges[edge]
	t.removeEdgeFromVertex(oldVertex, next)
	t.addEdgeToVertex(newVertex, next)
	t.edgeVertices[edge] = newVertex
}

// MakeManifold duplicates vertices that are shared by more than one
// manifold sheet. The mesh must be closed. For every duplicated vertex
// dup(originalVertex) is called once so the owner can copy per-vertex
// data to the new last vertex. Returns the number of split vertices.
func (t *Topology) MakeManifold(dup func(originalVertex int)) int {
	numShared := 0
	oldVertexCount := t.VertexCount()
	var visited []int
	for vertex := 0; vertex < oldVertexCount; vertex++ {
		numEdges := t.VertexEdgeCount(vertex)
		if numEdges == 0 {
			continue
		}

		// Walk the manifold fan of the first outgoing edge.
		firstEdge := t.vertexEdges[vertex]
		visited = visited[:0]
		e := firstEdge
		for {
			visited = append(visited, e)
			e = t.oppositeEdges[t.prevFaceEdges[e]]
			if e == InvalidIndex {
				panic("halfedge: MakeManifold requires a closed mesh")
			}
			if e == firstEdge {
				break
			}
		}
		if len(visited) == numEdges {
			continue // vertex belongs to a single sheet
		}

		for len(visited) != numEdges {
			// Create a duplicate vertex that takes the next
			// unvisited sheet.
			newVertex := t.CreateVertex()
			start := InvalidIndex
			for e := t.vertexEdges[vertex]; e != InvalidIndex; e = t.nextVertexEdges[e] {
				if !containsEdge(visited, e) {
					start = e
					break
				}
			}
			if start == InvalidIndex {
				panic("halfedge: inconsistent vertex edge list")
			}
			e := start
			for {
				visited = append(visited, e)
				t.transferEdgeToVertex(e, vertex, newVertex, true)
				e = t.oppositeEdges[t.prevFaceEdges[e]]
				if e == start {
					break
				}
			}
			dup(vertex)
		}
		numShared++
	}
	return numShared
}

func containsEdge(edges []int, edge int) bool {
	for _, e := range edges {
		if e == edge {
			return true
		}
	}
	return false
}

// transferEdgeToVertex disconnects a half-edge from one vertex and adds
// it to the outgoing list of another. With updateOpposite the opposite
// half-edge's destination is rewritten as well.
func (t *Topology) transferEdgeToVertex(edge, oldVertex, newVertex int, updateOpposite bool) {
	if updateOpposite {
		opp := t.oppositeEdges[edge]
		t.edgeVertices[opp] = newVertex
	}
	t.removeEdgeFromVertex(oldVertex, edge)
	t.addEdgeToVertex(newVertex, edge)
}

func (t *Topology) addEdgeToVertex(vertex, edge int) {
	t.nextVertexEdges[edge] = t.vertexEdges[vertex]
	t.vertexEdges[vertex] = edge
}

func (t *Topology) removeEdgeFromVertex(vertex, edge int) {
	if t.vertexEdges[vertex] == edge {
		t.vertexEdges[vertex] = t.nextVertexEdges[edge]
		t.nextVertexEdges[edge] = InvalidIndex
		return
	}
	for e := t.vertexEdges[vertex]; e != InvalidIndex; e = t.nextVertexEdges[e] {
		if t.nextVertexEdges[e] == edge {
			t.nextVertexEdges[e] = t.nextVertexEdges[edge]
			t.nextVertexEdges[edge] = InvalidIndex
			return
		}
	}
	panic("halfedge: edge not found in vertex edge list")
}

// DeleteFace removes a face and its half-edges from the mesh, leaving a
// hole behind. Opposite links of the deleted half-edges are cleared.
// The last face is moved into the freed slot.
func (t *Topology) DeleteFace(face int) {
	if t.HasOppositeFace(face) {
		panic("halfedge: cannot delete a face that is linked to an opposite face")
	}

	if first := t.faceEdges[face]; first != InvalidIndex {
		// Disconnect the face's edges from their vertices and
		// opposite edges.
		e := first
		for {
			t.removeEdgeFromVertex(t.Vertex1(e), e)
			if opp := t.oppositeEdges[e]; opp != InvalidIndex && opp != e {
				t.oppositeEdges[opp] = InvalidIndex
				t.oppositeEdges[e] = InvalidIndex
			}
			e = t.nextFaceEdges[e]
			if e == first {
				break
			}
		}
		// Break the cycle, then delete edge by edge.
		t.nextFaceEdges[t.prevFaceEdges[e]] = InvalidIndex
		for e != InvalidIndex {
			e = t.deleteEdge(e)
		}
	}

	last := t.FaceCount() - 1
	if face < last {
		// Move the last face into the freed slot and update all
		// references to it.
		t.faceEdges[face] = t.faceEdges[last]
		start := t.faceEdges[last]
		if start != InvalidIndex {
			e := start
			for {
				t.edgeFaces[e] = face
				e = t.nextFaceEdges[e]
				if e == start {
					break
				}
			}
		}
		t.oppositeFaces[face] = t.oppositeFaces[last]
		if of := t.oppositeFaces[last]; of != InvalidIndex {
			t.oppositeFaces[of] = face
		}
	}
	t.faceEdges = t.faceEdges[:last]
	t.oppositeFaces = t.oppositeFaces[:last]
}

// deleteEdge removes a half-edge that is already disconnected from its
// vertex list and opposite edge. Returns the successor along the face
// boundary (before any index moves), or InvalidIndex at the end.
func (t *Topology) deleteEdge(edge int) int {
	successor := t.nextFaceEdges[edge]
	if successor == edge {
		successor = InvalidIndex
	}
	last := t.EdgeCount() - 1
	if edge < last {
		// Move the last half-edge into the freed slot.
		t.edgeFaces[edge] = t.edgeFaces[last]
		t.edgeVertices[edge] = t.edgeVertices[last]
		t.nextVertexEdges[edge] = t.nextVertexEdges[last]
		t.nextFaceEdges[edge] = t.nextFaceEdges[last]
		t.prevFaceEdges[edge] = t.prevFaceEdges[last]
		t.oppositeEdges[edge] = t.oppositeEdges[last]
		t.nextManifoldEdges[edge] = t.nextManifoldEdges[last]

		// Update references to the moved half-edge.
		if opp := t.oppositeEdges[edge]; opp != InvalidIndex {
			t.oppositeEdges[opp] = edge
		}
		if t.nextManifoldEdges[edge] != InvalidIndex {
			// The manifold links form a cycle; redirect the
			// predecessor that still points at the old slot.
			p := edge
			for t.nextManifoldEdges[p] != last {
				p = t.nextManifoldEdges[p]
			}
			t.nextManifoldEdges[p] = edge
		}
		v := t.Vertex1(edge)
		if t.vertexEdges[v] == last {
			t.vertexEdges[v] = edge
		} else {
			for e := t.vertexEdges[v]; e != InvalidIndex; e = t.nextVertexEdges[e] {
				if t.nextVertexEdges[e] == last {
					t.nextVertexEdges[e] = edge
					break
				}
			}
		}
		if face := t.edgeFaces[edge]; face != InvalidIndex && t.faceEdges[face] == last {
			t.faceEdges[face] = edge
		}
		if next := t.nextFaceEdges[edge]; next != InvalidIndex {
			t.prevFaceEdges[next] = edge
		}
		if prev := t.prevFaceEdges[edge]; prev != InvalidIndex {
			t.nextFaceEdges[prev] = edge
		}
		if successor == last {
			successor = edge
		}
	}
	t.edgeFaces = t.edgeFaces[:last]
	t.edgeVertices = t.edgeVertices[:last]
	t.nextVertexEdges = t.nextVertexEdges[:last]
	t.nextFaceEdges = t.nextFaceEdges[:last]
	t.prevFaceEdges = t.prevFaceEdges[:last]
	t.oppositeEdges = t.oppositeEdges[:last]
	t.nextManifoldEdges = t.nextManifoldEdges[:last]
	return successor
}

// DeleteVertex removes a vertex that has no incident edges. The last
// vertex is moved into the freed slot and all edges referring to it are
// updated.
func (t *Topology) DeleteVertex(vertex int) {
	if t.vertexEdges[vertex] != InvalidIndex {
		panic("halfedge: cannot delete a connected vertex")
	}
	last := t.VertexCount() - 1
	if vertex < last {
		t.vertexEdges[vertex] = t.vertexEdges[last]
		// Incoming edges of the moved vertex are the predecessors of
		// its outgoing edges.
		for e := t.vertexEdges[vertex]; e != InvalidIndex; e = t.nextVertexEdges[e] {
			pe := t.prevFaceEdges[e]
			t.edgeVertices[pe] = vertex
		}
	}
	t.vertexEdges = t.vertexEdges[:last]
}
