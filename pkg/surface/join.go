package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/property"
)

// ComputeFaceNormal calculates the outward unit normal of a (generally
// non-planar) polygonal face by fan-triangulating it around its first
// vertex. Edges crossing a periodic boundary are unwrapped with the
// minimum-image convention.
func (m *Mesh) ComputeFaceNormal(face int) r3.Vec {
	topo := m.topo
	var normal r3.Vec

	faceEdge := topo.FirstFaceEdge(face)
	edge1 := topo.NextFaceEdge(faceEdge)
	edge2 := topo.NextFaceEdge(edge1)
	base := m.vertexCoords.At(topo.Vertex2(faceEdge))
	e1 := m.cell.WrapVector(r3.Sub(m.vertexCoords.At(topo.Vertex2(edge1)), base))
	for edge2 != faceEdge {
		e2 := m.cell.WrapVector(r3.Sub(m.vertexCoords.At(topo.Vertex2(edge2)), base))
		normal = r3.Add(normal, r3.Cross(e1, e2))
		e1 = e2
		edge2 = topo.NextFaceEdge(edge2)
	}
	return safelyNormalized(normal)
}

// ComputeFaceNormals computes and stores the normal of every face in
// the mesh's face normal column.
func (m *Mesh) ComputeFaceNormals() {
	normals := make([]r3.Vec, m.FaceCount())
	for face := range normals {
		normals[face] = m.ComputeFaceNormal(face)
	}
	m.faceNormals = property.FromSlice(normals)
}

// DefaultJoinAngle is the coplanarity threshold, in radians, that works
// well for merging the triangle soup of an exact convex hull.
const DefaultJoinAngle = 0.01 * math.Pi / 180

// JoinCoplanarFaces merges adjacent faces whose normals deviate by less
// than thresholdAngle (radians) into single polygonal faces, removing
// the shared half-edge pairs. Typically applied to the triangle soup
// produced by ConstructConvexHull to recover large flat facets.
func (m *Mesh) JoinCoplanarFaces(thresholdAngle float64) {
	dotThreshold := math.Cos(thresholdAngle)

	faceNormals := make([]r3.Vec, m.FaceCount())
	for face := range faceNormals {
		faceNormals[face] = m.ComputeFaceNormal(face)
	}

	topo := m.mutableTopology()
	for face := 0; face < m.FaceCount(); {
		nextFace := face + 1
		normal1 := faceNormals[face]
		faceEdge := topo.FirstFaceEdge(face)
		edge := faceEdge
		for {
			oppEdge := topo.OppositeEdge(edge)
			if oppEdge != InvalidIndex {
				adjFace := topo.AdjacentFace(oppEdge)
				// Only merge into higher-numbered neighbors so each
				// pair is considered once.
				if adjFace > face && r3.Dot(normal1, faceNormals[adjFace]) > dotThreshold {
					// Reassign this face's edges to the neighbor.
					for cur := topo.NextFaceEdge(edge); cur != edge; cur = topo.NextFaceEdge(cur) {
						topo.SetAdjacentFace(cur, adjFace)
					}
					// Splice the two cycles together, leaving the
					// shared pair in a detached two-edge cycle that
					// is deleted with the face.
					topo.SetFirstFaceEdge(adjFace, topo.NextFaceEdge(oppEdge))
					topo.SetFirstFaceEdge(face, edge)
					topo.SetNextFaceEdge(topo.PrevFaceEdge(edge), topo.NextFaceEdge(oppEdge))
					topo.SetPrevFaceEdge(topo.NextFaceEdge(oppEdge), topo.PrevFaceEdge(edge))
					topo.SetNextFaceEdge(topo.PrevFaceEdge(oppEdge), topo.NextFaceEdge(edge))
					topo.SetPrevFaceEdge(topo.NextFaceEdge(edge), topo.PrevFaceEdge(oppEdge))
					topo.SetNextFaceEdge(edge, oppEdge)
					topo.SetNextFaceEdge(oppEdge, edge)
					topo.SetPrevFaceEdge(edge, oppEdge)
					topo.SetPrevFaceEdge(oppEdge, edge)
					topo.SetAdjacentFace(oppEdge, face)

					faceNormals[face] = faceNormals[m.FaceCount()-1]
					faceNormals = faceNormals[:m.FaceCount()-1]
					m.DeleteFace(face)
					nextFace = face
					break
				}
			}
			edge = topo.NextFaceEdge(edge)
			if edge == faceEdge {
				break
			}
		}
		face = nextFace
	}
}

// SplitFace divides a face along a new edge running from the head of
// edge1 to the head of edge2, both of which must border the face.
// The part behind the new edge is moved to a newly created face that
// inherits the region; the new half-edge bordering the original face is
// returned.
//
// The two edges must not be adjacent (the cut would be degenerate), and
// the face must not be linked to an opposite face.
func (m *Mesh) SplitFace(edge1, edge2 int) int {
	topo := m.mutableTopology()
	if topo.AdjacentFace(edge1) != topo.AdjacentFace(edge2) {
		panic("surface: SplitFace edges must border the same face")
	}
	if topo.NextFaceEdge(edge1) == edge2 || topo.PrevFaceEdge(edge1) == edge2 {
		panic("surface: SplitFace edges must not be adjacent")
	}
	oldFace := topo.AdjacentFace(edge1)
	if topo.HasOppositeFace(oldFace) {
		panic("surface: cannot split a face that is linked to an opposite face")
	}
	newFace := m.createBareFace(m.faceRegions.At(oldFace))

	v1 := topo.Vertex2(edge1)
	v2 := topo.Vertex2(edge2)
	edge1Successor := topo.NextFaceEdge(edge1)
	edge2Successor := topo.NextFaceEdge(edge2)

	newEdge := topo.CreateEdgeAfter(v1, v2, oldFace, edge1)
	newOppEdge := topo.CreateOppositeEdge(newEdge, newFace)

	// The primary face continues after edge2.
	topo.SetNextFaceEdge(newEdge, edge2Successor)
	topo.SetPrevFaceEdge(edge2Successor, newEdge)

	// The secondary face takes the span edge1Successor..edge2.
	topo.SetNextFaceEdge(edge2, newOppEdge)
	topo.SetPrevFaceEdge(newOppEdge, edge2)
	topo.SetNextFaceEdge(newOppEdge, edge1Successor)
	topo.SetPrevFaceEdge(edge1Successor, newOppEdge)

	for e := edge1Successor; e != newOppEdge; e = topo.NextFaceEdge(e) {
		topo.SetAdjacentFace(e, newFace)
	}
	topo.SetFirstFaceEdge(newFace, newOppEdge)
	topo.SetFirstFaceEdge(oldFace, newEdge)

	return newEdge
}
