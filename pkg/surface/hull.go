package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// plane is an oriented plane in Hessian normal form.
type plane struct {
	normal r3.Vec
	dist   float64
}

func planeFromPoints(p0, p1, p2 r3.Vec) plane {
	n := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
	if l := r3.Norm(n); l > 0 {
		n = r3.Scale(1/l, n)
	}
	return plane{normal: n, dist: r3.Dot(n, p0)}
}

func (pl plane) pointDistance(p r3.Vec) float64 {
	return r3.Dot(pl.normal, p) - pl.dist
}

// facePlane builds the normalized plane through the first three vertices
// of a face.
func (m *Mesh) facePlane(face int) plane {
	t := m.topo
	return planeFromPoints(
		m.vertexCoords.At(t.FirstFaceVertex(face)),
		m.vertexCoords.At(t.SecondFaceVertex(face)),
		m.vertexCoords.At(t.ThirdFaceVertex(face)))
}

// ConstructConvexHull creates a new spatial region bounded by the convex
// hull of the given points and returns its index. Existing mesh
// elements are left untouched; the hull faces are appended. If fewer
// than four points are given, or no four of them span a non-degenerate
// tetrahedron, the region is created empty and no faces are added.
//
// epsilon is the absolute tolerance for the plane-distance and
// orientation tests. Input points may be modified in place.
func (m *Mesh) ConstructConvexHull(points []r3.Vec, epsilon float64) int {
	region := m.CreateRegion(0, 0, 0)

	if len(points) < 4 {
		return region
	}

	originalFaceCount := m.FaceCount()
	originalVertexCount := m.VertexCount()

	// Pick four affinely independent points for the initial
	// tetrahedron, oriented so that its faces point outward.
	var corners [4]int
	var e0, e1, e2 r3.Vec
	n := 1
	for i := 1; i < len(points) && n < 4; i++ {
		switch n {
		case 1:
			e0 = r3.Sub(points[i], points[0])
			corners[1] = i
			if r3.Norm2(e0) > 0 {
				n = 2
			}
		case 2:
			e1 = r3.Sub(points[i], points[0])
			corners[2] = i
			if r3.Norm2(r3.Cross(e0, e1)) > 0 {
				n = 3
			}
		case 3:
			e2 = r3.Sub(points[i], points[0])
			det := r3.Dot(r3.Cross(e0, e1), e2)
			if math.Abs(det) > epsilon {
				corners[3] = i
				if det < 0 {
					corners[0], corners[1] = corners[1], corners[0]
				}
				n = 4
			}
		}
	}
	if n != 4 {
		return region
	}

	var tetverts [4]int
	for i, c := range corners {
		tetverts[i] = m.CreateVertex(points[c])
	}
	m.CreateFace([]int{tetverts[0], tetverts[1], tetverts[3]}, region)
	m.CreateFace([]int{tetverts[2], tetverts[0], tetverts[3]}, region)
	m.CreateFace([]int{tetverts[0], tetverts[2], tetverts[1]}, region)
	m.CreateFace([]int{tetverts[1], tetverts[2], tetverts[3]}, region)
	topo := m.mutableTopology()
	for _, v := range tetverts {
		topo.ConnectVertexOpposites(v)
	}

	// Remove the tetrahedron corners from the input list.
	for i := 1; i <= 4; i++ {
		points[corners[4-i]] = points[len(points)-i]
	}
	points = points[:len(points)-4]

	// Simplified quickhull: repeatedly admit the point that lies
	// furthest outside the current hull.
	for {
		// Scan all remaining points against all hull faces. Points
		// inside every face plane are discarded on the fly.
		furthest := -1
		furthestDistance := 0.0
		remaining := len(points)
		for i := len(points) - 1; i >= 0; i-- {
			insideHull := true
			for face := originalFaceCount; face < m.FaceCount(); face++ {
				d := m.facePlane(face).pointDistance(points[i])
				if d > epsilon {
					insideHull = false
					if d > furthestDistance {
						furthestDistance = d
						furthest = i
					}
				}
			}
			if insideHull {
				remaining--
				points[i] = points[remaining]
				if furthest == remaining {
					furthest = i
				}
			}
		}
		points = points[:remaining]
		if remaining == 0 {
			break
		}

		// Delete every face visible from the admitted point, leaving
		// a hole in the hull.
		admitted := points[furthest]
		for face := originalFaceCount; face < m.FaceCount(); face++ {
			if m.facePlane(face).pointDistance(admitted) > epsilon {
				m.DeleteFace(face)
				face--
			}
		}

		// Find one half-edge bordering the hole.
		firstBorderEdge := InvalidIndex
		for face := originalFaceCount; face < m.FaceCount() && firstBorderEdge == InvalidIndex; face++ {
			first := topo.FirstFaceEdge(face)
			e := first
			for {
				if !topo.HasOppositeEdge(e) {
					firstBorderEdge = e
					break
				}
				e = topo.NextFaceEdge(e)
				if e == first {
					break
				}
			}
		}
		if firstBorderEdge == InvalidIndex {
			panic("surface: convex hull has no border after deleting visible faces")
		}

		// Fan new triangles from the admitted point around the hole's
		// border, stitching each one to the border edge and to its
		// predecessor in the fan.
		vertex := m.CreateVertex(admitted)
		borderEdge := firstBorderEdge
		previousFace := InvalidIndex
		firstFace := InvalidIndex
		newFace := InvalidIndex
		for {
			newFace = m.CreateFace([]int{topo.Vertex2(borderEdge), topo.Vertex1(borderEdge), vertex}, region)
			topo.LinkOppositeEdges(topo.FirstFaceEdge(newFace), borderEdge)
			if borderEdge == firstBorderEdge {
				firstFace = newFace
			} else {
				topo.LinkOppositeEdges(topo.SecondFaceEdge(newFace), topo.PrevFaceEdge(topo.FirstFaceEdge(previousFace)))
			}
			previousFace = newFace
			// Walk to the next border edge around the hole.
			for {
				borderEdge = topo.NextFaceEdge(borderEdge)
				if !topo.HasOppositeEdge(borderEdge) || borderEdge == firstBorderEdge {
					break
				}
				borderEdge = topo.OppositeEdge(borderEdge)
			}
			if borderEdge == firstBorderEdge {
				break
			}
		}
		topo.LinkOppositeEdges(topo.SecondFaceEdge(firstFace), topo.PrevFaceEdge(topo.FirstFaceEdge(newFace)))

		// The admitted point is now a hull vertex.
		remaining--
		points[furthest] = points[remaining]
		points = points[:remaining]
	}

	// Drop interior vertices that lost all their faces.
	for vertex := originalVertexCount; vertex < m.VertexCount(); vertex++ {
		if topo.VertexEdgeCount(vertex) == 0 {
			m.DeleteVertex(vertex)
			vertex--
		}
	}
	return region
}
