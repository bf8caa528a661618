package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

func safelyNormalized(v r3.Vec) r3.Vec {
	if l := r3.Norm(v); l > 0 {
		return r3.Scale(1/l, v)
	}
	return v
}

// LocatePoint determines which spatial region of the mesh the given
// point is located in. The mesh must consist of closed manifolds.
//
// The classification finds the closest surface feature (vertex, edge or
// triangle interior) under the minimum-image convention and evaluates
// the sign of the point's offset along the feature's angle-weighted
// pseudonormal. It returns the region of the closest face when the
// point lies on the inner side, the space-filling region when it lies
// on the outer side, and InvalidIndex when the point is within epsilon
// of the surface and cannot be classified.
//
// faceSubset, if non-nil, restricts the search to faces whose entry is
// true.
func (m *Mesh) LocatePoint(location r3.Vec, epsilon float64, faceSubset []bool) (int, error) {
	topo := m.topo
	cl := m.cell

	// Find the closest vertex.
	closestDistanceSq := math.Inf(1)
	closestVertex := InvalidIndex
	closestVertexFirstEdge := InvalidIndex
	var closestNormal, closestVector r3.Vec
	closestRegion := m.spaceFillingRegion
	for vertex := 0; vertex < m.VertexCount(); vertex++ {
		firstEdge := topo.FirstVertexEdge(vertex)
		if faceSubset != nil {
			for firstEdge != InvalidIndex && !faceSubset[topo.AdjacentFace(firstEdge)] {
				firstEdge = topo.NextVertexEdge(firstEdge)
			}
		}
		if firstEdge == InvalidIndex {
			continue
		}
		r := cl.WrapVector(r3.Sub(m.vertexCoords.At(vertex), location))
		if distSq := r3.Norm2(r); distSq < closestDistanceSq {
			closestDistanceSq = distSq
			closestVertex = vertex
			closestVector = r
			closestVertexFirstEdge = firstEdge
		}
	}

	// A mesh without any surface: all of space belongs to the
	// space-filling region.
	if closestVertex == InvalidIndex {
		return m.spaceFillingRegion, nil
	}

	// Check if an edge is closer than the closest vertex.
	for edge := 0; edge < m.EdgeCount(); edge++ {
		if faceSubset != nil && !faceSubset[topo.AdjacentFace(edge)] {
			continue
		}
		if !topo.HasOppositeEdge(edge) {
			return InvalidIndex, ErrNotClosed
		}
		p1 := m.vertexCoords.At(topo.Vertex1(edge))
		p2 := m.vertexCoords.At(topo.Vertex2(edge))
		edgeDir := cl.WrapVector(r3.Sub(p2, p1))
		r := cl.WrapVector(r3.Sub(p1, location))
		edgeLength := r3.Norm(edgeDir)
		if edgeLength <= 1e-12 {
			continue
		}
		edgeDir = r3.Scale(1/edgeLength, edgeDir)
		d := -r3.Dot(edgeDir, r)
		if d <= 0 || d >= edgeLength {
			continue
		}
		c := r3.Add(r, r3.Scale(d, edgeDir))
		if distSq := r3.Norm2(c); distSq < closestDistanceSq {
			closestDistanceSq = distSq
			closestVertex = InvalidIndex
			closestVector = c
			// Pseudonormal of the edge: sum of the unit normals of
			// the two flanking faces.
			p1a := m.vertexCoords.At(topo.Vertex2(topo.NextFaceEdge(edge)))
			p1b := m.vertexCoords.At(topo.Vertex2(topo.NextFaceEdge(topo.OppositeEdge(edge))))
			e1 := cl.WrapVector(r3.Sub(p1a, p1))
			e2 := cl.WrapVector(r3.Sub(p1b, p1))
			closestNormal = r3.Add(
				safelyNormalized(r3.Cross(edgeDir, e1)),
				safelyNormalized(r3.Cross(e2, edgeDir)))
			closestRegion = m.faceRegions.At(topo.AdjacentFace(edge))
		}
	}

	// Check if a triangle interior is closer than vertex and edge.
	for face := 0; face < m.FaceCount(); face++ {
		if faceSubset != nil && !faceSubset[face] {
			continue
		}
		edge1 := topo.FirstFaceEdge(face)
		edge2 := topo.NextFaceEdge(edge1)
		p1 := m.vertexCoords.At(topo.Vertex1(edge1))
		p2 := m.vertexCoords.At(topo.Vertex2(edge1))
		p3 := m.vertexCoords.At(topo.Vertex2(edge2))
		var edgeVectors [3]r3.Vec
		edgeVectors[0] = cl.WrapVector(r3.Sub(p2, p1))
		edgeVectors[1] = cl.WrapVector(r3.Sub(p3, p2))
		r := cl.WrapVector(r3.Sub(p1, location))
		edgeVectors[2] = r3.Scale(-1, r3.Add(edgeVectors[1], edgeVectors[0]))

		normal := r3.Cross(edgeVectors[0], edgeVectors[1])
		insideTriangle := true
		vertexVector := r
		for v := 0; v < 3; v++ {
			if r3.Dot(vertexVector, r3.Cross(normal, edgeVectors[v])) >= 0 {
				insideTriangle = false
				break
			}
			vertexVector = r3.Add(vertexVector, edgeVectors[v])
		}
		if !insideTriangle {
			continue
		}
		normalLengthSq := r3.Norm2(normal)
		if normalLengthSq <= 1e-12 {
			continue
		}
		normal = r3.Scale(1/math.Sqrt(normalLengthSq), normal)
		planeDist := r3.Dot(normal, r)
		if planeDist*planeDist < closestDistanceSq {
			closestDistanceSq = planeDist * planeDist
			closestVector = r3.Scale(planeDist, normal)
			closestVertex = InvalidIndex
			closestNormal = normal
			closestRegion = m.faceRegions.At(face)
		}
	}

	// If a vertex stayed closest, compute its angle-weighted
	// pseudonormal from the incident faces.
	if closestVertex != InvalidIndex {
		edge := closestVertexFirstEdge
		closestNormal = r3.Vec{}
		closestVertexPos := m.vertexCoords.At(closestVertex)
		edge1v := safelyNormalized(cl.WrapVector(r3.Sub(m.vertexCoords.At(topo.Vertex2(edge)), closestVertexPos)))
		for {
			if !topo.HasOppositeEdge(edge) {
				return InvalidIndex, ErrNotClosed
			}
			nextEdge := topo.NextFaceEdge(topo.OppositeEdge(edge))
			edge2v := safelyNormalized(cl.WrapVector(r3.Sub(m.vertexCoords.At(topo.Vertex2(nextEdge)), closestVertexPos)))
			angle := math.Acos(clampUnit(r3.Dot(edge1v, edge2v)))
			if normal := r3.Cross(edge2v, edge1v); r3.Norm2(normal) > 0 {
				closestNormal = r3.Add(closestNormal, r3.Scale(angle, safelyNormalized(normal)))
			}
			edge = nextEdge
			edge1v = edge2v
			if edge == closestVertexFirstEdge {
				break
			}
		}
		closestRegion = m.faceRegions.At(topo.AdjacentFace(edge))
	}

	dot := r3.Dot(closestNormal, closestVector)
	if dot >= epsilon {
		return closestRegion, nil
	}
	if dot <= -epsilon {
		return m.spaceFillingRegion, nil
	}
	return InvalidIndex, nil
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
