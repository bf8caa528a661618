package surface

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/trimesh"
)

// ConvertToTriMesh flattens the surface mesh into a plain triangle
// mesh. General polygonal faces are fan-triangulated around their first
// vertex. The returned face map holds, for every output triangle, the
// index of the surface mesh face it came from; the same index is stored
// in the triangle's Material tag so it survives plane clipping.
//
// With smoothShading, per-corner normals are computed from
// neighbor-averaged face normals so that shading is continuous across
// edges while still following each manifold sheet separately.
//
// faceSubset, if non-nil, restricts the conversion to faces whose entry
// is true.
//
// Note that the output mesh is only meaningful as-is for non-periodic
// surfaces; periodic surfaces must additionally be cut open at the cell
// boundaries (see the renderable package).
func (m *Mesh) ConvertToTriMesh(smoothShading bool, faceSubset []bool) (*trimesh.Mesh, []int) {
	topo := m.topo
	out := trimesh.New()
	out.Vertices = append(out.Vertices, m.vertexCoords.Data()...)

	var faceMap []int
	for face := 0; face < topo.FaceCount(); face++ {
		if faceSubset != nil && !faceSubset[face] {
			continue
		}
		faceEdge := topo.FirstFaceEdge(face)
		baseVertex := topo.Vertex2(faceEdge)
		edge1 := topo.NextFaceEdge(faceEdge)
		edge2 := topo.NextFaceEdge(edge1)
		for edge2 != faceEdge {
			f := out.AddFace(baseVertex, topo.Vertex2(edge1), topo.Vertex2(edge2))
			f.Material = face
			faceMap = append(faceMap, face)
			edge1 = edge2
			edge2 = topo.NextFaceEdge(edge2)
		}
	}

	if smoothShading {
		out.HasNormals = true

		faceNormals := make([]r3.Vec, topo.FaceCount())
		for face := range faceNormals {
			if faceSubset != nil && !faceSubset[face] {
				continue
			}
			faceNormals[face] = m.ComputeFaceNormal(face)
		}

		// Average each face normal with its direct neighbors to
		// suppress triangulation artifacts.
		smoothed := make([]r3.Vec, len(faceNormals))
		for face := range faceNormals {
			smoothed[face] = faceNormals[face]
			if faceSubset != nil && !faceSubset[face] {
				continue
			}
			faceEdge := topo.FirstFaceEdge(face)
			edge := faceEdge
			for {
				if oe := topo.OppositeEdge(edge); oe != InvalidIndex {
					smoothed[face] = r3.Add(smoothed[face], faceNormals[topo.AdjacentFace(oe)])
				}
				edge = topo.NextFaceEdge(edge)
				if edge == faceEdge {
					break
				}
			}
			smoothed[face] = safelyNormalized(smoothed[face])
		}
		faceNormals = smoothed

		// Mean normal at the corner vertex the given half-edge points
		// to, accumulated over the incident faces of one manifold
		// sheet only. Falls back to a backward walk when the ring is
		// interrupted by an open boundary.
		normalAtVertex := func(startEdge int) r3.Vec {
			var normal r3.Vec
			edge := startEdge
			for {
				normal = r3.Add(normal, faceNormals[topo.AdjacentFace(edge)])
				edge = topo.OppositeEdge(topo.NextFaceEdge(edge))
				if edge == InvalidIndex || edge == startEdge {
					break
				}
			}
			if edge == InvalidIndex {
				for edge = topo.OppositeEdge(startEdge); edge != InvalidIndex; edge = topo.OppositeEdge(topo.PrevFaceEdge(edge)) {
					normal = r3.Add(normal, faceNormals[topo.AdjacentFace(edge)])
				}
			}
			return normal
		}

		idx := 0
		for face := 0; face < topo.FaceCount(); face++ {
			if faceSubset != nil && !faceSubset[face] {
				continue
			}
			faceEdge := topo.FirstFaceEdge(face)
			edge1 := topo.NextFaceEdge(faceEdge)
			edge2 := topo.NextFaceEdge(edge1)
			baseNormal := normalAtVertex(faceEdge)
			normal1 := normalAtVertex(edge1)
			for edge2 != faceEdge {
				normal2 := normalAtVertex(edge2)
				out.Faces[idx].Normals = [3]r3.Vec{baseNormal, normal1, normal2}
				idx++
				normal1 = normal2
				edge2 = topo.NextFaceEdge(edge2)
			}
		}
	}

	return out, faceMap
}
