package renderable

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/trimesh"
)

// Buffers flattens the surface and cap triangles into unindexed
// float32 vertex and normal arrays plus a uint32 index array, the layout
// GPU viewers consume. Triangles without stored normals get a flat
// normal from their winding.
func (m *Mesh) Buffers() (vertices, normals []float32, indices []uint32) {
	vertices, normals, indices = appendTriangles(vertices, normals, indices, m.Surface)
	if m.CapPolygons != nil {
		vertices, normals, indices = appendTriangles(vertices, normals, indices, m.CapPolygons)
	}
	return vertices, normals, indices
}

func appendTriangles(vertices, normals []float32, indices []uint32, tm *trimesh.Mesh) ([]float32, []float32, []uint32) {
	for _, f := range tm.Faces {
		a := tm.Vertices[f.V[0]]
		b := tm.Vertices[f.V[1]]
		c := tm.Vertices[f.V[2]]

		fn := f.Normals
		if !tm.HasNormals {
			n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
			if l := r3.Norm(n); l > 0 {
				n = r3.Scale(1/l, n)
			}
			fn = [3]r3.Vec{n, n, n}
		}

		for j, p := range [3]r3.Vec{a, b, c} {
			indices = append(indices, uint32(len(vertices)/3))
			vertices = append(vertices, float32(p.X), float32(p.Y), float32(p.Z))
			n := fn[j]
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
		}
	}
	return vertices, normals, indices
}
