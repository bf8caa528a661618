// Package trimesh holds plain, non-periodic triangle meshes.
//
// This is the terminal representation produced from a periodic surface
// mesh before rendering or export: an indexed vertex list and triangles
// that optionally carry one normal per corner and a material tag
// linking each triangle back to the source face it was cut from.
package trimesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a single triangle.
type Face struct {
	V        [3]int    // vertex indices
	Normals  [3]r3.Vec // per-corner normals, used when Mesh.HasNormals
	Material int       // source face tag, carried through clipping
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices   []r3.Vec
	Faces      []Face
	HasNormals bool
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(p r3.Vec) int {
	m.Vertices = append(m.Vertices, p)
	return len(m.Vertices) - 1
}

// AddFace appends a triangle and returns a pointer to it so the caller
// can fill in normals and material.
func (m *Mesh) AddFace(a, b, c int) *Face {
	m.Faces = append(m.Faces, Face{V: [3]int{a, b, c}})
	return &m.Faces[len(m.Faces)-1]
}

// FlipFaces reverses the winding of every triangle and negates the
// corner normals.
func (m *Mesh) FlipFaces() {
	for i := range m.Faces {
		f := &m.Faces[i]
		f.V[1], f.V[2] = f.V[2], f.V[1]
		if m.HasNormals {
			f.Normals[1], f.Normals[2] = f.Normals[2], f.Normals[1]
			for c := range f.Normals {
				f.Normals[c] = r3.Scale(-1, f.Normals[c])
			}
		}
	}
}

// Plane is an oriented plane given by a unit normal and a signed offset:
// a point p lies on the plane when Dot(Normal, p) == Dist.
type Plane struct {
	Normal r3.Vec
	Dist   float64
}

// PointDistance returns the signed distance of p from the plane,
// positive on the side the normal points to.
func (pl Plane) PointDistance(p r3.Vec) float64 {
	return r3.Dot(pl.Normal, p) - pl.Dist
}

// ClipAtPlane returns a copy of the mesh with everything on the positive
// side of the plane removed. Triangles straddling the plane are cut;
// their corner normals are interpolated and the material tag is kept.
func (m *Mesh) ClipAtPlane(pl Plane) *Mesh {
	out := &Mesh{HasNormals: m.HasNormals}

	vertexMap := make([]int, len(m.Vertices))
	for i := range vertexMap {
		vertexMap[i] = -1
	}
	keptVertex := func(i int) int {
		if vertexMap[i] < 0 {
			vertexMap[i] = out.AddVertex(m.Vertices[i])
		}
		return vertexMap[i]
	}

	// Edge intersections are cached so adjacent triangles share the
	// cut vertex and the clipped mesh stays watertight.
	type edgeKey struct{ a, b int }
	cutVertex := make(map[edgeKey]int)
	cut := func(i, j int, di, dj float64) (int, float64) {
		key := edgeKey{i, j}
		if i > j {
			key = edgeKey{j, i}
		}
		t := di / (di - dj)
		if v, ok := cutVertex[key]; ok {
			return v, t
		}
		p := r3.Add(m.Vertices[i], r3.Scale(t, r3.Sub(m.Vertices[j], m.Vertices[i])))
		v := out.AddVertex(p)
		cutVertex[key] = v
		return v, t
	}

	lerpNormal := func(a, b r3.Vec, t float64) r3.Vec {
		n := r3.Add(r3.Scale(1-t, a), r3.Scale(t, b))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		return n
	}

	for _, f := range m.Faces {
		var d [3]float64
		inside := 0
		for c := 0; c < 3; c++ {
			d[c] = pl.PointDistance(m.Vertices[f.V[c]])
			if d[c] <= 0 {
				inside++
			}
		}
		switch inside {
		case 0:
			continue
		case 3:
			nf := out.AddFace(keptVertex(f.V[0]), keptVertex(f.V[1]), keptVertex(f.V[2]))
			nf.Normals = f.Normals
			nf.Material = f.Material
		case 1:
			// One corner kept, the cut produces a smaller triangle.
			k := 0
			for d[k] > 0 {
				k++
			}
			j1, j2 := (k+1)%3, (k+2)%3
			v1, t1 := cut(f.V[k], f.V[j1], d[k], d[j1])
			v2, t2 := cut(f.V[k], f.V[j2], d[k], d[j2])
			nf := out.AddFace(keptVertex(f.V[k]), v1, v2)
			nf.Material = f.Material
			if m.HasNormals {
				nf.Normals[0] = f.Normals[k]
				nf.Normals[1] = lerpNormal(f.Normals[k], f.Normals[j1], t1)
				nf.Normals[2] = lerpNormal(f.Normals[k], f.Normals[j2], t2)
			}
		case 2:
			// One corner removed, the remaining quad is split in two.
			k := 0
			for d[k] <= 0 {
				k++
			}
			j1, j2 := (k+1)%3, (k+2)%3
			v1, t1 := cut(f.V[k], f.V[j1], d[k], d[j1])
			v2, t2 := cut(f.V[k], f.V[j2], d[k], d[j2])
			a, b := keptVertex(f.V[j1]), keptVertex(f.V[j2])

			nf := out.AddFace(v1, a, b)
			nf.Material = f.Material
			var n1, n2 r3.Vec
			if m.HasNormals {
				n1 = lerpNormal(f.Normals[k], f.Normals[j1], t1)
				n2 = lerpNormal(f.Normals[k], f.Normals[j2], t2)
				nf.Normals = [3]r3.Vec{n1, f.Normals[j1], f.Normals[j2]}
			}
			nf = out.AddFace(v1, b, v2)
			nf.Material = f.Material
			if m.HasNormals {
				nf.Normals = [3]r3.Vec{n1, f.Normals[j2], n2}
			}
		}
	}
	return out
}
