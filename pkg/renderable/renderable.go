// Package renderable converts periodic surface meshes into finite
// triangle meshes suitable for display or export.
//
// The build runs in stages: the surface mesh is flattened into a
// triangle mesh, faces crossing a periodic cell boundary are split so
// that every output triangle lies inside one periodic image, vertex
// positions are folded back into the primary cell, the mesh is clipped
// against optional cutting planes, and cap polygons are synthesized to
// seal the openings the periodic cuts leave in the surface.
package renderable

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/surface"
	"github.com/perimesh/perimesh/pkg/trimesh"
)

// ErrDomainTooSmall is returned when a triangle spans more than half of
// the periodic cell along some axis, so its boundary crossings cannot
// be resolved unambiguously.
var ErrDomainTooSmall = errors.New("renderable: cannot split periodic faces, domain might be too small")

// ErrNotManifold is returned when contour tracing runs into a missing
// opposite half-edge.
var ErrNotManifold = errors.New("renderable: surface mesh is not a proper manifold")

// Color is an RGBA color with float32 channels.
type Color [4]float32

// Options control the periodic-to-finite build.
type Options struct {
	// SmoothShading computes interpolated per-corner normals.
	SmoothShading bool
	// ReverseOrientation flips all faces and cap polygons.
	ReverseOrientation bool
	// GenerateCapPolygons seals the periodic cuts with cap polygons.
	GenerateCapPolygons bool
	// FaceSubset, if non-nil, restricts the build to faces whose entry
	// is true.
	FaceSubset []bool
	// CuttingPlanes are applied to both the surface and the caps.
	CuttingPlanes []trimesh.Plane
	// SurfaceColor is the fallback triangle color.
	SurfaceColor Color
	// RegionColors, if non-empty, colors each triangle by the region
	// its source face bounds.
	RegionColors []Color
}

// Mesh is the finite output of the builder.
type Mesh struct {
	// Surface is the non-periodic triangle mesh.
	Surface *trimesh.Mesh
	// CapPolygons seal the cuts at the periodic cell boundaries.
	CapPolygons *trimesh.Mesh
	// OriginalFaceMap holds, per surface triangle, the source face of
	// the periodic input mesh.
	OriginalFaceMap []int
	// FaceColors holds one color per surface triangle.
	FaceColors []Color
}

// Build converts a periodic surface mesh into its finite renderable
// form. The context is checked between the per-axis stages.
func Build(ctx context.Context, input *surface.Mesh, opts Options) (*Mesh, error) {
	b := &builder{input: input, opts: opts}
	if err := b.buildSurfaceTriangleMesh(ctx); err != nil {
		return nil, err
	}
	b.determineFaceColors()
	if opts.GenerateCapPolygons {
		if err := b.buildCapMesh(ctx); err != nil {
			return nil, err
		}
	} else {
		b.caps = trimesh.New()
	}
	return &Mesh{
		Surface:         b.mesh,
		CapPolygons:     b.caps,
		OriginalFaceMap: b.faceMap,
		FaceColors:      b.faceColors,
	}, nil
}

type builder struct {
	input      *surface.Mesh
	opts       Options
	mesh       *trimesh.Mesh
	caps       *trimesh.Mesh
	faceMap    []int
	faceColors []Color
}

func comp(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func setComp(v *r3.Vec, i int, x float64) {
	switch i {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
}

// buildSurfaceTriangleMesh flattens the input mesh and cuts it open at
// the periodic cell boundaries.
func (b *builder) buildSurfaceTriangleMesh(ctx context.Context) error {
	cl := b.input.Cell()

	b.mesh, b.faceMap = b.input.ConvertToTriMesh(b.opts.SmoothShading, b.opts.FaceSubset)
	if b.opts.ReverseOrientation {
		b.mesh.FlipFaces()
	}

	// Work in reduced coordinates while splitting at the boundaries.
	for i, p := range b.mesh.Vertices {
		b.mesh.Vertices[i] = cl.AbsoluteToReduced(p)
	}

	for dim := 0; dim < 3; dim++ {
		if !cl.Periodic(dim) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Fold all vertices into the primary image along this axis.
		for i := range b.mesh.Vertices {
			c := comp(b.mesh.Vertices[i], dim)
			if s := math.Floor(c); s != 0 {
				setComp(&b.mesh.Vertices[i], dim, c-s)
			}
		}

		oldFaceCount := len(b.mesh.Faces)
		lookup := make(map[[2]int]splitVertexPair)
		for findex := 0; findex < oldFaceCount; findex++ {
			if err := b.splitFace(findex, lookup, dim); err != nil {
				return err
			}
		}
	}

	for i, p := range b.mesh.Vertices {
		b.mesh.Vertices[i] = cl.ReducedToAbsolute(p)
	}

	for _, plane := range b.opts.CuttingPlanes {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.mesh = b.mesh.ClipAtPlane(plane)
	}
	// The material tags carry the face map through clipping.
	b.faceMap = b.faceMap[:0]
	for _, f := range b.mesh.Faces {
		b.faceMap = append(b.faceMap, f.Material)
	}
	return nil
}

// splitVertexPair records the two boundary copies created for a crossing
// edge, plus the interpolation parameter of the crossing point.
type splitVertexPair struct {
	low, high int
	t         float64
}

// splitFace cuts a triangle that crosses the periodic boundary along
// the given axis into three triangles lying inside single periodic
// images. Crossing edges shared with neighboring triangles reuse the
// vertex pairs recorded in lookup, keeping the cut seam watertight.
func (b *builder) splitFace(faceIndex int, lookup map[[2]int]splitVertexPair, dim int) error {
	cl := b.input.Cell()
	face := &b.mesh.Faces[faceIndex]

	var z [3]float64
	for v := 0; v < 3; v++ {
		z[v] = comp(b.mesh.Vertices[face.V[v]], dim)
	}
	zd := [3]float64{z[1] - z[0], z[2] - z[1], z[0] - z[2]}
	if math.Abs(zd[0]) < 0.5 && math.Abs(zd[1]) < 0.5 && math.Abs(zd[2]) < 0.5 {
		return nil // does not cross the boundary
	}

	// Exactly one edge must stay within a single image; otherwise the
	// cell is too small for this mesh.
	properEdge := -1
	var newVertexIndices [3][2]int
	var interpolatedNormals [3]r3.Vec
	for i := 0; i < 3; i++ {
		if math.Abs(zd[i]) < 0.5 {
			if properEdge != -1 {
				return ErrDomainTooSmall
			}
			properEdge = i
			continue
		}
		vi1 := face.V[i]
		vi2 := face.V[(i+1)%3]
		var oi1, oi2 int
		if zd[i] <= -0.5 {
			vi1, vi2 = vi2, vi1
			oi1, oi2 = 1, 0
		} else {
			oi1, oi2 = 0, 1
		}
		entry, ok := lookup[[2]int{vi1, vi2}]
		if !ok {
			delta := r3.Sub(b.mesh.Vertices[vi2], b.mesh.Vertices[vi1])
			setComp(&delta, dim, comp(delta, dim)-1)
			for d := dim + 1; d < 3; d++ {
				if cl.Periodic(d) {
					c := comp(delta, d)
					setComp(&delta, d, c-math.Floor(c+0.5))
				}
			}
			t := 0.5
			if comp(delta, dim) != 0 {
				t = comp(b.mesh.Vertices[vi1], dim) / -comp(delta, dim)
			}
			p := r3.Add(b.mesh.Vertices[vi1], r3.Scale(t, delta))
			entry = splitVertexPair{
				low:  b.mesh.AddVertex(p),
				high: 0,
				t:    t,
			}
			setComp(&p, dim, comp(p, dim)+1)
			entry.high = b.mesh.AddVertex(p)
			lookup[[2]int{vi1, vi2}] = entry
		}
		pair := [2]int{entry.low, entry.high}
		newVertexIndices[i][oi1] = pair[0]
		newVertexIndices[i][oi2] = pair[1]
		if b.mesh.HasNormals {
			n1 := face.Normals[(i+oi1)%3]
			n2 := face.Normals[(i+oi2)%3]
			n := r3.Add(r3.Scale(entry.t, n1), r3.Scale(1-entry.t, n2))
			if l := r3.Norm(n); l > 0 {
				n = r3.Scale(1/l, n)
			}
			interpolatedNormals[i] = n
		}
	}
	if properEdge == -1 {
		return ErrDomainTooSmall
	}

	originalVertices := face.V
	originalNormals := face.Normals
	pe1 := (properEdge + 1) % 3
	pe2 := (properEdge + 2) % 3

	face.V = [3]int{originalVertices[properEdge], originalVertices[pe1], newVertexIndices[pe2][1]}

	material := face.Material
	source := b.faceMap[faceIndex]
	nf1 := b.mesh.AddFace(originalVertices[pe1], newVertexIndices[pe1][0], newVertexIndices[pe2][1])
	nf1.Material = material
	b.faceMap = append(b.faceMap, source)
	nf2 := b.mesh.AddFace(newVertexIndices[pe1][1], originalVertices[pe2], newVertexIndices[pe2][0])
	nf2.Material = material
	b.faceMap = append(b.faceMap, source)

	if b.mesh.HasNormals {
		nf1.Normals = [3]r3.Vec{originalNormals[pe1], interpolatedNormals[pe1], interpolatedNormals[pe2]}
		nf2.Normals = [3]r3.Vec{interpolatedNormals[pe1], originalNormals[pe2], interpolatedNormals[pe2]}
		// AddFace may have moved the backing array.
		face = &b.mesh.Faces[faceIndex]
		face.Normals = [3]r3.Vec{originalNormals[properEdge], originalNormals[pe1], interpolatedNormals[pe2]}
	}
	return nil
}

// determineFaceColors assigns one color per output triangle, by region
// when a region color table is configured.
func (b *builder) determineFaceColors() {
	b.faceColors = make([]Color, len(b.mesh.Faces))
	for i, original := range b.faceMap {
		color := b.opts.SurfaceColor
		if len(b.opts.RegionColors) > 0 {
			if region := b.input.FaceRegion(original); region >= 0 && region < len(b.opts.RegionColors) {
				color = b.opts.RegionColors[region]
			}
		}
		b.faceColors[i] = color
	}
}
