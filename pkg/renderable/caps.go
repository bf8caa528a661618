package renderable

import (
	"context"
	"math"

	libtess2 "github.com/hajimehoshi/go-libtess2"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/surface"
	"github.com/perimesh/perimesh/pkg/trimesh"
)

const contourEpsilon = 1e-12

// buildCapMesh generates the cap polygons where the surface mesh
// intersects the periodic cell boundaries. All work happens in reduced
// coordinates on the original periodic mesh; each periodic axis is
// processed independently and yields a pair of caps sealing the cut at
// reduced coordinate 0 and 1.
func (b *builder) buildCapMesh(ctx context.Context) error {
	input := b.input
	cl := input.Cell()
	topo := input.Topology()

	// A left-handed cell mirrors the 2D contour plane, which would
	// invert the tessellation winding.
	flipCapNormal := cl.Determinant() < 0
	if b.opts.ReverseOrientation {
		flipCapNormal = !flipCapNormal
	}

	reduced := make([]r3.Vec, input.VertexCount())
	for i := range reduced {
		reduced[i] = cl.AbsoluteToReduced(input.VertexPosition(i))
	}

	b.caps = trimesh.New()
	boxCornerInside3DRegion := -1

	for dim := 0; dim < 3; dim++ {
		if !cl.Periodic(dim) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Fold all vertices into the primary image along this axis.
		for i := range reduced {
			c := comp(reduced[i], dim)
			if s := math.Floor(c); s != 0 {
				setComp(&reduced[i], dim, c-s)
			}
		}

		visitedFaces := make([]bool, input.FaceCount())
		var openContours, closedContours [][]r2.Vec

		// Every face with an edge crossing the boundary upward seeds
		// one contour trace.
		for face := 0; face < input.FaceCount(); face++ {
			if b.opts.FaceSubset != nil && !b.opts.FaceSubset[face] {
				continue
			}
			if visitedFaces[face] {
				continue
			}
			visitedFaces[face] = true
			startEdge := topo.FirstFaceEdge(face)
			edge := startEdge
			for {
				v1 := reduced[topo.Vertex1(edge)]
				v2 := reduced[topo.Vertex2(edge)]
				if comp(v2, dim)-comp(v1, dim) >= 0.5 {
					contour := traceContour(input, edge, reduced, visitedFaces, dim)
					if contour == nil {
						return ErrNotManifold
					}
					clipContour(contour,
						[2]bool{cl.Periodic((dim + 1) % 3), cl.Periodic((dim + 2) % 3)},
						&openContours, &closedContours)
					break
				}
				edge = topo.NextFaceEdge(edge)
				if edge == startEdge {
					break
				}
			}
		}

		if b.opts.ReverseOrientation {
			for _, contour := range openContours {
				for i, j := 0, len(contour)-1; i < j; i, j = i+1, j-1 {
					contour[i], contour[j] = contour[j], contour[i]
				}
			}
		}

		tessContours := make([][]r2.Vec, 0, len(closedContours)+len(openContours)+1)
		tessContours = append(tessContours, closedContours...)

		if len(openContours) > 0 {
			tessContours = append(tessContours, linkOpenContours(openContours)...)
		} else {
			// The surface does not cross this boundary: the cap is
			// either the full cell face or nothing, depending on
			// whether the boundary lies inside a filled region.
			if boxCornerInside3DRegion == -1 {
				inside := false
				if len(closedContours) == 0 {
					region, err := input.LocatePoint(cl.Origin(), 0, b.opts.FaceSubset)
					if err != nil {
						return err
					}
					inside = region != surface.InvalidIndex && region != 0
				} else {
					inside = isCornerInside2DRegion(closedContours)
				}
				if b.opts.ReverseOrientation {
					inside = !inside
				}
				if inside {
					boxCornerInside3DRegion = 1
				} else {
					boxCornerInside3DRegion = 0
				}
			}
			if boxCornerInside3DRegion == 1 {
				tessContours = append(tessContours, []r2.Vec{
					{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
				})
			}
		}

		if len(tessContours) > 0 {
			if err := b.tessellateCap(tessContours, dim, flipCapNormal); err != nil {
				return err
			}
		}
	}

	for i, p := range b.caps.Vertices {
		b.caps.Vertices[i] = cl.ReducedToAbsolute(p)
	}
	for _, plane := range b.opts.CuttingPlanes {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.caps = b.caps.ClipAtPlane(plane)
	}
	return nil
}

// tessellateCap triangulates the contour set in the unit square and
// emits the triangles twice, once at reduced coordinate 0 and mirrored
// at coordinate 1, sealing both sides of the cut.
func (b *builder) tessellateCap(contours [][]r2.Vec, dim int, flip bool) error {
	cs := make([]libtess2.Contour, len(contours))
	for i, contour := range contours {
		c := make(libtess2.Contour, len(contour))
		for j, p := range contour {
			c[j] = libtess2.Vertex{X: float32(p.X), Y: float32(p.Y)}
		}
		cs[i] = c
	}
	indices, vertices, err := libtess2.Tesselate(cs, libtess2.WindingRuleOdd)
	if err != nil {
		return err
	}

	dim1 := (dim + 1) % 3
	dim2 := (dim + 2) % 3
	lower := make([]int, len(vertices))
	upper := make([]int, len(vertices))
	for i, v := range vertices {
		var p r3.Vec
		setComp(&p, dim1, float64(v.X))
		setComp(&p, dim2, float64(v.Y))
		setComp(&p, dim, 0)
		lower[i] = b.caps.AddVertex(p)
		setComp(&p, dim, 1)
		upper[i] = b.caps.AddVertex(p)
	}
	for i := 0; i+2 < len(indices); i += 3 {
		a, bb, c := indices[i], indices[i+1], indices[i+2]
		if a < 0 || bb < 0 || c < 0 {
			continue
		}
		// The lower cap faces the negative axis direction, so its
		// winding is reversed relative to the tessellation.
		if flip {
			b.caps.AddFace(lower[a], lower[bb], lower[c])
			b.caps.AddFace(upper[a], upper[c], upper[bb])
		} else {
			b.caps.AddFace(lower[a], lower[c], lower[bb])
			b.caps.AddFace(upper[a], upper[bb], upper[c])
		}
	}
	return nil
}

// traceContour follows the intersection line of the surface with the
// periodic boundary plane, starting at a half-edge that crosses it
// upward. Returns nil if the walk runs into a missing opposite
// half-edge.
func traceContour(input *surface.Mesh, firstEdge int, reduced []r3.Vec, visitedFaces []bool, dim int) []r2.Vec {
	topo := input.Topology()
	cl := input.Cell()
	dim1 := (dim + 1) % 3
	dim2 := (dim + 2) % 3

	var contour []r2.Vec
	appendPoint := func(x, y float64) bool {
		if len(contour) > 0 {
			last := contour[len(contour)-1]
			if math.Abs(x-last.X) <= contourEpsilon && math.Abs(y-last.Y) <= contourEpsilon {
				return false
			}
		}
		contour = append(contour, r2.Vec{X: x, Y: y})
		return true
	}

	edge := firstEdge
	for {
		visitedFaces[topo.AdjacentFace(edge)] = true

		// Intersection of the minimum-image edge with the boundary.
		v1 := reduced[topo.Vertex1(edge)]
		v2 := reduced[topo.Vertex2(edge)]
		delta := r3.Sub(v2, v1)
		setComp(&delta, dim, comp(delta, dim)-1)
		if cl.Periodic(dim1) {
			c := comp(delta, dim1)
			if s := math.Floor(c + 0.5); s != 0 {
				setComp(&delta, dim1, c-s)
			}
		}
		if cl.Periodic(dim2) {
			c := comp(delta, dim2)
			if s := math.Floor(c + 0.5); s != 0 {
				setComp(&delta, dim2, c-s)
			}
		}
		if math.Abs(comp(delta, dim)) > 1e-9 {
			t := comp(v1, dim) / comp(delta, dim)
			appendPoint(comp(v1, dim1)-comp(delta, dim1)*t, comp(v1, dim2)-comp(delta, dim2)*t)
		} else {
			// The edge lies within the boundary plane; keep both of
			// its endpoints.
			if !appendPoint(comp(v1, dim1), comp(v1, dim2)) {
				appendPoint(comp(v1, dim1)+comp(delta, dim1), comp(v1, dim2)+comp(delta, dim2))
			}
		}

		// Advance to the edge of this face that re-crosses the
		// boundary downward, then continue into the adjacent face.
		v1d := comp(v2, dim)
		for {
			edge = topo.NextFaceEdge(edge)
			v2d := comp(reduced[topo.Vertex2(edge)], dim)
			if v2d-v1d <= -0.5 {
				break
			}
			v1d = v2d
		}
		edge = topo.OppositeEdge(edge)
		if edge == surface.InvalidIndex {
			return nil
		}
		if edge == firstEdge {
			return contour
		}
	}
}

// clipContour wraps a traced contour into the primary image of the
// 2D cap plane, splitting it wherever it crosses a periodic boundary of
// that plane. Contours that never cross stay closed; the pieces of
// crossing contours are collected as open contour segments.
func clipContour(input []r2.Vec, pbc [2]bool, openContours, closedContours *[][]r2.Vec) {
	if !pbc[0] && !pbc[1] {
		*closedContours = append(*closedContours, input)
		return
	}
	if pbc[0] {
		for i := range input {
			if s := math.Floor(input[i].X); s != 0 {
				input[i].X -= s
			}
		}
	}
	if pbc[1] {
		for i := range input {
			if s := math.Floor(input[i].Y); s != 0 {
				input[i].Y -= s
			}
		}
	}

	contours := [][]r2.Vec{nil}

	v1 := input[len(input)-1]
	for _, v2 := range input {
		contours[len(contours)-1] = append(contours[len(contours)-1], v1)

		delta := r2.Sub(v2, v1)
		if math.Abs(delta.X) >= 0.5 || math.Abs(delta.Y) >= 0.5 {
			t := [2]float64{2, 2}
			var crossDir [2]int
			for d := 0; d < 2; d++ {
				if !pbc[d] {
					continue
				}
				switch {
				case comp2(delta, d) >= 0.5:
					setComp2(&delta, d, comp2(delta, d)-1)
					if math.Abs(comp2(delta, d)) > contourEpsilon {
						t[d] = math.Min(comp2(v1, d)/-comp2(delta, d), 1)
					} else {
						t[d] = 0.5
					}
					crossDir[d] = -1
				case comp2(delta, d) <= -0.5:
					setComp2(&delta, d, comp2(delta, d)+1)
					if math.Abs(comp2(delta, d)) > contourEpsilon {
						t[d] = math.Max((1-comp2(v1, d))/comp2(delta, d), 0)
					} else {
						t[d] = 0.5
					}
					crossDir[d] = +1
				}
			}

			base := v1
			if t[0] < t[1] {
				computeContourIntersection(0, t[0], &base, &delta, crossDir[0], &contours)
				if crossDir[1] != 0 {
					computeContourIntersection(1, t[1], &base, &delta, crossDir[1], &contours)
				}
			} else if t[1] < t[0] {
				computeContourIntersection(1, t[1], &base, &delta, crossDir[1], &contours)
				if crossDir[0] != 0 {
					computeContourIntersection(0, t[0], &base, &delta, crossDir[0], &contours)
				}
			}
		}
		v1 = v2
	}

	if len(contours) == 1 {
		*closedContours = append(*closedContours, contours[0])
		return
	}
	// The first and last pieces are two halves of the same border
	// crossing; merge them, then drop pieces that collapsed to a point.
	contours[0] = append(contours[len(contours)-1], contours[0]...)
	contours = contours[:len(contours)-1]
	for _, contour := range contours {
		degenerate := true
		for _, p := range contour {
			if math.Abs(p.X-contour[0].X) > contourEpsilon || math.Abs(p.Y-contour[0].Y) > contourEpsilon {
				degenerate = false
				break
			}
		}
		if !degenerate {
			*openContours = append(*openContours, contour)
		}
	}
}

// computeContourIntersection splits the current contour at a periodic
// border of the cap plane: the exit point is appended to the current
// piece and a new piece starts at the re-entry point on the other side.
func computeContourIntersection(dim int, t float64, base *r2.Vec, delta *r2.Vec, crossDir int, contours *[][]r2.Vec) {
	intersection := r2.Add(*base, r2.Scale(t, *delta))
	if crossDir == -1 {
		setComp2(&intersection, dim, 0)
	} else {
		setComp2(&intersection, dim, 1)
	}
	last := len(*contours) - 1
	(*contours)[last] = append((*contours)[last], intersection)
	if crossDir == +1 {
		setComp2(&intersection, dim, 0)
	} else {
		setComp2(&intersection, dim, 1)
	}
	*contours = append(*contours, []r2.Vec{intersection})
	*base = intersection
	*delta = r2.Scale(1-t, *delta)
}

// yxCoordToArcLength parameterizes the border of the unit square by arc
// length 0..4, starting at the origin and walking up the left side.
func yxCoordToArcLength(p r2.Vec) float64 {
	if p.X == 0 {
		return p.Y
	}
	if p.Y == 1 {
		return p.X + 1
	}
	if p.X == 1 {
		return 3 - p.Y
	}
	return math.Mod(4-p.X, 4)
}

// linkOpenContours stitches open contour segments into closed loops by
// connecting each segment's exit point to the nearest following entry
// point along the border of the unit square, inserting square corners
// in between as needed.
func linkOpenContours(openContours [][]r2.Vec) [][]r2.Vec {
	corners := [4]r2.Vec{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}
	visited := make([]bool, len(openContours))
	var result [][]r2.Vec
	for c1 := range openContours {
		if visited[c1] {
			continue
		}
		var loop []r2.Vec
		current := c1
		for {
			loop = append(loop, openContours[current]...)
			visited[current] = true

			tExit := yxCoordToArcLength(openContours[current][len(openContours[current])-1])

			// The next contour is the one whose entry point follows
			// the exit point in decreasing arc length.
			tEntry := 0.0
			closestDist := math.Inf(1)
			for c := range openContours {
				t := yxCoordToArcLength(openContours[c][0])
				dist := tExit - t
				if dist < 0 {
					dist += 4
				}
				if dist < closestDist {
					closestDist = dist
					current = c
					tEntry = t
				}
			}
			exitCorner := int(math.Floor(tExit))
			entryCorner := int(math.Floor(tEntry))
			if exitCorner != entryCorner || tExit < tEntry {
				for corner := exitCorner; ; {
					loop = append(loop, corners[corner])
					corner = (corner + 3) % 4
					if corner == entryCorner {
						break
					}
				}
			}
			if visited[current] {
				break
			}
		}
		result = append(result, loop)
	}
	return result
}

// isCornerInside2DRegion classifies the square corner (0,0) against the
// closed 2D contours with the pseudonormal sign test: the sign of the
// corner's offset along the normal of its closest contour feature
// (vertex or edge) decides containment.
func isCornerInside2DRegion(contours [][]r2.Vec) bool {
	isInside := true
	closestDistanceSq := math.Inf(1)
	for _, contour := range contours {
		i1 := len(contour) - 1
		for i2 := 0; i2 < len(contour); i1, i2 = i2, i2+1 {
			v1 := contour[i1]
			v2 := contour[i2]

			r := v1
			if distanceSq := r2.Norm2(r); distanceSq < closestDistanceSq {
				closestDistanceSq = distanceSq
				i0 := i1 - 1
				if i0 < 0 {
					i0 = len(contour) - 1
				}
				edgeDir := r2.Sub(v2, contour[i0])
				normal := r2.Vec{X: edgeDir.Y, Y: -edgeDir.X}
				isInside = r2.Dot(normal, r) > 0
			}

			edgeDir := r2.Sub(v2, v1)
			edgeLength := r2.Norm(edgeDir)
			if edgeLength <= contourEpsilon {
				continue
			}
			edgeDir = r2.Scale(1/edgeLength, edgeDir)
			d := -r2.Dot(edgeDir, r)
			if d <= 0 || d >= edgeLength {
				continue
			}
			c := r2.Add(r, r2.Scale(d, edgeDir))
			if distanceSq := r2.Norm2(c); distanceSq < closestDistanceSq {
				closestDistanceSq = distanceSq
				normal := r2.Vec{X: edgeDir.Y, Y: -edgeDir.X}
				isInside = r2.Dot(normal, c) > 0
			}
		}
	}
	return isInside
}

func comp2(v r2.Vec, i int) float64 {
	if i == 0 {
		return v.X
	}
	return v.Y
}

func setComp2(v *r2.Vec, i int, x float64) {
	if i == 0 {
		v.X = x
	} else {
		v.Y = x
	}
}
