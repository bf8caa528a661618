// Package surface implements closed two-dimensional manifolds embedded
// in a periodic simulation cell.
//
// A surface mesh combines a half-edge topology with per-vertex,
// per-face and per-region data columns and the cell it lives in. Edges
// crossing a periodic cell boundary are handled with the minimum-image
// convention: an edge's geometric vector is always the wrapped
// difference of its endpoint coordinates.
//
// Meshes support cheap copy-on-write cloning. A Clone shares topology
// and data columns with the original; the first mutation through either
// mesh replaces the shared component with a private copy.
//
// The mesh partitions space into volumetric regions. Faces are oriented
// so that their normal points away from the region they bound, and
// every face carries the index of that region. When the mesh has no
// faces at all, a single space-filling region covers the whole cell.
package surface

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/cell"
	"github.com/perimesh/perimesh/pkg/halfedge"
	"github.com/perimesh/perimesh/pkg/property"
)

// InvalidIndex marks an unset vertex/edge/face/region reference.
const InvalidIndex = halfedge.InvalidIndex

// Mesh is a surface mesh embedded in a simulation cell.
type Mesh struct {
	topo *halfedge.Topology
	cell *cell.Cell

	vertexCoords *property.Column[r3.Vec]
	faceRegions  *property.Column[int]
	faceNormals  *property.Column[r3.Vec] // nil until computed

	regionPhases  *property.Column[int]
	regionVolumes *property.Column[float64]
	regionAreas   *property.Column[float64]

	// Region filling all of space when the mesh has no faces, or
	// InvalidIndex if empty space is void.
	spaceFillingRegion int
}

// NewMesh creates an empty surface mesh embedded in the given cell.
func NewMesh(c *cell.Cell) *Mesh {
	return &Mesh{
		topo:               halfedge.New(),
		cell:               c,
		vertexCoords:       property.NewColumn[r3.Vec](0),
		faceRegions:        property.NewColumn[int](0),
		regionPhases:       property.NewColumn[int](0),
		regionVolumes:      property.NewColumn[float64](0),
		regionAreas:        property.NewColumn[float64](0),
		spaceFillingRegion: InvalidIndex,
	}
}

// Clone returns a logical copy of the mesh. Topology and data columns
// are shared until one of the copies is mutated.
func (m *Mesh) Clone() *Mesh {
	c := *m
	c.topo = m.topo.Retain()
	c.vertexCoords = m.vertexCoords.Retain()
	c.faceRegions = m.faceRegions.Retain()
	if m.faceNormals != nil {
		c.faceNormals = m.faceNormals.Retain()
	}
	c.regionPhases = m.regionPhases.Retain()
	c.regionVolumes = m.regionVolumes.Retain()
	c.regionAreas = m.regionAreas.Retain()
	return &c
}

// Topology grants read access to the mesh connectivity.
func (m *Mesh) Topology() *halfedge.Topology { return m.topo }

// Cell returns the simulation cell the mesh is embedded in.
func (m *Mesh) Cell() *cell.Cell { return m.cell }

// SetCell replaces the simulation cell.
func (m *Mesh) SetCell(c *cell.Cell) { m.cell = c }

// SpaceFillingRegion returns the region occupying all space when the
// mesh has no faces, or InvalidIndex.
func (m *Mesh) SpaceFillingRegion() int { return m.spaceFillingRegion }

// SetSpaceFillingRegion declares the region that occupies all space when
// the mesh has no faces.
func (m *Mesh) SetSpaceFillingRegion(region int) { m.spaceFillingRegion = region }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return m.topo.VertexCount() }

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int { return m.topo.FaceCount() }

// EdgeCount returns the number of half-edges.
func (m *Mesh) EdgeCount() int { return m.topo.EdgeCount() }

// RegionCount returns the number of volumetric regions.
func (m *Mesh) RegionCount() int { return m.regionPhases.Len() }

// mutableTopology clones the shared topology before the first mutation.
func (m *Mesh) mutableTopology() *halfedge.Topology {
	if m.topo.Shared() {
		m.topo.Release()
		m.topo = m.topo.Clone()
	}
	return m.topo
}

func mutableColumn[T any](c *property.Column[T]) *property.Column[T] {
	if c.Shared() {
		c.Release()
		return c.Clone()
	}
	return c
}

func (m *Mesh) mutableVertexCoords() *property.Column[r3.Vec] {
	m.vertexCoords = mutableColumn(m.vertexCoords)
	return m.vertexCoords
}

func (m *Mesh) mutableFaceRegions() *property.Column[int] {
	m.faceRegions = mutableColumn(m.faceRegions)
	return m.faceRegions
}

func (m *Mesh) mutableFaceNormals() *property.Column[r3.Vec] {
	m.faceNormals = mutableColumn(m.faceNormals)
	return m.faceNormals
}

// VertexPosition returns the coordinates of a vertex.
func (m *Mesh) VertexPosition(vertex int) r3.Vec { return m.vertexCoords.At(vertex) }

// SetVertexPosition moves a vertex.
func (m *Mesh) SetVertexPosition(vertex int, p r3.Vec) {
	m.mutableVertexCoords().Set(vertex, p)
}

// VertexPositions exposes the vertex coordinate column for reading.
func (m *Mesh) VertexPositions() []r3.Vec { return m.vertexCoords.Data() }

// FaceRegion returns the region a face bounds.
func (m *Mesh) FaceRegion(face int) int { return m.faceRegions.At(face) }

// SetFaceRegion assigns the region a face bounds.
func (m *Mesh) SetFaceRegion(face, region int) {
	m.mutableFaceRegions().Set(face, region)
}

// HasFaceNormals reports whether per-face normals have been computed.
func (m *Mesh) HasFaceNormals() bool { return m.faceNormals != nil }

// FaceNormal returns the stored normal of a face. ComputeFaceNormals
// must have been called.
func (m *Mesh) FaceNormal(face int) r3.Vec { return m.faceNormals.At(face) }

// CreateVertex adds a vertex at the given position.
func (m *Mesh) CreateVertex(p r3.Vec) int {
	m.mutableVertexCoords().Append(p)
	return m.mutableTopology().CreateVertex()
}

// CreateVertices adds one vertex per given position.
func (m *Mesh) CreateVertices(points []r3.Vec) {
	m.mutableVertexCoords().Append(points...)
	m.mutableTopology().CreateVertices(len(points))
}

// DeleteVertex removes a vertex that has no incident edges. The last
// vertex takes its index.
func (m *Mesh) DeleteVertex(vertex int) {
	m.mutableVertexCoords().SwapRemove(vertex)
	m.mutableTopology().DeleteVertex(vertex)
}

// CreateFace adds a face bounded by the given vertex loop, bounding the
// given region. Half-edges are created but not connected to opposite
// half-edges.
func (m *Mesh) CreateFace(vertices []int, region int) int {
	m.mutableFaceRegions().Append(region)
	if m.faceNormals != nil {
		m.mutableFaceNormals().Append(r3.Vec{})
	}
	return m.mutableTopology().CreateFaceAndEdges(vertices)
}

// createBareFace adds a face without any edges, for algorithms that wire
// edges themselves.
func (m *Mesh) createBareFace(region int) int {
	m.mutableFaceRegions().Append(region)
	if m.faceNormals != nil {
		m.mutableFaceNormals().Append(r3.Vec{})
	}
	return m.mutableTopology().CreateFace()
}

// DeleteFace removes a face and its half-edges. The last face takes its
// index.
func (m *Mesh) DeleteFace(face int) {
	m.mutableFaceRegions().SwapRemove(face)
	if m.faceNormals != nil {
		m.mutableFaceNormals().SwapRemove(face)
	}
	m.mutableTopology().DeleteFace(face)
}

// CreateRegion adds a volumetric region with the given phase id, volume
// and surface area, returning its index.
func (m *Mesh) CreateRegion(phase int, volume, surfaceArea float64) int {
	m.regionPhases = mutableColumn(m.regionPhases)
	m.regionVolumes = mutableColumn(m.regionVolumes)
	m.regionAreas = mutableColumn(m.regionAreas)
	m.regionPhases.Append(phase)
	m.regionVolumes.Append(volume)
	m.regionAreas.Append(surfaceArea)
	return m.regionPhases.Len() - 1
}

// DeleteRegion removes a region that no face references. The last
// region takes its index; faces referring to the moved region are
// updated.
func (m *Mesh) DeleteRegion(region int) {
	for face := 0; face < m.FaceCount(); face++ {
		if m.faceRegions.At(face) == region {
			panic("surface: cannot delete a region that still has faces")
		}
	}
	last := m.RegionCount() - 1
	if region < last {
		fr := m.mutableFaceRegions()
		for face := 0; face < fr.Len(); face++ {
			if fr.At(face) == last {
				fr.Set(face, region)
			}
		}
		if m.spaceFillingRegion == last {
			m.spaceFillingRegion = region
		}
	}
	m.regionPhases = mutableColumn(m.regionPhases)
	m.regionVolumes = mutableColumn(m.regionVolumes)
	m.regionAreas = mutableColumn(m.regionAreas)
	m.regionPhases.SwapRemove(region)
	m.regionVolumes.SwapRemove(region)
	m.regionAreas.SwapRemove(region)
}

// RegionPhase returns the phase id of a region.
func (m *Mesh) RegionPhase(region int) int { return m.regionPhases.At(region) }

// RegionVolume returns the stored volume of a region.
func (m *Mesh) RegionVolume(region int) float64 { return m.regionVolumes.At(region) }

// SetRegionVolume stores the volume of a region.
func (m *Mesh) SetRegionVolume(region int, v float64) {
	m.regionVolumes = mutableColumn(m.regionVolumes)
	m.regionVolumes.Set(region, v)
}

// RegionSurfaceArea returns the stored surface area of a region.
func (m *Mesh) RegionSurfaceArea(region int) float64 { return m.regionAreas.At(region) }

// SetRegionSurfaceArea stores the surface area of a region.
func (m *Mesh) SetRegionSurfaceArea(region int, a float64) {
	m.regionAreas = mutableColumn(m.regionAreas)
	m.regionAreas.Set(region, a)
}

// EdgeVector returns the geometric vector of a half-edge under the
// minimum-image convention.
func (m *Mesh) EdgeVector(edge int) r3.Vec {
	t := m.topo
	return m.cell.WrapVector(r3.Sub(
		m.vertexCoords.At(t.Vertex2(edge)),
		m.vertexCoords.At(t.Vertex1(edge))))
}

// SplitEdge inserts a new vertex at position p into an edge (and into
// its opposite edge, if present), returning the vertex. The half of the
// original edge leading to the new vertex keeps the original edge index.
func (m *Mesh) SplitEdge(edge int, p r3.Vec) int {
	vertex := m.CreateVertex(p)
	m.mutableTopology().SplitEdge(edge, vertex)
	return vertex
}

// TransformVertices applies the affine transformation tm*p + translation
// to every vertex position. tm must be a 3x3 matrix. The cell is not
// changed; stored face normals are discarded.
func (m *Mesh) TransformVertices(tm mat.Matrix, translation r3.Vec) {
	if r, c := tm.Dims(); r != 3 || c != 3 {
		panic("surface: TransformVertices needs a 3x3 matrix")
	}
	coords := m.mutableVertexCoords()
	for i := 0; i < coords.Len(); i++ {
		p := coords.At(i)
		coords.Set(i, r3.Vec{
			X: tm.At(0, 0)*p.X + tm.At(0, 1)*p.Y + tm.At(0, 2)*p.Z + translation.X,
			Y: tm.At(1, 0)*p.X + tm.At(1, 1)*p.Y + tm.At(1, 2)*p.Z + translation.Y,
			Z: tm.At(2, 0)*p.X + tm.At(2, 1)*p.Y + tm.At(2, 2)*p.Z + translation.Z,
		})
	}
	if m.faceNormals != nil {
		m.faceNormals.Release()
		m.faceNormals = nil
	}
}

// ConnectOppositeHalfedges links every half-edge with a reverse
// half-edge. Reports whether the mesh is closed afterwards.
func (m *Mesh) ConnectOppositeHalfedges() bool {
	return m.mutableTopology().ConnectOppositeHalfedges()
}

// MakeManifold splits vertices shared by more than one manifold sheet,
// copying their coordinates to the duplicates. The mesh must be closed.
// Returns the number of split vertices.
func (m *Mesh) MakeManifold() int {
	coords := m.mutableVertexCoords()
	return m.mutableTopology().MakeManifold(func(original int) {
		coords.Append(coords.At(original))
	})
}

// FlipFaces reverses the orientation of every face.
func (m *Mesh) FlipFaces() {
	m.mutableTopology().FlipFaces()
	if m.faceNormals != nil {
		fn := m.mutableFaceNormals()
		for i := 0; i < fn.Len(); i++ {
			fn.Set(i, r3.Scale(-1, fn.At(i)))
		}
	}
}

// Validate performs structural consistency checks and returns the first
// violation found, or nil. It is meant for tests and debugging; the
// mutation operations maintain these invariants.
func (m *Mesh) Validate() error {
	t := m.topo
	if m.vertexCoords.Len() != t.VertexCount() {
		return fmt.Errorf("surface: coordinate column has %d entries for %d vertices",
			m.vertexCoords.Len(), t.VertexCount())
	}
	if m.faceRegions.Len() != t.FaceCount() {
		return fmt.Errorf("surface: region column has %d entries for %d faces",
			m.faceRegions.Len(), t.FaceCount())
	}
	if m.faceNormals != nil && m.faceNormals.Len() != t.FaceCount() {
		return fmt.Errorf("surface: normal column has %d entries for %d faces",
			m.faceNormals.Len(), t.FaceCount())
	}
	for face := 0; face < t.FaceCount(); face++ {
		region := m.faceRegions.At(face)
		if region != InvalidIndex && (region < 0 || region >= m.RegionCount()) {
			return fmt.Errorf("surface: face %d bounds nonexistent region %d", face, region)
		}
		first := t.FirstFaceEdge(face)
		if first == InvalidIndex {
			continue
		}
		e := first
		for i := 0; i <= t.EdgeCount(); i++ {
			if t.AdjacentFace(e) != face {
				return fmt.Errorf("surface: edge %d in cycle of face %d belongs to face %d",
					e, face, t.AdjacentFace(e))
			}
			if t.PrevFaceEdge(t.NextFaceEdge(e)) != e {
				return fmt.Errorf("surface: face cycle of face %d is not doubly linked at edge %d", face, e)
			}
			e = t.NextFaceEdge(e)
			if e == first {
				break
			}
		}
		if e != first {
			return fmt.Errorf("surface: face cycle of face %d does not close", face)
		}
	}
	for edge := 0; edge < t.EdgeCount(); edge++ {
		if opp := t.OppositeEdge(edge); opp != InvalidIndex {
			if t.OppositeEdge(opp) != edge {
				return fmt.Errorf("surface: opposite link of edge %d is not symmetric", edge)
			}
			if t.Vertex1(edge) != t.Vertex2(opp) || t.Vertex2(edge) != t.Vertex1(opp) {
				return fmt.Errorf("surface: opposite of edge %d does not run in reverse", edge)
			}
		}
	}
	for vertex := 0; vertex < t.VertexCount(); vertex++ {
		for e := t.FirstVertexEdge(vertex); e != InvalidIndex; e = t.NextVertexEdge(e) {
			if t.Vertex1(e) != vertex {
				return fmt.Errorf("surface: edge %d listed at vertex %d originates at %d",
					e, vertex, t.Vertex1(e))
			}
		}
	}
	return nil
}
