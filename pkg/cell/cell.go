// Package cell models the parallelepiped simulation domain that
// periodic surface meshes are embedded in.
//
// A cell is defined by three edge vectors, an origin and a periodicity
// flag per axis. Coordinates exist in two frames: absolute Cartesian
// space and reduced space, where the cell spans the unit cube. Vectors
// crossing a periodic boundary are remapped with the minimum-image
// convention.
package cell

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerate is returned when the three cell vectors do not span a
// volume.
var ErrDegenerate = errors.New("cell: degenerate cell matrix")

// Cell is an immutable parallelepiped domain with per-axis periodicity.
type Cell struct {
	vectors [3]r3.Vec // edge vectors, the columns of the cell matrix
	origin  r3.Vec
	pbc     [3]bool
	inv     [3][3]float64 // rows map absolute vectors to reduced space
	det     float64
}

// New builds a cell from three edge vectors, an origin and per-axis
// periodic boundary flags. Returns ErrDegenerate if the vectors are
// (nearly) coplanar.
func New(a, b, c, origin r3.Vec, pbc [3]bool) (*Cell, error) {
	m := mat.NewDense(3, 3, []float64{
		a.X, b.X, c.X,
		a.Y, b.Y, c.Y,
		a.Z, b.Z, c.Z,
	})
	det := mat.Det(m)
	if math.Abs(det) <= 1e-12*norm3(a)*norm3(b)*norm3(c) || det == 0 {
		return nil, ErrDegenerate
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, ErrDegenerate
	}
	cc := &Cell{
		vectors: [3]r3.Vec{a, b, c},
		origin:  origin,
		pbc:     pbc,
		det:     det,
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cc.inv[i][j] = inv.At(i, j)
		}
	}
	return cc, nil
}

// NewOrthogonal builds an axis-aligned cell with the given edge lengths.
func NewOrthogonal(lx, ly, lz float64, origin r3.Vec, pbc [3]bool) (*Cell, error) {
	return New(r3.Vec{X: lx}, r3.Vec{Y: ly}, r3.Vec{Z: lz}, origin, pbc)
}

// NewCubic builds a cube of edge length l at the origin, periodic in all
// directions if periodic is set.
func NewCubic(l float64, periodic bool) *Cell {
	c, err := NewOrthogonal(l, l, l, r3.Vec{}, [3]bool{periodic, periodic, periodic})
	if err != nil {
		panic(err) // cannot happen for l != 0
	}
	return c
}

// Vector returns the cell edge vector along the given axis (0..2).
func (c *Cell) Vector(axis int) r3.Vec { return c.vectors[axis] }

// Origin returns the cell origin.
func (c *Cell) Origin() r3.Vec { return c.origin }

// Periodic reports whether the given axis has periodic boundary
// conditions.
func (c *Cell) Periodic(axis int) bool { return c.pbc[axis] }

// HasPBC reports whether any axis is periodic.
func (c *Cell) HasPBC() bool { return c.pbc[0] || c.pbc[1] || c.pbc[2] }

// Volume returns the unsigned cell volume.
func (c *Cell) Volume() float64 { return math.Abs(c.det) }

// Determinant returns the signed determinant of the cell matrix. A
// negative value indicates a left-handed set of edge vectors.
func (c *Cell) Determinant() float64 { return c.det }

// ReducedToAbsolute maps a point from the unit-cube frame into Cartesian
// space.
func (c *Cell) ReducedToAbsolute(p r3.Vec) r3.Vec {
	v := c.origin
	v = r3.Add(v, r3.Scale(p.X, c.vectors[0]))
	v = r3.Add(v, r3.Scale(p.Y, c.vectors[1]))
	v = r3.Add(v, r3.Scale(p.Z, c.vectors[2]))
	return v
}

// AbsoluteToReduced maps a Cartesian point into the unit-cube frame.
func (c *Cell) AbsoluteToReduced(p r3.Vec) r3.Vec {
	return c.applyInverse(r3.Sub(p, c.origin))
}

// ReducedVectorToAbsolute maps a direction (no origin shift) from
// reduced to Cartesian space.
func (c *Cell) ReducedVectorToAbsolute(v r3.Vec) r3.Vec {
	return r3.Add(r3.Add(
		r3.Scale(v.X, c.vectors[0]),
		r3.Scale(v.Y, c.vectors[1])),
		r3.Scale(v.Z, c.vectors[2]))
}

// AbsoluteVectorToReduced maps a direction (no origin shift) from
// Cartesian to reduced space.
func (c *Cell) AbsoluteVectorToReduced(v r3.Vec) r3.Vec {
	return c.applyInverse(v)
}

func (c *Cell) applyInverse(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: c.inv[0][0]*v.X + c.inv[0][1]*v.Y + c.inv[0][2]*v.Z,
		Y: c.inv[1][0]*v.X + c.inv[1][1]*v.Y + c.inv[1][2]*v.Z,
		Z: c.inv[2][0]*v.X + c.inv[2][1]*v.Y + c.inv[2][2]*v.Z,
	}
}

// WrapVector remaps a connection vector to its minimum image under the
// periodic boundary conditions. Non-periodic axes are left untouched.
func (c *Cell) WrapVector(v r3.Vec) r3.Vec {
	red := c.applyInverse(v)
	s := [3]float64{red.X, red.Y, red.Z}
	for axis := 0; axis < 3; axis++ {
		if !c.pbc[axis] {
			continue
		}
		if n := math.Floor(s[axis] + 0.5); n != 0 {
			v = r3.Sub(v, r3.Scale(n, c.vectors[axis]))
		}
	}
	return v
}

// WrapPoint folds a Cartesian point back into the primary cell image
// along all periodic axes.
func (c *Cell) WrapPoint(p r3.Vec) r3.Vec {
	red := c.AbsoluteToReduced(p)
	s := [3]float64{red.X, red.Y, red.Z}
	for axis := 0; axis < 3; axis++ {
		if !c.pbc[axis] {
			continue
		}
		if n := math.Floor(s[axis]); n != 0 {
			p = r3.Sub(p, r3.Scale(n, c.vectors[axis]))
		}
	}
	return p
}

func norm3(v r3.Vec) float64 {
	n := r3.Norm(v)
	if n == 0 {
		return 1
	}
	return n
}
