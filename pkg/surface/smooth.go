package surface

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNotClosed is returned by algorithms that require every half-edge to
// have an opposite half-edge.
var ErrNotClosed = errors.New("surface: mesh is not a closed manifold")

// Default parameters of the Taubin fairing scheme.
const (
	DefaultSmoothingLambda   = 0.7
	DefaultSmoothingPassBand = 0.1
)

// Smooth fairs the mesh with the Taubin lambda/mu scheme: each
// iteration performs one Laplacian smoothing pass with the positive
// factor lambda followed by one inflating pass with the negative factor
// mu = 1/(kPB - 1/lambda), which together preserve the enclosed volume
// to first order. kPB is the pass-band frequency; larger values shrink
// the mesh less per iteration. The mesh must be closed.
//
// The context is checked once per iteration; on cancellation the mesh
// is left in the partially smoothed state.
func (m *Mesh) Smooth(ctx context.Context, iterations int, kPB, lambda float64) error {
	if !m.topo.IsClosed() {
		return ErrNotClosed
	}
	mu := 1 / (kPB - 1/lambda)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.smoothIteration(lambda)
		m.smoothIteration(mu)
	}
	return nil
}

// smoothIteration displaces every vertex towards the centroid of its
// one-ring neighbors, scaled by prefactor. Displacements are computed
// in parallel from a frozen snapshot of the positions and applied
// sequentially afterwards.
func (m *Mesh) smoothIteration(prefactor float64) {
	topo := m.topo
	displacements := make([]r3.Vec, m.VertexCount())
	parallelFor(m.VertexCount(), func(vertex int) {
		var d r3.Vec
		first := topo.FirstVertexEdge(vertex)
		if first == InvalidIndex {
			return
		}
		numEdges := 0
		edge := first
		for {
			d = r3.Add(d, m.EdgeVector(edge))
			numEdges++
			edge = topo.OppositeEdge(topo.PrevFaceEdge(edge))
			if edge == first {
				break
			}
		}
		displacements[vertex] = r3.Scale(prefactor/float64(numEdges), d)
	})

	coords := m.mutableVertexCoords()
	for vertex, d := range displacements {
		coords.Set(vertex, r3.Add(coords.At(vertex), d))
	}
}

// parallelFor runs fn(i) for i in [0,n) distributed over all CPUs.
func parallelFor(n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
