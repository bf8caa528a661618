package cell

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func vecNear(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestDegenerate(t *testing.T) {
	_, err := New(r3.Vec{X: 1}, r3.Vec{X: 2}, r3.Vec{Z: 1}, r3.Vec{}, [3]bool{})
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("err = %v, want ErrDegenerate", err)
	}
}

func TestReducedRoundTrip(t *testing.T) {
	c, err := New(
		r3.Vec{X: 2, Y: 0.5},
		r3.Vec{Y: 3},
		r3.Vec{X: 0.25, Z: 4},
		r3.Vec{X: -1, Y: 2, Z: 0.5},
		[3]bool{true, true, true},
	)
	if err != nil {
		t.Fatal(err)
	}
	points := []r3.Vec{
		{},
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: -0.2, Y: 1.7, Z: 0.01},
	}
	for _, p := range points {
		abs := c.ReducedToAbsolute(p)
		back := c.AbsoluteToReduced(abs)
		if !vecNear(p, back, 1e-12) {
			t.Errorf("round trip of %v gave %v", p, back)
		}
	}
	if got, want := c.Volume(), math.Abs(2*3*4); math.Abs(got-want) > 1e-9 {
		t.Errorf("Volume = %g, want %g", got, want)
	}
}

func TestWrapVector(t *testing.T) {
	c := NewCubic(10, true)
	tests := []struct {
		name string
		in   r3.Vec
		want r3.Vec
	}{
		{"inside", r3.Vec{X: 3, Y: -4, Z: 1}, r3.Vec{X: 3, Y: -4, Z: 1}},
		{"across x", r3.Vec{X: 9}, r3.Vec{X: -1}},
		{"across all", r3.Vec{X: 6, Y: -7, Z: 5.5}, r3.Vec{X: -4, Y: 3, Z: -4.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.WrapVector(tc.in); !vecNear(got, tc.want, 1e-12) {
				t.Errorf("WrapVector(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestWrapVectorNonPeriodicAxis(t *testing.T) {
	c, err := NewOrthogonal(10, 10, 10, r3.Vec{}, [3]bool{true, false, false})
	if err != nil {
		t.Fatal(err)
	}
	got := c.WrapVector(r3.Vec{X: 9, Y: 9, Z: 9})
	want := r3.Vec{X: -1, Y: 9, Z: 9}
	if !vecNear(got, want, 1e-12) {
		t.Errorf("WrapVector = %v, want %v", got, want)
	}
}

func TestWrapPoint(t *testing.T) {
	c := NewCubic(2, true)
	got := c.WrapPoint(r3.Vec{X: 2.5, Y: -0.5, Z: 1})
	want := r3.Vec{X: 0.5, Y: 1.5, Z: 1}
	if !vecNear(got, want, 1e-12) {
		t.Errorf("WrapPoint = %v, want %v", got, want)
	}
}
