package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/perimesh/perimesh/pkg/cell"
	"github.com/perimesh/perimesh/pkg/renderable"
	"github.com/perimesh/perimesh/pkg/scene"
	"github.com/perimesh/perimesh/pkg/sdfsurface"
	"github.com/perimesh/perimesh/pkg/surface"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: convex-hull -> convex_hull
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments; zygomys uses // for
		// line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when the hyphen sits between identifier characters, not
		// when it is a minus operator.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps an r3.Vec.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpCell wraps a simulation cell.
type sexpCell struct {
	c *cell.Cell
}

func (c *sexpCell) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(cell :volume %g)", c.c.Volume())
}
func (c *sexpCell) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps a signed-distance solid.
type sexpSolid struct {
	s sdf.SDF3
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	bb := s.s.BoundingBox()
	return fmt.Sprintf("(solid :bounds %gx%gx%g)",
		bb.Max.X-bb.Min.X, bb.Max.Y-bb.Min.Y, bb.Max.Z-bb.Min.Z)
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpMesh wraps a surface mesh.
type sexpMesh struct {
	m *surface.Mesh
}

func (m *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh :vertices %d :faces %d)", m.m.VertexCount(), m.m.FaceCount())
}
func (m *sexpMesh) Type() *zygo.RegisteredType { return nil }

// sexpRenderable wraps a finite renderable mesh.
type sexpRenderable struct {
	m *renderable.Mesh
}

func (r *sexpRenderable) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(renderable :triangles %d :cap-triangles %d)",
		len(r.m.Surface.Faces), len(r.m.CapPolygons.Faces))
}
func (r *sexpRenderable) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string. Returns the
// keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value; treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toCell(s zygo.Sexp) (*cell.Cell, error) {
	if c, ok := s.(*sexpCell); ok {
		return c.c, nil
	}
	return nil, fmt.Errorf("expected cell, got %T (%s)", s, s.SexpString(nil))
}

func toSolid(s zygo.Sexp) (sdf.SDF3, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v.s, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

func toMesh(s zygo.Sexp) (*surface.Mesh, error) {
	if m, ok := s.(*sexpMesh); ok {
		return m.m, nil
	}
	return nil, fmt.Errorf("expected mesh, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// defaultHullEpsilon is the plane-distance tolerance used by the
// convex-hull builtin when the script does not pass one.
const defaultHullEpsilon = 1e-9

// registerBuiltins installs the mesh DSL builtins into a zygomys
// environment. The builtins populate the provided scene during
// evaluation.
//
// Source code must be preprocessed with preprocessSource() before
// evaluation so that :keyword tokens are converted to recognizable
// string literals.
func registerBuiltins(env *zygo.Zlisp, sc *scene.Scene) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}
		return &sexpVec3{vec: r3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (cell :size 10 :periodic true)
	// (cell :size (vec3 2 4 8))
	// (cell :x 10 :y 20 :z 5 :origin (vec3 0 0 0) :periodic false)
	// -----------------------------------------------------------------------
	env.AddFunction("cell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		var lx, ly, lz float64
		if v, ok := pa.kw["size"]; ok {
			// A scalar is a uniform size, a vec3 gives per-axis lengths.
			if sv, ok := v.(*sexpVec3); ok {
				lx, ly, lz = sv.vec.X, sv.vec.Y, sv.vec.Z
			} else {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("cell: size: %w", err)
				}
				lx, ly, lz = f, f, f
			}
		}
		for _, axis := range []struct {
			key string
			dst *float64
		}{{"x", &lx}, {"y", &ly}, {"z", &lz}} {
			if v, ok := pa.kw[axis.key]; ok {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("cell: %s: %w", axis.key, err)
				}
				*axis.dst = f
			}
		}

		var origin r3.Vec
		if v, ok := pa.kw["origin"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cell: origin: %w", err)
			}
			origin = vec
		}

		periodic := false
		if v, ok := pa.kw["periodic"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cell: periodic: %w", err)
			}
			periodic = b
		}

		c, err := cell.NewOrthogonal(lx, ly, lz, origin, [3]bool{periodic, periodic, periodic})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: %w", err)
		}
		return &sexpCell{c: c}, nil
	})

	// -----------------------------------------------------------------------
	// (box :x 10 :y 20 :z 5)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		size := v3.Vec{X: 1, Y: 1, Z: 1}
		for _, axis := range []struct {
			key string
			dst *float64
		}{{"x", &size.X}, {"y", &size.Y}, {"z", &size.Z}} {
			if v, ok := pa.kw[axis.key]; ok {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: %s: %w", axis.key, err)
				}
				*axis.dst = f
			}
		}
		s, err := sdf.Box3D(size, 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return &sexpSolid{s: s}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 10)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		radius := 1.0
		if v, ok := pa.kw["radius"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
			}
			radius = f
		}
		s, err := sdf.Sphere3D(radius)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		return &sexpSolid{s: s}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 20 :radius 5)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		height, radius := 1.0, 1.0
		if v, ok := pa.kw["height"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
			}
			height = f
		}
		if v, ok := pa.kw["radius"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
			}
			radius = f
		}
		s, err := sdf.Cylinder3D(height, radius, 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return &sexpSolid{s: s}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b), (difference a b), (intersection a b)
	// -----------------------------------------------------------------------
	binarySolidOp := func(opName string, op func(a, b sdf.SDF3) sdf.SDF3) {
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly 2 solids, got %d", opName, len(args))
			}
			a, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			b, err := toSolid(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			return &sexpSolid{s: op(a, b)}, nil
		})
	}
	binarySolidOp("union", func(a, b sdf.SDF3) sdf.SDF3 { return sdf.Union3D(a, b) })
	binarySolidOp("difference", func(a, b sdf.SDF3) sdf.SDF3 { return sdf.Difference3D(a, b) })
	binarySolidOp("intersection", func(a, b sdf.SDF3) sdf.SDF3 { return sdf.Intersect3D(a, b) })

	// -----------------------------------------------------------------------
	// (translate solid (vec3 10 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a solid and a vec3")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		vec, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		m := sdf.Translate3d(v3.Vec{X: vec.X, Y: vec.Y, Z: vec.Z})
		return &sexpSolid{s: sdf.Transform3D(s, m)}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate solid 0 0 90) — Euler angles in degrees around X, Y, Z.
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid and 3 angles")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		var angles [3]float64
		for i := 0; i < 3; i++ {
			f, err := toFloat64(args[i+1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: angle %d: %w", i, err)
			}
			angles[i] = f * math.Pi / 180.0
		}
		m := sdf.RotateZ(angles[2]).Mul(sdf.RotateY(angles[1])).Mul(sdf.RotateX(angles[0]))
		return &sexpSolid{s: sdf.Transform3D(s, m)}, nil
	})

	// -----------------------------------------------------------------------
	// (tessellate solid :cells 64 :cell c)
	// -----------------------------------------------------------------------
	env.AddFunction("tessellate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("tessellate requires a solid as first argument")
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tessellate: %w", err)
		}
		opts := sdfsurface.Options{}
		if v, ok := pa.kw["cells"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tessellate: cells: %w", err)
			}
			opts.MeshCells = n
		}
		if v, ok := pa.kw["cell"]; ok {
			c, err := toCell(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tessellate: cell: %w", err)
			}
			opts.Cell = c
		}
		m, err := sdfsurface.FromSDF(s, opts)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tessellate: %w", err)
		}
		return &sexpMesh{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (convex-hull :points (list (vec3 ...) ...) :cell c :epsilon 1e-9)
	//
	// Registered as "convex_hull"; the preprocessor converts the
	// kebab-case form in the source.
	// -----------------------------------------------------------------------
	env.AddFunction("convex_hull", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		v, ok := pa.kw["points"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("convex-hull requires a :points list")
		}
		items, err := sexpListToSlice(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("convex-hull: points: %w", err)
		}
		points := make([]r3.Vec, 0, len(items))
		for i, item := range items {
			vec, err := toVec3(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("convex-hull: point %d: %w", i, err)
			}
			points = append(points, vec)
		}

		epsilon := defaultHullEpsilon
		if v, ok := pa.kw["epsilon"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("convex-hull: epsilon: %w", err)
			}
			epsilon = f
		}

		var cl *cell.Cell
		if v, ok := pa.kw["cell"]; ok {
			cl, err = toCell(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("convex-hull: cell: %w", err)
			}
		} else {
			cl, err = boundingCellOf(points)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("convex-hull: %w", err)
			}
		}

		m := surface.NewMesh(cl)
		m.CreateRegion(0, 0, 0)
		m.SetSpaceFillingRegion(0)
		m.ConstructConvexHull(points, epsilon)
		return &sexpMesh{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (smooth mesh :iterations 8 :lambda 0.7 :pass-band 0.1)
	// -----------------------------------------------------------------------
	env.AddFunction("smooth", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("smooth requires a mesh as first argument")
		}
		m, err := toMesh(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("smooth: %w", err)
		}
		iterations := 8
		if v, ok := pa.kw["iterations"]; ok {
			iterations, err = toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("smooth: iterations: %w", err)
			}
		}
		lambda := surface.DefaultSmoothingLambda
		if v, ok := pa.kw["lambda"]; ok {
			lambda, err = toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("smooth: lambda: %w", err)
			}
		}
		kPB := surface.DefaultSmoothingPassBand
		if v, ok := pa.kw["pass-band"]; ok {
			kPB, err = toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("smooth: pass-band: %w", err)
			}
		}
		if err := m.Smooth(context.Background(), iterations, kPB, lambda); err != nil {
			return zygo.SexpNull, fmt.Errorf("smooth: %w", err)
		}
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (join-coplanar mesh :angle 0.001) — threshold in radians.
	// -----------------------------------------------------------------------
	env.AddFunction("join_coplanar", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("join-coplanar requires a mesh as first argument")
		}
		m, err := toMesh(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("join-coplanar: %w", err)
		}
		angle := surface.DefaultJoinAngle
		if v, ok := pa.kw["angle"]; ok {
			angle, err = toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("join-coplanar: angle: %w", err)
			}
		}
		m.JoinCoplanarFaces(angle)
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (locate mesh (vec3 1 2 3) :epsilon 1e-9) — returns the region index.
	// -----------------------------------------------------------------------
	env.AddFunction("locate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("locate requires a mesh and a vec3")
		}
		m, err := toMesh(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("locate: %w", err)
		}
		p, err := toVec3(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("locate: %w", err)
		}
		epsilon := 0.0
		if v, ok := pa.kw["epsilon"]; ok {
			epsilon, err = toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("locate: epsilon: %w", err)
			}
		}
		region, err := m.LocatePoint(p, epsilon, nil)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("locate: %w", err)
		}
		return &zygo.SexpInt{Val: int64(region)}, nil
	})

	// -----------------------------------------------------------------------
	// (flip mesh)
	// -----------------------------------------------------------------------
	env.AddFunction("flip", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("flip requires exactly 1 mesh")
		}
		m, err := toMesh(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("flip: %w", err)
		}
		m.FlipFaces()
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (renderable mesh :caps true :reverse false :smooth-shading true)
	// -----------------------------------------------------------------------
	env.AddFunction("renderable", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("renderable requires a mesh as first argument")
		}
		m, err := toMesh(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("renderable: %w", err)
		}
		opts := renderable.Options{}
		for _, flag := range []struct {
			key string
			dst *bool
		}{
			{"caps", &opts.GenerateCapPolygons},
			{"reverse", &opts.ReverseOrientation},
			{"smooth-shading", &opts.SmoothShading},
		} {
			if v, ok := pa.kw[flag.key]; ok {
				b, err := toBool(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("renderable: %s: %w", flag.key, err)
				}
				*flag.dst = b
			}
		}
		out, err := renderable.Build(context.Background(), m, opts)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("renderable: %w", err)
		}
		return &sexpRenderable{m: out}, nil
	})

	// -----------------------------------------------------------------------
	// (defmesh "name" mesh)
	// -----------------------------------------------------------------------
	env.AddFunction("defmesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("defmesh requires a name and a mesh")
		}
		meshName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defmesh: name: %w", err)
		}
		m, err := toMesh(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defmesh: %w", err)
		}
		sc.AddMesh(meshName, m)
		return args[1], nil
	})

	// -----------------------------------------------------------------------
	// (mesh "name")
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("mesh requires a name argument")
		}
		meshName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: name: %w", err)
		}
		m := sc.Mesh(meshName)
		if m == nil {
			return zygo.SexpNull, fmt.Errorf("mesh: no mesh named %q", meshName)
		}
		return &sexpMesh{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (defrender "name" (renderable ...))
	// -----------------------------------------------------------------------
	env.AddFunction("defrender", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("defrender requires a name and a renderable")
		}
		renderName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defrender: name: %w", err)
		}
		r, ok := args[1].(*sexpRenderable)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("defrender: expected renderable, got %T (%s)",
				args[1], args[1].SexpString(nil))
		}
		sc.AddRenderable(renderName, r.m)
		return args[1], nil
	})
}

// boundingCellOf derives a non-periodic cell enclosing the given points
// with a small margin, for hulls built without an explicit cell.
func boundingCellOf(points []r3.Vec) (*cell.Cell, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points")
	}
	min, max := points[0], points[0]
	for _, p := range points[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	size := r3.Sub(max, min)
	margin := math.Max(r3.Norm(size)*0.01, 1e-3)
	return cell.NewOrthogonal(
		size.X+2*margin, size.Y+2*margin, size.Z+2*margin,
		r3.Sub(min, r3.Vec{X: margin, Y: margin, Z: margin}),
		[3]bool{false, false, false})
}
