package main

import (
	"context"
	"log"

	"github.com/perimesh/perimesh/pkg/engine"
	"github.com/perimesh/perimesh/pkg/renderable"
	"github.com/perimesh/perimesh/pkg/scene"
)

// colorPalette is a default palette used to assign distinct colors to meshes.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App evaluates mesh scripts and turns the resulting scene into
// flat, JSON-serializable render payloads.
type App struct {
	ctx    context.Context
	engine *engine.Engine
}

// MeshData is the JSON-serializable mesh format for viewers.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of one evaluation.
type EvalResult struct {
	Meshes []MeshData      `json:"meshes"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp creates a new App with a fresh engine.
func NewApp() *App {
	return &App{
		engine: engine.NewEngine(),
	}
}

// startup saves the context for later cancellation of long builds.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Evaluate takes Lisp source and returns mesh data + errors.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes: []MeshData{},
		Errors: []EvalErrorData{},
	}

	sc, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: err.Error(),
		})
		return result
	}

	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// Meshes registered with defmesh are built into their finite
	// renderable form here; defrender entries are used as-is.
	for i, name := range sc.Names() {
		entry := sc.Lookup(name)
		var rm *renderable.Mesh
		switch entry.Kind {
		case scene.KindRenderable:
			rm = entry.Renderable
		case scene.KindMesh:
			rm, err = renderable.Build(ctx, entry.Mesh, renderable.Options{
				SmoothShading:       true,
				GenerateCapPolygons: true,
			})
			if err != nil {
				log.Printf("build error for %q: %v", name, err)
				result.Errors = append(result.Errors, EvalErrorData{
					Message: "building " + name + " failed: " + err.Error(),
				})
				continue
			}
		}
		color := colorPalette[i%len(colorPalette)]
		result.Meshes = append(result.Meshes, flattenMesh(rm, name, color))
	}

	return result
}

// flattenMesh converts a renderable mesh into the unindexed
// vertex/normal/index arrays viewers consume. Cap polygons are appended
// after the surface triangles.
func flattenMesh(rm *renderable.Mesh, name, color string) MeshData {
	md := MeshData{Name: name, Color: color}
	md.Vertices, md.Normals, md.Indices = rm.Buffers()
	return md
}
