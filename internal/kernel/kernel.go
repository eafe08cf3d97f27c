// Package kernel defines the contract between the script engine and a geometry
// library, and the process-wide registry libraries are imported from.
//
// A library is exposed to scripts as a frozen Starlark module. Its shapes form a
// closed set of Go types implementing [Shape]; the engine recognises candidate
// results by that interface rather than by probing attributes.
package kernel

import (
	"errors"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ErrUnavailable is returned when a geometry library cannot be imported.
var ErrUnavailable = errors.New("geometry kernel unavailable")

// Export formats every library must provide a serializer for.
const (
	FormatGLTF = "gltf"
	FormatSTEP = "step"
	FormatBREP = "brep"
	FormatSTL  = "stl"
)

// Formats lists the serializer formats in binding order.
var Formats = []string{FormatGLTF, FormatSTEP, FormatBREP, FormatSTL}

// ExportOptions tunes a single serializer call.
type ExportOptions struct {
	// Binary selects the binary container where the format has one (glTF).
	Binary bool
}

// Exporter writes shape to path. A false return with a nil error is a
// serializer-reported failure.
type Exporter func(shape Shape, path string, opts ExportOptions) (bool, error)

// Library is an imported geometry library.
type Library interface {
	Name() string
	// Module returns the frozen module whose members are offered to scripts.
	// A "__all__" member, when present, is the declared export list.
	Module() *starlarkstruct.Module
	Exporter(format string) (Exporter, bool)
}

// Shape is implemented by every geometry value a library hands to scripts.
// Implementations expose the handle as the "wrapped" attribute and the
// position as the "location" attribute.
type Shape interface {
	starlark.HasAttrs
	// Handle returns the kernel object backing the shape.
	Handle() starlark.Value
	// Placement returns the shape's location, or false when it is unset.
	Placement() (Transform, bool)
	SetPlacement(t Transform)
	// Mesh returns a triangulation in world coordinates.
	Mesh() *Mesh
}
