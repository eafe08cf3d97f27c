// Package facet is a triangle-mesh geometry kernel. It offers build123d-style
// constructors to scripts and serializes shapes to glTF, STEP, BREP and STL.
//
// Shapes are tessellated on construction. There is no boolean engine: "+"
// groups shapes into a compound, and cutting is reported as unsupported.
package facet

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// Name is the registry name of this kernel.
const Name = "facet"

func init() {
	kernel.Register(Name, func() (kernel.Library, error) { return New(), nil })
}

type library struct {
	module    *starlarkstruct.Module
	exporters map[string]kernel.Exporter
}

// New builds an unregistered instance of the kernel.
func New() kernel.Library {
	funcs := []struct {
		name string
		fn   builtinFunc
	}{
		{"Box", box},
		{"Cylinder", cylinder},
		{"Cone", cone},
		{"Sphere", sphere},
		{"Torus", torus},
		{"Circle", circle},
		{"Rectangle", rectangle},
		{"Polygon", polygon},
		{"RegularPolygon", regularPolygon},
		{"extrude", extrude},
		{"Compound", compound},
		{"Location", location},
		{"Pos", pos},
		{"Rot", rot},
		{"Vector", vector},
	}
	members := starlark.StringDict{}
	all := make([]starlark.Value, 0, len(funcs))
	for _, f := range funcs {
		members[f.name] = starlark.NewBuiltin(f.name, f.fn)
		all = append(all, starlark.String(f.name))
	}
	members["__all__"] = starlark.NewList(all)
	members["__version__"] = starlark.String("1.0")

	return &library{
		module: &starlarkstruct.Module{Name: Name, Members: members},
		exporters: map[string]kernel.Exporter{
			kernel.FormatGLTF: exportGLTF,
			kernel.FormatSTEP: exportSTEP,
			kernel.FormatBREP: exportBREP,
			kernel.FormatSTL:  exportSTL,
		},
	}
}

func (l *library) Name() string                   { return Name }
func (l *library) Module() *starlarkstruct.Module { return l.module }

func (l *library) Exporter(format string) (kernel.Exporter, bool) {
	e, ok := l.exporters[format]
	return e, ok
}
