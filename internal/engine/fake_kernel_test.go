package engine

import (
	"errors"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// widget is a minimal shape from a second kernel, so resolution is exercised
// against the interface rather than facet's concrete type.
type widget struct {
	loc *kernel.Transform
}

func (w *widget) String() string        { return "<Widget>" }
func (w *widget) Type() string          { return "Widget" }
func (w *widget) Freeze()               {}
func (w *widget) Truth() starlark.Bool  { return true }
func (w *widget) Hash() (uint32, error) { return 0, errors.New("unhashable") }

func (w *widget) AttrNames() []string { return []string{"location", "wrapped"} }

func (w *widget) Attr(name string) (starlark.Value, error) {
	switch name {
	case "wrapped":
		return starlark.String("handle"), nil
	case "location":
		return starlark.None, nil
	}
	return nil, nil
}

func (w *widget) Handle() starlark.Value { return starlark.String("handle") }

func (w *widget) Placement() (kernel.Transform, bool) {
	if w.loc == nil {
		return kernel.Identity(), false
	}
	return *w.loc, true
}

func (w *widget) SetPlacement(t kernel.Transform) { w.loc = &t }
func (w *widget) Mesh() *kernel.Mesh              { return &kernel.Mesh{} }

type fakeLibrary struct {
	module *starlarkstruct.Module
}

func (f *fakeLibrary) Name() string                   { return "enginetest" }
func (f *fakeLibrary) Module() *starlarkstruct.Module { return f.module }

func (f *fakeLibrary) Exporter(format string) (kernel.Exporter, bool) {
	return func(_ kernel.Shape, path string, _ kernel.ExportOptions) (bool, error) {
		return true, os.WriteFile(path, []byte(format), 0o644)
	}, true
}

func init() {
	kernel.Register("enginetest", func() (kernel.Library, error) {
		return &fakeLibrary{module: &starlarkstruct.Module{
			Name: "enginetest",
			Members: starlark.StringDict{
				"Widget": starlark.NewBuiltin("Widget", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
					return &widget{}, nil
				}),
				"Box": starlark.NewBuiltin("Box", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
					return &widget{}, nil
				}),
				"explode": starlark.NewBuiltin("explode", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
					panic("kernel fault")
				}),
				"_private": starlark.String("hidden"),
			},
		}}, nil
	})
	kernel.Register("enginetest-broken", func() (kernel.Library, error) {
		return nil, errors.New("shared library not found")
	})
}
