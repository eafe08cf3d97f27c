package engine

import (
	"fmt"
	"strings"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// Namespace is the per-request scope a script runs in. Keys keep the position
// of their first insertion; rebinding a name does not move it.
type Namespace struct {
	lib       kernel.Library
	keys      []string
	values    map[string]starlark.Value
	bound     []string
	exporters map[string]kernel.Exporter
}

// BuildNamespace imports the named kernel and seeds a fresh namespace with its
// public surface, the exporter builtins and the alias overlay. Import failures
// wrap kernel.ErrUnavailable.
func BuildNamespace(kernelName string) (*Namespace, error) {
	lib, err := kernel.Import(kernelName)
	if err != nil {
		return nil, err
	}
	return newNamespace(lib)
}

func newNamespace(lib kernel.Library) (*Namespace, error) {
	ns := &Namespace{
		lib:       lib,
		values:    map[string]starlark.Value{},
		exporters: map[string]kernel.Exporter{},
	}
	mod := lib.Module()
	if mod == nil {
		return nil, fmt.Errorf("%w: kernel %q has no module", kernel.ErrUnavailable, lib.Name())
	}
	names, err := exportList(mod.Members)
	if err != nil {
		return nil, fmt.Errorf("%w: kernel %q: %v", kernel.ErrUnavailable, lib.Name(), err)
	}
	for _, name := range names {
		if v, ok := mod.Members[name]; ok {
			ns.put(name, v)
		}
	}

	for _, format := range kernel.Formats {
		exp, ok := lib.Exporter(format)
		if !ok {
			return nil, fmt.Errorf("%w: kernel %q has no %s serializer", kernel.ErrUnavailable, lib.Name(), format)
		}
		ns.exporters[format] = exp
		name := "export_" + format
		ns.put(name, exporterBuiltin(name, exp))
	}

	for _, a := range aliases {
		if v, ok := ns.values[a.canonical]; ok {
			ns.put(a.name, v)
		}
	}
	if _, ok := ns.values["math"]; !ok {
		ns.put("math", starlarkmath.Module)
	}
	return ns, nil
}

// exportList honours a declared __all__, falling back to every member not
// starting with an underscore.
func exportList(members starlark.StringDict) ([]string, error) {
	all, ok := members["__all__"]
	if !ok {
		var out []string
		for _, name := range members.Keys() {
			if !strings.HasPrefix(name, "_") {
				out = append(out, name)
			}
		}
		return out, nil
	}
	seq, ok := all.(starlark.Indexable)
	if !ok {
		return nil, fmt.Errorf("__all__ is %s, want a sequence of strings", all.Type())
	}
	out := make([]string, 0, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		s, ok := starlark.AsString(seq.Index(i))
		if !ok {
			return nil, fmt.Errorf("__all__[%d] is %s, want string", i, seq.Index(i).Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func (ns *Namespace) put(name string, v starlark.Value) {
	if _, ok := ns.values[name]; !ok {
		ns.keys = append(ns.keys, name)
	}
	ns.values[name] = v
}

// Bind records a script binding. Script bindings shadow seeded names.
func (ns *Namespace) Bind(name string, v starlark.Value) {
	ns.put(name, v)
	for _, b := range ns.bound {
		if b == name {
			return
		}
	}
	ns.bound = append(ns.bound, name)
}

// Lookup returns the value bound to name.
func (ns *Namespace) Lookup(name string) (starlark.Value, bool) {
	v, ok := ns.values[name]
	return v, ok
}

// Names returns every bound name in insertion order.
func (ns *Namespace) Names() []string {
	return append([]string(nil), ns.keys...)
}

// UserNames returns the names the script bound, in binding order.
func (ns *Namespace) UserNames() []string {
	return append([]string(nil), ns.bound...)
}

// Exporter returns the serializer captured when the namespace was built.
// Scripts rebinding export_* do not affect it.
func (ns *Namespace) Exporter(format string) (kernel.Exporter, bool) {
	exp, ok := ns.exporters[format]
	return exp, ok
}

func (ns *Namespace) Kernel() kernel.Library { return ns.lib }

func (ns *Namespace) predeclared() starlark.StringDict {
	out := make(starlark.StringDict, len(ns.keys))
	for _, k := range ns.keys {
		out[k] = ns.values[k]
	}
	return out
}

// exporterBuiltin exposes a serializer to scripts as
// export_<format>(shape, path, binary=True) -> bool.
func exporterBuiltin(name string, exp kernel.Exporter) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			v      starlark.Value
			path   string
			binary = true
		)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "shape", &v, "path", &path, "binary?", &binary); err != nil {
			return nil, err
		}
		shape, ok := v.(kernel.Shape)
		if !ok {
			return nil, fmt.Errorf("%s: %s is not a shape", b.Name(), v.Type())
		}
		ok, err := exp(shape, path, kernel.ExportOptions{Binary: binary})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.Bool(ok), nil
	})
}
