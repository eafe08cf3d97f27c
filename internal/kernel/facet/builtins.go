package facet

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// MaxSides bounds RegularPolygon. Builtins cannot be interrupted by the
// execution deadline, so their work must stay small.
const MaxSides = 4096

// number unpacks an int or float argument.
type number float64

func (n *number) Unpack(v starlark.Value) error {
	f, ok := starlark.AsFloat(v)
	if !ok {
		return fmt.Errorf("got %s, want number", v.Type())
	}
	*n = number(f)
	return nil
}

// point unpacks a Vector or a tuple of two or three numbers.
type point kernel.Vec3

func (p *point) Unpack(v starlark.Value) error {
	vec, err := toVec3(v)
	if err != nil {
		return err
	}
	*p = point(vec)
	return nil
}

type builtinFunc func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

func positive(fn, param string, v number) error {
	if v <= 0 {
		return fmt.Errorf("%s: %s must be positive, got %g", fn, param, float64(v))
	}
	return nil
}

func box(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var l, w, h number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "length", &l, "width", &w, "height", &h); err != nil {
		return nil, err
	}
	for _, d := range []struct {
		name string
		v    number
	}{{"length", l}, {"width", w}, {"height", h}} {
		if err := positive(b.Name(), d.name, d.v); err != nil {
			return nil, err
		}
	}
	return newShape("Box", kindSolid, boxMesh(float64(l), float64(w), float64(h))), nil
}

func cylinder(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var r, h number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "radius", &r, "height", &h); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "radius", r); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "height", h); err != nil {
		return nil, err
	}
	return newShape("Cylinder", kindSolid, frustumMesh(float64(r), float64(r), float64(h))), nil
}

func cone(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var r0, r1, h number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "bottom_radius", &r0, "top_radius", &r1, "height", &h); err != nil {
		return nil, err
	}
	if r0 < 0 || r1 < 0 || r0+r1 == 0 {
		return nil, fmt.Errorf("%s: radii must be non-negative and not both zero", b.Name())
	}
	if err := positive(b.Name(), "height", h); err != nil {
		return nil, err
	}
	return newShape("Cone", kindSolid, frustumMesh(float64(r0), float64(r1), float64(h))), nil
}

func sphere(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var r number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "radius", &r); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "radius", r); err != nil {
		return nil, err
	}
	return newShape("Sphere", kindSolid, sphereMesh(float64(r))), nil
}

func torus(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var major, minor number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "major_radius", &major, "minor_radius", &minor); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "minor_radius", minor); err != nil {
		return nil, err
	}
	if major <= minor {
		return nil, fmt.Errorf("%s: major_radius must exceed minor_radius", b.Name())
	}
	return newShape("Torus", kindSolid, torusMesh(float64(major), float64(minor))), nil
}

func newSketch(fn, class string, outline []kernel.Vec3) (*Shape, error) {
	ccw, err := orient(outline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	m, err := faceMesh(ccw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	s := newShape(class, kindSketch, m)
	s.outline = ccw
	return s, nil
}

func circle(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var r number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "radius", &r); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "radius", r); err != nil {
		return nil, err
	}
	return newSketch(b.Name(), "Circle", circleOutline(float64(r)))
}

func rectangle(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var w, h number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "width", &w, "height", &h); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "width", w); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "height", h); err != nil {
		return nil, err
	}
	return newSketch(b.Name(), "Rectangle", rectOutline(float64(w), float64(h)))
}

// polygon accepts points either spread as arguments or as a single list.
func polygon(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword argument %s", b.Name(), kwargs[0][0])
	}
	pts := args
	if len(args) == 1 {
		if l, ok := args[0].(*starlark.List); ok {
			pts = make(starlark.Tuple, l.Len())
			for i := range pts {
				pts[i] = l.Index(i)
			}
		}
	}
	outline := make([]kernel.Vec3, 0, len(pts))
	for i, p := range pts {
		v, err := toVec3(p)
		if err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", b.Name(), i, err)
		}
		outline = append(outline, kernel.Vec3{v[0], v[1], 0})
	}
	return newSketch(b.Name(), "Polygon", outline)
}

func regularPolygon(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var r number
	var sides int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "radius", &r, "side_count", &sides); err != nil {
		return nil, err
	}
	if err := positive(b.Name(), "radius", r); err != nil {
		return nil, err
	}
	if sides < 3 || sides > MaxSides {
		return nil, fmt.Errorf("%s: side_count must be between 3 and %d, got %d", b.Name(), MaxSides, sides)
	}
	return newSketch(b.Name(), "RegularPolygon", regularOutline(float64(r), sides))
}

func extrude(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var sk *Shape
	var amount number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "to_extrude", &sk, "amount", &amount); err != nil {
		return nil, err
	}
	if sk.kind != kindSketch {
		return nil, fmt.Errorf("%s: want a sketch, got %s", b.Name(), sk.class)
	}
	if amount == 0 {
		return nil, fmt.Errorf("%s: amount must be non-zero", b.Name())
	}
	m, err := prismMesh(sk.outline, float64(amount))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	s := newShape("Solid", kindSolid, m)
	s.loc = sk.loc
	return s, nil
}

func compound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var children starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "children", &children); err != nil {
		return nil, err
	}
	var out []*Shape
	it := children.Iterate()
	defer it.Done()
	var v starlark.Value
	for it.Next(&v) {
		s, ok := v.(*Shape)
		if !ok {
			return nil, fmt.Errorf("%s: children must be shapes, got %s", b.Name(), v.Type())
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no children", b.Name())
	}
	return newCompound("Compound", out), nil
}

func location(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pos, rot point
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "position?", &pos, "rotation?", &rot); err != nil {
		return nil, err
	}
	t := kernel.RotateXYZ(kernel.Vec3(rot))
	t.Translation = kernel.Vec3(pos)
	return &Location{t}, nil
}

// xyz unpacks Pos/Rot/Vector arguments: three numbers, or one tuple or Vector.
func xyz(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (kernel.Vec3, error) {
	if len(args) == 1 && len(kwargs) == 0 {
		if _, ok := starlark.AsFloat(args[0]); !ok {
			v, err := toVec3(args[0])
			if err != nil {
				return kernel.Vec3{}, fmt.Errorf("%s: %w", b.Name(), err)
			}
			return v, nil
		}
	}
	var x, y, z number
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x?", &x, "y?", &y, "z?", &z); err != nil {
		return kernel.Vec3{}, err
	}
	return kernel.Vec3{float64(x), float64(y), float64(z)}, nil
}

func pos(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	v, err := xyz(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return &Location{kernel.Translate(v)}, nil
}

func rot(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	v, err := xyz(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return &Location{kernel.RotateXYZ(v)}, nil
}

func vector(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	v, err := xyz(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return Vector{v}, nil
}
