package facet

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// Vector is an immutable 3D point or direction.
type Vector struct {
	v kernel.Vec3
}

var (
	_ starlark.HasAttrs  = Vector{}
	_ starlark.HasBinary = Vector{}
	_ starlark.Indexable = Vector{}
)

func (v Vector) String() string {
	return fmt.Sprintf("Vector(%g, %g, %g)", v.v[0], v.v[1], v.v[2])
}
func (v Vector) Type() string          { return "Vector" }
func (v Vector) Freeze()               {}
func (v Vector) Truth() starlark.Bool  { return v.v != kernel.Vec3{} }
func (v Vector) Hash() (uint32, error) { return starlark.Tuple{v.Index(0), v.Index(1), v.Index(2)}.Hash() }
func (v Vector) Len() int              { return 3 }
func (v Vector) Index(i int) starlark.Value {
	return starlark.Float(v.v[i])
}

func (v Vector) AttrNames() []string { return []string{"X", "Y", "Z", "length"} }

func (v Vector) Attr(name string) (starlark.Value, error) {
	switch name {
	case "X":
		return starlark.Float(v.v[0]), nil
	case "Y":
		return starlark.Float(v.v[1]), nil
	case "Z":
		return starlark.Float(v.v[2]), nil
	case "length":
		return starlark.Float(v.v.Len()), nil
	}
	return nil, nil
}

func (v Vector) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS:
		w, ok := y.(Vector)
		if !ok {
			return nil, nil
		}
		a, b := v.v, w.v
		if side == starlark.Right {
			a, b = b, a
		}
		if op == syntax.PLUS {
			return Vector{a.Add(b)}, nil
		}
		return Vector{a.Sub(b)}, nil
	case syntax.STAR:
		s, ok := starlark.AsFloat(y)
		if !ok {
			return nil, nil
		}
		return Vector{v.v.Scale(s)}, nil
	}
	return nil, nil
}

// Location is a script-visible placement.
type Location struct {
	t kernel.Transform
}

var (
	_ starlark.HasAttrs  = (*Location)(nil)
	_ starlark.HasBinary = (*Location)(nil)
)

func (l *Location) String() string {
	p, r := l.t.Translation, l.t.EulerXYZ()
	return fmt.Sprintf("Location((%g, %g, %g), (%g, %g, %g))", p[0], p[1], p[2], r[0], r[1], r[2])
}
func (l *Location) Type() string          { return "Location" }
func (l *Location) Freeze()               {}
func (l *Location) Truth() starlark.Bool  { return true }
func (l *Location) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: Location") }

func (l *Location) AttrNames() []string { return []string{"inverse", "orientation", "position"} }

func (l *Location) Attr(name string) (starlark.Value, error) {
	switch name {
	case "position":
		return Vector{l.t.Translation}, nil
	case "orientation":
		return Vector{l.t.EulerXYZ()}, nil
	case "inverse":
		return starlark.NewBuiltin("inverse", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return &Location{inverse(l.t)}, nil
		}), nil
	}
	return nil, nil
}

// Binary composes locations and moves shapes: loc * loc, loc * shape.
func (l *Location) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op != syntax.STAR {
		return nil, nil
	}
	switch y := y.(type) {
	case *Location:
		if side == starlark.Left {
			return &Location{l.t.Mul(y.t)}, nil
		}
		return &Location{y.t.Mul(l.t)}, nil
	case *Shape:
		if side == starlark.Left {
			return y.moved(l.t), nil
		}
	}
	return nil, nil
}

func inverse(t kernel.Transform) kernel.Transform {
	var out kernel.Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Rotation[i][j] = t.Rotation[j][i]
		}
	}
	out.Translation = out.ApplyVector(t.Translation).Scale(-1)
	return out
}

// toVec3 accepts a Vector or a sequence of two or three numbers.
func toVec3(v starlark.Value) (kernel.Vec3, error) {
	if vec, ok := v.(Vector); ok {
		return vec.v, nil
	}
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return kernel.Vec3{}, fmt.Errorf("want a Vector or tuple of numbers, got %s", v.Type())
	}
	n := seq.Len()
	if n < 2 || n > 3 {
		return kernel.Vec3{}, fmt.Errorf("want 2 or 3 coordinates, got %d", n)
	}
	var out kernel.Vec3
	for i := 0; i < n; i++ {
		f, ok := starlark.AsFloat(seq.Index(i))
		if !ok {
			return kernel.Vec3{}, fmt.Errorf("coordinate %d is %s, not a number", i, seq.Index(i).Type())
		}
		out[i] = f
	}
	return out, nil
}
