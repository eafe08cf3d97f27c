package facet

import (
	"fmt"
	"sync/atomic"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

type kind int

const (
	kindSolid kind = iota
	kindSketch
	kindCompound
)

var handleSeq atomic.Uint64

// handle is the kernel object a Shape wraps.
type handle struct {
	id   uint64
	kind kind
	tris int
}

func (h *handle) String() string {
	return fmt.Sprintf("<facet %s #%d, %d triangles>", h.kind, h.id, h.tris)
}
func (h *handle) Type() string          { return "TopoDS_Shape" }
func (h *handle) Freeze()               {}
func (h *handle) Truth() starlark.Bool  { return true }
func (h *handle) Hash() (uint32, error) { return uint32(h.id), nil }

func (k kind) String() string {
	switch k {
	case kindSketch:
		return "face"
	case kindCompound:
		return "compound"
	default:
		return "solid"
	}
}

// Shape is the single concrete shape type of the facet kernel. Solids and
// sketches carry a local mesh; compounds carry children.
type Shape struct {
	class    string
	kind     kind
	local    *kernel.Mesh
	outline  []kernel.Vec3 // sketch boundary, counter-clockwise in z=0
	children []*Shape
	loc      *kernel.Transform
	label    string
	handle   *handle
	frozen   bool
}

var (
	_ kernel.Shape         = (*Shape)(nil)
	_ starlark.HasSetField = (*Shape)(nil)
	_ starlark.HasBinary   = (*Shape)(nil)
)

func newShape(class string, k kind, local *kernel.Mesh) *Shape {
	s := &Shape{class: class, kind: k, local: local}
	s.handle = &handle{id: handleSeq.Add(1), kind: k}
	if local != nil {
		s.handle.tris = len(local.Triangles)
	}
	return s
}

func newCompound(class string, children []*Shape) *Shape {
	s := newShape(class, kindCompound, nil)
	s.children = children
	for _, c := range children {
		s.handle.tris += c.handle.tris
	}
	return s
}

func (s *Shape) String() string {
	if s.label != "" {
		return fmt.Sprintf("<%s %q>", s.class, s.label)
	}
	return fmt.Sprintf("<%s>", s.class)
}
func (s *Shape) Type() string         { return s.class }
func (s *Shape) Truth() starlark.Bool { return true }
func (s *Shape) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: %s", s.class)
}

func (s *Shape) Freeze() {
	if s.frozen {
		return
	}
	s.frozen = true
	for _, c := range s.children {
		c.Freeze()
	}
}

func (s *Shape) Handle() starlark.Value { return s.handle }

func (s *Shape) Placement() (kernel.Transform, bool) {
	if s.loc == nil {
		return kernel.Identity(), false
	}
	return *s.loc, true
}

// SetPlacement is host-side and ignores the frozen flag.
func (s *Shape) SetPlacement(t kernel.Transform) {
	s.loc = &t
}

func (s *Shape) Mesh() *kernel.Mesh {
	placement, _ := s.Placement()
	out := &kernel.Mesh{}
	if s.kind == kindCompound {
		for _, c := range s.children {
			out.Append(c.Mesh())
		}
		return out.Transformed(placement)
	}
	return s.local.Transformed(placement)
}

func (s *Shape) AttrNames() []string {
	return []string{"bounding_box", "label", "located", "location", "moved", "volume", "wrapped"}
}

func (s *Shape) Attr(name string) (starlark.Value, error) {
	switch name {
	case "wrapped":
		return s.handle, nil
	case "location":
		if s.loc == nil {
			return starlark.None, nil
		}
		return &Location{*s.loc}, nil
	case "label":
		return starlark.String(s.label), nil
	case "volume":
		if s.kind == kindSketch {
			return starlark.Float(0), nil
		}
		return starlark.Float(s.Mesh().Volume()), nil
	case "moved", "located":
		return starlark.NewBuiltin(name, s.placeBuiltin).BindReceiver(s), nil
	case "bounding_box":
		return starlark.NewBuiltin(name, s.boundingBox).BindReceiver(s), nil
	}
	return nil, nil
}

func (s *Shape) SetField(name string, val starlark.Value) error {
	if s.frozen {
		return fmt.Errorf("cannot set %s on frozen %s", name, s.class)
	}
	switch name {
	case "location":
		switch v := val.(type) {
		case starlark.NoneType:
			s.loc = nil
		case *Location:
			t := v.t
			s.loc = &t
		default:
			return fmt.Errorf("location must be a Location or None, got %s", val.Type())
		}
		return nil
	case "label":
		str, ok := starlark.AsString(val)
		if !ok {
			return fmt.Errorf("label must be a string, got %s", val.Type())
		}
		s.label = str
		return nil
	}
	return starlark.NoSuchAttrError(fmt.Sprintf("%s has no settable field .%s", s.class, name))
}

// Binary implements "a + b" as a compound. Cutting and intersecting need a
// boolean engine this kernel does not have.
func (s *Shape) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, ok := y.(*Shape)
	if !ok {
		return nil, nil
	}
	switch op {
	case syntax.PLUS, syntax.PIPE:
		a, b := s, other
		if side == starlark.Right {
			a, b = b, a
		}
		return newCompound("Compound", []*Shape{a, b}), nil
	case syntax.MINUS, syntax.AMP:
		return nil, fmt.Errorf("facet kernel: boolean %s is not supported between %s and %s", op, s.class, other.class)
	}
	return nil, nil
}

func (s *Shape) clone() *Shape {
	c := *s
	c.frozen = false
	c.handle = &handle{id: handleSeq.Add(1), kind: s.kind, tris: s.handle.tris}
	return &c
}

// moved applies t on top of the current placement.
func (s *Shape) moved(t kernel.Transform) *Shape {
	c := s.clone()
	cur, _ := s.Placement()
	next := t.Mul(cur)
	c.loc = &next
	return c
}

func (s *Shape) placeBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var loc *Location
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &loc); err != nil {
		return nil, err
	}
	if b.Name() == "moved" {
		return s.moved(loc.t), nil
	}
	c := s.clone()
	t := loc.t
	c.loc = &t
	return c, nil
}

func (s *Shape) boundingBox(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	lo, hi, _ := s.Mesh().Bounds()
	return starlarkstruct.FromStringDict(starlark.String("BoundBox"), starlark.StringDict{
		"min":  Vector{lo},
		"max":  Vector{hi},
		"size": Vector{hi.Sub(lo)},
	}), nil
}
