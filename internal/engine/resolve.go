package engine

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// Tier records how a result was found.
type Tier int

const (
	TierNone Tier = iota
	// TierResult: the script bound "result".
	TierResult
	// TierFallback: one of the conventional names in fallbackNames.
	TierFallback
	// TierScan: the last shape-like value in the namespace.
	TierScan
)

func (t Tier) String() string {
	switch t {
	case TierResult:
		return "result"
	case TierFallback:
		return "fallback"
	case TierScan:
		return "scan"
	default:
		return "none"
	}
}

const resultName = "result"

var fallbackNames = []string{"part", "final_shape", "frame", "assembly", "body", "model"}

// Resolution is the shape chosen from a namespace.
type Resolution struct {
	Shape kernel.Shape
	// Name is the variable the shape was bound to.
	Name string
	Tier Tier
}

// IsShapeLike reports whether v is a kernel shape with a handle.
func IsShapeLike(v starlark.Value) bool {
	s, ok := v.(kernel.Shape)
	return ok && s.Handle() != nil
}

// Resolve picks the script's output: "result", then the fallback names, then
// the last shape-like value in insertion order. A shape without a location is
// given the identity location.
func Resolve(ns *Namespace) (Resolution, error) {
	res, err := pick(ns)
	if err != nil {
		return Resolution{}, err
	}
	if _, ok := res.Shape.Placement(); !ok {
		res.Shape.SetPlacement(kernel.Identity())
	}
	return res, nil
}

func pick(ns *Namespace) (Resolution, error) {
	if v, ok := bound(ns, resultName); ok {
		return named(resultName, v, TierResult)
	}
	for _, name := range fallbackNames {
		if v, ok := bound(ns, name); ok {
			return named(name, v, TierFallback)
		}
	}
	var last Resolution
	for _, name := range ns.Names() {
		v, _ := ns.Lookup(name)
		if IsShapeLike(v) {
			last = Resolution{Shape: v.(kernel.Shape), Name: name, Tier: TierScan}
		}
	}
	if last.Shape != nil {
		return last, nil
	}
	return Resolution{}, &ScriptError{Message: ErrNoResult.Error(), Err: ErrNoResult}
}

func bound(ns *Namespace, name string) (starlark.Value, bool) {
	v, ok := ns.Lookup(name)
	if !ok || v == nil || v == starlark.None {
		return nil, false
	}
	return v, true
}

func named(name string, v starlark.Value, tier Tier) (Resolution, error) {
	if !IsShapeLike(v) {
		return Resolution{}, &ScriptError{
			Message: fmt.Sprintf("variable '%s' is a %s, not a shape that can be exported", name, v.Type()),
		}
	}
	return Resolution{Shape: v.(kernel.Shape), Name: name, Tier: tier}, nil
}
