package engine

import (
	"reflect"
	"testing"

	"go.starlark.net/starlark"
)

func TestBindingOrder(t *testing.T) {
	src := `
b = 1
a, (c, d) = 2, (3, 4)
[e] = [5]
def f(x):
    hidden = x
    return hidden
for i in range(2):
    g = i
if b:
    h = 1
else:
    k = 2
while False:
    w = 1
b = 9
`
	f, err := fileOptions.Parse("t.py", src, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"b", "a", "c", "d", "e", "f", "i", "g", "h", "k", "w"}
	if got := bindingOrder(f); !reflect.DeepEqual(got, want) {
		t.Fatalf("bindingOrder = %v, want %v", got, want)
	}
}

func TestOrderGlobalsAppendsUnwalked(t *testing.T) {
	f, err := fileOptions.Parse("t.py", "z = 1\ny = 2", 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	globals := starlark.StringDict{
		"y":     starlark.MakeInt(2),
		"z":     starlark.MakeInt(1),
		"extra": starlark.None,
		"alpha": starlark.None,
	}
	got := orderGlobals(f, globals)
	want := []string{"z", "y", "alpha", "extra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("orderGlobals = %v, want %v", got, want)
	}
	if got := orderGlobals(nil, starlark.StringDict{}); len(got) != 0 {
		t.Fatalf("orderGlobals(nil) = %v", got)
	}
}
