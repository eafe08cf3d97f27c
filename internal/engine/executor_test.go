package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.starlark.net/starlark"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/nfinit-engine/internal/kernel"
	"github.com/yungbote/nfinit-engine/internal/kernel/facet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExecutor(cfg Config) *Executor {
	if cfg.Kernel == "" {
		cfg.Kernel = facet.Name
	}
	return NewExecutor(cfg, nil)
}

func mustRun(t *testing.T, code string) *Result {
	t.Helper()
	res, err := newTestExecutor(Config{}).Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func runErr(t *testing.T, cfg Config, code string) error {
	t.Helper()
	_, err := newTestExecutor(cfg).Run(context.Background(), code)
	if err == nil {
		t.Fatalf("Run succeeded, want error")
	}
	return err
}

func TestResolution(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantName string
		wantTier Tier
	}{
		{
			name:     "result wins over other shapes",
			code:     "part = Box(1, 1, 1)\nresult = Sphere(2)\nextra = Cylinder(1, 2)",
			wantName: "result",
			wantTier: TierResult,
		},
		{
			name:     "part alone",
			code:     "part = Box(1, 2, 3)",
			wantName: "part",
			wantTier: TierFallback,
		},
		{
			name:     "fallback order",
			code:     "model = Box(1, 1, 1)\nbody = Sphere(1)",
			wantName: "body",
			wantTier: TierFallback,
		},
		{
			name:     "none result falls through",
			code:     "result = None\nbracket = Box(1, 1, 1)",
			wantName: "bracket",
			wantTier: TierScan,
		},
		{
			name:     "last anonymous shape wins",
			code:     "a = Box(1, 1, 1)\nb = Sphere(1)",
			wantName: "b",
			wantTier: TierScan,
		},
		{
			name:     "rebinding keeps first position",
			code:     "a = Box(1, 1, 1)\nb = Sphere(1)\na = Cylinder(1, 1)",
			wantName: "b",
			wantTier: TierScan,
		},
		{
			name:     "bindings inside top-level control flow",
			code:     "for i in range(3):\n    last = Box(i + 1, 1, 1)\nif True:\n    final = Sphere(1)",
			wantName: "final",
			wantTier: TierScan,
		},
		{
			name:     "function bodies are not scanned",
			code:     "def make():\n    inner = Box(1, 1, 1)\n    return inner\nshape = make()",
			wantName: "shape",
			wantTier: TierScan,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := mustRun(t, tt.code)
			if res.Name != tt.wantName || res.Tier != tt.wantTier {
				t.Fatalf("resolved %s (%s), want %s (%s)", res.Name, res.Tier, tt.wantName, tt.wantTier)
			}
		})
	}
}

func TestNoShapeIsNoResult(t *testing.T) {
	err := runErr(t, Config{}, "x = 1\nname = 'bracket'")
	if !errors.Is(err, ErrNoResult) || !errors.Is(err, ErrScriptExecution) {
		t.Fatalf("err = %v, want ErrNoResult wrapping ErrScriptExecution", err)
	}
	if err.Error() != ErrNoResult.Error() {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestNonShapeResultIsRejected(t *testing.T) {
	err := runErr(t, Config{}, "result = 42\nother = Box(1, 1, 1)")
	if !errors.Is(err, ErrScriptExecution) || errors.Is(err, ErrNoResult) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "'result' is a int") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestScriptErrorsCarryPosition(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantLine int
		wantMsg  string
	}{
		{"syntax", "a = 1\nresult = = Box(1, 1, 1)", 2, ""},
		{"undefined name", "a = 1\nresult = Bxo(1, 1, 1)", 2, "undefined: Bxo"},
		{"runtime", "a = 1\n\nresult = Box(-1, 1, 1)", 3, "length must be positive"},
		{"nested call", "def f():\n    return Sphere(0)\nresult = f()", 2, "radius must be positive"},
		{"counted after fence", "```python\nfrom build123d import *\nresult = Bxo(1, 1, 1)\n```", 2, "undefined: Bxo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, Config{}, tt.code)
			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("err = %T %v, want *ScriptError", err, err)
			}
			if !errors.Is(err, ErrScriptExecution) {
				t.Fatalf("err does not match ErrScriptExecution")
			}
			if se.Line != tt.wantLine {
				t.Fatalf("line = %d, want %d (%v)", se.Line, tt.wantLine, err)
			}
			if tt.wantMsg != "" && !strings.Contains(se.Message, tt.wantMsg) {
				t.Fatalf("message = %q, want %q", se.Message, tt.wantMsg)
			}
		})
	}
}

func TestFencedMatchesUnfenced(t *testing.T) {
	body := "part = Box(10, 20, 30)\nresult = part.moved(Pos(0, 0, 15))"
	plain := mustRun(t, body)
	for _, fenced := range []string{
		"```python\n" + body + "\n```",
		"```py\n" + body + "\n```\n",
		"  ```\n" + body + "\n```  ",
		body + "\n```",
		"```python\n" + body + "```",
	} {
		res := mustRun(t, fenced)
		if res.Name != plain.Name || res.Tier != plain.Tier {
			t.Fatalf("fenced resolved %s/%s, plain %s/%s", res.Name, res.Tier, plain.Name, plain.Tier)
		}
		if got, want := res.Shape.Mesh().Volume(), plain.Shape.Mesh().Volume(); got != want {
			t.Fatalf("volume %v != %v", got, want)
		}
	}
}

func TestUnsetLocationIsNormalized(t *testing.T) {
	res := mustRun(t, "result = Box(1, 1, 1)")
	place, ok := res.Shape.Placement()
	if !ok {
		t.Fatal("location still unset after resolution")
	}
	if place != kernel.Identity() {
		t.Fatalf("placement = %+v, want identity", place)
	}
	loc, err := res.Shape.Attr("location")
	if err != nil || loc == starlark.None {
		t.Fatalf("location attr = %v, %v", loc, err)
	}

	moved := mustRun(t, "result = Pos(1, 0, 0) * Box(1, 1, 1)")
	place, _ = moved.Shape.Placement()
	if place.Translation != (kernel.Vec3{1, 0, 0}) {
		t.Fatalf("existing placement overwritten: %+v", place)
	}
}

func TestPythonShapedScript(t *testing.T) {
	res := mustRun(t, `
from build123d import *
import math

width = 10
height = math.sqrt(16)
sides = set([3, 4])
base = create_rectangle(width, height)
result = extrude(base, amount=2)
print("sides", len(sides))
`)
	if res.Name != "result" {
		t.Fatalf("resolved %s", res.Name)
	}
	if res.Output != "sides 2\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if v := res.Shape.Mesh().Volume(); math.Abs(v-80) > 1e-9 {
		t.Fatalf("volume = %v, want 80", v)
	}
}

func TestAliasesResolveToCanonical(t *testing.T) {
	ns, err := BuildNamespace(facet.Name)
	if err != nil {
		t.Fatalf("BuildNamespace: %v", err)
	}
	for _, a := range aliases {
		got, ok := ns.Lookup(a.name)
		want, _ := ns.Lookup(a.canonical)
		if !ok || got != want {
			t.Errorf("%s does not resolve to %s", a.name, a.canonical)
		}
	}
	for _, format := range kernel.Formats {
		if _, ok := ns.Lookup("export_" + format); !ok {
			t.Errorf("export_%s not bound", format)
		}
	}
}

func TestNamespaceSkipsMissingCanonicals(t *testing.T) {
	ns, err := BuildNamespace("enginetest")
	if err != nil {
		t.Fatalf("BuildNamespace: %v", err)
	}
	if _, ok := ns.Lookup("make_box"); !ok {
		t.Error("make_box should alias Box")
	}
	for _, name := range []string{"make_sphere", "create_polygon", "_private"} {
		if _, ok := ns.Lookup(name); ok {
			t.Errorf("%s should not be bound", name)
		}
	}
	names := ns.Names()
	if names[0] != "Box" || names[1] != "Widget" {
		t.Fatalf("kernel members not first in sorted order: %v", names)
	}
}

func TestResolutionUsesShapeInterface(t *testing.T) {
	res, err := newTestExecutor(Config{Kernel: "enginetest"}).Run(context.Background(), "thing = Widget()\nresult = None")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Name != "thing" || res.Shape.Type() != "Widget" {
		t.Fatalf("resolved %s (%s)", res.Name, res.Shape.Type())
	}
	if _, ok := res.Shape.Placement(); !ok {
		t.Fatal("widget location not normalized")
	}
}

func TestBuiltinPanicIsScriptError(t *testing.T) {
	err := runErr(t, Config{Kernel: "enginetest"}, "result = explode()")
	if !errors.Is(err, ErrScriptExecution) || !strings.Contains(err.Error(), "kernel fault") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnavailableKernel(t *testing.T) {
	for _, name := range []string{"enginetest-broken", "missing-kernel"} {
		err := runErr(t, Config{Kernel: name}, "result = Box(1, 1, 1)")
		if !errors.Is(err, kernel.ErrUnavailable) {
			t.Fatalf("%s: err = %v, want ErrUnavailable", name, err)
		}
		if errors.Is(err, ErrScriptExecution) {
			t.Fatalf("%s: unavailable kernel reported as script error", name)
		}
	}
	if err := newTestExecutor(Config{Kernel: "missing-kernel"}).Ready(); !errors.Is(err, kernel.ErrUnavailable) {
		t.Fatalf("Ready = %v", err)
	}
	if err := newTestExecutor(Config{}).Ready(); err != nil {
		t.Fatalf("Ready = %v", err)
	}
}

func TestRecursionIsScriptError(t *testing.T) {
	for name, code := range map[string]string{
		"direct": "def f(n):\n    return f(n + 1)\nresult = f(0)",
		"mutual": "def f(n):\n    return g(n + 1)\ndef g(n):\n    return f(n + 1)\nresult = f(0)",
	} {
		t.Run(name, func(t *testing.T) {
			err := runErr(t, Config{}, code)
			if !errors.Is(err, ErrScriptExecution) || errors.Is(err, ErrLimitExceeded) {
				t.Fatalf("err = %v, want a plain script error", err)
			}
			if !strings.Contains(err.Error(), "called recursively") {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}

func TestTimeoutStopsScript(t *testing.T) {
	start := time.Now()
	err := runErr(t, Config{Timeout: 50 * time.Millisecond}, "x = 0\nwhile True:\n    x += 1")
	if !errors.Is(err, ErrLimitExceeded) || !errors.Is(err, ErrScriptExecution) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}
}

func TestStepBudget(t *testing.T) {
	err := runErr(t, Config{MaxSteps: 10000}, "x = 0\nfor i in range(1000000):\n    x += i\nresult = Box(1, 1, 1)")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
	if !strings.Contains(err.Error(), "10000") {
		t.Fatalf("message = %q", err.Error())
	}
	// A small script stays within the same budget.
	if _, err := newTestExecutor(Config{MaxSteps: 10000}).Run(context.Background(), "result = Box(1, 1, 1)"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestExecutor(Config{}).Run(ctx, "result = Box(1, 1, 1)")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
}

func TestScriptCannotReplaceDispatcherExporter(t *testing.T) {
	res := mustRun(t, "export_stl = 1\nresult = Box(1, 1, 1)")
	v, _ := res.Namespace.Lookup("export_stl")
	if i, ok := v.(starlark.Int); !ok || i.String() != "1" {
		t.Fatalf("script binding lost: %v", v)
	}
	exp, ok := res.Namespace.Exporter(kernel.FormatSTL)
	if !ok || exp == nil {
		t.Fatal("dispatcher exporter missing")
	}
	path := filepath.Join(t.TempDir(), "out.stl")
	if ok, err := exp(res.Shape, path, kernel.ExportOptions{}); !ok || err != nil {
		t.Fatalf("exporter = %v, %v", ok, err)
	}
}

func TestScriptMayCallExporters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "side.stl")
	res := mustRun(t, fmt.Sprintf("result = Box(1, 1, 1)\nok = export_stl(result, %q)", path))
	v, _ := res.Namespace.Lookup("ok")
	if v != starlark.True {
		t.Fatalf("export_stl returned %v", v)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export_stl did not write: %v", err)
	}
}

func TestConcurrentRunsDoNotShareBindings(t *testing.T) {
	exec := newTestExecutor(Config{MaxConcurrent: 4})
	var g errgroup.Group
	for i := 0; i < 24; i++ {
		g.Go(func() error {
			name := fmt.Sprintf("shape_%d", i)
			res, err := exec.Run(context.Background(), fmt.Sprintf("%s = Box(%d, 1, 1)", name, i+1))
			if err != nil {
				return err
			}
			if res.Name != name {
				return fmt.Errorf("run %d resolved %s", i, res.Name)
			}
			if user := res.Namespace.UserNames(); len(user) != 1 || user[0] != name {
				return fmt.Errorf("run %d sees bindings %v", i, user)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
