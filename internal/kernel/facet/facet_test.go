package facet

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

func exec(t *testing.T, src string) starlark.StringDict {
	t.Helper()
	opts := &syntax.FileOptions{TopLevelControl: true, GlobalReassign: true}
	globals, err := starlark.ExecFileOptions(opts, &starlark.Thread{Name: "test"}, "test.star", src, New().Module().Members)
	require.NoError(t, err)
	return globals
}

func shapeOf(t *testing.T, globals starlark.StringDict, name string) *Shape {
	t.Helper()
	s, ok := globals[name].(*Shape)
	require.Truef(t, ok, "%s is %T, want *Shape", name, globals[name])
	return s
}

func TestRegisteredUnderName(t *testing.T) {
	lib, err := kernel.Import("FACET")
	require.NoError(t, err)
	assert.Equal(t, Name, lib.Name())
	assert.Contains(t, kernel.Libraries(), Name)
	for _, f := range kernel.Formats {
		_, ok := lib.Exporter(f)
		assert.Truef(t, ok, "missing exporter %s", f)
	}
}

func TestModuleDeclaresExports(t *testing.T) {
	members := New().Module().Members
	all, ok := members["__all__"].(*starlark.List)
	require.True(t, ok)
	for i := 0; i < all.Len(); i++ {
		name, _ := starlark.AsString(all.Index(i))
		assert.Containsf(t, members, name, "__all__ names %s", name)
	}
}

func TestPrimitiveVolumes(t *testing.T) {
	g := exec(t, `
box = Box(10, 20, 30)
cyl = Cylinder(radius=5, height=10)
ball = Sphere(4)
cone = Cone(5, 0, 9)
ring = Torus(10, 2)
prism = extrude(Rectangle(4, 5), 6)
down = extrude(Rectangle(4, 5), -6)
hexa = extrude(RegularPolygon(3, 6), 2)
`)
	assert.InDelta(t, 6000, shapeOf(t, g, "box").Mesh().Volume(), 1e-9)
	assert.InDelta(t, math.Pi*25*10, shapeOf(t, g, "cyl").Mesh().Volume(), 10)
	assert.InDelta(t, 4.0/3*math.Pi*64, shapeOf(t, g, "ball").Mesh().Volume(), 5)
	assert.InDelta(t, math.Pi*25*9/3, shapeOf(t, g, "cone").Mesh().Volume(), 3)
	assert.InDelta(t, 2*math.Pi*math.Pi*10*4, shapeOf(t, g, "ring").Mesh().Volume(), 15)
	assert.InDelta(t, 120, shapeOf(t, g, "prism").Mesh().Volume(), 1e-9)
	assert.InDelta(t, 120, shapeOf(t, g, "down").Mesh().Volume(), 1e-9)
	assert.InDelta(t, 3*math.Sqrt(3)/2*9*2, shapeOf(t, g, "hexa").Mesh().Volume(), 1e-9)
}

func TestConcavePolygonExtrudes(t *testing.T) {
	// An L-shape listed clockwise.
	g := exec(t, `
l = extrude(Polygon((0, 0), (0, 2), (1, 2), (1, 1), (2, 1), (2, 0)), 1)
same = extrude(Polygon([(0, 0), (2, 0), (2, 1), (1, 1), (1, 2), (0, 2)]), 1)
`)
	assert.InDelta(t, 3, shapeOf(t, g, "l").Mesh().Volume(), 1e-9)
	assert.InDelta(t, 3, shapeOf(t, g, "same").Mesh().Volume(), 1e-9)
}

func TestInvalidArguments(t *testing.T) {
	cases := map[string]string{
		"negative":   "Box(-1, 2, 3)",
		"zero":       "Sphere(0)",
		"sides":      "RegularPolygon(3, 2)",
		"many sides": "RegularPolygon(3, 100000000)",
		"degenerate": "Polygon((0, 0), (1, 1), (2, 2))",
		"not sketch": "extrude(Box(1, 1, 1), 2)",
		"string":     `Box("a", 1, 1)`,
		"torus":      "Torus(1, 2)",
		"boolean":    "Box(1, 1, 1) - Sphere(1)",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := starlark.ExecFile(&starlark.Thread{}, "bad.star", "x = "+src, New().Module().Members)
			assert.Error(t, err)
		})
	}
}

func TestLocationIsUnsetUntilPlaced(t *testing.T) {
	g := exec(t, `
plain = Box(1, 1, 1)
unset = plain.location
placed = Pos(1, 2, 3) * Box(1, 1, 1)
moved = Box(1, 1, 1).moved(Pos(5, 0, 0)).moved(Pos(0, 5, 0))
rotated = Box(2, 4, 6).located(Rot(0, 0, 90))
pos = placed.location.position
label = Box(1, 1, 1)
label.label = "bracket"
label.location = Location((1, 0, 0))
`)
	assert.Equal(t, starlark.None, g["unset"])
	_, ok := shapeOf(t, g, "plain").Placement()
	assert.False(t, ok)

	lo, hi, _ := shapeOf(t, g, "placed").Mesh().Bounds()
	assert.InDeltaSlice(t, []float64{0.5, 1.5, 2.5}, lo[:], 1e-9)
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 3.5}, hi[:], 1e-9)

	lo, _, _ = shapeOf(t, g, "moved").Mesh().Bounds()
	assert.InDeltaSlice(t, []float64{4.5, 4.5, -0.5}, lo[:], 1e-9)

	lo, hi, _ = shapeOf(t, g, "rotated").Mesh().Bounds()
	size := hi.Sub(lo)
	assert.InDeltaSlice(t, []float64{4, 2, 6}, size[:], 1e-9)

	assert.Equal(t, "Vector(1, 2, 3)", g["pos"].String())
	assert.Equal(t, "bracket", shapeOf(t, g, "label").label)
	place, ok := shapeOf(t, g, "label").Placement()
	require.True(t, ok)
	assert.Equal(t, kernel.Vec3{1, 0, 0}, place.Translation)
}

func TestCompoundCollectsChildren(t *testing.T) {
	g := exec(t, `
pair = Box(1, 1, 1) + Pos(3, 0, 0) * Box(1, 1, 1)
group = Compound([Box(1, 1, 1), Sphere(1), pair])
`)
	pair := shapeOf(t, g, "pair")
	assert.Equal(t, kindCompound, pair.kind)
	assert.InDelta(t, 2, pair.Mesh().Volume(), 1e-9)
	assert.Len(t, shapeOf(t, g, "group").children, 3)
}

func TestFrozenShapeRejectsMutation(t *testing.T) {
	s := newShape("Box", kindSolid, boxMesh(1, 1, 1))
	s.Freeze()
	assert.Error(t, s.SetField("label", starlark.String("x")))
	s.SetPlacement(kernel.Translate(kernel.Vec3{1, 0, 0}))
	_, ok := s.Placement()
	assert.True(t, ok)
}

func TestWrappedHandleIsDistinctPerShape(t *testing.T) {
	g := exec(t, `
a = Box(1, 1, 1)
b = a.moved(Pos(1, 0, 0))
ha, hb = a.wrapped, b.wrapped
`)
	assert.Equal(t, "TopoDS_Shape", g["ha"].Type())
	assert.NotEqual(t, g["ha"].String(), g["hb"].String())
}

func exportTo(t *testing.T, format string, opts kernel.ExportOptions) []byte {
	t.Helper()
	lib := New()
	exp, ok := lib.Exporter(format)
	require.True(t, ok)
	shape := newShape("Box", kindSolid, boxMesh(10, 20, 30))
	path := filepath.Join(t.TempDir(), "out."+format)
	ok, err := exp(shape, path, opts)
	require.NoError(t, err)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestExportGLB(t *testing.T) {
	data := exportTo(t, kernel.FormatGLTF, kernel.ExportOptions{Binary: true})
	require.GreaterOrEqual(t, len(data), 20)
	assert.Equal(t, []byte("glTF"), data[:4])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(data[8:12]))
	jsonLen := binary.LittleEndian.Uint32(data[12:16])
	assert.Equal(t, []byte("JSON"), data[16:20])
	assert.Zero(t, jsonLen%4)
	assert.Contains(t, string(data[20:20+jsonLen]), `"POSITION":0`)
}

func TestExportGLTFText(t *testing.T) {
	data := exportTo(t, kernel.FormatGLTF, kernel.ExportOptions{})
	assert.Contains(t, string(data), "data:application/octet-stream;base64,")
}

func TestExportSTL(t *testing.T) {
	data := exportTo(t, kernel.FormatSTL, kernel.ExportOptions{})
	require.Len(t, data, 84+50*12)
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(data[80:84]))
}

func TestExportSTEP(t *testing.T) {
	text := string(exportTo(t, kernel.FormatSTEP, kernel.ExportOptions{}))
	assert.True(t, strings.HasPrefix(text, "ISO-10303-21;"))
	assert.True(t, strings.HasSuffix(text, "END-ISO-10303-21;\n"))
	assert.Equal(t, 12, strings.Count(text, "FACE_SURFACE("))
	assert.Contains(t, text, "FACETED_BREP_SHAPE_REPRESENTATION")
}

func TestExportBREP(t *testing.T) {
	text := string(exportTo(t, kernel.FormatBREP, kernel.ExportOptions{}))
	assert.True(t, strings.HasPrefix(text, "DBRep_DrawableShape"))
	assert.Contains(t, text, "CASCADE Topology V1")
	// 8 vertices, 18 shared edges, 12 wires, 12 faces, a shell and a solid.
	assert.Contains(t, text, "TShapes 52\n")
	assert.Contains(t, text, "Curves 18\n")
	assert.Equal(t, 12, strings.Count(text, "\nFa\n"))
	assert.True(t, strings.HasSuffix(text, "\n+1 0\n"))
}

func TestExportEmptyShapeReportsFailure(t *testing.T) {
	empty := newCompound("Compound", nil)
	for _, f := range kernel.Formats {
		exp, _ := New().Exporter(f)
		path := filepath.Join(t.TempDir(), "out")
		ok, err := exp(empty, path, kernel.ExportOptions{Binary: true})
		assert.NoError(t, err)
		assert.Falsef(t, ok, "%s reported success for an empty shape", f)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestSTLNormalsPointOutward(t *testing.T) {
	data := exportTo(t, kernel.FormatSTL, kernel.ExportOptions{})
	r := bytes.NewReader(data[84:])
	for i := 0; i < 12; i++ {
		var rec struct {
			Normal, A, B, C [3]float32
			Attr            uint16
		}
		require.NoError(t, binary.Read(r, binary.LittleEndian, &rec))
		centroid := [3]float32{}
		for k := 0; k < 3; k++ {
			centroid[k] = (rec.A[k] + rec.B[k] + rec.C[k]) / 3
		}
		dot := rec.Normal[0]*centroid[0] + rec.Normal[1]*centroid[1] + rec.Normal[2]*centroid[2]
		assert.Greater(t, dot, float32(0))
	}
}
