package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/yungbote/nfinit-engine/internal/kernel"
	"github.com/yungbote/nfinit-engine/internal/kernel/facet"
	"github.com/yungbote/nfinit-engine/internal/platform/ctxutil"
)

type table map[string]kernel.Exporter

func (t table) Exporter(format string) (kernel.Exporter, bool) {
	exp, ok := t[format]
	return exp, ok
}

func box(t *testing.T) kernel.Shape {
	t.Helper()
	lib := facet.New()
	v, err := starlark.Call(&starlark.Thread{}, lib.Module().Members["Box"], starlark.Tuple{
		starlark.MakeInt(10), starlark.MakeInt(20), starlark.MakeInt(30),
	}, nil)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	return v.(kernel.Shape)
}

func facetTable() table {
	lib := facet.New()
	out := table{}
	for _, f := range kernel.Formats {
		exp, _ := lib.Exporter(f)
		out[f] = exp
	}
	return out
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("job directories left behind: %v", entries)
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in      string
		mesh    bool
		want    Format
		wantErr bool
	}{
		{in: "", mesh: true, want: GLB},
		{in: " GLTF ", mesh: true, want: GLB},
		{in: "glb", mesh: true, want: GLB},
		{in: "stl", mesh: true, wantErr: true},
		{in: "step", want: STEP},
		{in: "STEP", want: STEP},
		{in: "  Brep\n", want: BREP},
		{in: "stl", want: STL},
		{in: "obj", wantErr: true},
		{in: "", wantErr: true},
		{in: "gltf", wantErr: true},
	}
	for _, tt := range tests {
		parse := ParseExportFormat
		if tt.mesh {
			parse = ParseMeshFormat
		}
		got, err := parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("parse(%q, mesh=%v) err = %v, want ErrInvalidFormat", tt.in, tt.mesh, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parse(%q, mesh=%v) = %+v, %v", tt.in, tt.mesh, got, err)
		}
	}
}

func TestFormatTable(t *testing.T) {
	for _, f := range []Format{GLB, STEP, BREP, STL} {
		if f.Filename != "model."+f.Ext {
			t.Errorf("%s filename = %s", f.Keyword, f.Filename)
		}
		if f.Binary != (f == GLB) {
			t.Errorf("%s binary = %v", f.Keyword, f.Binary)
		}
	}
}

func TestExportWritesAndCleansUp(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(root, nil)
	shape := box(t)

	for _, f := range []Format{GLB, STEP, BREP, STL} {
		t.Run(f.Keyword, func(t *testing.T) {
			art, err := d.Export(context.Background(), facetTable(), shape, f)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if filepath.Base(art.Path) != "output."+f.Ext {
				t.Fatalf("path = %s", art.Path)
			}
			if !strings.HasPrefix(filepath.Base(filepath.Dir(art.Path)), "nfinit-"+art.JobID+"-") {
				t.Fatalf("job dir = %s", filepath.Dir(art.Path))
			}
			b, err := os.ReadFile(art.Path)
			if err != nil || int64(len(b)) != art.Size || art.Size == 0 {
				t.Fatalf("read %d bytes (size %d): %v", len(b), art.Size, err)
			}
			if f == GLB && !bytes.HasPrefix(b, []byte("glTF")) {
				t.Fatalf("GLB magic missing")
			}

			art.Cleanup()
			art.Cleanup()
			if _, err := os.Stat(filepath.Dir(art.Path)); !os.IsNotExist(err) {
				t.Fatalf("job dir still present: %v", err)
			}
		})
	}
	assertEmptyDir(t, root)
}

func TestExportFailuresCleanUp(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		exp  kernel.Exporter
	}{
		{"returns false", func(kernel.Shape, string, kernel.ExportOptions) (bool, error) { return false, nil }},
		{"returns error", func(_ kernel.Shape, path string, _ kernel.ExportOptions) (bool, error) {
			_ = os.WriteFile(path, []byte("partial"), 0o644)
			return false, boom
		}},
		{"panics", func(kernel.Shape, string, kernel.ExportOptions) (bool, error) { panic("segfault") }},
		{"writes nothing", func(kernel.Shape, string, kernel.ExportOptions) (bool, error) { return true, nil }},
		{"writes empty file", func(_ kernel.Shape, path string, _ kernel.ExportOptions) (bool, error) {
			return true, os.WriteFile(path, nil, 0o644)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			d := NewDispatcher(root, nil)
			art, err := d.Export(context.Background(), table{kernel.FormatSTL: tt.exp}, box(t), STL)
			if !errors.Is(err, ErrExportFailed) {
				t.Fatalf("err = %v, want ErrExportFailed", err)
			}
			if art != nil {
				t.Fatalf("artifact returned on failure")
			}
			assertEmptyDir(t, root)
		})
	}
}

func TestExportPassesBinaryOption(t *testing.T) {
	var got []bool
	rec := func(_ kernel.Shape, path string, opts kernel.ExportOptions) (bool, error) {
		got = append(got, opts.Binary)
		return true, os.WriteFile(path, []byte("x"), 0o644)
	}
	d := NewDispatcher(t.TempDir(), nil)
	for _, f := range []Format{GLB, STEP} {
		art, err := d.Export(context.Background(), table{f.Kernel: rec}, box(t), f)
		if err != nil {
			t.Fatalf("Export: %v", err)
		}
		art.Cleanup()
	}
	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("binary flags = %v, want [true false]", got)
	}
}

func TestExportMissingSerializer(t *testing.T) {
	root := t.TempDir()
	_, err := NewDispatcher(root, nil).Export(context.Background(), table{}, box(t), BREP)
	if !errors.Is(err, ErrExportFailed) {
		t.Fatalf("err = %v", err)
	}
	assertEmptyDir(t, root)
}

func TestExportUsesRequestIDAsJobID(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(root, nil)
	ctx := ctxutil.WithRequest(context.Background(), ctxutil.Request{RequestID: "req-7"})

	a1, err := d.Export(ctx, facetTable(), box(t), STL)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer a1.Cleanup()
	a2, err := d.Export(ctx, facetTable(), box(t), STL)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer a2.Cleanup()

	if a1.JobID != "req-7" || a2.JobID != "req-7" {
		t.Fatalf("job ids = %s, %s", a1.JobID, a2.JobID)
	}
	if filepath.Dir(a1.Path) == filepath.Dir(a2.Path) {
		t.Fatal("same request id shared a job directory")
	}

	bad := ctxutil.WithRequest(context.Background(), ctxutil.Request{RequestID: "../escape"})
	a3, err := d.Export(bad, facetTable(), box(t), STL)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer a3.Cleanup()
	if a3.JobID == "../escape" || filepath.Dir(filepath.Dir(a3.Path)) != root {
		t.Fatalf("unsafe id used: job %s at %s", a3.JobID, a3.Path)
	}
}

func TestCleanupNilArtifact(t *testing.T) {
	var a *Artifact
	a.Cleanup()
}
