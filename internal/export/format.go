package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

var ErrInvalidFormat = errors.New("invalid export format")

// Format maps a request keyword to the kernel serializer and the response it
// produces.
type Format struct {
	Keyword     string
	Kernel      string
	Ext         string
	ContentType string
	Filename    string
	// Binary is passed to the serializer. Only glTF distinguishes.
	Binary bool
}

var (
	GLB = Format{
		Keyword:     "glb",
		Kernel:      kernel.FormatGLTF,
		Ext:         "glb",
		ContentType: "model/gltf-binary",
		Filename:    "model.glb",
		Binary:      true,
	}
	STEP = Format{
		Keyword:     "step",
		Kernel:      kernel.FormatSTEP,
		Ext:         "step",
		ContentType: "application/step",
		Filename:    "model.step",
	}
	BREP = Format{
		Keyword:     "brep",
		Kernel:      kernel.FormatBREP,
		Ext:         "brep",
		ContentType: "application/octet-stream",
		Filename:    "model.brep",
	}
	STL = Format{
		Keyword:     "stl",
		Kernel:      kernel.FormatSTL,
		Ext:         "stl",
		ContentType: "model/stl",
		Filename:    "model.stl",
	}
)

var exportFormats = map[string]Format{
	"step": STEP,
	"brep": BREP,
	"stl":  STL,
}

// ExportKeywords lists the keywords ParseExportFormat accepts.
func ExportKeywords() []string { return []string{"step", "brep", "stl"} }

// ParseMeshFormat validates the mesh endpoint's format. Empty means GLB.
func ParseMeshFormat(keyword string) (Format, error) {
	switch k := normalize(keyword); k {
	case "", "gltf", "glb":
		return GLB, nil
	default:
		return Format{}, fmt.Errorf("%w: %q (supported: gltf, glb)", ErrInvalidFormat, k)
	}
}

// ParseExportFormat validates a CAD export keyword, case-insensitively.
func ParseExportFormat(keyword string) (Format, error) {
	k := normalize(keyword)
	if f, ok := exportFormats[k]; ok {
		return f, nil
	}
	if k == "" {
		return Format{}, fmt.Errorf("%w: format is required (supported: %s)", ErrInvalidFormat, strings.Join(ExportKeywords(), ", "))
	}
	return Format{}, fmt.Errorf("%w: %q (supported: %s)", ErrInvalidFormat, k, strings.Join(ExportKeywords(), ", "))
}

func normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
