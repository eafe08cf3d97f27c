// Package preview renders a shape's mesh to a flat-shaded isometric PNG.
package preview

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/fogleman/gg"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

const (
	DefaultSize = 512
	MinSize     = 64
	MaxSize     = 2048

	margin = 0.08
)

var ErrEmptyMesh = errors.New("shape has no renderable geometry")

var (
	// Camera sits on the (1, 1, 1) diagonal looking at the origin, Z up.
	toCamera = kernel.Vec3{1, 1, 1}.Unit()
	right    = kernel.Vec3{-1, 1, 0}.Unit()
	up       = toCamera.Cross(right)
	light    = kernel.Vec3{0.4, 0.2, 1}.Unit()

	background = [3]float64{0.96, 0.96, 0.97}
	baseColor  = [3]float64{0.33, 0.52, 0.78}
)

type Options struct {
	Width  int
	Height int
}

// ClampSize maps zero to DefaultSize and bounds everything else to
// [MinSize, MaxSize].
func ClampSize(v int) int {
	switch {
	case v == 0:
		return DefaultSize
	case v < MinSize:
		return MinSize
	case v > MaxSize:
		return MaxSize
	}
	return v
}

type face struct {
	pts   [3][2]float64
	depth float64
	shade float64
}

// Render draws m and writes the PNG to w.
func Render(m *kernel.Mesh, opts Options, w io.Writer) error {
	if m == nil || len(m.Triangles) == 0 {
		return ErrEmptyMesh
	}
	width, height := ClampSize(opts.Width), ClampSize(opts.Height)

	faces := project(m)
	if len(faces) == 0 {
		return ErrEmptyMesh
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, f := range faces {
		for _, p := range f.pts {
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
	}
	spanX, spanY := math.Max(maxX-minX, 1e-9), math.Max(maxY-minY, 1e-9)
	usableW, usableH := float64(width)*(1-2*margin), float64(height)*(1-2*margin)
	scale := math.Min(usableW/spanX, usableH/spanY)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	dc := gg.NewContext(width, height)
	dc.SetRGB(background[0], background[1], background[2])
	dc.Clear()
	dc.SetLineWidth(0.6)

	// Painter's order: farthest first.
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })
	for _, f := range faces {
		for i, p := range f.pts {
			x := float64(width)/2 + (p[0]-cx)*scale
			y := float64(height)/2 - (p[1]-cy)*scale
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.SetRGB(baseColor[0]*f.shade, baseColor[1]*f.shade, baseColor[2]*f.shade)
		dc.FillPreserve()
		dc.Stroke()
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func project(m *kernel.Mesh) []face {
	out := make([]face, 0, len(m.Triangles))
	for i, tri := range m.Triangles {
		n := m.Normal(i)
		if n == (kernel.Vec3{}) {
			continue
		}
		// Open sketches are visible from both sides.
		if n.Dot(toCamera) < 0 {
			n = n.Scale(-1)
		}
		var f face
		for k, idx := range tri {
			v := m.Vertices[idx]
			f.pts[k] = [2]float64{v.Dot(right), v.Dot(up)}
			f.depth += v.Dot(toCamera) / 3
		}
		f.shade = 0.35 + 0.65*math.Max(0, n.Dot(light))
		out = append(out, f)
	}
	return out
}
