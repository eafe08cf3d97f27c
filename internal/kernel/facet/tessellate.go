package facet

import (
	"errors"
	"math"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

const (
	radialSegments = 48
	sphereStacks   = 24
	torusTube      = 24
)

func boxMesh(l, w, h float64) *kernel.Mesh {
	x, y, z := l/2, w/2, h/2
	return &kernel.Mesh{
		Vertices: []kernel.Vec3{
			{-x, -y, -z}, {x, -y, -z}, {x, y, -z}, {-x, y, -z},
			{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z},
		},
		Triangles: [][3]int{
			{0, 2, 1}, {0, 3, 2}, // bottom
			{4, 5, 6}, {4, 6, 7}, // top
			{0, 1, 5}, {0, 5, 4},
			{1, 2, 6}, {1, 6, 5},
			{2, 3, 7}, {2, 7, 6},
			{3, 0, 4}, {3, 4, 7},
		},
	}
}

// frustumMesh covers cylinders and cones. Either radius may be zero.
func frustumMesh(r0, r1, h float64) *kernel.Mesh {
	m := &kernel.Mesh{}
	n := radialSegments
	z0, z1 := -h/2, h/2
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		c, s := math.Cos(a), math.Sin(a)
		m.Vertices = append(m.Vertices, kernel.Vec3{r0 * c, r0 * s, z0}, kernel.Vec3{r1 * c, r1 * s, z1})
	}
	bottom := len(m.Vertices)
	m.Vertices = append(m.Vertices, kernel.Vec3{0, 0, z0}, kernel.Vec3{0, 0, z1})
	top := bottom + 1
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		b0, t0, b1, t1 := 2*i, 2*i+1, 2*j, 2*j+1
		if r0 > 0 {
			m.Triangles = append(m.Triangles, [3]int{bottom, b1, b0})
			m.Triangles = append(m.Triangles, [3]int{b0, b1, t1})
		}
		if r1 > 0 {
			m.Triangles = append(m.Triangles, [3]int{top, t0, t1})
			m.Triangles = append(m.Triangles, [3]int{b0, t1, t0})
		}
	}
	return m
}

func sphereMesh(r float64) *kernel.Mesh {
	m := &kernel.Mesh{}
	n, st := radialSegments, sphereStacks
	m.Vertices = append(m.Vertices, kernel.Vec3{0, 0, -r})
	for i := 1; i < st; i++ {
		phi := math.Pi*float64(i)/float64(st) - math.Pi/2
		z, rr := r*math.Sin(phi), r*math.Cos(phi)
		for j := 0; j < n; j++ {
			a := 2 * math.Pi * float64(j) / float64(n)
			m.Vertices = append(m.Vertices, kernel.Vec3{rr * math.Cos(a), rr * math.Sin(a), z})
		}
	}
	north := len(m.Vertices)
	m.Vertices = append(m.Vertices, kernel.Vec3{0, 0, r})
	ring := func(i, j int) int { return 1 + (i-1)*n + j%n }
	for j := 0; j < n; j++ {
		m.Triangles = append(m.Triangles, [3]int{0, ring(1, j+1), ring(1, j)})
		m.Triangles = append(m.Triangles, [3]int{north, ring(st-1, j), ring(st-1, j+1)})
	}
	for i := 1; i < st-1; i++ {
		for j := 0; j < n; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			m.Triangles = append(m.Triangles, [3]int{a, b, d}, [3]int{a, d, c})
		}
	}
	return m
}

func torusMesh(major, minor float64) *kernel.Mesh {
	m := &kernel.Mesh{}
	n, k := radialSegments, torusTube
	for i := 0; i < n; i++ {
		u := 2 * math.Pi * float64(i) / float64(n)
		for j := 0; j < k; j++ {
			v := 2 * math.Pi * float64(j) / float64(k)
			rr := major + minor*math.Cos(v)
			m.Vertices = append(m.Vertices, kernel.Vec3{rr * math.Cos(u), rr * math.Sin(u), minor * math.Sin(v)})
		}
	}
	at := func(i, j int) int { return (i%n)*k + j%k }
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			a, b := at(i, j), at(i+1, j)
			c, d := at(i+1, j+1), at(i, j+1)
			m.Triangles = append(m.Triangles, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return m
}

func circleOutline(r float64) []kernel.Vec3 {
	return regularOutline(r, radialSegments)
}

func regularOutline(r float64, sides int) []kernel.Vec3 {
	out := make([]kernel.Vec3, sides)
	for i := range out {
		a := 2*math.Pi*float64(i)/float64(sides) + math.Pi/2
		out[i] = kernel.Vec3{r * math.Cos(a), r * math.Sin(a), 0}
	}
	return out
}

func rectOutline(w, h float64) []kernel.Vec3 {
	x, y := w/2, h/2
	return []kernel.Vec3{{-x, -y, 0}, {x, -y, 0}, {x, y, 0}, {-x, y, 0}}
}

// signedArea is positive for counter-clockwise outlines.
func signedArea(pts []kernel.Vec3) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return a / 2
}

// orient returns a counter-clockwise copy of a simple outline.
func orient(pts []kernel.Vec3) ([]kernel.Vec3, error) {
	if len(pts) < 3 {
		return nil, errors.New("an outline needs at least 3 points")
	}
	area := signedArea(pts)
	if math.Abs(area) < 1e-12 {
		return nil, errors.New("outline has zero area")
	}
	out := append([]kernel.Vec3(nil), pts...)
	if area < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// earClip triangulates a counter-clockwise simple polygon.
func earClip(pts []kernel.Vec3) ([][3]int, error) {
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	var tris [][3]int
	for guard := 0; len(idx) > 3; guard++ {
		if guard > len(pts)*len(pts) {
			return nil, errors.New("outline is self-intersecting")
		}
		clipped := false
		for i := range idx {
			a, b, c := idx[(i+len(idx)-1)%len(idx)], idx[i], idx[(i+1)%len(idx)]
			if !isEar(pts, idx, a, b, c) {
				continue
			}
			tris = append(tris, [3]int{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			return nil, errors.New("outline is self-intersecting")
		}
	}
	return append(tris, [3]int{idx[0], idx[1], idx[2]}), nil
}

func isEar(pts []kernel.Vec3, idx []int, a, b, c int) bool {
	pa, pb, pc := pts[a], pts[b], pts[c]
	if cross2(pa, pb, pc) <= 0 {
		return false
	}
	for _, k := range idx {
		if k == a || k == b || k == c {
			continue
		}
		p := pts[k]
		if cross2(pa, pb, p) >= 0 && cross2(pb, pc, p) >= 0 && cross2(pc, pa, p) >= 0 {
			return false
		}
	}
	return true
}

func cross2(a, b, c kernel.Vec3) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func faceMesh(outline []kernel.Vec3) (*kernel.Mesh, error) {
	tris, err := earClip(outline)
	if err != nil {
		return nil, err
	}
	return &kernel.Mesh{Vertices: append([]kernel.Vec3(nil), outline...), Triangles: tris}, nil
}

// prismMesh extrudes a counter-clockwise outline from z=0 to z=h. A negative h
// extrudes downwards.
func prismMesh(outline []kernel.Vec3, h float64) (*kernel.Mesh, error) {
	tris, err := earClip(outline)
	if err != nil {
		return nil, err
	}
	n := len(outline)
	m := &kernel.Mesh{}
	for _, p := range outline {
		m.Vertices = append(m.Vertices, kernel.Vec3{p[0], p[1], 0})
	}
	for _, p := range outline {
		m.Vertices = append(m.Vertices, kernel.Vec3{p[0], p[1], h})
	}
	flip := h < 0
	for _, t := range tris {
		bottom := [3]int{t[0], t[2], t[1]}
		top := [3]int{t[0] + n, t[1] + n, t[2] + n}
		if flip {
			bottom, top = [3]int{t[0], t[1], t[2]}, [3]int{t[0] + n, t[2] + n, t[1] + n}
		}
		m.Triangles = append(m.Triangles, bottom, top)
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		q0, q1 := [3]int{i, j, j + n}, [3]int{i, j + n, i + n}
		if flip {
			q0, q1 = [3]int{i, j + n, j}, [3]int{i, i + n, j + n}
		}
		m.Triangles = append(m.Triangles, q0, q1)
	}
	return m, nil
}
