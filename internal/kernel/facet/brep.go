package facet

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

const brepTolerance = "1e-07"

type brepEdge struct {
	a, b int
}

// exportBREP writes the OpenCASCADE ASCII topology format. Every triangle
// becomes a planar face bounded by line edges shared with its neighbours.
func exportBREP(shape kernel.Shape, path string, _ kernel.ExportOptions) (bool, error) {
	m := shape.Mesh()
	var tris [][3]int
	var normals []kernel.Vec3
	for i, tri := range m.Triangles {
		n := m.Normal(i)
		if n == (kernel.Vec3{}) {
			continue
		}
		tris = append(tris, tri)
		normals = append(normals, n)
	}
	if len(tris) == 0 {
		return false, nil
	}

	edgeIndex := map[brepEdge]int{}
	var edges []brepEdge
	// wires[t][k] is the signed 1-based edge number of side k.
	wires := make([][3]int, len(tris))
	for t, tri := range tris {
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			sign := 1
			key := brepEdge{a, b}
			if a > b {
				key, sign = brepEdge{b, a}, -1
			}
			idx, ok := edgeIndex[key]
			if !ok {
				edges = append(edges, key)
				idx = len(edges)
				edgeIndex[key] = idx
			}
			wires[t][k] = sign * idx
		}
	}

	nv, ne, nt := len(m.Vertices), len(edges), len(tris)
	total := nv + ne + 2*nt + 2
	// ref converts a 1-based position in the TShapes list to the
	// back-reference the format uses.
	ref := func(pos int) int { return total - pos + 1 }
	vertexPos := func(i int) int { return i + 1 }
	edgePos := func(e int) int { return nv + e }
	wirePos := func(t int) int { return nv + ne + t + 1 }
	facePos := func(t int) int { return nv + ne + nt + t + 1 }
	shellPos := nv + ne + 2*nt + 1

	err := writeFile(path, func(w *bufio.Writer) error {
		p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) }
		p("DBRep_DrawableShape\n\nCASCADE Topology V1, (c) Matra-Datavision\n")
		p("Locations 0\nCurve2ds 0\n")
		p("Curves %d\n", ne)
		for _, e := range edges {
			a, b := m.Vertices[e.a], m.Vertices[e.b]
			d := b.Sub(a).Unit()
			p("1 %s %s %s %s %s %s\n", num(a[0]), num(a[1]), num(a[2]), num(d[0]), num(d[1]), num(d[2]))
		}
		p("Polygon3D 0\nPolygonOnTriangulations 0\n")
		p("Surfaces %d\n", nt)
		for t, tri := range tris {
			o, n := m.Vertices[tri[0]], normals[t]
			x := m.Vertices[tri[1]].Sub(o).Unit()
			y := n.Cross(x)
			p("1 %s %s %s %s %s %s %s %s %s %s %s %s\n",
				num(o[0]), num(o[1]), num(o[2]),
				num(n[0]), num(n[1]), num(n[2]),
				num(x[0]), num(x[1]), num(x[2]),
				num(y[0]), num(y[1]), num(y[2]))
		}
		p("Triangulations 0\n\nTShapes %d\n", total)

		for _, v := range m.Vertices {
			p("Ve\n%s\n%s %s %s\n0 0\n\n0101101\n*\n", brepTolerance, num(v[0]), num(v[1]), num(v[2]))
		}
		for i, e := range edges {
			length := m.Vertices[e.b].Sub(m.Vertices[e.a]).Len()
			p("Ed\n %s 1 1 0\n1  %d 0 0 %s\n0\n\n0101000\n", brepTolerance, i+1, num(length))
			p("+%d 0 -%d 0 *\n", ref(vertexPos(e.a)), ref(vertexPos(e.b)))
		}
		for _, wire := range wires {
			p("Wi\n\n0101100\n")
			for _, se := range wire {
				sign, e := "+", se
				if se < 0 {
					sign, e = "-", -se
				}
				p("%s%d 0 ", sign, ref(edgePos(e)))
			}
			p("*\n")
		}
		for t := range tris {
			p("Fa\n0  %s %d 0\n\n0101000\n+%d 0 *\n", brepTolerance, t+1, ref(wirePos(t)))
		}
		p("Sh\n\n0101100\n")
		for t := range tris {
			p("+%d 0 ", ref(facePos(t)))
		}
		p("*\nSo\n\n0100000\n+%d 0 *\n\n+1 0\n", ref(shellPos))
		return nil
	})
	return err == nil, err
}

func num(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', 17, 64)
}
