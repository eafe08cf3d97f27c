package kernel

import "math"

type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a[0] * s, a[1] * s, a[2] * s} }
func (a Vec3) Dot(b Vec3) float64   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vec3) Len() float64         { return math.Sqrt(a.Dot(a)) }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Unit returns a normalized copy, or the zero vector for degenerate input.
func (a Vec3) Unit() Vec3 {
	l := a.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Transform is a rigid placement: rotate, then translate.
type Transform struct {
	Rotation    [3][3]float64
	Translation Vec3
}

func Identity() Transform {
	return Transform{Rotation: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translate returns a pure translation.
func Translate(v Vec3) Transform {
	t := Identity()
	t.Translation = v
	return t
}

// RotateXYZ returns a rotation by Euler angles in degrees, applied about X,
// then Y, then Z of the fixed frame.
func RotateXYZ(deg Vec3) Transform {
	rx, ry, rz := deg[0]*math.Pi/180, deg[1]*math.Pi/180, deg[2]*math.Pi/180
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)
	x := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	y := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	z := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	return Transform{Rotation: matMul(z, matMul(y, x))}
}

// Apply maps a point.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.ApplyVector(p).Add(t.Translation)
}

// ApplyVector maps a direction, ignoring translation.
func (t Transform) ApplyVector(v Vec3) Vec3 {
	r := t.Rotation
	return Vec3{
		r[0][0]*v[0] + r[0][1]*v[1] + r[0][2]*v[2],
		r[1][0]*v[0] + r[1][1]*v[1] + r[1][2]*v[2],
		r[2][0]*v[0] + r[2][1]*v[1] + r[2][2]*v[2],
	}
}

// Mul returns t∘u: u is applied first.
func (t Transform) Mul(u Transform) Transform {
	return Transform{
		Rotation:    matMul(t.Rotation, u.Rotation),
		Translation: t.Apply(u.Translation),
	}
}

// EulerXYZ recovers the angles, in degrees, that RotateXYZ would take.
func (t Transform) EulerXYZ() Vec3 {
	r := t.Rotation
	sy := -r[2][0]
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y := math.Asin(sy)
	var x, z float64
	if math.Abs(sy) < 0.999999 {
		x = math.Atan2(r[2][1], r[2][2])
		z = math.Atan2(r[1][0], r[0][0])
	} else {
		x = math.Atan2(-r[1][2], r[1][1])
	}
	k := 180 / math.Pi
	return Vec3{x * k, y * k, z * k}
}

func matMul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return out
}

// Mesh is an indexed triangle list. Triangles are counter-clockwise seen from
// outside.
type Mesh struct {
	Vertices  []Vec3
	Triangles [][3]int
}

// Append copies o into m, offsetting its indices.
func (m *Mesh) Append(o *Mesh) {
	if o == nil {
		return
	}
	base := len(m.Vertices)
	m.Vertices = append(m.Vertices, o.Vertices...)
	for _, tri := range o.Triangles {
		m.Triangles = append(m.Triangles, [3]int{tri[0] + base, tri[1] + base, tri[2] + base})
	}
}

// Transformed returns a copy of m with every vertex mapped by t.
func (m *Mesh) Transformed(t Transform) *Mesh {
	out := &Mesh{
		Vertices:  make([]Vec3, len(m.Vertices)),
		Triangles: append([][3]int(nil), m.Triangles...),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = t.Apply(v)
	}
	return out
}

// Normal returns the unit normal of triangle i.
func (m *Mesh) Normal(i int) Vec3 {
	tri := m.Triangles[i]
	a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
	return b.Sub(a).Cross(c.Sub(a)).Unit()
}

// Bounds returns the axis-aligned bounding box. ok is false for an empty mesh.
func (m *Mesh) Bounds() (lo, hi Vec3, ok bool) {
	if len(m.Vertices) == 0 {
		return lo, hi, false
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], v[k])
			hi[k] = math.Max(hi[k], v[k])
		}
	}
	return lo, hi, true
}

// Volume is the signed enclosed volume; positive for closed outward-facing
// meshes.
func (m *Mesh) Volume() float64 {
	var sum float64
	for _, tri := range m.Triangles {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		sum += a.Dot(b.Cross(c))
	}
	return sum / 6
}
