package engine

// alias binds a convenience name some generated scripts use to the kernel's
// canonical constructor.
type alias struct {
	name      string
	canonical string
}

var aliases = []alias{
	{"regular_polygon", "Polygon"},
	{"make_polygon", "Polygon"},
	{"create_polygon", "Polygon"},
	{"cube", "Box"},
	{"make_box", "Box"},
	{"create_box", "Box"},
	{"make_cylinder", "Cylinder"},
	{"create_cylinder", "Cylinder"},
	{"make_sphere", "Sphere"},
	{"create_sphere", "Sphere"},
	{"make_circle", "Circle"},
	{"create_circle", "Circle"},
	{"make_rectangle", "Rectangle"},
	{"create_rectangle", "Rectangle"},
}
