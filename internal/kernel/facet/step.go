package facet

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// stepWriter numbers entities as it emits them.
type stepWriter struct {
	w    *bufio.Writer
	next int
	err  error
}

func (s *stepWriter) emit(format string, args ...any) int {
	s.next++
	if s.err == nil {
		_, s.err = fmt.Fprintf(s.w, "#%d=%s;\n", s.next, fmt.Sprintf(format, args...))
	}
	return s.next
}

func stepReal(v float64) string {
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += "."
	}
	return out
}

func stepTriple(v kernel.Vec3) string {
	return "(" + stepReal(v[0]) + "," + stepReal(v[1]) + "," + stepReal(v[2]) + ")"
}

func stepRefs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.Itoa(id)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// exportSTEP writes an AP214 file holding one faceted B-rep with a planar
// face per triangle.
func exportSTEP(shape kernel.Shape, path string, _ kernel.ExportOptions) (bool, error) {
	m := shape.Mesh()
	if len(m.Triangles) == 0 {
		return false, nil
	}
	name := "model"
	if s, ok := shape.(*Shape); ok && s.label != "" {
		name = strings.ReplaceAll(s.label, "'", "''")
	}
	err := writeFile(path, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "ISO-10303-21;\nHEADER;\n")
		fmt.Fprintf(w, "FILE_DESCRIPTION(('nfinit facet export'),'2;1');\n")
		fmt.Fprintf(w, "FILE_NAME('%s.step','%s',(''),(''),'nfinit','nfinit facet','');\n",
			name, time.Now().UTC().Format("2006-01-02T15:04:05"))
		fmt.Fprintf(w, "FILE_SCHEMA(('AUTOMOTIVE_DESIGN { 1 0 10303 214 1 1 1 1 }'));\nENDSEC;\nDATA;\n")

		s := &stepWriter{w: w}
		appCtx := s.emit("APPLICATION_CONTEXT('automotive design')")
		s.emit("APPLICATION_PROTOCOL_DEFINITION('international standard','automotive_design',2000,#%d)", appCtx)
		prodCtx := s.emit("PRODUCT_CONTEXT('',#%d,'mechanical')", appCtx)
		prod := s.emit("PRODUCT('%s','%s','',(#%d))", name, name, prodCtx)
		form := s.emit("PRODUCT_DEFINITION_FORMATION('','',#%d)", prod)
		defCtx := s.emit("PRODUCT_DEFINITION_CONTEXT('part definition',#%d,'design')", appCtx)
		def := s.emit("PRODUCT_DEFINITION('design','',#%d,#%d)", form, defCtx)
		defShape := s.emit("PRODUCT_DEFINITION_SHAPE('','',#%d)", def)
		length := s.emit("(LENGTH_UNIT()NAMED_UNIT(*)SI_UNIT(.MILLI.,.METRE.))")
		angle := s.emit("(NAMED_UNIT(*)PLANE_ANGLE_UNIT()SI_UNIT($,.RADIAN.))")
		solid := s.emit("(NAMED_UNIT(*)SI_UNIT($,.STERADIAN.)SOLID_ANGLE_UNIT())")
		unc := s.emit("UNCERTAINTY_MEASURE_WITH_UNIT(LENGTH_MEASURE(1.E-07),#%d,'distance_accuracy_value','confusion accuracy')", length)
		geomCtx := s.emit("(GEOMETRIC_REPRESENTATION_CONTEXT(3)GLOBAL_UNCERTAINTY_ASSIGNED_CONTEXT((#%d))"+
			"GLOBAL_UNIT_ASSIGNED_CONTEXT((#%d,#%d,#%d))REPRESENTATION_CONTEXT('Context #1','3D Context with UNIT and UNCERTAINTY'))",
			unc, length, angle, solid)
		origin := s.emit("CARTESIAN_POINT('',(0.,0.,0.))")
		zDir := s.emit("DIRECTION('',(0.,0.,1.))")
		xDir := s.emit("DIRECTION('',(1.,0.,0.))")
		axis := s.emit("AXIS2_PLACEMENT_3D('',#%d,#%d,#%d)", origin, zDir, xDir)

		points := make([]int, len(m.Vertices))
		for i, v := range m.Vertices {
			points[i] = s.emit("CARTESIAN_POINT('',%s)", stepTriple(v))
		}
		faces := make([]int, 0, len(m.Triangles))
		for i, tri := range m.Triangles {
			n := m.Normal(i)
			if n == (kernel.Vec3{}) {
				continue
			}
			a, b := m.Vertices[tri[0]], m.Vertices[tri[1]]
			ref := b.Sub(a).Unit()
			normal := s.emit("DIRECTION('',%s)", stepTriple(n))
			refDir := s.emit("DIRECTION('',%s)", stepTriple(ref))
			place := s.emit("AXIS2_PLACEMENT_3D('',#%d,#%d,#%d)", points[tri[0]], normal, refDir)
			plane := s.emit("PLANE('',#%d)", place)
			loop := s.emit("POLY_LOOP('',%s)", stepRefs([]int{points[tri[0]], points[tri[1]], points[tri[2]]}))
			bound := s.emit("FACE_OUTER_BOUND('',#%d,.T.)", loop)
			faces = append(faces, s.emit("FACE_SURFACE('',(#%d),#%d,.T.)", bound, plane))
		}
		shell := s.emit("CLOSED_SHELL('',%s)", stepRefs(faces))
		brep := s.emit("FACETED_BREP('%s',#%d)", name, shell)
		rep := s.emit("FACETED_BREP_SHAPE_REPRESENTATION('',(#%d,#%d),#%d)", brep, axis, geomCtx)
		s.emit("SHAPE_DEFINITION_REPRESENTATION(#%d,#%d)", defShape, rep)
		if s.err != nil {
			return s.err
		}
		_, err := w.WriteString("ENDSEC;\nEND-ISO-10303-21;\n")
		return err
	})
	return err == nil, err
}
