package facet

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

// writeFile creates path and hands a buffered writer to fill.
func writeFile(path string, fill func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// exportSTL writes binary STL.
func exportSTL(shape kernel.Shape, path string, _ kernel.ExportOptions) (bool, error) {
	m := shape.Mesh()
	if len(m.Triangles) == 0 {
		return false, nil
	}
	err := writeFile(path, func(w *bufio.Writer) error {
		header := make([]byte, 80)
		copy(header, "nfinit facet STL")
		if _, err := w.Write(header); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
			return err
		}
		rec := make([]byte, 50)
		for i, tri := range m.Triangles {
			putVec32(rec[0:], m.Normal(i))
			for k := 0; k < 3; k++ {
				putVec32(rec[12+12*k:], m.Vertices[tri[k]])
			}
			if _, err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
	return err == nil, err
}

func putVec32(b []byte, v kernel.Vec3) {
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(b[4*k:], math.Float32bits(float32(v[k])))
	}
}
