package facet

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/yungbote/nfinit-engine/internal/kernel"
)

const (
	glbMagic     = 0x46546C67
	glbVersion   = 2
	chunkJSON    = 0x4E4F534A
	chunkBIN     = 0x004E4942
	compFloat    = 5126
	compUint32   = 5125
	targetArray  = 34962
	targetIndex  = 34963
	modeTriangle = 4
)

type gltfDoc struct {
	Asset       gltfAsset        `json:"asset"`
	Scene       int              `json:"scene"`
	Scenes      []gltfScene      `json:"scenes"`
	Nodes       []gltfNode       `json:"nodes"`
	Meshes      []gltfMesh       `json:"meshes"`
	Buffers     []gltfBuffer     `json:"buffers"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Accessors   []gltfAccessor   `json:"accessors"`
}

type gltfAsset struct {
	Version   string `json:"version"`
	Generator string `json:"generator,omitempty"`
}

type gltfScene struct {
	Nodes []int `json:"nodes"`
}

type gltfNode struct {
	Mesh int    `json:"mesh"`
	Name string `json:"name,omitempty"`
}

type gltfMesh struct {
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Mode       int            `json:"mode"`
}

type gltfBuffer struct {
	ByteLength int    `json:"byteLength"`
	URI        string `json:"uri,omitempty"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target"`
}

type gltfAccessor struct {
	BufferView    int       `json:"bufferView"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

// flatten duplicates vertices per triangle so each face carries its own
// normal.
func flatten(m *kernel.Mesh) (pos, norm []float32, idx []uint32) {
	for i, tri := range m.Triangles {
		n := m.Normal(i)
		for _, vi := range tri {
			v := m.Vertices[vi]
			pos = append(pos, float32(v[0]), float32(v[1]), float32(v[2]))
			norm = append(norm, float32(n[0]), float32(n[1]), float32(n[2]))
			idx = append(idx, uint32(len(idx)))
		}
	}
	return pos, norm, idx
}

// encodeGLTF returns the document and its binary buffer.
func encodeGLTF(m *kernel.Mesh, name string) (*gltfDoc, []byte) {
	pos, norm, idx := flatten(m)
	var bin bytes.Buffer
	binary.Write(&bin, binary.LittleEndian, pos)
	binary.Write(&bin, binary.LittleEndian, norm)
	binary.Write(&bin, binary.LittleEndian, idx)

	lo, hi, _ := m.Bounds()
	count := len(idx)
	vecLen := count * 12
	return &gltfDoc{
		Asset:  gltfAsset{Version: "2.0", Generator: "nfinit facet"},
		Scenes: []gltfScene{{Nodes: []int{0}}},
		Nodes:  []gltfNode{{Mesh: 0, Name: name}},
		Meshes: []gltfMesh{{Primitives: []gltfPrimitive{{
			Attributes: map[string]int{"POSITION": 0, "NORMAL": 1},
			Indices:    2,
			Mode:       modeTriangle,
		}}}},
		Buffers: []gltfBuffer{{ByteLength: bin.Len()}},
		BufferViews: []gltfBufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: vecLen, Target: targetArray},
			{Buffer: 0, ByteOffset: vecLen, ByteLength: vecLen, Target: targetArray},
			{Buffer: 0, ByteOffset: 2 * vecLen, ByteLength: count * 4, Target: targetIndex},
		},
		Accessors: []gltfAccessor{
			{BufferView: 0, ComponentType: compFloat, Count: count, Type: "VEC3", Min: f32(lo), Max: f32(hi)},
			{BufferView: 1, ComponentType: compFloat, Count: count, Type: "VEC3"},
			{BufferView: 2, ComponentType: compUint32, Count: count, Type: "SCALAR"},
		},
	}, bin.Bytes()
}

// f32 rounds bounds through float32 so they match the stored positions.
func f32(v kernel.Vec3) []float64 {
	return []float64{
		float64(float32(v[0])),
		float64(float32(v[1])),
		float64(float32(v[2])),
	}
}

// exportGLTF writes a GLB container, or a .gltf document with an embedded
// buffer when opts.Binary is false.
func exportGLTF(shape kernel.Shape, path string, opts kernel.ExportOptions) (bool, error) {
	m := shape.Mesh()
	if len(m.Triangles) == 0 {
		return false, nil
	}
	name := ""
	if s, ok := shape.(*Shape); ok {
		name = s.label
	}
	doc, bin := encodeGLTF(m, name)

	if !opts.Binary {
		doc.Buffers[0].URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin)
		err := writeFile(path, func(w *bufio.Writer) error {
			return json.NewEncoder(w).Encode(doc)
		})
		return err == nil, err
	}

	js, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	js = pad(js, ' ')
	bin = pad(bin, 0)
	total := 12 + 8 + len(js) + 8 + len(bin)
	err = writeFile(path, func(w *bufio.Writer) error {
		for _, v := range []uint32{glbMagic, glbVersion, uint32(total), uint32(len(js)), chunkJSON} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if _, err := w.Write(js); err != nil {
			return err
		}
		for _, v := range []uint32{uint32(len(bin)), chunkBIN} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		_, err := w.Write(bin)
		return err
	})
	return err == nil, err
}

func pad(b []byte, fill byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, fill)
	}
	return b
}
