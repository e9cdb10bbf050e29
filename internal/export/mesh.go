package export

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/fractalterrain/internal/terrain"
)

// EncodeOBJ writes m as a Wavefront OBJ with positions, texture
// coordinates and normals sharing one index per vertex.
func EncodeOBJ(w io.Writer, m *terrain.Mesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v.Position[0], v.Position[1], v.Position[2])
	}
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "vt %g %g\n", v.TexCoord[0], v.TexCoord[1])
	}
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "vn %g %g %g\n", v.Normal[0], v.Normal[1], v.Normal[2])
	}
	// OBJ indices are 1-based.
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i]+1, m.Indices[i+1]+1, m.Indices[i+2]+1
		fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
	}
	return bw.Flush()
}

// WriteOBJ writes m to path.
func WriteOBJ(path string, m *terrain.Mesh) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := EncodeOBJ(file, m); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
