package terrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"
)

// ErrMeshMismatch is returned when heights and normals do not describe the same grid.
var ErrMeshMismatch = errors.New("terrain: heights and normals do not match")

// Vertex is one interleaved vertex: position, normal, texture coordinate.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Mesh is an indexed triangle list over a square heightmap.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// BoundingSphere encloses every vertex of a mesh.
type BoundingSphere struct {
	Center [3]float32
	Radius float32
}

// BuildMesh lays a length x length heightmap out on [-1,1] in x and z with
// the sample value as y. Texture coordinates span [0,1]. Each grid quad
// becomes two triangles.
func BuildMesh(heights []float32, normals []normalmap.Vec3, length int) (*Mesh, error) {
	if length <= 0 || len(heights) != length*length {
		return nil, fmt.Errorf("%w: %d heights for length %d", ErrMeshMismatch, len(heights), length)
	}
	if len(normals) != len(heights) {
		return nil, fmt.Errorf("%w: %d normals for %d heights", ErrMeshMismatch, len(normals), len(heights))
	}

	span := float32(max(length-1, 1))

	m := &Mesh{Vertices: make([]Vertex, len(heights))}
	for z := 0; z < length; z++ {
		for x := 0; x < length; x++ {
			i := x + z*length
			u := float32(x) / span
			v := float32(z) / span
			n := normals[i]
			m.Vertices[i] = Vertex{
				Position: [3]float32{2*u - 1, heights[i], 2*v - 1},
				Normal:   [3]float32{n.X, n.Y, n.Z},
				TexCoord: [2]float32{u, v},
			}
		}
	}

	if length > 1 {
		m.Indices = make([]uint32, 0, (length-1)*(length-1)*6)
	}
	stride := uint32(length)
	for z := 0; z < length-1; z++ {
		for x := 0; x < length-1; x++ {
			i := uint32(x + z*length)
			m.Indices = append(m.Indices,
				i, i+1, i+stride,
				i+stride, i+1, i+stride+1,
			)
		}
	}
	return m, nil
}

// BoundingSphere centres the sphere on the vertex centroid and sizes it to
// the farthest vertex.
func (m *Mesh) BoundingSphere() BoundingSphere {
	if len(m.Vertices) == 0 {
		return BoundingSphere{}
	}

	var sum [3]float64
	for _, v := range m.Vertices {
		for k := 0; k < 3; k++ {
			sum[k] += float64(v.Position[k])
		}
	}
	n := float64(len(m.Vertices))
	center := [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}

	var r2 float64
	for _, v := range m.Vertices {
		dx := float64(v.Position[0]) - center[0]
		dy := float64(v.Position[1]) - center[1]
		dz := float64(v.Position[2]) - center[2]
		r2 = max(r2, dx*dx+dy*dy+dz*dz)
	}

	return BoundingSphere{
		Center: [3]float32{float32(center[0]), float32(center[1]), float32(center[2])},
		Radius: float32(math.Sqrt(r2)),
	}
}
