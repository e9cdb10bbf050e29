package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/fractalterrain/internal/heightfield"
	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"
)

func TestCreateHeightmap17(t *testing.T) {
	heights, seed, err := CreateHeightmap(17, Options{Seed: 2024})
	require.NoError(t, err)
	assert.Equal(t, uint32(2024), seed)
	require.Len(t, heights, 289)
	for i, v := range heights {
		require.GreaterOrEqual(t, v, float32(0), "sample %d", i)
		require.LessOrEqual(t, v, float32(1), "sample %d", i)
	}
}

func TestCreateHeightmapTrimsGeneratedGrid(t *testing.T) {
	const size = 11
	full, _, err := Generate(size, Options{Seed: 77})
	require.NoError(t, err)
	require.Equal(t, 17, full.Width())

	trimmed, _, err := CreateHeightmap(size, Options{Seed: 77})
	require.NoError(t, err)
	require.Len(t, trimmed, size*size)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			want, ok := full.ClampedAt(x, y)
			require.True(t, ok)
			assert.Equal(t, want, trimmed[x+y*size], "(%d,%d)", x, y)
		}
	}
}

func TestCreateHeightmapExactPowerSizeSpansUnitRange(t *testing.T) {
	heights, _, err := CreateHeightmap(33, Options{Seed: 5})
	require.NoError(t, err)

	g, err := heightfield.FromValues(33, 33, heights)
	require.NoError(t, err)
	minV, maxV := g.MinMax()
	assert.Equal(t, float32(0), minV)
	assert.Equal(t, float32(1), maxV)
}

func TestCreateHeightmapEntropySeedReplays(t *testing.T) {
	first, seed, err := CreateHeightmap(9, Options{})
	require.NoError(t, err)
	require.NotZero(t, seed)

	replay, _, err := CreateHeightmap(9, Options{Seed: seed})
	require.NoError(t, err)
	assert.Equal(t, first, replay)
}

func TestCreateHeightmapWithDetail(t *testing.T) {
	plain, _, err := CreateHeightmap(17, Options{Seed: 3})
	require.NoError(t, err)
	detailed, _, err := CreateHeightmap(17, Options{Seed: 3, DetailStrength: 0.5, DetailScale: 4})
	require.NoError(t, err)

	assert.NotEqual(t, plain, detailed)
	for _, v := range detailed {
		require.False(t, math.IsNaN(float64(v)))
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestCreateHeightmapRejectsInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, _, err := CreateHeightmap(size, Options{Seed: 1})
		require.ErrorIs(t, err, heightfield.ErrInvalidSize, "size %d", size)
	}
}

func TestBuildMeshLayout(t *testing.T) {
	heights := []float32{
		0, 0.5, 1,
		0, 0.5, 1,
		0, 0.5, 1,
	}
	normals, err := normalmap.Generate(heights, 3)
	require.NoError(t, err)

	m, err := BuildMesh(heights, normals, 3)
	require.NoError(t, err)
	require.Len(t, m.Vertices, 9)
	require.Len(t, m.Indices, 2*2*6)

	assert.Equal(t, [3]float32{-1, 0, -1}, m.Vertices[0].Position)
	assert.Equal(t, [3]float32{0, 0.5, 0}, m.Vertices[4].Position)
	assert.Equal(t, [3]float32{1, 1, 1}, m.Vertices[8].Position)
	assert.Equal(t, [2]float32{1, 1}, m.Vertices[8].TexCoord)
	assert.Equal(t, [3]float32{normals[4].X, normals[4].Y, normals[4].Z}, m.Vertices[4].Normal)

	assert.Equal(t, []uint32{0, 1, 3, 3, 1, 4}, m.Indices[:6])
	for _, idx := range m.Indices {
		assert.Less(t, idx, uint32(len(m.Vertices)))
	}
}

func TestBuildMeshSingleSample(t *testing.T) {
	m, err := BuildMesh([]float32{0.3}, []normalmap.Vec3{normalmap.Up}, 1)
	require.NoError(t, err)
	require.Len(t, m.Vertices, 1)
	assert.Empty(t, m.Indices)
	assert.Equal(t, [3]float32{-1, 0.3, -1}, m.Vertices[0].Position)
}

func TestBuildMeshMismatch(t *testing.T) {
	_, err := BuildMesh(make([]float32, 4), make([]normalmap.Vec3, 3), 2)
	require.ErrorIs(t, err, ErrMeshMismatch)

	_, err = BuildMesh(make([]float32, 5), make([]normalmap.Vec3, 5), 2)
	require.ErrorIs(t, err, ErrMeshMismatch)
}

func TestBoundingSphereEnclosesVertices(t *testing.T) {
	heights, _, err := CreateHeightmap(9, Options{Seed: 11})
	require.NoError(t, err)
	normals, err := normalmap.Generate(heights, 9)
	require.NoError(t, err)
	m, err := BuildMesh(heights, normals, 9)
	require.NoError(t, err)

	s := m.BoundingSphere()
	assert.InDelta(t, 0, s.Center[0], 1e-6)
	assert.InDelta(t, 0, s.Center[2], 1e-6)
	for _, v := range m.Vertices {
		dx := v.Position[0] - s.Center[0]
		dy := v.Position[1] - s.Center[1]
		dz := v.Position[2] - s.Center[2]
		d := math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
		assert.LessOrEqual(t, d, float64(s.Radius)+1e-5)
	}
	assert.Greater(t, s.Radius, float32(math.Sqrt2-1e-3))
}
