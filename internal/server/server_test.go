package server

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/fractalterrain/internal/lodstore"
	"github.com/MeKo-Tech/fractalterrain/internal/pipeline"
)

func TestParseLevelPath(t *testing.T) {
	tests := []struct {
		path  string
		name  string
		level int
		kind  string
		ok    bool
	}{
		{"/terrains/alpine/lod0.png", "alpine", 0, kindHeight, true},
		{"/terrains/alpine/lod12.png", "alpine", 12, kindHeight, true},
		{"/terrains/alpine/lod2_normals.png", "alpine", 2, kindNormals, true},
		{"/terrains/alpine/lod1.r32", "alpine", 1, kindRaw, true},
		{"/terrains/alpine/lod-1.png", "", 0, "", false},
		{"/terrains/alpine/lod+1.png", "", 0, "", false},
		{"/terrains/alpine/level1.png", "", 0, "", false},
		{"/terrains/alpine/lod1.jpg", "", 0, "", false},
		{"/terrains//lod1.png", "", 0, "", false},
		{"/terrains/a/b/lod1.png", "", 0, "", false},
		{"/tiles/alpine/lod1.png", "", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			name, level, kind, ok := parseLevelPath(tt.path)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if name != tt.name || level != tt.level || kind != tt.kind {
				t.Errorf("got (%q, %d, %q), want (%q, %d, %q)", name, level, kind, tt.name, tt.level, tt.kind)
			}
		})
	}
}

func TestParseSeedPath(t *testing.T) {
	tests := []struct {
		path string
		seed uint32
		file string
		ok   bool
	}{
		{"/seeds/42/height.png", 42, "height.png", true},
		{"/seeds/4294967295/normals.png", 4294967295, "normals.png", true},
		{"/seeds/7/lod3.png", 7, "lod3.png", true},
		{"/seeds/7/color.png", 7, "color.png", true},
		{"/seeds/0/height.png", 0, "", false},
		{"/seeds/4294967296/height.png", 0, "", false},
		{"/seeds/abc/height.png", 0, "", false},
		{"/seeds/7/../secret.png", 0, "", false},
		{"/seeds/7/lod.png", 0, "", false},
		{"/seeds/7", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			seed, file, ok := parseSeedPath(tt.path)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if tt.ok && (seed != tt.seed || file != tt.file) {
				t.Errorf("got (%d, %q), want (%d, %q)", seed, file, tt.seed, tt.file)
			}
		})
	}
}

func newTestStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terrain.db")
	w, err := lodstore.New(path, lodstore.Metadata{Name: "test", BaseSize: 9})
	require.NoError(t, err)

	gen, err := pipeline.NewGenerator(pipeline.Options{Size: 9, MipLevels: -1, Store: w}, nil)
	require.NoError(t, err)
	_, _, err = gen.Generate(context.Background(), "alpine", 7, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestLODHandlerServesLevels(t *testing.T) {
	h, err := NewLODHandler(LODConfig{StorePath: newTestStore(t)}, nil)
	require.NoError(t, err)
	defer h.Close()

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terrains/alpine/lod1.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terrains/alpine/lod0_normals.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 9, img.Bounds().Dx())

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terrains/alpine/lod0.r32", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9*9*4, rec.Body.Len())

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terrains/alpine/lod9.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terrains/alpine/bogus", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLODHandlerIndex(t *testing.T) {
	h, err := NewLODHandler(LODConfig{StorePath: newTestStore(t), CacheControl: "no-cache"}, nil)
	require.NoError(t, err)
	defer h.Close()

	rec := httptest.NewRecorder()
	h.IndexHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terrains", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listing []TerrainListing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Len(t, listing, 1)
	assert.Equal(t, TerrainListing{Name: "alpine", Seed: 7, Size: 9, Levels: []int{0, 1, 2, 3}}, listing[0])
}

func TestNewLODHandlerMissingStore(t *testing.T) {
	_, err := NewLODHandler(LODConfig{StorePath: filepath.Join(t.TempDir(), "nope.db")}, nil)
	require.Error(t, err)
}

func TestOnDemandGeneratesMissing(t *testing.T) {
	dir := t.TempDir()
	od, err := NewOnDemandTerrains(OnDemandConfig{
		TerrainsDir:     dir,
		GenerateMissing: true,
		Pipeline:        pipeline.Options{Size: 9, MipLevels: -1},
	}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	od.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seeds/42/height.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	_, err = os.Stat(filepath.Join(dir, "42", "normals.png"))
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	od.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seeds/42/lod2.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	status := od.Status()
	assert.Equal(t, int64(1), status.TotalRendered)
	assert.Zero(t, status.ActiveRenders)
	assert.Empty(t, status.QueuedTerrains)

	rec = httptest.NewRecorder()
	od.StatusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var decoded RenderStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	assert.Equal(t, int64(1), decoded.TotalRendered)
	assert.Equal(t, 1, decoded.MaxConcurrent)
}

func TestOnDemandWithoutGeneration(t *testing.T) {
	od, err := NewOnDemandTerrains(OnDemandConfig{
		TerrainsDir: t.TempDir(),
		Pipeline:    pipeline.Options{Size: 9},
	}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	od.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seeds/42/height.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	od.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/seeds/42/height.png", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNewOnDemandRejectsBadSize(t *testing.T) {
	_, err := NewOnDemandTerrains(OnDemandConfig{TerrainsDir: t.TempDir()}, nil)
	require.Error(t, err)
}
