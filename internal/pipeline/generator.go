// Package pipeline turns a terrain name and seed into stored outputs:
// heightmap, normal map, mip pyramid and optional splatted color map.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/fractalterrain/internal/export"
	"github.com/MeKo-Tech/fractalterrain/internal/lodstore"
	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"
	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"
	"github.com/MeKo-Tech/fractalterrain/internal/terrain"
	"github.com/MeKo-Tech/fractalterrain/internal/texture"
)

// Components stored per texel of a pyramid level: height, then normal x, y, z.
const Components = 4

// HeightFile is the name of the 16-bit height image inside a terrain folder.
const HeightFile = "height.png"

// RawFile is the name of the lossless float32 heightmap inside a terrain folder.
const RawFile = "height.r32"

// PreviewFile is the name of the optional downscaled height image.
const PreviewFile = "preview.png"

// MeshFile is the name of the optional OBJ mesh inside a terrain folder.
const MeshFile = "terrain.obj"

// LevelStore receives pyramid levels. *lodstore.Writer satisfies it.
type LevelStore interface {
	WriteTerrain(info lodstore.TerrainInfo) error
	WriteLevel(terrain string, level int, img mipmap.HDRImage) error
}

// Options configure a Generator.
type Options struct {
	Size           int
	MipLevels      int // Reductions below level 0; negative means down to 1x1
	Filter         mipmap.Filter
	DetailStrength float64
	DetailScale    float64
	Smooth         float32 // Gaussian sigma applied to the 16-bit height image
	TIFF           bool    // Also write height.tiff
	Mesh           bool    // Also write terrain.obj
	PreviewSize    int     // Width of preview.png; 0 disables
	OutputDir      string  // Folder output; ignored when Store is set
	Store          LevelStore
	Textures       map[texture.Layer]image.Image // Optional; enables color.png
}

// Generator runs the full terrain pipeline for one job.
// Generate is safe for concurrent use when Store is.
type Generator struct {
	opts   Options
	logger *slog.Logger
}

// NewGenerator validates opts and prepares a generator.
func NewGenerator(opts Options, logger *slog.Logger) (*Generator, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("terrain size must be positive")
	}
	if opts.Store == nil && opts.OutputDir == "" {
		return nil, fmt.Errorf("either an output directory or a store is required")
	}
	return &Generator{opts: opts, logger: logger}, nil
}

// Generate builds the terrain and writes it. It returns the output location
// (folder path or store key) and the seed actually used.
func (g *Generator) Generate(ctx context.Context, name string, seed uint32, force bool) (string, uint32, error) {
	if err := ctx.Err(); err != nil {
		return "", seed, err
	}

	dir := filepath.Join(g.opts.OutputDir, name)
	if g.opts.Store == nil && !force {
		if _, err := os.Stat(filepath.Join(dir, HeightFile)); err == nil {
			g.log().Info("Terrain already exists; skipping", "name", name, "path", dir)
			return dir, seed, nil
		}
	}

	g.log().Info("Generating terrain", "name", name, "size", g.opts.Size, "seed", seed)
	heights, used, err := terrain.CreateHeightmap(g.opts.Size, terrain.Options{
		Seed:           seed,
		DetailStrength: g.opts.DetailStrength,
		DetailScale:    g.opts.DetailScale,
		Logger:         g.log(),
	})
	if err != nil {
		return "", seed, fmt.Errorf("failed to create heightmap: %w", err)
	}

	if g.opts.Smooth > 0 {
		if heights, err = smooth(heights, g.opts.Size, g.opts.Smooth); err != nil {
			return "", used, err
		}
	}

	normals, chain, err := BuildPyramid(heights, g.opts.Size, g.opts.MipLevels, g.opts.Filter)
	if err != nil {
		return "", used, err
	}

	if g.opts.Store != nil {
		if err := g.writeStore(name, used, chain); err != nil {
			return "", used, err
		}
		return name, used, nil
	}

	if err := g.writeFolder(dir, heights, normals, chain); err != nil {
		return "", used, err
	}
	return dir, used, nil
}

func (g *Generator) writeStore(name string, seed uint32, chain []mipmap.HDRImage) error {
	if err := WritePyramid(g.opts.Store, lodstore.TerrainInfo{Name: name, Seed: seed, Size: g.opts.Size}, chain); err != nil {
		return err
	}
	g.log().Debug("Stored terrain", "name", name, "levels", len(chain))
	return nil
}

// BuildPyramid derives normals from a length x length heightmap and reduces
// the interleaved height+normal image. levels < 0 reduces down to 1x1.
func BuildPyramid(heights []float32, length, levels int, filter mipmap.Filter) ([]normalmap.Vec3, []mipmap.HDRImage, error) {
	normals, err := normalmap.Generate(heights, length)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate normals: %w", err)
	}
	if levels < 0 {
		levels = mipmap.Levels(length, length)
	}
	chain, err := mipmap.Chain(Interleave(heights, normals, length), levels, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build mip chain: %w", err)
	}
	return normals, chain, nil
}

// WritePyramid records info and every level of chain in store.
func WritePyramid(store LevelStore, info lodstore.TerrainInfo, chain []mipmap.HDRImage) error {
	if err := store.WriteTerrain(info); err != nil {
		return err
	}
	for level, img := range chain {
		if err := store.WriteLevel(info.Name, level, img); err != nil {
			return fmt.Errorf("failed to store level %d: %w", level, err)
		}
	}
	return nil
}

func (g *Generator) writeFolder(dir string, heights []float32, normals []normalmap.Vec3, chain []mipmap.HDRImage) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	size := g.opts.Size

	var errs []error
	errs = append(errs,
		export.WriteGray16PNG(filepath.Join(dir, HeightFile), heights, size, size),
		export.WriteRaw32(filepath.Join(dir, RawFile), heights),
		export.WriteNormalPNG(filepath.Join(dir, "normals.png"), normals, size),
	)
	if g.opts.TIFF {
		errs = append(errs, export.WriteTIFF16(filepath.Join(dir, "height.tiff"), heights, size, size))
	}

	if g.opts.PreviewSize > 0 {
		errs = append(errs, writePreview(filepath.Join(dir, PreviewFile), heights, size, g.opts.PreviewSize))
	}

	if g.opts.Mesh {
		mesh, err := terrain.BuildMesh(heights, normals, size)
		if err != nil {
			errs = append(errs, err)
		} else {
			sphere := mesh.BoundingSphere()
			g.log().Debug("Built mesh", "vertices", len(mesh.Vertices), "indices", len(mesh.Indices), "radius", sphere.Radius)
			errs = append(errs, export.WriteOBJ(filepath.Join(dir, MeshFile), mesh))
		}
	}

	for level := 1; level < len(chain); level++ {
		lod := Channel(chain[level], 0)
		errs = append(errs, export.WriteGrayPNG(filepath.Join(dir, fmt.Sprintf("lod%d.png", level)), lod, chain[level].Width, chain[level].Height))
	}

	if len(g.opts.Textures) > 0 {
		colored, err := texture.Splat(heights, normalmap.UpFacing(normals), size, g.opts.Textures, texture.DefaultSplatThresholds)
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, export.WritePNG(filepath.Join(dir, "color.png"), colored))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to write terrain outputs: %w", err)
	}
	g.log().Info("Wrote terrain", "path", dir, "levels", len(chain))
	return nil
}

// writePreview stores a Lanczos-downscaled copy of the heightmap.
func writePreview(path string, heights []float32, size, width int) error {
	img, err := export.Gray16Image(heights, size, size)
	if err != nil {
		return err
	}
	return export.WritePNG(path, export.Preview(img, min(width, size)))
}

// smooth blurs heights at 16-bit precision.
func smooth(heights []float32, size int, sigma float32) ([]float32, error) {
	img, err := export.Gray16Image(heights, size, size)
	if err != nil {
		return nil, err
	}
	out, _, _ := export.HeightsFromImage(export.Smooth(img, sigma))
	return out, nil
}

// Interleave packs heights and normals into one Components-wide image.
func Interleave(heights []float32, normals []normalmap.Vec3, length int) mipmap.HDRImage {
	data := make([]float32, 0, len(heights)*Components)
	for i, h := range heights {
		n := normals[i]
		data = append(data, h, n.X, n.Y, n.Z)
	}
	return mipmap.HDRImage{Width: length, Height: length, Components: Components, Data: data}
}

// Channel extracts one component of img as a row-major slice.
func Channel(img mipmap.HDRImage, c int) []float32 {
	out := make([]float32, img.Width*img.Height)
	for i := range out {
		out[i] = img.Data[i*img.Components+c]
	}
	return out
}

func (g *Generator) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}
