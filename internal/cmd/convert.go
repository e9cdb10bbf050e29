package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/MeKo-Tech/fractalterrain/internal/export"
	"github.com/MeKo-Tech/fractalterrain/internal/lodstore"
	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"
	"github.com/MeKo-Tech/fractalterrain/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Import heightmap images into a LOD store",
	Long: `Import grayscale heightmaps into a LOD store database.

Terrain folders written by "generate" contribute their lossless height.r32
(or height.png). Loose PNG, JPEG, TIFF and .r32 heightmaps in the input
directory are imported under their file name. Normals and the mip pyramid
are derived on import.`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("input-dir", "./terrains", "Input directory containing terrain folders or heightmap images")
	convertCmd.Flags().StringP("output", "o", "", "Output LOD store path (required)")
	convertCmd.Flags().String("name", "FractalTerrain", "Store name")
	convertCmd.Flags().String("description", "Imported terrain pyramids", "Store description")
	convertCmd.Flags().Int("mip-levels", -1, "Mip reductions below the base level (-1: down to 1x1)")
	convertCmd.Flags().String("filter", "box", "Mip filter: box or legacy")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"convert.input_dir", "input-dir"},
		{"convert.output", "output"},
		{"convert.name", "name"},
		{"convert.description", "description"},
		{"convert.mip_levels", "mip-levels"},
		{"convert.filter", "filter"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, convertCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	return convertDirectory(
		viper.GetString("convert.input_dir"),
		viper.GetString("convert.output"),
		viper.GetString("convert.name"),
		viper.GetString("convert.description"),
		viper.GetInt("convert.mip_levels"),
		viper.GetString("convert.filter"),
	)
}

func convertDirectory(inputDir, outputFile, name, description string, levels int, filterName string) error {
	if outputFile == "" {
		return fmt.Errorf("--output is required")
	}
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}
	filter, err := mipmap.ParseFilter(filterName)
	if err != nil {
		return err
	}

	logger.Info("Converting heightmaps to LOD store",
		"input_dir", inputDir,
		"output", outputFile,
		"name", name,
	)

	sources, err := scanHeightmaps(inputDir)
	if err != nil {
		return fmt.Errorf("failed to scan input directory: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no heightmaps found in %s", inputDir)
	}
	logger.Info("Found heightmaps", "count", len(sources))

	writer, err := lodstore.New(outputFile, lodstore.Metadata{
		Name:        name,
		Description: description,
		Version:     "1.0",
		Filter:      filter.String(),
		Levels:      levels,
	})
	if err != nil {
		return fmt.Errorf("failed to create LOD store: %w", err)
	}
	defer writer.Close()

	var converted int
	for _, src := range sources {
		if err := convertHeightmap(writer, src, levels, filter); err != nil {
			logger.Error("Failed to convert heightmap", "terrain", src.name, "path", src.path, "error", err)
			continue
		}
		converted++
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush levels: %w", err)
	}

	logger.Info("Conversion complete", "output", outputFile, "terrains", converted, "skipped", len(sources)-converted)
	if converted == 0 {
		return fmt.Errorf("no heightmaps could be converted")
	}
	return nil
}

func convertHeightmap(store pipeline.LevelStore, src heightmapSource, levels int, filter mipmap.Filter) error {
	heights, w, h, err := readHeightmap(src.path)
	if err != nil {
		return err
	}
	if w != h {
		return fmt.Errorf("heightmap must be square, got %dx%d", w, h)
	}

	_, chain, err := pipeline.BuildPyramid(heights, w, levels, filter)
	if err != nil {
		return err
	}
	if err := pipeline.WritePyramid(store, lodstore.TerrainInfo{Name: src.name, Size: w}, chain); err != nil {
		return err
	}
	logger.Debug("Converted heightmap", "terrain", src.name, "size", w, "levels", len(chain))
	return nil
}

// readHeightmap loads raw float32 files losslessly and decodes anything
// else as a grayscale image.
func readHeightmap(path string) ([]float32, int, int, error) {
	if !strings.EqualFold(filepath.Ext(path), ".r32") {
		return export.ReadGrayImage(path)
	}
	heights, err := export.ReadRaw32(path)
	if err != nil {
		return nil, 0, 0, err
	}
	side := int(math.Sqrt(float64(len(heights))))
	for side*side < len(heights) {
		side++
	}
	if side*side != len(heights) {
		return nil, 0, 0, fmt.Errorf("raw heightmap %s has %d values, not a square", path, len(heights))
	}
	return heights, side, side, nil
}

type heightmapSource struct {
	name string
	path string
}

var looseImagePattern = regexp.MustCompile(`(?i)^(.+)\.(png|jpe?g|tiff?|r32)$`)

// scanHeightmaps finds terrain folders and loose heightmaps directly inside
// dir. A folder contributes its height.r32 when present, else height.png.
// Results are sorted by name.
func scanHeightmaps(dir string) ([]heightmapSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var sources []heightmapSource
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			for _, file := range []string{pipeline.RawFile, pipeline.HeightFile} {
				height := filepath.Join(path, file)
				if st, err := os.Stat(height); err == nil && !st.IsDir() {
					sources = append(sources, heightmapSource{name: entry.Name(), path: height})
					break
				}
			}
			continue
		}

		matches := looseImagePattern.FindStringSubmatch(entry.Name())
		if matches == nil || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sources = append(sources, heightmapSource{name: matches[1], path: path})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].name < sources[j].name })
	return sources, nil
}
