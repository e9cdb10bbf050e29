package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MeKo-Tech/fractalterrain/internal/lodstore"
	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"
	"github.com/MeKo-Tech/fractalterrain/internal/noise"
	"github.com/MeKo-Tech/fractalterrain/internal/pipeline"
	"github.com/MeKo-Tech/fractalterrain/internal/texture"
	"github.com/MeKo-Tech/fractalterrain/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate terrains",
	Long: `Generate Diamond-Square terrains with normal maps and mip pyramids.

A single terrain is generated by default. With --count > 1 a batch over
consecutive seeds runs on a worker pool. A seed of 0 picks an entropy seed,
which is logged so the terrain can be reproduced.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Terrain flags
	generateCmd.Flags().String("name", "terrain", "Terrain name (single mode) or name prefix (batch mode)")
	generateCmd.Flags().Uint32("seed", 0, "Seed; 0 picks an entropy seed")
	generateCmd.Flags().Int("size", 257, "Heightmap side length in samples")
	generateCmd.Flags().Int("mip-levels", -1, "Mip reductions below the base level (-1: down to 1x1)")
	generateCmd.Flags().String("filter", "box", "Mip filter: box or legacy")
	generateCmd.Flags().Float64("detail-strength", 0, "Strength of the Perlin detail layer (0 disables)")
	generateCmd.Flags().Float64("detail-scale", 16, "Feature size of the Perlin detail layer in samples")
	generateCmd.Flags().Float32("smooth", 0, "Gaussian blur sigma applied to the heightmap (0 disables)")

	// Batch generation flags
	generateCmd.Flags().Int("count", 1, "Number of terrains over consecutive seeds")
	generateCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	generateCmd.Flags().Bool("progress", true, "Show progress bar during batch generation")
	generateCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some terrains fail")

	// Output flags
	generateCmd.Flags().Bool("force", false, "Force regeneration even if the terrain exists")
	generateCmd.Flags().String("store", "", "Write levels into this LOD store instead of folders")
	generateCmd.Flags().Bool("tiff", false, "Also write a 16-bit TIFF heightmap (folder output)")
	generateCmd.Flags().Bool("mesh", false, "Also write an OBJ mesh (folder output)")
	generateCmd.Flags().Int("preview-size", 0, "Width of preview.png, 0 disables (folder output)")
	generateCmd.Flags().String("textures-dir", "", "Ground texture directory; enables color.png (folder output)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.name", "name"},
		{"generate.seed", "seed"},
		{"generate.size", "size"},
		{"generate.mip_levels", "mip-levels"},
		{"generate.filter", "filter"},
		{"generate.detail_strength", "detail-strength"},
		{"generate.detail_scale", "detail-scale"},
		{"generate.smooth", "smooth"},
		{"generate.count", "count"},
		{"generate.workers", "workers"},
		{"generate.progress", "progress"},
		{"generate.allow_failures", "allow-failures"},
		{"generate.force", "force"},
		{"generate.store", "store"},
		{"generate.tiff", "tiff"},
		{"generate.mesh", "mesh"},
		{"generate.preview_size", "preview-size"},
		{"generate.textures_dir", "textures-dir"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, generateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// generateSettings is the resolved configuration of one generate run.
type generateSettings struct {
	Name           string
	Seed           uint32
	Size           int
	MipLevels      int
	Filter         string
	DetailStrength float64
	DetailScale    float64
	Smooth         float32
	Count          int
	Workers        int
	Progress       bool
	AllowFailures  bool
	Force          bool
	OutputDir      string
	Store          string
	TIFF           bool
	Mesh           bool
	PreviewSize    int
	TexturesDir    string
}

func loadGenerateSettings() generateSettings {
	return generateSettings{
		Name:           viper.GetString("generate.name"),
		Seed:           viper.GetUint32("generate.seed"),
		Size:           viper.GetInt("generate.size"),
		MipLevels:      viper.GetInt("generate.mip_levels"),
		Filter:         viper.GetString("generate.filter"),
		DetailStrength: viper.GetFloat64("generate.detail_strength"),
		DetailScale:    viper.GetFloat64("generate.detail_scale"),
		Smooth:         float32(viper.GetFloat64("generate.smooth")),
		Count:          viper.GetInt("generate.count"),
		Workers:        viper.GetInt("generate.workers"),
		Progress:       viper.GetBool("generate.progress"),
		AllowFailures:  viper.GetBool("generate.allow_failures"),
		Force:          viper.GetBool("generate.force"),
		OutputDir:      viper.GetString("output-dir"),
		Store:          viper.GetString("generate.store"),
		TIFF:           viper.GetBool("generate.tiff"),
		Mesh:           viper.GetBool("generate.mesh"),
		PreviewSize:    viper.GetInt("generate.preview_size"),
		TexturesDir:    viper.GetString("generate.textures_dir"),
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return generateTerrains(ctx, loadGenerateSettings())
}

// generateTerrains runs one generate invocation: a single terrain when
// Count is 1, a worker-pool batch otherwise.
func generateTerrains(ctx context.Context, s generateSettings) error {
	if s.Count <= 0 {
		return fmt.Errorf("--count must be positive, got %d", s.Count)
	}
	if s.Name == "" {
		return fmt.Errorf("--name must not be empty")
	}

	filter, err := mipmap.ParseFilter(s.Filter)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Size:           s.Size,
		MipLevels:      s.MipLevels,
		Filter:         filter,
		DetailStrength: s.DetailStrength,
		DetailScale:    s.DetailScale,
		Smooth:         s.Smooth,
		TIFF:           s.TIFF,
		Mesh:           s.Mesh,
		PreviewSize:    s.PreviewSize,
		OutputDir:      s.OutputDir,
	}

	if s.TexturesDir != "" {
		var textures map[texture.Layer]image.Image
		if textures, err = texture.LoadDefaultTextures(s.TexturesDir); err != nil {
			return fmt.Errorf("failed to load textures: %w", err)
		}
		opts.Textures = textures
	}

	levels := s.MipLevels
	if levels < 0 {
		levels = mipmap.Levels(s.Size, s.Size)
	}

	var store *lodstore.Writer
	if s.Store != "" {
		store, err = lodstore.New(s.Store, lodstore.Metadata{
			Name:        s.Name,
			Description: "Diamond-Square terrain pyramids",
			Version:     "1.0",
			Filter:      filter.String(),
			BaseSize:    s.Size,
			Levels:      levels + 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create LOD store: %w", err)
		}
		defer func() {
			if store != nil {
				store.Close()
			}
		}()
		opts.Store = store
	}

	gen, err := pipeline.NewGenerator(opts, logger)
	if err != nil {
		return fmt.Errorf("failed to init generator: %w", err)
	}

	if s.Count == 1 {
		err = generateSingle(ctx, gen, s)
	} else {
		err = generateBatch(ctx, gen, s)
	}
	if err != nil {
		return err
	}

	if store != nil {
		err := store.Close()
		store = nil
		if err != nil {
			return fmt.Errorf("failed to close LOD store: %w", err)
		}
		logger.Info("LOD store written", "path", s.Store)
	}
	return nil
}

func generateSingle(ctx context.Context, gen *pipeline.Generator, s generateSettings) error {
	logger.Info("Starting terrain generation",
		"name", s.Name,
		"size", s.Size,
		"seed", s.Seed,
		"mip_levels", s.MipLevels,
		"filter", s.Filter,
		"output_dir", s.OutputDir,
		"store", s.Store,
		"force", s.Force,
	)

	path, seed, err := gen.Generate(ctx, s.Name, s.Seed, s.Force)
	if err != nil {
		return fmt.Errorf("failed to generate terrain: %w", err)
	}
	logger.Info("Terrain generated", "name", s.Name, "seed", seed, "path", path)
	return nil
}

func generateBatch(ctx context.Context, gen *pipeline.Generator, s generateSettings) error {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	base := s.Seed
	if base == 0 {
		base = noise.EntropySeed()
		logger.Info("Batch using entropy base seed", "seed", base)
	}
	tasks := worker.SeedTasks(s.Name, base, s.Count, s.Force)

	logger.Info("Starting batch terrain generation",
		"count", len(tasks),
		"base_seed", base,
		"size", s.Size,
		"workers", workers,
		"output_dir", s.OutputDir,
		"store", s.Store,
	)

	progress := worker.NewProgress(len(tasks), s.Progress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  gen,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Terrain generation failed", "name", r.Task.Name, "seed", r.Task.Seed, "error", r.Err)
		}
	}

	logger.Info(progress.Summary())

	if failedCount > 0 {
		if s.AllowFailures {
			logger.Warn("Some terrains failed to generate, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d terrains failed to generate", failedCount)
	}
	return nil
}
