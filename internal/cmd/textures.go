package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/fractalterrain/internal/texture"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var texturesCmd = &cobra.Command{
	Use:   "textures",
	Short: "Generate seamless ground textures",
	Long:  "Generate the default set of tileable ground textures (sand, grass, rock, snow) used for color maps.",
	RunE:  runTextures,
}

func init() {
	rootCmd.AddCommand(texturesCmd)

	texturesCmd.Flags().String("textures-dir", "./textures", "Output directory for generated textures")
	texturesCmd.Flags().Int("size", 512, "Texture size in pixels (square, power of two)")
	texturesCmd.Flags().Uint32("seed", 1337, "Seed for texture generation; 0 picks an entropy seed")
	texturesCmd.Flags().Bool("force", false, "Overwrite textures that already exist")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"textures.dir", "textures-dir"},
		{"textures.size", "size"},
		{"textures.seed", "seed"},
		{"textures.force", "force"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, texturesCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runTextures(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	dir := viper.GetString("textures.dir")
	size := viper.GetInt("textures.size")
	seed := viper.GetUint32("textures.seed")
	force := viper.GetBool("textures.force")

	if size <= 0 {
		return fmt.Errorf("size must be positive")
	}

	result, err := texture.WriteDefaultTextures(dir, size, seed, force)
	if err != nil {
		return err
	}

	logger.Info("Texture generation complete",
		"dir", dir,
		"seed", result.Seed,
		"written", len(result.Written),
		"skipped", len(result.Skipped),
	)
	return nil
}
