package texture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/png" // Register PNG decoder
)

// LoadDefaultTextures loads the default ground textures from the given directory.
func LoadDefaultTextures(dir string) (map[Layer]image.Image, error) {
	textures := make(map[Layer]image.Image)

	for layer, filename := range DefaultLayerTextures {
		path := filepath.Join(dir, filename)

		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open texture %s: %w", path, err)
		}

		img, _, err := image.Decode(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode texture %s: %w", path, err)
		}

		textures[layer] = img
	}

	return textures, nil
}
