package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/fractalterrain/internal/export"
	"github.com/MeKo-Tech/fractalterrain/internal/lodstore"
	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"
	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"
)

// Level payload kinds.
const (
	kindHeight  = "height"
	kindNormals = "normals"
	kindRaw     = "raw"
)

// LODHandler serves pyramid levels from a terrain store.
type LODHandler struct {
	reader       *lodstore.Reader
	logger       *slog.Logger
	cacheControl string
}

// LODConfig configures the store handler.
type LODConfig struct {
	StorePath    string
	CacheControl string
}

// TerrainListing is one entry of the terrain index.
type TerrainListing struct {
	Name   string `json:"name"`
	Seed   uint32 `json:"seed"`
	Size   int    `json:"size"`
	Levels []int  `json:"levels"`
}

// NewLODHandler creates a new store handler.
func NewLODHandler(cfg LODConfig, logger *slog.Logger) (*LODHandler, error) {
	reader, err := lodstore.OpenReader(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open terrain store: %w", err)
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=3600"
	}

	return &LODHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler returns the HTTP handler function for level requests.
func (h *LODHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveLevel(w, r)
	}
}

// IndexHandler lists stored terrains as JSON.
func (h *LODHandler) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terrains, err := h.reader.Terrains()
		if err != nil {
			h.log().Error("Failed to list terrains", "error", err)
			http.Error(w, "failed to list terrains", http.StatusInternalServerError)
			return
		}

		listing := make([]TerrainListing, 0, len(terrains))
		for _, t := range terrains {
			levels, err := h.reader.Levels(t.Name)
			if err != nil {
				h.log().Error("Failed to list levels", "terrain", t.Name, "error", err)
				http.Error(w, "failed to list levels", http.StatusInternalServerError)
				return
			}
			listing = append(listing, TerrainListing{Name: t.Name, Seed: t.Seed, Size: t.Size, Levels: levels})
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(listing); err != nil {
			h.log().Error("Failed to encode terrain index", "error", err)
		}
	}
}

func (h *LODHandler) serveLevel(w http.ResponseWriter, r *http.Request) {
	name, level, kind, ok := parseLevelPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	img, err := h.reader.ReadLevel(name, level)
	if errors.Is(err, lodstore.ErrLevelNotFound) {
		http.Error(w, "Level not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read level", "terrain", name, "level", level, "error", err)
		http.Error(w, "failed to read level", http.StatusInternalServerError)
		return
	}

	data, contentType, err := encodeLevel(img, kind)
	if err != nil {
		h.log().Error("Failed to encode level", "terrain", name, "level", level, "kind", kind, "error", err)
		http.Error(w, "failed to encode level", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// encodeLevel renders one level. Component 0 is the height; components
// 1..3, when present, are the normal.
func encodeLevel(img mipmap.HDRImage, kind string) ([]byte, string, error) {
	n := img.Width * img.Height
	heights := make([]float32, n)
	for i := range heights {
		heights[i] = img.Data[i*img.Components]
	}

	var buf bytes.Buffer
	switch kind {
	case kindRaw:
		if err := export.EncodeRaw32(&buf, heights); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/octet-stream", nil

	case kindNormals:
		if img.Components < 4 || img.Width != img.Height {
			return nil, "", fmt.Errorf("level has no square normal data")
		}
		normals := make([]normalmap.Vec3, n)
		for i := range normals {
			c := img.Data[i*img.Components:]
			normals[i] = normalmap.Vec3{X: c[1], Y: c[2], Z: c[3]}
		}
		out, err := export.NormalImage(normals, img.Width)
		if err != nil {
			return nil, "", err
		}
		if err := export.EncodePNG(&buf, out); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil

	default:
		out, err := export.GrayImage(heights, img.Width, img.Height)
		if err != nil {
			return nil, "", err
		}
		if err := export.EncodePNG(&buf, out); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	}
}

// Close closes the store reader.
func (h *LODHandler) Close() error {
	return h.reader.Close()
}

func (h *LODHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseLevelPath parses /terrains/{name}/lod{n}.png, lod{n}_normals.png and lod{n}.r32.
func parseLevelPath(requestPath string) (string, int, string, bool) {
	rest, ok := strings.CutPrefix(requestPath, "/terrains/")
	if !ok {
		return "", 0, "", false
	}
	name, file, ok := strings.Cut(rest, "/")
	if !ok || name == "" || strings.Contains(file, "/") {
		return "", 0, "", false
	}

	kind := kindHeight
	switch {
	case strings.HasSuffix(file, "_normals.png"):
		kind = kindNormals
		file = strings.TrimSuffix(file, "_normals.png")
	case strings.HasSuffix(file, ".png"):
		file = strings.TrimSuffix(file, ".png")
	case strings.HasSuffix(file, ".r32"):
		kind = kindRaw
		file = strings.TrimSuffix(file, ".r32")
	default:
		return "", 0, "", false
	}

	digits, ok := strings.CutPrefix(file, "lod")
	if !ok {
		return "", 0, "", false
	}
	level, err := strconv.Atoi(digits)
	if err != nil || level < 0 || strings.HasPrefix(digits, "+") {
		return "", 0, "", false
	}
	return name, level, kind, true
}
