package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/fractalterrain/internal/pipeline"
)

// OnDemandConfig configures seed-addressed terrain generation.
type OnDemandConfig struct {
	TerrainsDir              string
	CacheControl             string
	MaxConcurrentGenerations int
	GenerationTimeout        time.Duration
	GenerateMissing          bool
	DisableCache             bool
	Pipeline                 pipeline.Options
}

// OnDemandTerrains serves terrain folders keyed by seed, generating them
// on first request.
type OnDemandTerrains struct {
	gen    *pipeline.Generator
	logger *slog.Logger
	sem    chan struct{}
	locks  sync.Map
	cfg    OnDemandConfig

	activeRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	currentRenders sync.Map // seed key -> start time

	queuedRenders  atomic.Int32
	queuedTerrains sync.Map // seed key -> queue time
}

// RenderStatus contains current generation status.
type RenderStatus struct {
	ActiveRenders  int      `json:"active_renders"`
	TotalRendered  int64    `json:"total_rendered"`
	TotalFailed    int64    `json:"total_failed"`
	CurrentSeeds   []string `json:"current_seeds"`
	MaxConcurrent  int      `json:"max_concurrent"`
	QueuedRenders  int      `json:"queued_renders"`
	QueuedTerrains []string `json:"queued_terrains"`
}

// NewOnDemandTerrains prepares the generator backing on-demand requests.
func NewOnDemandTerrains(cfg OnDemandConfig, logger *slog.Logger) (*OnDemandTerrains, error) {
	if cfg.TerrainsDir == "" {
		cfg.TerrainsDir = "./terrains"
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 1
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 2 * time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}

	opts := cfg.Pipeline
	opts.OutputDir = cfg.TerrainsDir
	opts.Store = nil
	gen, err := pipeline.NewGenerator(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init generator: %w", err)
	}

	return &OnDemandTerrains{
		gen:    gen,
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentGenerations),
	}, nil
}

// Status returns the current generation status.
func (t *OnDemandTerrains) Status() RenderStatus {
	return RenderStatus{
		ActiveRenders:  int(t.activeRenders.Load()),
		TotalRendered:  t.totalRendered.Load(),
		TotalFailed:    t.totalFailed.Load(),
		CurrentSeeds:   syncMapKeys(&t.currentRenders),
		MaxConcurrent:  t.cfg.MaxConcurrentGenerations,
		QueuedRenders:  int(t.queuedRenders.Load()),
		QueuedTerrains: syncMapKeys(&t.queuedTerrains),
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (t *OnDemandTerrains) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		if err := json.NewEncoder(w).Encode(t.Status()); err != nil {
			t.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})
}

// StatusStreamHandler pushes the status as server-sent events every 250ms.
func (t *OnDemandTerrains) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		t.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				t.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (t *OnDemandTerrains) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(t.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// Handler serves /seeds/{seed}/{file}.
func (t *OnDemandTerrains) Handler() http.Handler {
	return http.HandlerFunc(t.serveTerrain)
}

func (t *OnDemandTerrains) serveTerrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	seed, file, ok := parseSeedPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	key := strconv.FormatUint(uint64(seed), 10)
	fullPath := filepath.Join(t.cfg.TerrainsDir, key, file)

	w.Header().Set("Cache-Control", t.cfg.CacheControl)

	if !t.cfg.DisableCache && fileExists(fullPath) {
		http.ServeFile(w, r, fullPath)
		return
	}

	if !t.cfg.GenerateMissing {
		http.Error(w, fmt.Sprintf("terrain file not found: %s/%s", key, file), http.StatusNotFound)
		return
	}

	mu := t.getLock(key)
	mu.Lock()
	defer mu.Unlock()

	if !t.cfg.DisableCache && fileExists(fullPath) {
		http.ServeFile(w, r, fullPath)
		return
	}

	t.queuedRenders.Add(1)
	t.queuedTerrains.Store(key, time.Now())

	select {
	case t.sem <- struct{}{}:
		t.queuedRenders.Add(-1)
		t.queuedTerrains.Delete(key)
		defer func() { <-t.sem }()
	case <-r.Context().Done():
		t.queuedRenders.Add(-1)
		t.queuedTerrains.Delete(key)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), t.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	t.activeRenders.Add(1)
	t.currentRenders.Store(key, start)

	_, _, err := t.gen.Generate(ctx, key, seed, t.cfg.DisableCache)

	t.activeRenders.Add(-1)
	t.currentRenders.Delete(key)

	if err != nil {
		t.totalFailed.Add(1)
		t.log().Error("failed to generate terrain", "seed", seed, "error", err)
		http.Error(w, fmt.Sprintf("failed to generate terrain %s: %v", key, err), http.StatusInternalServerError)
		return
	}
	t.totalRendered.Add(1)
	t.log().Info("terrain generated on-demand", "seed", seed, "ms", time.Since(start).Milliseconds())

	if !fileExists(fullPath) {
		http.Error(w, fmt.Sprintf("terrain file not produced: %s/%s", key, file), http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, fullPath)
}

func (t *OnDemandTerrains) getLock(key string) *sync.Mutex {
	if v, ok := t.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := t.locks.LoadOrStore(key, mu)
	return actual.(*sync.Mutex)
}

func (t *OnDemandTerrains) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// parseSeedPath accepts /seeds/{seed}/{file} where seed is a nonzero uint32
// and file is one of the pipeline outputs.
func parseSeedPath(requestPath string) (uint32, string, bool) {
	rest, ok := strings.CutPrefix(requestPath, "/seeds/")
	if !ok {
		return 0, "", false
	}
	seedStr, file, ok := strings.Cut(rest, "/")
	if !ok || !allowedTerrainFile(file) {
		return 0, "", false
	}
	seed, err := strconv.ParseUint(seedStr, 10, 32)
	if err != nil || seed == 0 {
		return 0, "", false
	}
	return uint32(seed), file, true
}

func allowedTerrainFile(name string) bool {
	switch name {
	case pipeline.HeightFile, pipeline.RawFile, pipeline.PreviewFile, "height.tiff", "normals.png", "color.png":
		return true
	}
	digits, ok := strings.CutPrefix(name, "lod")
	if !ok {
		return false
	}
	digits, ok = strings.CutSuffix(digits, ".png")
	if !ok || digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func syncMapKeys(m *sync.Map) []string {
	var keys []string
	m.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !st.IsDir()
}
