package cmd

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"
	"github.com/MeKo-Tech/fractalterrain/internal/pipeline"
	"github.com/MeKo-Tech/fractalterrain/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve terrain levels from a LOD store and seed-addressed terrains on demand",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("store", "", "LOD store to serve under /terrains/ (optional)")
	serveCmd.Flags().String("terrains-dir", "", "Directory for seed-addressed terrains (defaults to --output-dir)")

	serveCmd.Flags().Bool("generate-missing", true, "Generate missing seed terrains on-demand and cache them to disk")
	serveCmd.Flags().Bool("disable-cache", false, "Always regenerate seed terrains (still writes to disk)")
	serveCmd.Flags().Int("max-concurrent-generations", runtime.NumCPU(), "Max concurrent terrain generations (default: number of CPUs)")
	serveCmd.Flags().Duration("generation-timeout", 2*time.Minute, "Timeout per terrain generation")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for seed terrains")
	serveCmd.Flags().String("store-cache-control", "public, max-age=3600", "Cache-Control header for LOD store levels")

	serveCmd.Flags().Int("size", 257, "Heightmap side length for on-demand terrains")
	serveCmd.Flags().Int("mip-levels", -1, "Mip reductions for on-demand terrains (-1: down to 1x1)")
	serveCmd.Flags().String("filter", "box", "Mip filter: box or legacy")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.store", "store")
	mustBind("serve.terrains_dir", "terrains-dir")
	mustBind("serve.generate_missing", "generate-missing")
	mustBind("serve.disable_cache", "disable-cache")
	mustBind("serve.max_concurrent_generations", "max-concurrent-generations")
	mustBind("serve.generation_timeout", "generation-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.store_cache_control", "store-cache-control")

	mustBind("serve.size", "size")
	mustBind("serve.mip_levels", "mip-levels")
	mustBind("serve.filter", "filter")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	storePath := viper.GetString("serve.store")
	terrainsDir := viper.GetString("serve.terrains_dir")
	if terrainsDir == "" {
		terrainsDir = viper.GetString("output-dir")
	}
	generateMissing := viper.GetBool("serve.generate_missing")
	maxConc := viper.GetInt("serve.max_concurrent_generations")

	filter, err := mipmap.ParseFilter(viper.GetString("serve.filter"))
	if err != nil {
		return err
	}

	od, err := server.NewOnDemandTerrains(server.OnDemandConfig{
		TerrainsDir:              terrainsDir,
		CacheControl:             viper.GetString("serve.cache_control"),
		MaxConcurrentGenerations: maxConc,
		GenerationTimeout:        viper.GetDuration("serve.generation_timeout"),
		GenerateMissing:          generateMissing,
		DisableCache:             viper.GetBool("serve.disable_cache"),
		Pipeline: pipeline.Options{
			Size:      viper.GetInt("serve.size"),
			MipLevels: viper.GetInt("serve.mip_levels"),
			Filter:    filter,
		},
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/seeds/", od.Handler())
	mux.Handle("/status", od.StatusHandler())
	mux.Handle("/status/stream", od.StatusStreamHandler())

	if storePath != "" {
		lod, err := server.NewLODHandler(server.LODConfig{
			StorePath:    storePath,
			CacheControl: viper.GetString("serve.store_cache_control"),
		}, logger)
		if err != nil {
			return err
		}
		defer lod.Close()

		mux.Handle("/terrains", withCORS(lod.IndexHandler()))
		mux.Handle("/terrains/", withCORS(lod.Handler()))
	}

	logger.Info("terrain server listening",
		"addr", addr,
		"store", storePath,
		"terrains_dir", terrainsDir,
		"generate_missing", generateMissing,
		"max_concurrent_generations", maxConc,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
