package lodstore

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of levels to buffer before flushing to the database.
	DefaultBatchSize = 16
)

// LevelEntry is a single pyramid level waiting to be written.
type LevelEntry struct {
	Terrain string
	Level   int
	Image   mipmap.HDRImage
}

// Writer writes terrain pyramids to a store.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []LevelEntry
	metadata  Metadata
	batchSize int
	mu        sync.Mutex
}

// New creates a new store writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]LevelEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS terrains (
			name TEXT NOT NULL PRIMARY KEY,
			seed INTEGER NOT NULL,
			size INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS levels (
			terrain TEXT NOT NULL,
			level INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			components INTEGER NOT NULL,
			data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS level_index ON levels (terrain, level);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

// WriteTerrain records a terrain's seed and base size. It is written immediately.
func (w *Writer) WriteTerrain(info TerrainInfo) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.db.Exec("INSERT OR REPLACE INTO terrains (name, seed, size) VALUES (?, ?, ?)",
		info.Name, int64(info.Seed), info.Size)
	if err != nil {
		return fmt.Errorf("failed to insert terrain %q: %w", info.Name, err)
	}
	return nil
}

// WriteLevel adds a pyramid level to the batch. When the batch is full, it is automatically flushed.
func (w *Writer) WriteLevel(terrain string, level int, img mipmap.HDRImage) error {
	if _, err := mipmap.NewHDRImage(img.Width, img.Height, img.Components, img.Data); err != nil {
		return fmt.Errorf("level %s/%d: %w", terrain, level, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, LevelEntry{
		Terrain: terrain,
		Level:   level,
		Image:   img,
	})

	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// Flush writes any buffered levels to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered levels to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO levels (terrain, level, width, height, components, data) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		img := e.Image
		data, err := encodeFloats(img.Data)
		if err != nil {
			return fmt.Errorf("failed to encode level %s/%d: %w", e.Terrain, e.Level, err)
		}
		if _, err := stmt.Exec(e.Terrain, e.Level, img.Width, img.Height, img.Components, data); err != nil {
			return fmt.Errorf("failed to insert level %s/%d: %w", e.Terrain, e.Level, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining levels and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
