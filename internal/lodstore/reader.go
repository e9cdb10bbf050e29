package lodstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/fractalterrain/internal/mipmap"
)

// Reader reads terrain pyramids from a store.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens an existing store for reading.
func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='levels'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain levels table")
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// ReadLevel returns one decoded pyramid level.
func (r *Reader) ReadLevel(terrain string, level int) (mipmap.HDRImage, error) {
	var (
		img  mipmap.HDRImage
		blob []byte
	)
	err := r.db.QueryRow(
		"SELECT width, height, components, data FROM levels WHERE terrain=? AND level=?",
		terrain, level,
	).Scan(&img.Width, &img.Height, &img.Components, &blob)

	if errors.Is(err, sql.ErrNoRows) {
		return mipmap.HDRImage{}, fmt.Errorf("%w: %s/%d", ErrLevelNotFound, terrain, level)
	}
	if err != nil {
		return mipmap.HDRImage{}, fmt.Errorf("failed to query level: %w", err)
	}

	img.Data, err = decodeFloats(blob, img.Width*img.Height*img.Components)
	if err != nil {
		return mipmap.HDRImage{}, fmt.Errorf("failed to decode level %s/%d: %w", terrain, level, err)
	}
	return img, nil
}

// Levels lists the stored level indices of a terrain in ascending order.
func (r *Reader) Levels(terrain string) ([]int, error) {
	rows, err := r.db.Query("SELECT level FROM levels WHERE terrain=? ORDER BY level", terrain)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()

	var levels []int
	for rows.Next() {
		var l int
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan level row: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating levels: %w", err)
	}
	return levels, nil
}

// Terrains lists every terrain that has at least one stored level, by name.
// Seed and Size are zero for terrains written without WriteTerrain.
func (r *Reader) Terrains() ([]TerrainInfo, error) {
	rows, err := r.db.Query(`
		SELECT l.terrain, COALESCE(t.seed, 0), COALESCE(t.size, 0)
		FROM (SELECT DISTINCT terrain FROM levels) l
		LEFT JOIN terrains t ON t.name = l.terrain
		ORDER BY l.terrain`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terrains: %w", err)
	}
	defer rows.Close()

	var out []TerrainInfo
	for rows.Next() {
		var (
			info TerrainInfo
			seed int64
		)
		if err := rows.Scan(&info.Name, &seed, &info.Size); err != nil {
			return nil, fmt.Errorf("failed to scan terrain row: %w", err)
		}
		info.Seed = uint32(seed)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terrains: %w", err)
	}
	return out, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	metaMap := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		metaMap[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(metaMap), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
