// Package mbtiles reads and writes MBTiles databases, the batch output
// target of the renderer.
package mbtiles

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver
)

// Metadata is the MBTiles metadata table content.
type Metadata struct {
	Name        string
	Description string
	Format      string // tile data type; the renderer always writes "png"
	Bounds      [4]float64
	MinZoom     int
	MaxZoom     int
}

func (m Metadata) toMap() map[string]string {
	result := map[string]string{
		"name":   m.Name,
		"format": m.Format,
		"type":   "baselayer",
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Bounds != [4]float64{} {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3])
	}
	result["minzoom"] = strconv.Itoa(m.MinZoom)
	result["maxzoom"] = strconv.Itoa(m.MaxZoom)
	return result
}

// tmsRow converts slippy-map y to the TMS row MBTiles stores.
func tmsRow(z, y int) int {
	return (1 << z) - 1 - y
}

// Writer stores rendered tiles in an MBTiles database. Tile data is
// gzip-compressed and addressed in TMS coordinates, as the format requires.
type Writer struct {
	db   *sql.DB
	path string
}

// NewWriter creates an MBTiles database, or opens an existing one and keeps
// its tables and tiles.
func NewWriter(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to clear metadata: %w", err)
	}
	for key, value := range metadata.toMap() {
		if _, err := db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", key, value); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return &Writer{db: db, path: path}, nil
}

// WriteTile stores one tile, replacing any previous content at (z, x, y).
// Not safe for concurrent use; the batch renderer funnels results through a
// single writer goroutine.
func (w *Writer) WriteTile(z, x, y int, pngData []byte) error {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(pngData); err != nil {
		return fmt.Errorf("failed to compress tile: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress tile: %w", err)
	}

	_, err := w.db.Exec(
		"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
		z, x, tmsRow(z, y), compressed.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("failed to write tile %d/%d/%d: %w", z, x, y, err)
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

// Reader serves tiles back out of an MBTiles database.
type Reader struct {
	db *sql.DB
}

// OpenReader opens an MBTiles database read-only.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tiles'",
	).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain a tiles table")
	}

	return &Reader{db: db}, nil
}

// ReadTile returns the decompressed PNG for an XYZ tile address.
func (r *Reader) ReadTile(z, x, y int) ([]byte, error) {
	var compressed []byte
	err := r.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		z, x, tmsRow(z, y),
	).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tile not found: %d/%d/%d", z, x, y)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile: %w", err)
	}
	return data, nil
}

// Metadata reads the metadata table back as a map.
func (r *Reader) Metadata() (map[string]string, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		result[name] = value
	}
	return result, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
