// Package store keeps program images in a SQLite database, addressed by the
// SHA-256 of their code.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/modl/pkg/image"
)

// ErrNotFound indicates no stored image matches a hash.
var ErrNotFound = errors.New("store: image not found")

// ErrAmbiguous indicates a hash prefix matches more than one image.
var ErrAmbiguous = errors.New("store: ambiguous hash prefix")

// Entry describes a stored image without its code.
type Entry struct {
	Hash    string
	Name    string
	ID      string
	Size    int
	Created time.Time
}

// Store is a content-addressed image store.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		hash    TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		id      TEXT NOT NULL,
		size    INTEGER NOT NULL,
		created INTEGER NOT NULL,
		data    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Put stores img and returns its hash. Storing the same code again
// replaces the earlier entry.
func (s *Store) Put(img *image.Image) (string, error) {
	data, err := image.Marshal(img)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(img.Code)
	sum := hex.EncodeToString(hash[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO images (hash, name, id, size, created, data) VALUES (?, ?, ?, ?, ?, ?)",
		sum, img.Name, img.ID.String(), len(img.Code), time.Now().Unix(), data,
	)
	if err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	return sum, nil
}

// Get loads the image whose hash starts with prefix.
func (s *Store) Get(prefix string) (*image.Image, error) {
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return nil, ErrNotFound
	}
	if _, err := hex.DecodeString(prefix + strings.Repeat("0", len(prefix)%2)); err != nil {
		return nil, fmt.Errorf("store: bad hash %q", prefix)
	}

	rows, err := s.db.Query("SELECT data FROM images WHERE hash LIKE ? LIMIT 2", prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("querying image: %w", err)
	}
	defer rows.Close()

	var found [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		found = append(found, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying image: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return image.Unmarshal(found[0])
	}
	return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
}

// List returns every stored image, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT hash, name, id, size, created FROM images ORDER BY created DESC, hash")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Hash, &e.Name, &e.ID, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("reading entry: %w", err)
		}
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the image with the exact hash.
func (s *Store) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM images WHERE hash = ?", strings.ToLower(hash))
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
