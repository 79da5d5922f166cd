package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ProgressTTL is how long a saved resume position stays valid.
const ProgressTTL = 24 * time.Hour

// timeNow is a test seam.
var timeNow = time.Now

// Progress is a saved resume position for a playback context.
type Progress struct {
	TrackURI    string
	PositionMS  int64
	TrackName   string
	TrackArtist string
	SavedAt     time.Time
}

// Store persists catalog items and resume progress to SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a Store at the given path. If dbPath is empty, the default
// location under the user state directory is used.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		var err error
		dbPath, err = defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve catalog db path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func defaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cubby", "state", "catalog.db"), nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS items (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			uri TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'album',
			artist TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS progress (
			context_uri TEXT PRIMARY KEY,
			track_uri TEXT NOT NULL,
			position_ms INTEGER NOT NULL,
			track_name TEXT NOT NULL DEFAULT '',
			track_artist TEXT NOT NULL DEFAULT '',
			saved_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate catalog schema: %w", err)
		}
	}
	return nil
}

// Items returns all catalog items in carousel order.
func (s *Store) Items(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, uri, name, kind, artist, image FROM items ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.URI, &it.Name, &it.Kind, &it.Artist, &it.Image); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// SaveItem appends an item to the catalog, or updates it in place when the
// URI already exists.
func (s *Store) SaveItem(ctx context.Context, it Item) error {
	if it.URI == "" {
		return fmt.Errorf("item uri is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, uri, name, kind, artist, image)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uri) DO UPDATE SET name = excluded.name, kind = excluded.kind,
			artist = excluded.artist, image = excluded.image`,
		it.ID, it.URI, it.Name, it.Kind, it.Artist, it.Image)
	if err != nil {
		return fmt.Errorf("save item %s: %w", it.URI, err)
	}
	return nil
}

// DeleteItem removes an item and any saved progress for it.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var uri string
	err = tx.QueryRowContext(ctx, `SELECT uri FROM items WHERE id = ?`, id).Scan(&uri)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup item %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE context_uri = ?`, uri); err != nil {
		return fmt.Errorf("delete progress for %s: %w", uri, err)
	}
	return tx.Commit()
}

// SaveProgress records the resume position for a context.
func (s *Store) SaveProgress(ctx context.Context, contextURI, trackURI string, positionMS int64, trackName, trackArtist string) error {
	if contextURI == "" || trackURI == "" {
		return fmt.Errorf("context and track uri are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (context_uri, track_uri, position_ms, track_name, track_artist, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(context_uri) DO UPDATE SET track_uri = excluded.track_uri,
			position_ms = excluded.position_ms, track_name = excluded.track_name,
			track_artist = excluded.track_artist, saved_at = excluded.saved_at`,
		contextURI, trackURI, positionMS, trackName, trackArtist, timeNow().Unix())
	if err != nil {
		return fmt.Errorf("save progress for %s: %w", contextURI, err)
	}
	return nil
}

// Progress returns the saved resume position for a context, or nil when
// none exists. Entries older than ProgressTTL are expired and cleared.
func (s *Store) Progress(ctx context.Context, contextURI string) (*Progress, error) {
	var p Progress
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT track_uri, position_ms, track_name, track_artist, saved_at
		 FROM progress WHERE context_uri = ?`, contextURI).
		Scan(&p.TrackURI, &p.PositionMS, &p.TrackName, &p.TrackArtist, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress for %s: %w", contextURI, err)
	}

	p.SavedAt = time.Unix(savedAt, 0)
	if timeNow().Sub(p.SavedAt) > ProgressTTL {
		if err := s.ClearProgress(ctx, contextURI); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &p, nil
}

// ClearProgress removes the saved resume position for a context.
func (s *Store) ClearProgress(ctx context.Context, contextURI string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE context_uri = ?`, contextURI); err != nil {
		return fmt.Errorf("clear progress for %s: %w", contextURI, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
