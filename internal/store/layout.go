package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/fingerfuse/internal/keyboard"
)

// LayoutRecord is a stored keyboard layout.
type LayoutRecord struct {
	keyboard.Layout
	CreatedAt time.Time `json:"created_at"`
}

// LayoutRepository provides CRUD operations for keyboard layouts.
type LayoutRepository struct {
	db *sql.DB
}

// Layouts returns the layout repository for this store.
func (s *Store) Layouts() *LayoutRepository {
	return &LayoutRepository{db: s.db}
}

// Create validates and inserts l with its keys. An empty ID is replaced
// with a new UUID.
func (r *LayoutRepository) Create(l *keyboard.Layout) error {
	if l.Name == "" {
		return errors.New("layout name is required")
	}
	if err := l.Validate(); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO layouts (id, name, created_at) VALUES (?, ?, ?)`,
		l.ID, l.Name, time.Now(),
	); err != nil {
		return fmt.Errorf("insert layout: %w", err)
	}

	for i, k := range l.Keys {
		if _, err := tx.Exec(
			`INSERT INTO layout_keys (layout_id, position, key_id, label, x, y, width, height)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, i, k.ID, k.Label, k.X, k.Y, k.Width, k.Height,
		); err != nil {
			return fmt.Errorf("insert key %q: %w", k.ID, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a layout and its keys.
func (r *LayoutRepository) GetByID(id string) (*LayoutRecord, error) {
	rec := &LayoutRecord{}
	err := r.db.QueryRow(
		`SELECT id, name, created_at FROM layouts WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	keys, err := r.keys(id)
	if err != nil {
		return nil, err
	}
	rec.Keys = keys
	return rec, nil
}

// List retrieves all layouts, newest first.
func (r *LayoutRepository) List() ([]*LayoutRecord, error) {
	rows, err := r.db.Query(`SELECT id, name, created_at FROM layouts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}

	var layouts []*LayoutRecord
	for rows.Next() {
		rec := &LayoutRecord{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		layouts = append(layouts, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The pool holds a single connection, so keys load after rows close.
	for _, rec := range layouts {
		keys, err := r.keys(rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Keys = keys
	}
	return layouts, nil
}

// Delete removes a layout and its keys.
func (r *LayoutRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM layouts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r *LayoutRepository) keys(layoutID string) ([]keyboard.Key, error) {
	rows, err := r.db.Query(
		`SELECT key_id, label, x, y, width, height FROM layout_keys
		 WHERE layout_id = ? ORDER BY position`,
		layoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []keyboard.Key
	for rows.Next() {
		var k keyboard.Key
		if err := rows.Scan(&k.ID, &k.Label, &k.X, &k.Y, &k.Width, &k.Height); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
