// Package storage persists the attested SDK surface in SQLite. The
// scanner writes it, the validator reads it; the interpretation
// pipeline never touches the database.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"sdklens/internal/attested"
	"sdklens/internal/registry"
)

type Store struct {
	db *sql.DB
}

// NewStore creates or opens a SQLite database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS attested_surface (
		token TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		declaration TEXT,
		header TEXT
	)`)
	return err
}

// ReplaceSurface swaps the stored attested surface for records, in one
// transaction.
func (s *Store) ReplaceSurface(ctx context.Context, records []attested.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attested_surface`); err != nil {
		return fmt.Errorf("storage: clear surface: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attested_surface (token, kind, declaration, header) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, string(r.Token), string(r.Kind), r.Declaration, r.Header); err != nil {
			return fmt.Errorf("storage: insert %q: %w", r.Token, err)
		}
	}
	return tx.Commit()
}

// LoadSurface reads the stored attested surface back as an index.
func (s *Store) LoadSurface(ctx context.Context) (*attested.Index, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, kind, declaration, header FROM attested_surface ORDER BY token`)
	if err != nil {
		return nil, fmt.Errorf("storage: query surface: %w", err)
	}
	defer rows.Close()

	var records []attested.Record
	for rows.Next() {
		var token, kind string
		var declaration, header sql.NullString
		if err := rows.Scan(&token, &kind, &declaration, &header); err != nil {
			return nil, err
		}
		records = append(records, attested.Record{
			Token:       registry.Token(token),
			Kind:        registry.Kind(kind),
			Declaration: declaration.String,
			Header:      header.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attested.New(records)
}
