// Package prefs persists the two user-tunable summarization settings.
// Values are stored as text and re-parsed defensively on every read;
// nothing downstream trusts the stored form to be valid.
package prefs

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.

	"snipsum/internal/summary"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Preferences are the effective, already-clamped settings for one chain.
type Preferences struct {
	Tone         string
	MaxSentences int
}

// Store is a sqlite-backed preference store.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	dbInstance, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		log.InfoContext(ctx, "No migrations to apply", "path", path)
	} else {
		log.InfoContext(ctx, "Preference store migrated", "path", path)
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads the current preferences. A missing row, an unknown tone or a
// garbage sentence count all degrade to defaults rather than failing; the
// result is always safe to hand to the request builder as-is.
func (s *Store) Get(ctx context.Context) (Preferences, error) {
	query := "select tone, max_sentences from preferences where id = 1"

	var tone, rawSentences string

	err := s.db.QueryRowContext(ctx, query).Scan(&tone, &rawSentences)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{
			Tone:         summary.DefaultTone,
			MaxSentences: summary.DefaultSentences,
		}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}

	return Preferences{
		Tone:         summary.NormalizeTone(tone),
		MaxSentences: summary.ParseSentences(rawSentences),
	}, nil
}

// Set stores preferences, normalizing before write. The read path still
// re-clamps; writes from older versions or by hand remain harmless.
func (s *Store) Set(ctx context.Context, tone string, maxSentences int) error {
	query := `insert into preferences (id, tone, max_sentences)
	values (1, ?, ?)
	on conflict (id) do update
	set tone = excluded.tone, max_sentences = excluded.max_sentences`

	_, err := s.db.ExecContext(ctx, query,
		summary.NormalizeTone(tone),
		fmt.Sprintf("%d", summary.ClampSentences(maxSentences)))
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}

	return nil
}
