// Package postgres provides a PostgreSQL-backed [profile.Store].
//
// The store owns a [pgxpool.Pool] and runs [Migrate] on construction, so
// pointing it at an empty database is enough:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/aurasync/internal/profile"
)

var _ profile.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for a primary key conflict.
const uniqueViolation = "23505"

// Store persists profiles in the profiles table. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, pings it and migrates the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Create implements [profile.Store.Create].
func (s *Store) Create(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	p, err := profile.Prepare(p)
	if err != nil {
		return profile.Profile{}, err
	}

	const q = `
		INSERT INTO profiles
			(id, comprehension_break, learning_preference, listening_thought, struggle_note, ui_preferences)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = s.pool.QueryRow(ctx, q,
		p.ID,
		string(p.Onboarding.ComprehensionBreak),
		string(p.Onboarding.LearningPreference),
		string(p.Onboarding.ListeningThought),
		p.Onboarding.StruggleNote,
		p.UIPreferences,
	).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return profile.Profile{}, fmt.Errorf("postgres store: create %q: %w", p.ID, profile.ErrDuplicateID)
		}
		return profile.Profile{}, fmt.Errorf("postgres store: create %q: %w", p.ID, err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// Get implements [profile.Store.Get].
func (s *Store) Get(ctx context.Context, id string) (profile.Profile, error) {
	const q = `
		SELECT id, comprehension_break, learning_preference, listening_thought,
		       struggle_note, ui_preferences, created_at
		FROM profiles
		WHERE id = $1`

	var (
		p                        profile.Profile
		brk, pref, thought, note string
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &brk, &pref, &thought, &note, &p.UIPreferences, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("postgres store: get %q: %w", id, err)
	}
	p.Onboarding = profile.Onboarding{
		ComprehensionBreak: profile.ComprehensionBreak(brk),
		LearningPreference: profile.LearningPreference(pref),
		ListeningThought:   profile.ListeningThought(thought),
		StruggleNote:       note,
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// Len implements [profile.Store.Len].
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
