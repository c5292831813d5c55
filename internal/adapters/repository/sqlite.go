package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // database/sql driver

	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/logger"
	"github.com/okian/fitscore/pkg/metrics"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = "file::memory:"

// SQLiteStore persists items and recommendations in SQLite.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	log         logger.Logger
}

// NewSQLiteStore opens dsn and applies pending migrations.
func NewSQLiteStore(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w: %w", dsn, ErrPersistence, err)
	}
	// One connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	s.db = db

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w: %w", p, ErrPersistence, err)
		}
	}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w: %w", ErrPersistence, err)
	}
	return s, nil
}

func (s *SQLiteStore) ItemsForOwner(ctx context.Context, ownerID string) ([]model.Item, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, category, image_ref FROM items WHERE owner_id = ? ORDER BY seq`, ownerID)
	if err != nil {
		return nil, s.fail("query items", err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		var cat string
		if err := rows.Scan(&it.ID, &it.OwnerID, &cat, &it.ImageRef); err != nil {
			return nil, s.fail("scan item", err)
		}
		it.Category = model.Category(cat)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate items", err)
	}
	return out, nil
}

func (s *SQLiteStore) PutItems(ctx context.Context, items ...model.Item) error {
	return s.tx(ctx, "put items", func(tx *sql.Tx) error {
		for _, it := range items {
			var owner string
			err := tx.QueryRowContext(ctx, `SELECT owner_id FROM items WHERE id = ?`, it.ID).Scan(&owner)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				_, err = tx.ExecContext(ctx,
					`INSERT INTO items (id, owner_id, category, image_ref) VALUES (?, ?, ?, ?)`,
					it.ID, it.OwnerID, string(it.Category), it.ImageRef)
			case err != nil:
			case owner != it.OwnerID:
				return fmt.Errorf("put item %q for %q: %w", it.ID, it.OwnerID, ErrConflict)
			default:
				_, err = tx.ExecContext(ctx,
					`UPDATE items SET category = ?, image_ref = ? WHERE id = ?`,
					string(it.Category), it.ImageRef, it.ID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceRecommendations(ctx context.Context, ownerID string, recs []model.Recommendation) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(msSince(start)) }()

	return s.tx(ctx, "replace recommendations", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE owner_id = ?`, ownerID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO recommendations
			(id, owner_id, position, outfit, scores, best_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range recs {
			r := &recs[i]
			outfit, err := json.Marshal(r.Outfit)
			if err != nil {
				return err
			}
			scores, err := json.Marshal(r.Scores)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, r.ID, ownerID, i, string(outfit), string(scores),
				r.BestScore, r.CreatedAt.UTC().UnixNano()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteRecommendations(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recommendations WHERE owner_id = ?`, ownerID); err != nil {
		return s.fail("delete recommendations", err)
	}
	return nil
}

func (s *SQLiteStore) Recommendations(ctx context.Context, ownerID string) ([]model.Recommendation, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	rows, err := s.db.QueryContext(ctx, `SELECT id, owner_id, outfit, scores, best_score, created_at
		FROM recommendations WHERE owner_id = ? ORDER BY position`, ownerID)
	if err != nil {
		return nil, s.fail("query recommendations", err)
	}
	defer rows.Close()

	out := []model.Recommendation{}
	for rows.Next() {
		var (
			r              model.Recommendation
			outfit, scores string
			created        int64
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &outfit, &scores, &r.BestScore, &created); err != nil {
			return nil, s.fail("scan recommendation", err)
		}
		if err := json.Unmarshal([]byte(outfit), &r.Outfit); err != nil {
			return nil, s.fail("decode outfit", err)
		}
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return nil, s.fail("decode scores", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate recommendations", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) tx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrConflict) {
			return err
		}
		return s.fail(op, err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail(op, err)
	}
	return nil
}

func (s *SQLiteStore) fail(op string, err error) error {
	metrics.RecordErrorByComponent("repository", op)
	if s.log != nil {
		s.log.Error(context.Background(), "sqlite operation failed", logger.String("op", op), logger.Error(err))
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
