package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/pavelanni/comunizika/internal/model"
)

// CreateLearner inserts a new learner.
func (s *Store) CreateLearner(ctx context.Context, l model.Learner) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO learners (email, name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		l.Email, l.Name, l.PasswordHash, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create learner", "email", l.Email, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created learner", "id", id, "email", l.Email)
	return id, nil
}

// GetLearnerByEmail returns a learner by email, or nil if none exists.
func (s *Store) GetLearnerByEmail(ctx context.Context, email string) (*model.Learner, error) {
	return s.getLearner(ctx, `WHERE email = ?`, email)
}

// GetLearnerByID returns a learner by ID, or nil if none exists.
func (s *Store) GetLearnerByID(ctx context.Context, id int64) (*model.Learner, error) {
	return s.getLearner(ctx, `WHERE id = ?`, id)
}

func (s *Store) getLearner(ctx context.Context, where string, arg any) (*model.Learner, error) {
	var l model.Learner
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM learners `+where, arg,
	).Scan(&l.ID, &l.Email, &l.Name, &l.PasswordHash, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// LearnerCount returns the total number of learners.
func (s *Store) LearnerCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learners`).Scan(&count)
	return count, err
}
