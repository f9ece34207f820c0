package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

var _ progress.Learners = (*Store)(nil)

// LoadProgress returns a learner's progress with its full history.
func (s *Store) LoadProgress(ctx context.Context, learnerID int64) (*model.Progress, error) {
	p := &model.Progress{LearnerID: learnerID}
	var box sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT module_id, stage_id, box, version FROM progress WHERE learner_id = ?`, learnerID,
	).Scan(&p.ModuleID, &p.StageID, &box, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.LearnerNotFound("LoadProgress", learnerID)
	}
	if err != nil {
		return nil, err
	}
	if box.Valid {
		p.Box = &model.Box{}
		if err := json.Unmarshal([]byte(box.String), p.Box); err != nil {
			return nil, fmt.Errorf("decode box of learner %d: %w", learnerID, err)
		}
	}

	p.History, err = s.loadHistory(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) loadHistory(ctx context.Context, learnerID int64) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, box, grade, outcome, evaluated_at FROM history WHERE learner_id = ? ORDER BY seq`, learnerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		var box string
		if err := rows.Scan(&h.Seq, &box, &h.Grade, &h.Outcome, &h.EvaluatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(box), &h.Box); err != nil {
			return nil, fmt.Errorf("decode history %d of learner %d: %w", h.Seq, learnerID, err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// SaveProgress writes p if the stored version still equals p.Version, then
// appends the history entries not stored yet. A version of 0 creates the record.
func (s *Store) SaveProgress(ctx context.Context, p *model.Progress) error {
	var box sql.NullString
	if p.Box != nil {
		data, err := json.Marshal(p.Box)
		if err != nil {
			return fmt.Errorf("encode box: %w", err)
		}
		box = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var res sql.Result
	if p.Version == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO progress (learner_id, module_id, stage_id, box, version) VALUES (?, ?, ?, ?, 1)
			 ON CONFLICT(learner_id) DO NOTHING`,
			p.LearnerID, p.ModuleID, p.StageID, box,
		)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE progress SET module_id = ?, stage_id = ?, box = ?, version = version + 1
			 WHERE learner_id = ? AND version = ?`,
			p.ModuleID, p.StageID, box, p.LearnerID, p.Version,
		)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return progress.ConcurrentUpdate("SaveProgress", p.Version)
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE learner_id = ?`, p.LearnerID).Scan(&stored); err != nil {
		return err
	}
	for _, h := range p.History[min(stored, len(p.History)):] {
		data, err := json.Marshal(h.Box)
		if err != nil {
			return fmt.Errorf("encode history box: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO history (learner_id, seq, stage_id, attempt, box, grade, outcome, evaluated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.LearnerID, h.Seq, h.Box.StageID, h.Box.Attempt, string(data), h.Grade, h.Outcome, h.EvaluatedAt,
		)
		if err != nil {
			return fmt.Errorf("append history %d: %w", h.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	p.Version++
	return nil
}
