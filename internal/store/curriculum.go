package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/comunizika/internal/curriculum"
	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

var _ progress.Curriculum = (*Store)(nil)

// ImportCurriculum appends the modules of f after the existing ones, in one transaction.
func (s *Store) ImportCurriculum(ctx context.Context, f *curriculum.File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var base int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM modules`).Scan(&base); err != nil {
		return err
	}

	for mi, m := range f.Modules {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO modules (name, description, position) VALUES (?, ?, ?)`,
			m.Name, m.Description, base+mi,
		)
		if err != nil {
			return fmt.Errorf("insert module %q: %w", m.Name, err)
		}
		moduleID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for si, st := range m.Stages {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO stages (module_id, name, description, position) VALUES (?, ?, ?, ?)`,
				moduleID, st.Name, st.Description, si,
			)
			if err != nil {
				return fmt.Errorf("insert stage %q: %w", st.Name, err)
			}
			stageID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for _, a := range st.Activities {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO activities (stage_id, name, question_count, alternative) VALUES (?, ?, ?, ?)`,
					stageID, a.Name, a.Questions, a.Alternative,
				)
				if err != nil {
					return fmt.Errorf("insert activity %q: %w", a.Name, err)
				}
			}
		}
	}
	return tx.Commit()
}

// HeadModule returns the module with the lowest position.
func (s *Store) HeadModule(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM modules ORDER BY position LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, progress.PositionNotFound("HeadModule", "module", 0)
	}
	return id, err
}

// HeadStage returns the first stage of a module.
func (s *Store) HeadStage(ctx context.Context, moduleID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM stages WHERE module_id = ? ORDER BY position LIMIT 1`, moduleID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, progress.PositionNotFound("HeadStage", "module", moduleID)
	}
	return id, err
}

// NextStage returns the stage after stageID in the same module.
func (s *Store) NextStage(ctx context.Context, stageID int64) (int64, bool, error) {
	var moduleID int64
	var position int
	err := s.db.QueryRowContext(ctx,
		`SELECT module_id, position FROM stages WHERE id = ?`, stageID,
	).Scan(&moduleID, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, progress.PositionNotFound("NextStage", "stage", stageID)
	}
	if err != nil {
		return 0, false, err
	}

	var next int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM stages WHERE module_id = ? AND position > ? ORDER BY position LIMIT 1`,
		moduleID, position,
	).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return next, true, nil
}

// NextModule returns the module after moduleID.
func (s *Store) NextModule(ctx context.Context, moduleID int64) (int64, bool, error) {
	var position int
	err := s.db.QueryRowContext(ctx, `SELECT position FROM modules WHERE id = ?`, moduleID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, progress.PositionNotFound("NextModule", "module", moduleID)
	}
	if err != nil {
		return 0, false, err
	}

	var next int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM modules WHERE position > ? ORDER BY position LIMIT 1`, position,
	).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return next, true, nil
}

// SampleActivityIDs returns up to count random activities of a stage.
func (s *Store) SampleActivityIDs(ctx context.Context, stageID int64, count int, alternative bool) ([]int64, error) {
	if _, err := s.GetStage(ctx, stageID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM activities WHERE stage_id = ? AND alternative = ? ORDER BY RANDOM() LIMIT ?`,
		stageID, alternative, count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QuestionCount returns the number of answers an activity accepts.
func (s *Store) QuestionCount(ctx context.Context, activityID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT question_count FROM activities WHERE id = ?`, activityID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, progress.PositionNotFound("QuestionCount", "activity", activityID)
	}
	return n, err
}

// GetModule returns a module by ID.
func (s *Store) GetModule(ctx context.Context, id int64) (model.Module, error) {
	var m model.Module
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, position FROM modules WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return m, progress.PositionNotFound("GetModule", "module", id)
	}
	return m, err
}

// GetStage returns a stage by ID.
func (s *Store) GetStage(ctx context.Context, id int64) (model.Stage, error) {
	var st model.Stage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, module_id, name, description, position FROM stages WHERE id = ?`, id,
	).Scan(&st.ID, &st.ModuleID, &st.Name, &st.Description, &st.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return st, progress.PositionNotFound("GetStage", "stage", id)
	}
	return st, err
}

// GetActivities returns the activities with the given ids, keyed by id.
func (s *Store) GetActivities(ctx context.Context, ids []int64) (map[int64]model.Activity, error) {
	out := make(map[int64]model.Activity, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		var a model.Activity
		err := s.db.QueryRowContext(ctx,
			`SELECT id, stage_id, name, question_count, alternative FROM activities WHERE id = ?`, id,
		).Scan(&a.ID, &a.StageID, &a.Name, &a.QuestionCount, &a.Alternative)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, progress.PositionNotFound("GetActivities", "activity", id)
		}
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

// Outline returns all modules with their stages in curriculum order.
func (s *Store) Outline(ctx context.Context) ([]model.ModuleOutline, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, position FROM modules ORDER BY position`)
	if err != nil {
		return nil, err
	}
	var outline []model.ModuleOutline
	for rows.Next() {
		var m model.ModuleOutline
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Position); err != nil {
			rows.Close()
			return nil, err
		}
		outline = append(outline, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range outline {
		stages, err := s.listStages(ctx, outline[i].ID)
		if err != nil {
			return nil, err
		}
		outline[i].Stages = stages
	}
	return outline, nil
}

func (s *Store) listStages(ctx context.Context, moduleID int64) ([]model.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module_id, name, description, position FROM stages WHERE module_id = ? ORDER BY position`, moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stages := []model.Stage{}
	for rows.Next() {
		var st model.Stage
		if err := rows.Scan(&st.ID, &st.ModuleID, &st.Name, &st.Description, &st.Position); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// ModuleCount returns the number of modules in the database.
func (s *Store) ModuleCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM modules`).Scan(&count)
	return count, err
}
