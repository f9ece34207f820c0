package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/comunizika/internal/model"
)

// BoxView populates a box with its position and activity data.
func (s *Store) BoxView(ctx context.Context, moduleID, stageID int64, box *model.Box, final bool) (*model.BoxView, error) {
	m, err := s.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	st, err := s.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	acts, err := s.GetActivities(ctx, box.ActivityIDs())
	if err != nil {
		return nil, err
	}

	view := &model.BoxView{
		ID:         box.ID,
		Attempt:    box.Attempt,
		Module:     m,
		Stage:      st,
		Final:      final,
		Activities: make([]model.ActivityView, 0, len(box.Entries)),
	}
	for _, e := range box.Entries {
		a := acts[e.ActivityID]
		view.Activities = append(view.Activities, model.ActivityView{
			ID:            a.ID,
			Name:          a.Name,
			QuestionCount: a.QuestionCount,
			Alternative:   a.Alternative,
			Answers:       e.Answers,
		})
	}
	return view, nil
}

// HistoryViews resolves stage and activity names of evaluated boxes.
func (s *Store) HistoryViews(ctx context.Context, history []model.HistoryEntry) ([]model.HistoryView, error) {
	stageNames := make(map[int64]string)
	views := make([]model.HistoryView, 0, len(history))
	for _, h := range history {
		name, ok := stageNames[h.Box.StageID]
		if !ok {
			st, err := s.GetStage(ctx, h.Box.StageID)
			if err != nil {
				return nil, fmt.Errorf("history %d: %w", h.Seq, err)
			}
			name = st.Name
			stageNames[st.ID] = name
		}

		acts, err := s.GetActivities(ctx, h.Box.ActivityIDs())
		if err != nil {
			return nil, fmt.Errorf("history %d: %w", h.Seq, err)
		}
		v := model.HistoryView{
			Stage:       name,
			Attempt:     h.Box.Attempt,
			Grade:       h.Grade,
			Status:      h.Outcome,
			EvaluatedAt: h.EvaluatedAt,
			Activities:  make([]model.HistoryActivity, 0, len(h.Box.Entries)),
		}
		for _, e := range h.Box.Entries {
			v.Activities = append(v.Activities, model.HistoryActivity{
				Name:    acts[e.ActivityID].Name,
				Answers: e.Answers,
			})
		}
		views = append(views, v)
	}
	return views, nil
}

// LearnerData returns the learner's profile with its current position.
func (s *Store) LearnerData(ctx context.Context, l model.Learner) (*model.LearnerData, error) {
	data := &model.LearnerData{ID: l.ID, Email: l.Email, Name: l.Name}
	p, err := s.LoadProgress(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	m, err := s.GetModule(ctx, p.ModuleID)
	if err != nil {
		return nil, err
	}
	st, err := s.GetStage(ctx, p.StageID)
	if err != nil {
		return nil, err
	}
	data.Module, data.Stage = &m, &st
	return data, nil
}
