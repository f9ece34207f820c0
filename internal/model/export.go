package model

import "time"

// HistoryExport is the top-level JSON structure for a learner's history export.
type HistoryExport struct {
	Learner     string        `json:"learner"`
	Email       string        `json:"email"`
	ExportedAt  time.Time     `json:"exported_at"`
	Approved    int           `json:"approved"`
	Reproved    int           `json:"reproved"`
	MeanGrade   float64       `json:"mean_grade"`
	Evaluations []HistoryView `json:"evaluations"`
}

// NewHistoryExport summarizes a learner's evaluated boxes.
func NewHistoryExport(l Learner, history []HistoryView, now time.Time) HistoryExport {
	exp := HistoryExport{
		Learner:     l.Name,
		Email:       l.Email,
		ExportedAt:  now,
		Evaluations: history,
	}
	if exp.Evaluations == nil {
		exp.Evaluations = []HistoryView{}
	}
	var sum float64
	for _, h := range history {
		switch h.Status {
		case OutcomeApproved:
			exp.Approved++
		case OutcomeReproved:
			exp.Reproved++
		}
		sum += h.Grade
	}
	if len(history) > 0 {
		exp.MeanGrade = sum / float64(len(history))
	}
	return exp
}
