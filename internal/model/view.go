package model

import "time"

// ActivityView is a box entry populated with its activity data.
type ActivityView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
	Alternative   bool   `json:"alternative"`
	Answers       []bool `json:"answers"`
}

// BoxView combines the current box with its position for display.
type BoxView struct {
	ID         string         `json:"id"`
	Attempt    int            `json:"attempt"`
	Module     Module         `json:"module"`
	Stage      Stage          `json:"stage"`
	Final      bool           `json:"final"`
	Activities []ActivityView `json:"activities"`
}

// HistoryActivity is one answered activity of an evaluated box.
type HistoryActivity struct {
	Name    string `json:"name"`
	Answers []bool `json:"answers"`
}

// HistoryView is an evaluated box with stage and activity names resolved.
type HistoryView struct {
	Stage       string            `json:"stage"`
	Attempt     int               `json:"attempt"`
	Grade       float64           `json:"grade"`
	Status      Outcome           `json:"status"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
	Activities  []HistoryActivity `json:"activities"`
}

// LearnerData is the non-sensitive learner profile with its position.
type LearnerData struct {
	ID     int64   `json:"id"`
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Module *Module `json:"module,omitempty"`
	Stage  *Stage  `json:"stage,omitempty"`
}

// ModuleOutline lists a module with its stages in order.
type ModuleOutline struct {
	Module
	Stages []Stage `json:"stages"`
}
