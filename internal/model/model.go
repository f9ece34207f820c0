package model

import (
	"context"
	"time"
)

// Learner represents a registered learner.
type Learner struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	LearnerID int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type learnerCtxKey struct{}

// ContextWithLearner stores a learner in the request context.
func ContextWithLearner(ctx context.Context, l *Learner) context.Context {
	return context.WithValue(ctx, learnerCtxKey{}, l)
}

// LearnerFromContext retrieves the authenticated learner from context, or nil.
func LearnerFromContext(ctx context.Context) *Learner {
	l, _ := ctx.Value(learnerCtxKey{}).(*Learner)
	return l
}

// Module is an ordered curriculum unit.
type Module struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

// Stage belongs to exactly one module and owns a pool of activities.
type Stage struct {
	ID          int64  `json:"id"`
	ModuleID    int64  `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

// Activity is an atomic exercise accepting up to QuestionCount boolean answers.
type Activity struct {
	ID            int64  `json:"id"`
	StageID       int64  `json:"stage_id"`
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
	Alternative   bool   `json:"alternative"`
}

// BoxEntry is one sampled activity with its answer slots.
type BoxEntry struct {
	ActivityID int64  `json:"activity_id"`
	Answers    []bool `json:"answers"`
}

// Box is an attemptable bundle of sampled activities.
type Box struct {
	ID      string     `json:"id"`
	StageID int64      `json:"stage_id"`
	Attempt int        `json:"attempt"`
	Entries []BoxEntry `json:"entries"`
}

// Clone returns a deep copy of the box.
func (b *Box) Clone() *Box {
	if b == nil {
		return nil
	}
	c := &Box{ID: b.ID, StageID: b.StageID, Attempt: b.Attempt}
	c.Entries = make([]BoxEntry, len(b.Entries))
	for i, e := range b.Entries {
		c.Entries[i] = BoxEntry{ActivityID: e.ActivityID, Answers: append([]bool{}, e.Answers...)}
	}
	return c
}

// ActivityIDs returns the activity ids of the box in order.
func (b *Box) ActivityIDs() []int64 {
	ids := make([]int64, len(b.Entries))
	for i, e := range b.Entries {
		ids[i] = e.ActivityID
	}
	return ids
}

// Outcome is the result of evaluating a box.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeReproved Outcome = "reproved"
)

// HistoryEntry is an immutable snapshot of an evaluated box.
type HistoryEntry struct {
	Seq         int       `json:"seq"`
	Box         Box       `json:"box"`
	Grade       float64   `json:"grade"`
	Outcome     Outcome   `json:"outcome"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Progress is the per-learner progression state.
// A nil Box means the position is exhausted and the learner advances on the next fetch.
type Progress struct {
	LearnerID int64
	ModuleID  int64
	StageID   int64
	Box       *Box
	History   []HistoryEntry
	// Version is 0 for progress that has never been saved.
	Version int64
}

// GameConfig holds the progression engine tuning set via CLI flags.
type GameConfig struct {
	SampleSize    int     // activities per box
	PassThreshold float64 // minimum grade ratio to approve a box
}

// ServerConfig holds runtime HTTP parameters set via CLI flags.
type ServerConfig struct {
	Lang          string // default UI language
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
}
