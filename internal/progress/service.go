package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pavelanni/comunizika/internal/model"
)

// Service is the progression controller. It is the only writer of learner progress.
type Service struct {
	learners  Learners
	walker    *Walker
	builder   *Builder
	grader    *Grader
	locker    Locker
	threshold float64
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*settings)

type settings struct {
	locker Locker
	rng    *rand.Rand
	now    func() time.Time
}

// WithLocker replaces the in-process learner lock.
func WithLocker(l Locker) Option {
	return func(s *settings) { s.locker = l }
}

// WithRand sets the random source used to shuffle mixed boxes.
func WithRand(r *rand.Rand) Option {
	return func(s *settings) { s.rng = r }
}

// WithClock sets the clock used to stamp history entries.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Evaluation is the outcome of grading the current box.
type Evaluation struct {
	Outcome model.Outcome
	Grade   float64
	Attempt int
	// Next is the retry box installed after a reproval.
	Next *model.Box
}

// Approved reports whether the box was approved.
func (e *Evaluation) Approved() bool {
	return e.Outcome == model.OutcomeApproved
}

// Current is the active box of a learner at its position.
type Current struct {
	Position Position
	Box      *model.Box
	Final    bool
}

// New creates a Service.
func New(c Curriculum, l Learners, cfg model.GameConfig, opts ...Option) (*Service, error) {
	if cfg.SampleSize < 1 {
		return nil, fmt.Errorf("sample size must be positive, got %d", cfg.SampleSize)
	}
	if cfg.PassThreshold <= 0 || cfg.PassThreshold > 1 {
		return nil, fmt.Errorf("pass threshold must be in (0, 1], got %v", cfg.PassThreshold)
	}
	st := settings{now: time.Now}
	for _, o := range opts {
		o(&st)
	}
	if st.locker == nil {
		st.locker = NewKeyedMutex()
	}
	return &Service{
		learners:  l,
		walker:    NewWalker(c),
		builder:   NewBuilder(c, cfg.SampleSize, st.rng),
		grader:    NewGrader(c),
		locker:    st.locker,
		threshold: cfg.PassThreshold,
		now:       st.now,
	}, nil
}

// Enroll places a learner without progress at the head of the curriculum
// with a first-attempt box.
func (s *Service) Enroll(ctx context.Context, learnerID int64) (*model.Progress, error) {
	unlock, err := s.locker.Lock(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pos, err := s.walker.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("head position: %w", err)
	}
	box, err := s.builder.Build(ctx, pos.StageID, 0)
	if err != nil {
		return nil, err
	}
	p := &model.Progress{
		LearnerID: learnerID,
		ModuleID:  pos.ModuleID,
		StageID:   pos.StageID,
		Box:       box,
	}
	if err := s.learners.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("enrolled learner", "learner_id", learnerID, "module_id", pos.ModuleID, "stage_id", pos.StageID)
	return p, nil
}

// Evaluate grades answers against the learner's current box. An approved box
// is moved to history and cleared; a reproved one is moved to history and
// replaced by a retry box at the same stage with the next attempt.
func (s *Service) Evaluate(ctx context.Context, learnerID int64, answers [][]bool) (*Evaluation, error) {
	unlock, err := s.locker.Lock(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.learners.LoadProgress(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if p.Box == nil {
		return nil, &Error{Kind: ErrNoActiveBox, Op: "Evaluate"}
	}

	box := p.Box.Clone()
	grade, err := s.grader.Grade(ctx, box, answers)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{Grade: grade, Attempt: box.Attempt}
	var next *model.Box
	if grade >= s.threshold {
		ev.Outcome = model.OutcomeApproved
	} else {
		ev.Outcome = model.OutcomeReproved
		next, err = s.builder.Build(ctx, box.StageID, box.Attempt+1)
		if err != nil {
			return nil, err
		}
		ev.Next = next
	}

	p.History = append(p.History, model.HistoryEntry{
		Seq:         len(p.History),
		Box:         *box,
		Grade:       grade,
		Outcome:     ev.Outcome,
		EvaluatedAt: s.now(),
	})
	p.Box = next
	if err := s.learners.SaveProgress(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("evaluated box",
		"learner_id", learnerID,
		"stage_id", box.StageID,
		"attempt", box.Attempt,
		"grade", grade,
		"outcome", ev.Outcome,
	)
	return ev, nil
}

// CurrentBox returns the learner's active box. When the box was cleared by an
// approval the learner is first advanced and a fresh box is built there.
func (s *Service) CurrentBox(ctx context.Context, learnerID int64) (*Current, error) {
	unlock, err := s.locker.Lock(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.learners.LoadProgress(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	pos := Position{ModuleID: p.ModuleID, StageID: p.StageID}

	if p.Box == nil {
		next, err := s.walker.Advance(ctx, pos)
		if err != nil {
			return nil, fmt.Errorf("advance learner %d: %w", learnerID, err)
		}
		box, err := s.builder.Build(ctx, next.StageID, 0)
		if err != nil {
			return nil, err
		}
		p.ModuleID, p.StageID, p.Box = next.ModuleID, next.StageID, box
		if err := s.learners.SaveProgress(ctx, p); err != nil {
			return nil, err
		}
		slog.Info("advanced learner", "learner_id", learnerID, "module_id", next.ModuleID, "stage_id", next.StageID)
		pos = next
	}

	final, err := s.walker.IsFinal(ctx, pos)
	if err != nil {
		return nil, err
	}
	return &Current{Position: pos, Box: p.Box, Final: final}, nil
}

// Restart replaces the learner's current box with a freshly sampled one at
// the current position. An active box keeps its attempt, a cleared one
// replays the approved stage from attempt 0. History is not modified.
func (s *Service) Restart(ctx context.Context, learnerID int64) (*model.Box, error) {
	unlock, err := s.locker.Lock(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.learners.LoadProgress(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	attempt := 0
	if p.Box != nil {
		attempt = p.Box.Attempt
	}
	box, err := s.builder.Build(ctx, p.StageID, attempt)
	if err != nil {
		return nil, err
	}
	p.Box = box
	if err := s.learners.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("restarted stage", "learner_id", learnerID, "stage_id", p.StageID, "attempt", attempt)
	return box, nil
}

// History returns the learner's evaluated boxes, oldest first.
func (s *Service) History(ctx context.Context, learnerID int64) ([]model.HistoryEntry, error) {
	p, err := s.learners.LoadProgress(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return p.History, nil
}
