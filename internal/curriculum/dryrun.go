package curriculum

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

// Report summarizes a dry run.
type Report struct {
	Modules int
	Stages  int
	Boxes   int
}

// retriesPerStage is how many boxes are reproved at every stage before the
// learner passes. Two reprovals draw from the alternative and mixed pools.
const retriesPerStage = 2

// DryRun plays a single learner through the whole curriculum in memory,
// reproving the first boxes of every stage so that each kind of box is built
// once. It fails on the first box the curriculum cannot supply.
func DryRun(ctx context.Context, f *File, cfg model.GameConfig, rng *rand.Rand) (Report, error) {
	const learnerID = 1
	rep := Report{Modules: len(f.Modules)}

	g := NewGraph(f, rng)
	svc, err := progress.New(g, NewMemoryLearners(), cfg)
	if err != nil {
		return rep, err
	}
	p, err := svc.Enroll(ctx, learnerID)
	if err != nil {
		return rep, fmt.Errorf("enroll: %w", err)
	}
	rep.Boxes++

	box := p.Box
	for {
		rep.Stages++
		for i := 0; i <= retriesPerStage; i++ {
			pass := i == retriesPerStage
			answers, err := fillAnswers(ctx, g, box, pass)
			if err != nil {
				return rep, err
			}
			ev, err := svc.Evaluate(ctx, learnerID, answers)
			if err != nil {
				return rep, fmt.Errorf("stage %d attempt %d: %w", box.StageID, box.Attempt, err)
			}
			if ev.Approved() != pass {
				return rep, fmt.Errorf("stage %d attempt %d: unexpected outcome %s at grade %v", box.StageID, box.Attempt, ev.Outcome, ev.Grade)
			}
			if ev.Next != nil {
				box = ev.Next
				rep.Boxes++
			}
		}

		cur, err := svc.CurrentBox(ctx, learnerID)
		if err != nil {
			return rep, err
		}
		if cur.Box.StageID == box.StageID {
			// Terminal replay: the approved stage was the last one.
			return rep, nil
		}
		box = cur.Box
		rep.Boxes++
	}
}

func fillAnswers(ctx context.Context, c progress.Curriculum, box *model.Box, v bool) ([][]bool, error) {
	answers := make([][]bool, len(box.Entries))
	for i, e := range box.Entries {
		n, err := c.QuestionCount(ctx, e.ActivityID)
		if err != nil {
			return nil, err
		}
		answers[i] = make([]bool, n)
		for j := range answers[i] {
			answers[i][j] = v
		}
	}
	return answers, nil
}
