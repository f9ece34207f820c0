// Package progress implements the progression engine: it walks the curriculum,
// samples activities into boxes, grades submitted answers and commits the
// approve/reprove transitions of a learner's progress.
//
// The engine holds no storage of its own. It reads the curriculum and loads and
// saves learner progress through the Curriculum and Learners interfaces.
package progress

import (
	"context"

	"github.com/pavelanni/comunizika/internal/model"
)

// Curriculum is the read-only view of the curriculum graph and activity pools.
type Curriculum interface {
	// HeadModule returns the first module of the curriculum.
	HeadModule(ctx context.Context) (int64, error)
	// HeadStage returns the first stage of a module.
	HeadStage(ctx context.Context, moduleID int64) (int64, error)
	// NextStage returns the stage following stageID inside its module.
	// ok is false when stageID is the last stage of its module.
	NextStage(ctx context.Context, stageID int64) (next int64, ok bool, err error)
	// NextModule returns the module following moduleID.
	// ok is false when moduleID is the last module.
	NextModule(ctx context.Context, moduleID int64) (next int64, ok bool, err error)
	// SampleActivityIDs returns up to count distinct random activities of a stage
	// with the given variant. Returning fewer than count is not an error here.
	SampleActivityIDs(ctx context.Context, stageID int64, count int, alternative bool) ([]int64, error)
	// QuestionCount returns the number of answers an activity accepts.
	QuestionCount(ctx context.Context, activityID int64) (int, error)
}

// Learners loads and saves learner progress.
type Learners interface {
	// LoadProgress returns the progress of a learner, including its history.
	LoadProgress(ctx context.Context, learnerID int64) (*model.Progress, error)
	// SaveProgress persists p if its Version matches the stored one and
	// increments p.Version. History entries not yet stored are appended.
	SaveProgress(ctx context.Context, p *model.Progress) error
}

// Position is a place in the curriculum.
type Position struct {
	ModuleID int64
	StageID  int64
}
