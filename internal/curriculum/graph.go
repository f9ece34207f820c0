package curriculum

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

// Graph is an immutable curriculum held in ordered slices. Ids are assigned
// in file order starting at 1, so "next" and "is last" are index lookups.
type Graph struct {
	modules    []model.Module
	stages     [][]model.Stage // per module index
	activities map[int64]model.Activity
	pools      map[int64]*pool

	moduleIndex map[int64]int
	stageIndex  map[int64]stageRef

	mu  sync.Mutex
	rng *rand.Rand
}

type stageRef struct {
	module int
	stage  int
}

type pool struct {
	regular     []int64
	alternative []int64
}

var _ progress.Curriculum = (*Graph)(nil)

// NewGraph builds a Graph from a parsed file. rng drives sampling; nil uses
// the global source.
func NewGraph(f *File, rng *rand.Rand) *Graph {
	g := &Graph{
		activities:  make(map[int64]model.Activity),
		pools:       make(map[int64]*pool),
		moduleIndex: make(map[int64]int),
		stageIndex:  make(map[int64]stageRef),
		rng:         rng,
	}
	var stageID, activityID int64
	for mi, mf := range f.Modules {
		m := model.Module{ID: int64(mi + 1), Name: mf.Name, Description: mf.Description, Position: mi}
		g.modules = append(g.modules, m)
		g.moduleIndex[m.ID] = mi

		var stages []model.Stage
		for si, sf := range mf.Stages {
			stageID++
			s := model.Stage{ID: stageID, ModuleID: m.ID, Name: sf.Name, Description: sf.Description, Position: si}
			stages = append(stages, s)
			g.stageIndex[s.ID] = stageRef{module: mi, stage: si}

			p := &pool{}
			for _, af := range sf.Activities {
				activityID++
				a := model.Activity{
					ID:            activityID,
					StageID:       s.ID,
					Name:          af.Name,
					QuestionCount: af.Questions,
					Alternative:   af.Alternative,
				}
				g.activities[a.ID] = a
				if a.Alternative {
					p.alternative = append(p.alternative, a.ID)
				} else {
					p.regular = append(p.regular, a.ID)
				}
			}
			g.pools[s.ID] = p
		}
		g.stages = append(g.stages, stages)
	}
	return g
}

// HeadModule returns the first module.
func (g *Graph) HeadModule(_ context.Context) (int64, error) {
	if len(g.modules) == 0 {
		return 0, progress.PositionNotFound("HeadModule", "module", 0)
	}
	return g.modules[0].ID, nil
}

// HeadStage returns the first stage of a module.
func (g *Graph) HeadStage(_ context.Context, moduleID int64) (int64, error) {
	mi, ok := g.moduleIndex[moduleID]
	if !ok || len(g.stages[mi]) == 0 {
		return 0, progress.PositionNotFound("HeadStage", "module", moduleID)
	}
	return g.stages[mi][0].ID, nil
}

// NextStage returns the following stage in the same module.
func (g *Graph) NextStage(_ context.Context, stageID int64) (int64, bool, error) {
	ref, ok := g.stageIndex[stageID]
	if !ok {
		return 0, false, progress.PositionNotFound("NextStage", "stage", stageID)
	}
	stages := g.stages[ref.module]
	if ref.stage+1 >= len(stages) {
		return 0, false, nil
	}
	return stages[ref.stage+1].ID, true, nil
}

// NextModule returns the following module.
func (g *Graph) NextModule(_ context.Context, moduleID int64) (int64, bool, error) {
	mi, ok := g.moduleIndex[moduleID]
	if !ok {
		return 0, false, progress.PositionNotFound("NextModule", "module", moduleID)
	}
	if mi+1 >= len(g.modules) {
		return 0, false, nil
	}
	return g.modules[mi+1].ID, true, nil
}

// SampleActivityIDs returns up to count distinct random activities.
func (g *Graph) SampleActivityIDs(_ context.Context, stageID int64, count int, alternative bool) ([]int64, error) {
	p, ok := g.pools[stageID]
	if !ok {
		return nil, progress.PositionNotFound("SampleActivityIDs", "stage", stageID)
	}
	src := p.regular
	if alternative {
		src = p.alternative
	}
	ids := append([]int64{}, src...)
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if g.rng == nil {
		rand.Shuffle(len(ids), swap)
	} else {
		g.mu.Lock()
		g.rng.Shuffle(len(ids), swap)
		g.mu.Unlock()
	}
	if count < len(ids) {
		ids = ids[:count]
	}
	return ids, nil
}

// QuestionCount returns the number of answers an activity accepts.
func (g *Graph) QuestionCount(_ context.Context, activityID int64) (int, error) {
	a, ok := g.activities[activityID]
	if !ok {
		return 0, progress.PositionNotFound("QuestionCount", "activity", activityID)
	}
	return a.QuestionCount, nil
}

// Activity returns an activity by id.
func (g *Graph) Activity(id int64) (model.Activity, bool) {
	a, ok := g.activities[id]
	return a, ok
}

// Outline returns the modules with their stages in curriculum order.
func (g *Graph) Outline() []model.ModuleOutline {
	out := make([]model.ModuleOutline, len(g.modules))
	for i, m := range g.modules {
		out[i] = model.ModuleOutline{Module: m, Stages: append([]model.Stage{}, g.stages[i]...)}
	}
	return out
}
