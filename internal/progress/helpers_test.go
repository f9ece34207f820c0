package progress_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/comunizika/internal/curriculum"
	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

// Stage ids of the fixture curriculum. Module 1 holds stages 1 and 2,
// module 2 holds stage 3.
const (
	stageAnimals     int64 = 1
	stageInstruments int64 = 2
	stageColors      int64 = 3
	module1          int64 = 1
	module2          int64 = 2
)

func stageFile(name string, regular, alternative, questions int) curriculum.StageFile {
	s := curriculum.StageFile{Name: name}
	for i := 0; i < regular; i++ {
		s.Activities = append(s.Activities, curriculum.ActivityFile{Name: fmt.Sprintf("%s-r%d", name, i), Questions: questions})
	}
	for i := 0; i < alternative; i++ {
		s.Activities = append(s.Activities, curriculum.ActivityFile{Name: fmt.Sprintf("%s-a%d", name, i), Questions: questions, Alternative: true})
	}
	return s
}

func fixtureFile() *curriculum.File {
	return &curriculum.File{
		Name: "fixture",
		Modules: []curriculum.ModuleFile{
			{Name: "Sons", Stages: []curriculum.StageFile{
				stageFile("animais", 6, 6, 2),
				stageFile("instrumentos", 6, 6, 2),
			}},
			{Name: "Cores", Stages: []curriculum.StageFile{
				stageFile("cores", 6, 6, 2),
			}},
		},
	}
}

func newGraph() *curriculum.Graph {
	return curriculum.NewGraph(fixtureFile(), rand.New(rand.NewPCG(1, 2)))
}

type fixture struct {
	graph    *curriculum.Graph
	learners *curriculum.MemoryLearners
	svc      *progress.Service
}

func newFixture(t *testing.T, sampleSize int) *fixture {
	t.Helper()
	g := newGraph()
	l := curriculum.NewMemoryLearners()
	svc, err := progress.New(g, l,
		model.GameConfig{SampleSize: sampleSize, PassThreshold: 0.5},
		progress.WithRand(rand.New(rand.NewPCG(3, 4))),
		progress.WithClock(func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return &fixture{graph: g, learners: l, svc: svc}
}

func (f *fixture) enroll(t *testing.T, learnerID int64) *model.Progress {
	t.Helper()
	p, err := f.svc.Enroll(context.Background(), learnerID)
	require.NoError(t, err)
	return p
}

func (f *fixture) load(t *testing.T, learnerID int64) *model.Progress {
	t.Helper()
	p, err := f.learners.LoadProgress(context.Background(), learnerID)
	require.NoError(t, err)
	return p
}

// variants counts the regular and alternative activities of a box.
func (f *fixture) variants(t *testing.T, box *model.Box) (regular, alternative int) {
	t.Helper()
	for _, e := range box.Entries {
		a, ok := f.graph.Activity(e.ActivityID)
		require.True(t, ok, "activity %d not in graph", e.ActivityID)
		require.Equal(t, box.StageID, a.StageID)
		if a.Alternative {
			alternative++
		} else {
			regular++
		}
	}
	return regular, alternative
}

// allTrue answers every question of every entry correctly.
func allTrue(n, questions int) [][]bool {
	answers := make([][]bool, n)
	for i := range answers {
		answers[i] = make([]bool, questions)
		for j := range answers[i] {
			answers[i][j] = true
		}
	}
	return answers
}
