package curriculum

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/comunizika/internal/progress"
)

func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	return NewGraph(f, rand.New(rand.NewPCG(7, 11)))
}

func TestGraphTraversal(t *testing.T) {
	ctx := context.Background()
	g := sampleGraph(t)

	head, err := g.HeadModule(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), head)

	stage, err := g.HeadStage(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stage)

	_, ok, err := g.NextStage(ctx, stage)
	require.NoError(t, err)
	assert.False(t, ok, "Sons has a single stage")

	next, ok, err := g.NextModule(ctx, head)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), next)

	nextStage, err := g.HeadStage(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nextStage)

	_, ok, err = g.NextModule(ctx, next)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = g.NextStage(ctx, 42)
	assert.ErrorIs(t, err, progress.ErrPositionNotFound)
	_, err = g.HeadStage(ctx, 42)
	assert.ErrorIs(t, err, progress.ErrPositionNotFound)
}

func TestGraphEmpty(t *testing.T) {
	g := NewGraph(&File{}, nil)
	_, err := g.HeadModule(context.Background())
	assert.ErrorIs(t, err, progress.ErrPositionNotFound)
}

func TestGraphSampling(t *testing.T) {
	ctx := context.Background()
	g := sampleGraph(t)

	ids, err := g.SampleActivityIDs(ctx, 1, 2, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)

	ids, err = g.SampleActivityIDs(ctx, 1, 1, true)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	a, ok := g.Activity(ids[0])
	require.True(t, ok)
	assert.True(t, a.Alternative)

	// Short pools return what they have.
	ids, err = g.SampleActivityIDs(ctx, 1, 5, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{3, 4}, ids)

	n, err := g.QuestionCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = g.QuestionCount(ctx, 99)
	assert.ErrorIs(t, err, progress.ErrPositionNotFound)
	_, err = g.SampleActivityIDs(ctx, 99, 1, false)
	assert.ErrorIs(t, err, progress.ErrPositionNotFound)
}

func TestGraphOutline(t *testing.T) {
	out := sampleGraph(t).Outline()
	require.Len(t, out, 2)
	assert.Equal(t, "Sons", out[0].Name)
	require.Len(t, out[1].Stages, 1)
	assert.Equal(t, "Primarias", out[1].Stages[0].Name)
	assert.Equal(t, int64(2), out[1].Stages[0].ModuleID)
}
