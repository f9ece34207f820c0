package progress

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/pavelanni/comunizika/internal/model"
)

// Builder samples activities of a stage into a Box.
type Builder struct {
	curriculum Curriculum
	sampleSize int

	mu  sync.Mutex
	rng *rand.Rand // nil uses the global source
}

// NewBuilder creates a Builder producing boxes of sampleSize activities.
func NewBuilder(c Curriculum, sampleSize int, rng *rand.Rand) *Builder {
	return &Builder{curriculum: c, sampleSize: sampleSize, rng: rng}
}

// Split returns how many regular and alternative activities a box of size n
// holds at the given attempt.
func Split(n, attempt int) (regular, alternative int) {
	switch {
	case attempt <= 0:
		return n, 0
	case attempt == 1:
		return 0, n
	default:
		regular = n / 2
		return regular, n - regular
	}
}

// Build samples a new box for stageID. The first attempt draws regular
// activities, the second alternative ones, and later attempts a shuffled
// half-and-half mix.
func (b *Builder) Build(ctx context.Context, stageID int64, attempt int) (*model.Box, error) {
	if attempt < 0 {
		attempt = 0
	}
	regular, alternative := Split(b.sampleSize, attempt)

	ids, err := b.sample(ctx, stageID, regular, false)
	if err != nil {
		return nil, err
	}
	alt, err := b.sample(ctx, stageID, alternative, true)
	if err != nil {
		return nil, err
	}
	ids = append(ids, alt...)
	if regular > 0 && alternative > 0 {
		b.shuffle(ids)
	}

	seen := make(map[int64]bool, len(ids))
	box := &model.Box{
		ID:      uuid.NewString(),
		StageID: stageID,
		Attempt: attempt,
		Entries: make([]model.BoxEntry, 0, len(ids)),
	}
	for _, id := range ids {
		if seen[id] {
			return nil, &Error{Kind: ErrDuplicateActivity, Op: "Build", Field: "activities", Problem: ProblemDuplicate, Actual: int(id)}
		}
		seen[id] = true
		box.Entries = append(box.Entries, model.BoxEntry{ActivityID: id, Answers: []bool{}})
	}
	return box, nil
}

func (b *Builder) sample(ctx context.Context, stageID int64, count int, alternative bool) ([]int64, error) {
	if count == 0 {
		return nil, nil
	}
	ids, err := b.curriculum.SampleActivityIDs(ctx, stageID, count, alternative)
	if err != nil {
		return nil, err
	}
	if len(ids) < count {
		return nil, poolExhausted(stageID, count, len(ids))
	}
	return ids[:count], nil
}

func (b *Builder) shuffle(ids []int64) {
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if b.rng == nil {
		rand.Shuffle(len(ids), swap)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rng.Shuffle(len(ids), swap)
}
