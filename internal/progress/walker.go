package progress

import "context"

// Walker computes the next curriculum position.
type Walker struct {
	curriculum Curriculum
}

// NewWalker creates a Walker over the given curriculum.
func NewWalker(c Curriculum) *Walker {
	return &Walker{curriculum: c}
}

// Head returns the first position of the curriculum.
func (w *Walker) Head(ctx context.Context) (Position, error) {
	module, err := w.curriculum.HeadModule(ctx)
	if err != nil {
		return Position{}, err
	}
	stage, err := w.curriculum.HeadStage(ctx, module)
	if err != nil {
		return Position{}, err
	}
	return Position{ModuleID: module, StageID: stage}, nil
}

// Advance returns the position after pos. The next stage of the same module
// comes first, then the head stage of the next module. When the curriculum is
// exhausted pos itself is returned and the learner replays the final stage.
func (w *Walker) Advance(ctx context.Context, pos Position) (Position, error) {
	stage, ok, err := w.curriculum.NextStage(ctx, pos.StageID)
	if err != nil {
		return Position{}, err
	}
	if ok {
		return Position{ModuleID: pos.ModuleID, StageID: stage}, nil
	}

	module, ok, err := w.curriculum.NextModule(ctx, pos.ModuleID)
	if err != nil {
		return Position{}, err
	}
	if !ok {
		return pos, nil
	}
	stage, err = w.curriculum.HeadStage(ctx, module)
	if err != nil {
		return Position{}, err
	}
	return Position{ModuleID: module, StageID: stage}, nil
}

// IsFinal reports whether pos is the last stage of the last module.
func (w *Walker) IsFinal(ctx context.Context, pos Position) (bool, error) {
	_, ok, err := w.curriculum.NextStage(ctx, pos.StageID)
	if err != nil || ok {
		return false, err
	}
	_, ok, err = w.curriculum.NextModule(ctx, pos.ModuleID)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
