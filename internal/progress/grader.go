package progress

import (
	"context"
	"fmt"

	"github.com/pavelanni/comunizika/internal/model"
)

// Grader scores submitted answers against a box.
type Grader struct {
	curriculum Curriculum
}

// NewGrader creates a Grader resolving question counts from c.
func NewGrader(c Curriculum) *Grader {
	return &Grader{curriculum: c}
}

// Grade validates answers against every entry of box and, only if all of them
// are valid, stores them in the box and returns hits/total. On error the box
// is left untouched.
func (g *Grader) Grade(ctx context.Context, box *model.Box, answers [][]bool) (float64, error) {
	if len(answers) != len(box.Entries) {
		return 0, &Error{
			Kind:     ErrShapeMismatch,
			Op:       "Grade",
			Field:    "answers",
			Problem:  ProblemMissing,
			Expected: len(box.Entries),
			Actual:   len(answers),
		}
	}

	var total, hits int
	for i, e := range box.Entries {
		count, err := g.curriculum.QuestionCount(ctx, e.ActivityID)
		if err != nil {
			return 0, fmt.Errorf("question count of activity %d: %w", e.ActivityID, err)
		}
		if len(answers[i]) > count {
			return 0, &Error{
				Kind:     ErrInvalidAnswerLength,
				Op:       "Grade",
				Field:    fmt.Sprintf("answers[%d]", i),
				Problem:  ProblemInvalid,
				Expected: count,
				Actual:   len(answers[i]),
			}
		}
		total += count
		hits += countTrue(answers[i])
	}

	for i := range box.Entries {
		box.Entries[i].Answers = append([]bool{}, answers[i]...)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(hits) / float64(total), nil
}

func countTrue(answers []bool) int {
	n := 0
	for _, a := range answers {
		if a {
			n++
		}
	}
	return n
}
