// Package quiz implements the per-POI question/answer state machine.
package quiz

import (
	"strconv"
	"strings"
	"time"

	"github.com/playperu/rallye/internal/rallye"
)

// Result describes one accepted submission.
type Result struct {
	Attempt rallye.AnswerAttempt
	// NewlyCorrect is true only for the first correct attempt of a
	// question. It is the sole trigger for a score report.
	NewlyCorrect bool
	// Complete is true once every question of the POI is answered.
	Complete bool
}

// Flow tracks the answer state of a single POI. Questions are pending in
// their given order until they receive a correct attempt.
type Flow struct {
	poi      rallye.POI
	attempts map[int64][]rallye.AnswerAttempt
	answered map[int64]bool
	now      func() time.Time
}

func NewFlow(poi rallye.POI) *Flow {
	return &Flow{
		poi:      poi,
		attempts: make(map[int64][]rallye.AnswerAttempt),
		answered: make(map[int64]bool),
		now:      time.Now,
	}
}

func (f *Flow) POI() rallye.POI { return f.poi }

// Complete reports whether no question is pending. A POI without
// questions is complete from the start.
func (f *Flow) Complete() bool {
	_, pending := f.Current()
	return !pending
}

// Current returns the first pending question.
func (f *Flow) Current() (rallye.Question, bool) {
	for _, q := range f.poi.Questions {
		if !f.answered[q.ID] {
			return q, true
		}
	}
	return rallye.Question{}, false
}

func (f *Flow) Answered(questionID int64) bool { return f.answered[questionID] }

// Attempts returns the attempt log of a question, oldest first.
func (f *Flow) Attempts(questionID int64) []rallye.AnswerAttempt {
	return append([]rallye.AnswerAttempt(nil), f.attempts[questionID]...)
}

// Submit records an attempt for questionID. nearby must come from a
// proximity check against this POI; without it nothing is recorded.
// Incorrect attempts leave the question pending with no attempt limit.
func (f *Flow) Submit(questionID int64, value string, nearby bool) (Result, error) {
	if !nearby {
		return Result{}, rallye.ErrNotNearby
	}
	q, ok := f.question(questionID)
	if !ok {
		return Result{}, rallye.ErrUnknownQuestion
	}
	if f.answered[questionID] {
		return Result{}, rallye.ErrAlreadyAnswered
	}

	attempt := rallye.AnswerAttempt{
		QuestionID: questionID,
		POIID:      f.poi.ID,
		Value:      value,
		At:         f.now(),
		Correct:    Check(q, value),
	}
	f.attempts[questionID] = append(f.attempts[questionID], attempt)

	if attempt.Correct {
		f.answered[questionID] = true
	}
	return Result{
		Attempt:      attempt,
		NewlyCorrect: attempt.Correct,
		Complete:     f.Complete(),
	}, nil
}

func (f *Flow) question(id int64) (rallye.Question, bool) {
	for _, q := range f.poi.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return rallye.Question{}, false
}

// Check evaluates value against q. Choice questions compare the submitted
// option index; free-text questions compare trimmed, case-folded text.
func Check(q rallye.Question, value string) bool {
	if q.FreeText() {
		v := strings.TrimSpace(value)
		return v != "" && strings.EqualFold(v, strings.TrimSpace(q.Answer))
	}
	idx, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		// Accept the option text itself as a choice.
		for i, opt := range q.Options {
			if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(value)) {
				return i == q.CorrectOptionIndex
			}
		}
		return false
	}
	return idx == q.CorrectOptionIndex
}
