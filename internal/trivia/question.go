package trivia

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
)

var ErrMalformedQuestion = errors.New("malformed question")

// Question is immutable once fetched. CorrectAnswer is always a member of AllAnswers.
type Question struct {
	ID               string   `json:"id"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Prompt           string   `json:"question"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
	AllAnswers       []string `json:"allAnswers"`
}

// Validate reports ErrMalformedQuestion when the question cannot be played.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" || strings.TrimSpace(q.CorrectAnswer) == "" {
		return ErrMalformedQuestion
	}
	if len(q.AllAnswers) < 2 || !slices.Contains(q.AllAnswers, q.CorrectAnswer) {
		return ErrMalformedQuestion
	}
	return nil
}

// Incorrect returns every answer except the correct one, in display order.
func (q Question) Incorrect() []string {
	out := make([]string, 0, len(q.AllAnswers))
	for _, a := range q.AllAnswers {
		if a != q.CorrectAnswer {
			out = append(out, a)
		}
	}
	return out
}

func shuffled(answers []string) []string {
	out := slices.Clone(answers)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// assemble builds AllAnswers from the correct and incorrect answers in random order.
func assemble(q Question) Question {
	all := make([]string, 0, len(q.IncorrectAnswers)+1)
	all = append(all, q.CorrectAnswer)
	all = append(all, q.IncorrectAnswers...)
	q.AllAnswers = shuffled(all)
	return q
}

// Shuffle returns q with AllAnswers in a fresh random order.
func Shuffle(q Question) Question {
	q.AllAnswers = shuffled(q.AllAnswers)
	return q
}
