package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/category-clash/server/internal/trivia"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoQuestions = errors.New("question bank is empty")

// QuestionStore is a Postgres-backed question bank. It implements trivia.Source.
type QuestionStore struct {
	db *pgxpool.Pool
}

func NewQuestionStore(db *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) Add(ctx context.Context, q trivia.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	incorrect := q.IncorrectAnswers
	if len(incorrect) == 0 {
		incorrect = q.Incorrect()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO trivia_questions (id, category, difficulty, prompt, correct_answer, incorrect_answers)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (prompt) DO NOTHING`,
		q.ID, q.Category, q.Difficulty, q.Prompt, q.CorrectAnswer, incorrect,
	)
	return err
}

func (s *QuestionStore) Fetch(ctx context.Context) (trivia.Question, error) {
	var q trivia.Question
	err := s.db.QueryRow(ctx,
		`SELECT id, category, difficulty, prompt, correct_answer, incorrect_answers
		 FROM trivia_questions
		 ORDER BY random()
		 LIMIT 1`,
	).Scan(&q.ID, &q.Category, &q.Difficulty, &q.Prompt, &q.CorrectAnswer, &q.IncorrectAnswers)

	if errors.Is(err, pgx.ErrNoRows) {
		return trivia.Question{}, ErrNoQuestions
	}
	if err != nil {
		return trivia.Question{}, fmt.Errorf("question bank: %w", err)
	}

	q.AllAnswers = append([]string{q.CorrectAnswer}, q.IncorrectAnswers...)
	return trivia.Shuffle(q), nil
}

func (s *QuestionStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM trivia_questions`).Scan(&n)
	return n, err
}

// Seed fills an empty bank with qs. A bank that already holds questions is
// left alone; the number of inserted questions is returned.
func (s *QuestionStore) Seed(ctx context.Context, qs []trivia.Question) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("question bank: count: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	added := 0
	for _, q := range qs {
		if err := s.Add(ctx, q); err != nil {
			return added, fmt.Errorf("question bank: seed %q: %w", q.Prompt, err)
		}
		added++
	}
	return added, nil
}
