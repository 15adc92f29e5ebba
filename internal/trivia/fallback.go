package trivia

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// Fallback serves the built-in question set. It never fails.
type Fallback struct {
	questions []Question
}

func NewFallback() *Fallback {
	return &Fallback{questions: builtinQuestions}
}

// Pick returns a random built-in question whose prompt is not rejected by avoid.
// When every prompt is rejected any question is returned.
func (f *Fallback) Pick(avoid func(prompt string) bool) Question {
	candidates := make([]Question, 0, len(f.questions))
	for _, q := range f.questions {
		if avoid == nil || !avoid(q.Prompt) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		candidates = f.questions
	}

	q := candidates[rand.IntN(len(candidates))]
	q.ID = uuid.NewString()
	q.IncorrectAnswers = append([]string(nil), q.IncorrectAnswers...)
	return assemble(q)
}

// Builtin returns a copy of the built-in set, used to seed an empty question bank.
func Builtin() []Question {
	out := make([]Question, len(builtinQuestions))
	for i, q := range builtinQuestions {
		q.IncorrectAnswers = append([]string(nil), q.IncorrectAnswers...)
		out[i] = assemble(q)
	}
	return out
}

var builtinQuestions = []Question{
	{Category: "General Knowledge", Difficulty: "medium", Prompt: "What is the capital of France?",
		CorrectAnswer: "Paris", IncorrectAnswers: []string{"London", "Berlin", "Madrid"}},
	{Category: "Science & Nature", Difficulty: "easy", Prompt: "What planet is known as the Red Planet?",
		CorrectAnswer: "Mars", IncorrectAnswers: []string{"Venus", "Jupiter", "Saturn"}},
	{Category: "History", Difficulty: "medium", Prompt: "In which year did World War II end?",
		CorrectAnswer: "1945", IncorrectAnswers: []string{"1944", "1946", "1943"}},
	{Category: "Geography", Difficulty: "easy", Prompt: "Which ocean is the largest?",
		CorrectAnswer: "Pacific Ocean", IncorrectAnswers: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean"}},
	{Category: "Film", Difficulty: "medium", Prompt: `Who directed the movie "Jaws"?`,
		CorrectAnswer: "Steven Spielberg", IncorrectAnswers: []string{"James Cameron", "Martin Scorsese", "Ridley Scott"}},
	{Category: "Music", Difficulty: "easy", Prompt: `Which band performed "Bohemian Rhapsody"?`,
		CorrectAnswer: "Queen", IncorrectAnswers: []string{"The Beatles", "Led Zeppelin", "Pink Floyd"}},
	{Category: "Video Games", Difficulty: "easy", Prompt: "What is the best-selling video game of all time?",
		CorrectAnswer: "Minecraft", IncorrectAnswers: []string{"Tetris", "GTA V", "Wii Sports"}},
	{Category: "Sports", Difficulty: "medium", Prompt: "How many players are on a soccer team on the field?",
		CorrectAnswer: "11", IncorrectAnswers: []string{"9", "10", "12"}},
	{Category: "Animals", Difficulty: "easy", Prompt: "What is the fastest land animal?",
		CorrectAnswer: "Cheetah", IncorrectAnswers: []string{"Lion", "Gazelle", "Horse"}},
	{Category: "Computers", Difficulty: "medium", Prompt: `What does "HTTP" stand for?`,
		CorrectAnswer: "HyperText Transfer Protocol", IncorrectAnswers: []string{"High Tech Transfer Protocol", "HyperText Transit Program", "High Transfer Text Protocol"}},
	{Category: "Mythology", Difficulty: "medium", Prompt: "In Greek mythology, who is the king of the gods?",
		CorrectAnswer: "Zeus", IncorrectAnswers: []string{"Poseidon", "Hades", "Apollo"}},
	{Category: "Television", Difficulty: "easy", Prompt: "What is the longest-running animated TV show in the US?",
		CorrectAnswer: "The Simpsons", IncorrectAnswers: []string{"Family Guy", "South Park", "SpongeBob SquarePants"}},
}
