package game

import (
	"time"

	"github.com/category-clash/server/internal/trivia"
)

// CPUPlayerID is the reserved participant id of the computer opponent.
// Transport ids are UUIDs and never collide with it.
const CPUPlayerID = "cpu-player"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps unknown values to medium.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	}
	return DifficultyMedium
}

type CPUProfile struct {
	Accuracy      float64
	MinDelay      time.Duration
	MaxDelay      time.Duration
	MistakeChance float64
}

var cpuProfiles = map[Difficulty]CPUProfile{
	DifficultyEasy:   {Accuracy: 0.40, MinDelay: 3 * time.Second, MaxDelay: 6 * time.Second, MistakeChance: 0.25},
	DifficultyMedium: {Accuracy: 0.60, MinDelay: 2 * time.Second, MaxDelay: 4 * time.Second, MistakeChance: 0.10},
	DifficultyHard:   {Accuracy: 0.85, MinDelay: time.Second, MaxDelay: 2500 * time.Millisecond, MistakeChance: 0.03},
}

func ProfileFor(d Difficulty) CPUProfile {
	return cpuProfiles[ParseDifficulty(string(d))]
}

// CPUPlayer decides what the computer opponent does. The hub only asks it
// for a delay and a move; it never touches session state.
type CPUPlayer interface {
	ResponseDelay() time.Duration
	TriviaAnswer(q trivia.Question) string
	CategoryItem(category string, used []string) string
}

// CPUFactory builds the opponent for a new CPU session.
type CPUFactory func(Difficulty) CPUPlayer

type ItemLister interface {
	ListValidItems(category string) []string
}

type cpuPlayer struct {
	profile CPUProfile
	items   ItemLister
	rng     *lockedRand
}

func NewCPUPlayer(profile CPUProfile, items ItemLister, seed uint64) CPUPlayer {
	return &cpuPlayer{profile: profile, items: items, rng: newLockedRand(seed)}
}

// NewCPUFactory returns a factory that seeds every opponent from the clock.
func NewCPUFactory(items ItemLister) CPUFactory {
	return func(d Difficulty) CPUPlayer {
		return NewCPUPlayer(ProfileFor(d), items, randomSeed())
	}
}

func (c *cpuPlayer) ResponseDelay() time.Duration {
	span := c.profile.MaxDelay - c.profile.MinDelay
	if span <= 0 {
		return c.profile.MinDelay
	}
	return c.profile.MinDelay + time.Duration(c.rng.Float64()*float64(span))
}

func (c *cpuPlayer) TriviaAnswer(q trivia.Question) string {
	if c.rng.Float64() < c.profile.Accuracy {
		return q.CorrectAnswer
	}
	wrong := q.Incorrect()
	if len(wrong) == 0 {
		return q.CorrectAnswer
	}
	return wrong[c.rng.IntN(len(wrong))]
}

// CategoryItem returns PassItem on a simulated slip or when every known item
// of the category has been used.
func (c *cpuPlayer) CategoryItem(category string, used []string) string {
	if c.rng.Float64() < c.profile.MistakeChance {
		return PassItem
	}

	taken := make(map[string]struct{}, len(used))
	for _, u := range used {
		taken[normalizeItem(u)] = struct{}{}
	}

	var left []string
	for _, item := range c.items.ListValidItems(category) {
		if _, ok := taken[normalizeItem(item)]; !ok {
			left = append(left, item)
		}
	}
	if len(left) == 0 {
		return PassItem
	}
	return left[c.rng.IntN(len(left))]
}
