package game

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/category-clash/server/internal/trivia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle knows one category. By default an item is valid when it is on
// the list and not used yet.
type stubOracle struct {
	category string
	items    []string
	valid    func(category, item string, used []string) bool
}

func newStubOracle() *stubOracle {
	return &stubOracle{category: "Animals", items: []string{"dog", "cat", "owl"}}
}

func (o *stubOracle) Categories() []string { return []string{o.category} }

func (o *stubOracle) ListValidItems(category string) []string {
	if category != o.category {
		return nil
	}
	return slices.Clone(o.items)
}

func (o *stubOracle) IsValidItem(category, item string, used []string) bool {
	if o.valid != nil {
		return o.valid(category, item, used)
	}
	n := normalizeItem(item)
	for _, u := range used {
		if normalizeItem(u) == n {
			return false
		}
	}
	return category == o.category && slices.Contains(o.items, n)
}

func testQuestion() trivia.Question {
	return trivia.Question{
		ID:               "q1",
		Category:         "Math",
		Difficulty:       "easy",
		Prompt:           "What is 2 + 2?",
		CorrectAnswer:    "4",
		IncorrectAnswers: []string{"3", "5", "22"},
		AllAnswers:       []string{"3", "4", "5", "22"},
	}
}

func newTestEngine() (*Engine, *stubOracle) {
	o := newStubOracle()
	return NewEngine(DefaultRules(), o), o
}

// newFullLobby returns a lobby with "p1" at seat 0 and "p2" at seat 1.
func newFullLobby(t *testing.T) *Session {
	t.Helper()
	reg := NewRegistry(DefaultRules().MaxRounds, time.Second, nil)
	s, err := reg.Create("p1", "Alice")
	require.NoError(t, err)
	_, err = reg.Join(s.Code(), "p2", "Bob")
	require.NoError(t, err)
	return s
}

// startBattle plays an unanswered trivia round in round and opens the
// category battle that follows it.
func startBattle(t *testing.T, e *Engine, s *Session, round int) *CategoryBattle {
	t.Helper()
	require.True(t, e.StartGame(s, testQuestion()))
	s.round = round
	_, ok := e.ResolveTriviaRound(s)
	require.True(t, ok)
	require.True(t, e.StartCategoryBattle(s))
	cb, ok := s.stage.(*CategoryBattle)
	require.True(t, ok)
	return cb
}

func TestEngine_TriviaScenarios(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "start game moves lobby to round 1 trivia",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				s.score = 40

				require.True(t, e.StartGame(s, testQuestion()))
				assert.Equal(t, PhaseTrivia, s.phaseLocked())
				assert.Equal(t, 1, s.round)
				assert.Equal(t, 0, s.score)
				assert.False(t, s.roundStartedAt.IsZero())

				tr := s.stage.(*TriviaRound)
				assert.Equal(t, DefaultRules().TriviaSeconds, tr.Remaining)
				assert.Empty(t, tr.Revealed)

				assert.False(t, e.StartGame(s, testQuestion()), "second start is refused")
			},
		},
		{
			name: "start game needs both seats",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				reg := NewRegistry(10, time.Second, nil)
				s, err := reg.Create("p1", "Alice")
				require.NoError(t, err)

				assert.False(t, e.StartGame(s, testQuestion()))
				assert.Equal(t, PhaseLobby, s.phaseLocked())
			},
		},
		{
			name: "only the first answer of a seat counts",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				require.True(t, e.StartGame(s, testQuestion()))

				out := e.SubmitTriviaAnswer(s, "p1", "3")
				assert.True(t, out.Applied)
				assert.False(t, out.BothAnswered)

				out = e.SubmitTriviaAnswer(s, "p1", "4")
				assert.False(t, out.Applied)

				out = e.SubmitTriviaAnswer(s, "stranger", "4")
				assert.False(t, out.Applied)

				out = e.SubmitTriviaAnswer(s, "p2", "4")
				assert.True(t, out.Applied)
				assert.True(t, out.BothAnswered)

				res, ok := e.ResolveTriviaRound(s)
				require.True(t, ok)
				assert.Equal(t, SeatGuest, res.Winner)
			},
		},
		{
			name: "resolve is a no-op the second time",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				require.True(t, e.StartGame(s, testQuestion()))
				e.SubmitTriviaAnswer(s, "p1", "4")

				_, ok := e.ResolveTriviaRound(s)
				require.True(t, ok)
				score := s.score

				_, ok = e.ResolveTriviaRound(s)
				assert.False(t, ok)
				assert.Equal(t, score, s.score)
			},
		},
		{
			name: "answers outside trivia are ignored",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				assert.False(t, e.SubmitTriviaAnswer(s, "p1", "4").Applied)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestEngine_ResolveTriviaRound(t *testing.T) {
	cases := []struct {
		name   string
		host   string
		guest  string
		winner Seat
		change int
	}{
		{"host correct guest wrong", "4", "5", SeatHost, 15},
		{"guest correct host wrong", "3", "4", SeatGuest, -15},
		{"both correct", "4", "4", NoSeat, 0},
		{"both wrong", "3", "5", NoSeat, 0},
		{"host correct guest silent", "4", "", SeatHost, 15},
		{"nobody answered", "", "", NoSeat, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine()
			s := newFullLobby(t)
			require.True(t, e.StartGame(s, testQuestion()))
			if tc.host != "" {
				e.SubmitTriviaAnswer(s, "p1", tc.host)
			}
			if tc.guest != "" {
				e.SubmitTriviaAnswer(s, "p2", tc.guest)
			}

			res, ok := e.ResolveTriviaRound(s)
			require.True(t, ok)
			assert.Equal(t, tc.winner, res.Winner)
			assert.Equal(t, tc.change, res.PointChange)
			assert.Equal(t, "4", res.CorrectAnswer)
			assert.Equal(t, tc.change, s.score)

			assert.Equal(t, PhaseRoundResult, s.phaseLocked())
			assert.Equal(t, tc.winner, s.lastRoundWinner)
			assert.Equal(t, abs(tc.change), s.lastRoundPointChange)

			rr := s.stage.(*RoundResult)
			assert.Equal(t, RoundKindTrivia, rr.Kind)
			assert.Equal(t, "4", rr.trivia.Revealed)
		})
	}
}

func TestEngine_SnapshotHidesAnswers(t *testing.T) {
	e, _ := newTestEngine()
	s := newFullLobby(t)
	require.True(t, e.StartGame(s, testQuestion()))
	e.SubmitTriviaAnswer(s, "p1", "22")

	raw, err := json.Marshal(s.buildStateLocked(SeatGuest))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctAnswer")

	st := s.buildStateLocked(SeatGuest)
	require.NotNil(t, st.TriviaState)
	assert.Nil(t, st.CategoryState)
	assert.Equal(t, [2]bool{true, false}, st.TriviaState.Answered)

	_, ok := e.ResolveTriviaRound(s)
	require.True(t, ok)

	st = s.buildStateLocked(SeatGuest)
	assert.Nil(t, st.TriviaState)
	assert.Nil(t, st.CategoryState)
	require.NotNil(t, st.RoundResult)
	assert.Equal(t, "4", st.RoundResult.CorrectAnswer)
	require.NotNil(t, st.RoundResult.Answers)
	require.NotNil(t, st.RoundResult.Answers[SeatHost])
	assert.Equal(t, "22", *st.RoundResult.Answers[SeatHost])
}

func TestEngine_CategoryScenarios(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "odd rounds open with seat 0, even rounds with seat 1",
			run: func(t *testing.T) {
				e, _ := newTestEngine()

				cb := startBattle(t, e, newFullLobby(t), 1)
				assert.Equal(t, SeatHost, cb.Turn)
				assert.Equal(t, "Animals", cb.Category)
				assert.Equal(t, 0, cb.ConsecutiveFails)
				assert.Equal(t, DefaultRules().CategoryTurnSeconds, cb.Remaining)

				cb = startBattle(t, e, newFullLobby(t), 2)
				assert.Equal(t, SeatGuest, cb.Turn)
			},
		},
		{
			name: "category battle only follows a trivia result",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				assert.False(t, e.StartCategoryBattle(s))
				require.True(t, e.StartGame(s, testQuestion()))
				assert.False(t, e.StartCategoryBattle(s))
			},
		},
		{
			name: "out of turn submission changes nothing",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				cb := startBattle(t, e, s, 1)

				out := e.ProcessCategoryItem(s, "p2", "dog")
				assert.False(t, out.Applied)
				assert.Empty(t, cb.Items)
				assert.Equal(t, 0, s.score)
				assert.Equal(t, SeatHost, cb.Turn)

				out = e.ProcessCategoryItem(s, "stranger", "dog")
				assert.False(t, out.Applied)
				assert.Empty(t, cb.Items)
			},
		},
		{
			name: "valid item scores toward the submitter and passes the turn",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				cb := startBattle(t, e, s, 1)
				cb.ConsecutiveFails = 1

				out := e.ProcessCategoryItem(s, "p1", "  Dog ")
				require.True(t, out.Applied)
				assert.True(t, out.Valid)
				assert.Equal(t, 5, out.PointChange)
				assert.Equal(t, SeatGuest, out.NextTurn)
				assert.Equal(t, 5, s.score)
				assert.Equal(t, 0, cb.ConsecutiveFails)
				require.Len(t, cb.Items, 1)
				assert.Equal(t, "Dog", cb.Items[0].Value)
				assert.Equal(t, "p1", cb.Items[0].ParticipantID)
				assert.NotZero(t, cb.Items[0].Timestamp)

				out = e.ProcessCategoryItem(s, "p2", "cat")
				assert.True(t, out.Valid)
				assert.Equal(t, -5, out.PointChange)
				assert.Equal(t, 0, s.score)
				assert.Equal(t, SeatHost, cb.Turn)
			},
		},
		{
			name: "repeated item is invalid even if the oracle accepts anything",
			run: func(t *testing.T) {
				e, o := newTestEngine()
				o.valid = func(string, string, []string) bool { return true }
				s := newFullLobby(t)
				startBattle(t, e, s, 1)

				out := e.ProcessCategoryItem(s, "p1", "owl")
				require.True(t, out.Valid)

				out = e.ProcessCategoryItem(s, "p2", " OWL")
				require.True(t, out.Applied)
				assert.False(t, out.Valid)
				assert.Equal(t, 0, out.PointChange)
			},
		},
		{
			name: "two invalid submissions in a row end the round for the other seat",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				cb := startBattle(t, e, s, 1)

				out := e.ProcessCategoryItem(s, "p1", "toaster")
				require.True(t, out.Applied)
				assert.False(t, out.RoundEnded)
				assert.Equal(t, SeatGuest, cb.Turn)
				assert.Equal(t, 1, cb.ConsecutiveFails)

				out = e.ProcessCategoryItem(s, "p2", "spoon")
				require.True(t, out.RoundEnded)
				assert.Equal(t, SeatHost, out.Winner)
				assert.Equal(t, ReasonInvalid, out.Reason)

				assert.Equal(t, PhaseRoundResult, s.phaseLocked())
				rr := s.stage.(*RoundResult)
				assert.Equal(t, RoundKindCategory, rr.Kind)
				assert.Equal(t, SeatHost, s.lastRoundWinner)
			},
		},
		{
			name: "a valid item in between resets the fail counter",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				cb := startBattle(t, e, s, 1)

				e.ProcessCategoryItem(s, "p1", "toaster")
				e.ProcessCategoryItem(s, "p2", "dog")
				out := e.ProcessCategoryItem(s, "p1", "spoon")

				assert.False(t, out.RoundEnded)
				assert.Equal(t, 1, cb.ConsecutiveFails)
				assert.Equal(t, PhaseCategoryBattle, s.phaseLocked())
			},
		},
		{
			name: "pass and blank input are logged as pass",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				cb := startBattle(t, e, s, 1)

				out := e.ProcessCategoryItem(s, "p1", PassItem)
				assert.Equal(t, passLogValue, out.Item)
				assert.False(t, out.Valid)

				out = e.ProcessCategoryItem(s, "p2", "   ")
				require.True(t, out.RoundEnded)
				assert.Equal(t, SeatHost, out.Winner)
				assert.Equal(t, ReasonPass, out.Reason)
				assert.Equal(t, []string{passLogValue, passLogValue}, cb.usedValues())
			},
		},
		{
			name: "timeouts count as failures of the seat on turn",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				cb := startBattle(t, e, s, 2)

				out := e.HandleCategoryTimeout(s)
				require.True(t, out.Applied)
				assert.Equal(t, SeatGuest, out.Seat)
				assert.Equal(t, timeoutLogValue, cb.Items[0].Value)
				assert.Equal(t, SeatHost, cb.Turn)

				out = e.HandleCategoryTimeout(s)
				require.True(t, out.RoundEnded)
				assert.Equal(t, SeatGuest, out.Winner)
				assert.Equal(t, ReasonTimeout, out.Reason)

				assert.False(t, e.HandleCategoryTimeout(s).Applied)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestEngine_GameOverScenarios(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "valid item at 85 is not game over",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				startBattle(t, e, s, 1)
				s.score = 85

				e.ProcessCategoryItem(s, "p1", "dog")
				assert.Equal(t, 90, s.score)
				assert.False(t, e.CheckGameOver(s).IsOver)
			},
		},
		{
			name: "valid item at 98 clamps at 100 and ends the game",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				startBattle(t, e, s, 1)
				s.score = 98

				out := e.ProcessCategoryItem(s, "p1", "dog")
				assert.Equal(t, 5, out.PointChange)
				assert.Equal(t, 100, s.score)

				check := e.CheckGameOver(s)
				assert.True(t, check.IsOver)
				assert.Equal(t, ReasonThreshold, check.Reason)
				assert.Equal(t, SeatHost, check.Winner)
			},
		},
		{
			name: "trivia at the limit cannot push past -100",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				require.True(t, e.StartGame(s, testQuestion()))
				s.score = -92
				e.SubmitTriviaAnswer(s, "p2", "4")

				res, ok := e.ResolveTriviaRound(s)
				require.True(t, ok)
				assert.Equal(t, -100, s.score)
				assert.Equal(t, -15, res.PointChange, "the awarded value, not the clamped delta")
				assert.Equal(t, 15, s.lastRoundPointChange)
			},
		},
		{
			name: "trivia win at 95 reports the full award",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				require.True(t, e.StartGame(s, testQuestion()))
				s.score = 95
				e.SubmitTriviaAnswer(s, "p1", "4")

				res, ok := e.ResolveTriviaRound(s)
				require.True(t, ok)
				assert.Equal(t, 100, s.score)
				assert.Equal(t, 15, res.PointChange)
				assert.Equal(t, 15, s.lastRoundPointChange)
				assert.Equal(t, 15, s.stage.(*RoundResult).PointChange)
			},
		},
		{
			name: "last round ends at trivia resolution for the leader",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				require.True(t, e.StartGame(s, testQuestion()))
				s.round = 10
				s.score = 3

				_, ok := e.ResolveTriviaRound(s)
				require.True(t, ok)

				check := e.CheckGameOver(s)
				assert.True(t, check.IsOver)
				assert.Equal(t, SeatHost, check.Winner)
				assert.Equal(t, ReasonRounds, check.Reason)

				e.EndGame(s, check)
				assert.Equal(t, PhaseGameOver, s.phaseLocked())
				assert.False(t, e.CheckGameOver(s).IsOver, "game over is terminal")
			},
		},
		{
			name: "forfeit is terminal and keeps the first result",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				require.True(t, e.StartGame(s, testQuestion()))

				e.Forfeit(s, SeatGuest)
				e.Forfeit(s, SeatHost)

				over := s.stage.(*GameOver)
				assert.Equal(t, SeatGuest, over.Winner)
				assert.Equal(t, ReasonForfeit, over.Reason)
				assert.False(t, e.StartTriviaRound(s, testQuestion()))
			},
		},
		{
			name: "next round starts from a category result",
			run: func(t *testing.T) {
				e, _ := newTestEngine()
				s := newFullLobby(t)
				startBattle(t, e, s, 1)
				assert.False(t, e.AdvanceToNextRound(s))

				e.ProcessCategoryItem(s, "p1", PassItem)
				e.ProcessCategoryItem(s, "p2", PassItem)
				require.True(t, e.AdvanceToNextRound(s))
				assert.Equal(t, 2, s.round)

				require.True(t, e.StartTriviaRound(s, testQuestion()))
				assert.Equal(t, PhaseTrivia, s.phaseLocked())
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

// Score stays inside the band whatever sequence of turns is played.
func TestEngine_ScoreAlwaysClamped(t *testing.T) {
	e, o := newTestEngine()
	o.valid = func(string, string, []string) bool { return true }
	rng := newLockedRand(7)

	s := newFullLobby(t)
	require.True(t, e.StartGame(s, testQuestion()))

	for i := 0; i < 400; i++ {
		switch stg := s.stage.(type) {
		case *TriviaRound:
			e.SubmitTriviaAnswer(s, "p1", stg.Question.AllAnswers[rng.IntN(4)])
			e.SubmitTriviaAnswer(s, "p2", stg.Question.AllAnswers[rng.IntN(4)])
			e.ResolveTriviaRound(s)
		case *CategoryBattle:
			pid := s.participantIDLocked(stg.Turn)
			if rng.IntN(5) == 0 {
				e.ProcessCategoryItem(s, pid, PassItem)
			} else {
				e.ProcessCategoryItem(s, pid, "item-"+string(rune('a'+i%26))+string(rune('a'+i/26)))
			}
		case *RoundResult:
			if stg.Kind == RoundKindTrivia {
				e.StartCategoryBattle(s)
			} else {
				s.round = 1
				e.AdvanceToNextRound(s)
				e.StartTriviaRound(s, testQuestion())
			}
		}
		require.GreaterOrEqual(t, s.score, -100)
		require.LessOrEqual(t, s.score, 100)
	}
}
