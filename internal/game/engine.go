package game

import (
	"strings"
	"time"

	"github.com/category-clash/server/internal/trivia"
)

// CategoryOracle is the word-list knowledge the engine needs.
type CategoryOracle interface {
	ItemLister
	Categories() []string
	IsValidItem(category, item string, used []string) bool
}

// Engine applies game rules to a session. It does no I/O and starts no
// timers; every method expects the caller to hold the session lock.
type Engine struct {
	rules  Rules
	oracle CategoryOracle
	rng    *lockedRand
	now    func() time.Time
}

func NewEngine(rules Rules, oracle CategoryOracle) *Engine {
	return &Engine{
		rules:  rules,
		oracle: oracle,
		rng:    newLockedRand(randomSeed()),
		now:    time.Now,
	}
}

func (e *Engine) Rules() Rules { return e.rules }

// StartGame resets scoring and opens round 1 with q. It refuses anything
// but a full lobby.
func (e *Engine) StartGame(s *Session, q trivia.Question) bool {
	if s.phaseLocked() != PhaseLobby || !s.fullLocked() {
		return false
	}
	s.score = 0
	s.round = 1
	s.lastRoundWinner = NoSeat
	s.lastRoundPointChange = 0
	return e.StartTriviaRound(s, q)
}

func (e *Engine) StartTriviaRound(s *Session, q trivia.Question) bool {
	switch s.stage.(type) {
	case *GameOver, *TriviaRound, *CategoryBattle:
		return false
	}
	s.stage = &TriviaRound{Question: q, Remaining: e.rules.TriviaSeconds}
	s.roundStartedAt = e.now()
	return true
}

type TriviaSubmitOutcome struct {
	Applied      bool
	Seat         Seat
	BothAnswered bool
}

// SubmitTriviaAnswer records the first answer of a seat. Later answers from
// the same seat are ignored.
func (e *Engine) SubmitTriviaAnswer(s *Session, participantID, answer string) TriviaSubmitOutcome {
	tr, ok := s.stage.(*TriviaRound)
	if !ok {
		return TriviaSubmitOutcome{Seat: NoSeat}
	}
	seat := s.seatOfLocked(participantID)
	if !seat.Valid() || tr.Answers[seat] != nil {
		return TriviaSubmitOutcome{Seat: seat}
	}
	a := answer
	tr.Answers[seat] = &a
	return TriviaSubmitOutcome{Applied: true, Seat: seat, BothAnswered: tr.bothAnswered()}
}

type TriviaResult struct {
	Winner        Seat
	PointChange   int
	CorrectAnswer string
	Answers       [2]*string
}

// ResolveTriviaRound scores the round: exactly one correct seat moves the
// score by the trivia points, anything else is a no-point round. It reports
// false when there is no trivia round left to resolve.
func (e *Engine) ResolveTriviaRound(s *Session) (TriviaResult, bool) {
	tr, ok := s.stage.(*TriviaRound)
	if !ok {
		return TriviaResult{}, false
	}

	correct := tr.Question.CorrectAnswer
	hostRight := tr.Answers[SeatHost] != nil && *tr.Answers[SeatHost] == correct
	guestRight := tr.Answers[SeatGuest] != nil && *tr.Answers[SeatGuest] == correct

	res := TriviaResult{Winner: NoSeat, CorrectAnswer: correct, Answers: tr.Answers}
	switch {
	case hostRight && !guestRight:
		res.Winner = SeatHost
	case guestRight && !hostRight:
		res.Winner = SeatGuest
	}
	// PointChange is the awarded value; the score itself stays clamped.
	if res.Winner.Valid() {
		s.score = e.rules.applyPoints(s.score, res.Winner, e.rules.TriviaCorrectPoints)
		res.PointChange = res.Winner.sign() * e.rules.TriviaCorrectPoints
	}

	tr.Revealed = correct
	s.lastRoundWinner = res.Winner
	s.lastRoundPointChange = abs(res.PointChange)
	s.stage = &RoundResult{
		Kind:          RoundKindTrivia,
		Winner:        res.Winner,
		PointChange:   res.PointChange,
		CorrectAnswer: correct,
		trivia:        tr,
	}
	return res, true
}

// StartCategoryBattle follows a resolved trivia round. Seat 0 opens odd
// rounds and seat 1 even ones.
func (e *Engine) StartCategoryBattle(s *Session) bool {
	rr, ok := s.stage.(*RoundResult)
	if !ok || rr.Kind != RoundKindTrivia {
		return false
	}
	cats := e.oracle.Categories()
	if len(cats) == 0 {
		return false
	}

	first := SeatHost
	if s.round%2 == 0 {
		first = SeatGuest
	}
	s.stage = &CategoryBattle{
		Category:   cats[e.rng.IntN(len(cats))],
		Turn:       first,
		Remaining:  e.rules.CategoryTurnSeconds,
		startScore: s.score,
	}
	s.turnStartedAt = e.now()
	return true
}

type CategoryOutcome struct {
	Applied       bool
	Item          string
	ParticipantID string
	Seat          Seat
	Valid         bool
	PointChange   int

	RoundEnded bool
	Winner     Seat
	Reason     string
	NextTurn   Seat
}

// ProcessCategoryItem handles a submission from the seat whose turn it is.
// Submissions out of turn or outside a category battle are not applied.
func (e *Engine) ProcessCategoryItem(s *Session, participantID, item string) CategoryOutcome {
	cb, ok := s.stage.(*CategoryBattle)
	if !ok {
		return CategoryOutcome{Seat: NoSeat, Winner: NoSeat, NextTurn: NoSeat}
	}
	seat := s.seatOfLocked(participantID)
	if !seat.Valid() || seat != cb.Turn {
		return CategoryOutcome{Seat: seat, Winner: NoSeat, NextTurn: cb.Turn}
	}

	trimmed := strings.TrimSpace(item)
	pass := item == PassItem || trimmed == ""
	if pass {
		return e.recordCategoryTurn(s, cb, seat, passLogValue, false, ReasonPass)
	}

	valid := !cb.used(trimmed) && e.oracle.IsValidItem(cb.Category, trimmed, cb.usedValues())
	return e.recordCategoryTurn(s, cb, seat, trimmed, valid, ReasonInvalid)
}

// HandleCategoryTimeout counts an expired turn as a failure of the seat on turn.
func (e *Engine) HandleCategoryTimeout(s *Session) CategoryOutcome {
	cb, ok := s.stage.(*CategoryBattle)
	if !ok {
		return CategoryOutcome{Seat: NoSeat, Winner: NoSeat, NextTurn: NoSeat}
	}
	return e.recordCategoryTurn(s, cb, cb.Turn, timeoutLogValue, false, ReasonTimeout)
}

func (e *Engine) recordCategoryTurn(s *Session, cb *CategoryBattle, seat Seat, value string, valid bool, failReason string) CategoryOutcome {
	now := e.now()
	pid := s.participantIDLocked(seat)
	cb.Items = append(cb.Items, CategoryItem{
		Value:         value,
		ParticipantID: pid,
		Seat:          seat,
		Timestamp:     now.UnixMilli(),
		Valid:         valid,
	})

	out := CategoryOutcome{
		Applied:       true,
		Item:          value,
		ParticipantID: pid,
		Seat:          seat,
		Valid:         valid,
		Winner:        NoSeat,
	}

	if valid {
		s.score = e.rules.applyPoints(s.score, seat, e.rules.CategoryItemPoints)
		out.PointChange = seat.sign() * e.rules.CategoryItemPoints
		cb.ConsecutiveFails = 0
	} else {
		cb.ConsecutiveFails++
		if cb.ConsecutiveFails >= maxConsecutiveFails {
			out.RoundEnded = true
			out.Winner = seat.Other()
			out.Reason = failReason
			out.NextTurn = NoSeat
			s.lastRoundWinner = out.Winner
			s.lastRoundPointChange = abs(s.score - cb.startScore)
			s.stage = &RoundResult{
				Kind:        RoundKindCategory,
				Winner:      out.Winner,
				PointChange: s.score - cb.startScore,
				Reason:      failReason,
				category:    cb,
			}
			return out
		}
	}

	cb.Turn = seat.Other()
	cb.Remaining = e.rules.CategoryTurnSeconds
	s.turnStartedAt = now
	out.NextTurn = cb.Turn
	return out
}

func (e *Engine) CheckGameOver(s *Session) GameOverCheck {
	if _, over := s.stage.(*GameOver); over {
		return GameOverCheck{Winner: NoSeat}
	}
	return e.rules.EvaluateGameOver(s.score, s.round)
}

// EndGame is terminal: nothing but a new session leaves GameOver.
func (e *Engine) EndGame(s *Session, check GameOverCheck) {
	if _, over := s.stage.(*GameOver); over {
		return
	}
	s.stage = &GameOver{Winner: check.Winner, Reason: check.Reason, FinalScore: s.score}
}

// Forfeit ends the game in favor of winner.
func (e *Engine) Forfeit(s *Session, winner Seat) {
	e.EndGame(s, GameOverCheck{IsOver: true, Winner: winner, Reason: ReasonForfeit})
}

// AdvanceToNextRound moves the counter on from a finished round. The next
// trivia round still has to be started with its question.
func (e *Engine) AdvanceToNextRound(s *Session) bool {
	if _, ok := s.stage.(*RoundResult); !ok {
		return false
	}
	s.round++
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
