package game

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/category-clash/server/internal/trivia"
)

type Seat int

const (
	NoSeat    Seat = -1
	SeatHost  Seat = 0
	SeatGuest Seat = 1
)

func (s Seat) Valid() bool { return s == SeatHost || s == SeatGuest }

func (s Seat) Other() Seat {
	switch s {
	case SeatHost:
		return SeatGuest
	case SeatGuest:
		return SeatHost
	}
	return NoSeat
}

// Role is the seat's lobby role: seat 0 hosts, seat 1 joins.
func (s Seat) Role() string {
	if s == SeatHost {
		return "host"
	}
	return "guest"
}

// sign is +1 for the host and -1 for the guest: positive score favors seat 0.
func (s Seat) sign() int {
	if s == SeatGuest {
		return -1
	}
	return 1
}

func (s Seat) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(int(s))
}

func (s *Seat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = NoSeat
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Seat(n)
	return nil
}

type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseTrivia         Phase = "trivia"
	PhaseCategoryBattle Phase = "category_battle"
	PhaseRoundResult    Phase = "round_result"
	PhaseGameOver       Phase = "game_over"
)

func (p Phase) String() string { return string(p) }

// Active reports whether a game is underway (a leave counts as forfeit).
func (p Phase) Active() bool {
	return p == PhaseTrivia || p == PhaseCategoryBattle || p == PhaseRoundResult
}

// stage is the per-phase state. Exactly one is held by a session, so trivia
// and category state can never coexist.
type stage interface {
	phase() Phase
}

type lobbyStage struct{}

func (lobbyStage) phase() Phase { return PhaseLobby }

type TriviaRound struct {
	Question  trivia.Question
	Remaining int
	Answers   [2]*string
	Revealed  string
}

func (*TriviaRound) phase() Phase { return PhaseTrivia }

func (t *TriviaRound) bothAnswered() bool {
	return t.Answers[SeatHost] != nil && t.Answers[SeatGuest] != nil
}

type CategoryItem struct {
	Value         string `json:"value"`
	ParticipantID string `json:"playerId"`
	Seat          Seat   `json:"seat"`
	Timestamp     int64  `json:"timestamp"`
	Valid         bool   `json:"isValid"`
}

type CategoryBattle struct {
	Category         string
	Turn             Seat
	Remaining        int
	Items            []CategoryItem
	ConsecutiveFails int

	startScore int
}

func (*CategoryBattle) phase() Phase { return PhaseCategoryBattle }

func (c *CategoryBattle) usedValues() []string {
	out := make([]string, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.Value
	}
	return out
}

func (c *CategoryBattle) used(item string) bool {
	n := normalizeItem(item)
	for _, it := range c.Items {
		if normalizeItem(it.Value) == n {
			return true
		}
	}
	return false
}

type RoundKind string

const (
	RoundKindTrivia   RoundKind = "trivia"
	RoundKindCategory RoundKind = "category"
)

// RoundResult is the pause between sub-rounds; no sub-round state is live.
type RoundResult struct {
	Kind          RoundKind
	Winner        Seat
	PointChange   int
	CorrectAnswer string
	Reason        string

	trivia   *TriviaRound
	category *CategoryBattle
}

func (*RoundResult) phase() Phase { return PhaseRoundResult }

type GameOver struct {
	Winner     Seat
	Reason     string
	FinalScore int
}

func (*GameOver) phase() Phase { return PhaseGameOver }

type Participant struct {
	ID        string
	Name      string
	Seat      Seat
	Connected bool
	Ready     bool
	CPU       bool
}

// Session is one room. All fields are guarded by mu; engine operations
// expect the caller to hold it.
type Session struct {
	mu sync.Mutex

	code      string
	seats     [2]*Participant
	score     int
	round     int
	maxRounds int
	stage     stage

	lastRoundWinner      Seat
	lastRoundPointChange int

	difficulty Difficulty
	cpu        CPUPlayer

	createdAt      time.Time
	roundStartedAt time.Time
	turnStartedAt  time.Time

	// epoch changes on every transition; timer callbacks carry the epoch
	// they were armed in and do nothing once it moved on.
	epoch      uint64
	closed     bool
	clock      *TurnClock
	cpuTimer   *time.Timer
	delayTimer *time.Timer
}

func newSession(code string, maxRounds int, tick time.Duration) *Session {
	return &Session{
		code:            code,
		maxRounds:       maxRounds,
		stage:           lobbyStage{},
		lastRoundWinner: NoSeat,
		createdAt:       time.Now(),
		clock:           NewTurnClock(tick),
	}
}

func (s *Session) Code() string { return s.code }

func (s *Session) IsCPU() bool { return s.cpu != nil }

// Phase returns the current phase under the session lock.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage.phase()
}

func (s *Session) phaseLocked() Phase { return s.stage.phase() }

func (s *Session) seatOfLocked(participantID string) Seat {
	for i, p := range s.seats {
		if p != nil && p.ID == participantID {
			return Seat(i)
		}
	}
	return NoSeat
}

func (s *Session) participantLocked(seat Seat) *Participant {
	if !seat.Valid() {
		return nil
	}
	return s.seats[seat]
}

func (s *Session) participantIDLocked(seat Seat) string {
	if p := s.participantLocked(seat); p != nil {
		return p.ID
	}
	return ""
}

func (s *Session) hasHumanLocked() bool {
	for _, p := range s.seats {
		if p != nil && !p.CPU {
			return true
		}
	}
	return false
}

func (s *Session) fullLocked() bool {
	return s.seats[SeatHost] != nil && s.seats[SeatGuest] != nil
}

// transitionLocked cancels every pending timer of the session and moves the
// epoch forward so callbacks armed before this point become no-ops.
func (s *Session) transitionLocked() uint64 {
	s.clock.Clear()
	stopTimer(s.cpuTimer)
	stopTimer(s.delayTimer)
	s.cpuTimer, s.delayTimer = nil, nil
	s.epoch++
	return s.epoch
}

func (s *Session) staleLocked(epoch uint64) bool {
	return s.closed || s.epoch != epoch
}

// promoteGuestLocked moves a lone lobby guest into the empty host seat so the
// room can be started and joined again.
func (s *Session) promoteGuestLocked() bool {
	g := s.seats[SeatGuest]
	if s.seats[SeatHost] != nil || g == nil || g.CPU || s.phaseLocked() != PhaseLobby {
		return false
	}
	g.Seat = SeatHost
	g.Ready = false
	s.seats[SeatHost], s.seats[SeatGuest] = g, nil
	return true
}

func (s *Session) closeLocked() {
	s.transitionLocked()
	s.closed = true
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func normalizeItem(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
