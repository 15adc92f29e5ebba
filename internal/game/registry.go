package game

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fastrand"
)

const (
	roomCodeLength   = 4
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrGameInProgress  = errors.New("game already in progress")
	ErrNotInSession    = errors.New("not in a session")
	ErrAlreadySeated   = errors.New("already seated in a session")
	ErrCPUUnavailable  = errors.New("cpu opponent unavailable")
)

// Registry owns every live session and the participant -> session index.
// Lock order is r.mu before Session.mu, never the reverse.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]*Session
	byParticipant map[string]string

	maxRounds int
	tick      time.Duration
	newCPU    CPUFactory
	newCode   func() string
}

func NewRegistry(maxRounds int, tick time.Duration, newCPU CPUFactory) *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		byParticipant: make(map[string]string),
		maxRounds:     maxRounds,
		tick:          tick,
		newCPU:        newCPU,
		newCode:       randomRoomCode,
	}
}

func randomRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[fastrand.Uint32n(uint32(len(roomCodeAlphabet)))]
	}
	return string(b)
}

// NormalizeCode upper-cases and trims a user-typed room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) Create(hostID, hostName string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seated := r.byParticipant[hostID]; seated {
		return nil, ErrAlreadySeated
	}
	s := r.newSessionLocked()
	s.seats[SeatHost] = &Participant{ID: hostID, Name: hostName, Seat: SeatHost, Connected: true}
	r.byParticipant[hostID] = s.code
	return s, nil
}

// CreateCPU seats the computer opponent at seat 1 straight away. It is
// always connected and ready.
func (r *Registry) CreateCPU(hostID, hostName string, difficulty Difficulty) (*Session, error) {
	if r.newCPU == nil {
		return nil, ErrCPUUnavailable
	}
	difficulty = ParseDifficulty(string(difficulty))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seated := r.byParticipant[hostID]; seated {
		return nil, ErrAlreadySeated
	}
	s := r.newSessionLocked()
	s.difficulty = difficulty
	s.cpu = r.newCPU(difficulty)
	s.seats[SeatHost] = &Participant{ID: hostID, Name: hostName, Seat: SeatHost, Connected: true, Ready: true}
	s.seats[SeatGuest] = &Participant{
		ID:        CPUPlayerID,
		Name:      "CPU (" + string(difficulty) + ")",
		Seat:      SeatGuest,
		Connected: true,
		Ready:     true,
		CPU:       true,
	}
	r.byParticipant[hostID] = s.code
	return s, nil
}

func (r *Registry) newSessionLocked() *Session {
	code := r.newCode()
	for {
		if _, taken := r.sessions[code]; !taken {
			break
		}
		code = r.newCode()
	}
	s := newSession(code, r.maxRounds, r.tick)
	r.sessions[code] = s
	return s
}

func (r *Registry) Join(code, guestID, guestName string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, seated := r.byParticipant[guestID]; seated {
		return nil, ErrAlreadySeated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phaseLocked() != PhaseLobby {
		return nil, ErrGameInProgress
	}
	if s.seats[SeatGuest] != nil {
		return nil, ErrSessionFull
	}
	s.seats[SeatGuest] = &Participant{ID: guestID, Name: guestName, Seat: SeatGuest, Connected: true}
	r.byParticipant[guestID] = s.code
	return s, nil
}

func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[NormalizeCode(code)]
	return s, ok
}

func (r *Registry) ByParticipant(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byParticipant[id]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[code]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type Removal struct {
	Session   *Session
	Seat      Seat
	WasHost   bool
	Destroyed bool
	// Promoted is set when the guest took over the host seat in the lobby.
	Promoted bool
}

// RemoveParticipant frees the participant's seat. Once no human is left the
// session is deleted and its timers are cancelled; a CPU sentinel alone does
// not keep a session alive.
func (r *Registry) RemoveParticipant(id string) (Removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byParticipant[id]
	if !ok {
		return Removal{}, false
	}
	delete(r.byParticipant, id)

	s, ok := r.sessions[code]
	if !ok {
		return Removal{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seat := s.seatOfLocked(id)
	if seat.Valid() {
		s.seats[seat] = nil
	}
	rm := Removal{Session: s, Seat: seat, WasHost: seat == SeatHost}
	if !s.hasHumanLocked() {
		delete(r.sessions, code)
		s.closeLocked()
		rm.Destroyed = true
		return rm, true
	}
	if rm.WasHost {
		rm.Promoted = s.promoteGuestLocked()
	}
	return rm, true
}

// ToggleReady flips the ready flag of a lobby participant.
func (r *Registry) ToggleReady(id string) (*Session, bool, error) {
	s, ok := r.ByParticipant(id)
	if !ok {
		return nil, false, ErrNotInSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phaseLocked() != PhaseLobby {
		return s, false, ErrGameInProgress
	}
	seat := s.seatOfLocked(id)
	if !seat.Valid() {
		return nil, false, ErrNotInSession
	}
	p := s.seats[seat]
	p.Ready = !p.Ready
	return s, p.Ready, nil
}

// CanStart reports whether both seats are filled and ready in the lobby.
func (r *Registry) CanStart(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canStartLocked()
}

func (s *Session) canStartLocked() bool {
	if s.phaseLocked() != PhaseLobby || !s.fullLocked() {
		return false
	}
	return s.seats[SeatHost].Ready && s.seats[SeatGuest].Ready
}

type RoomInfo struct {
	Code      string `json:"code"`
	Phase     Phase  `json:"phase"`
	Players   int    `json:"players"`
	IsCPUGame bool   `json:"isCpuGame"`
	Joinable  bool   `json:"joinable"`
}

// Describe is the public view of a room used before joining it.
func (r *Registry) Describe(code string) (RoomInfo, bool) {
	s, ok := r.Get(code)
	if !ok {
		return RoomInfo{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	players := 0
	for _, p := range s.seats {
		if p != nil {
			players++
		}
	}
	return RoomInfo{
		Code:      s.code,
		Phase:     s.phaseLocked(),
		Players:   players,
		IsCPUGame: s.IsCPU(),
		Joinable:  s.phaseLocked() == PhaseLobby && s.seats[SeatGuest] == nil,
	}, true
}

// CloseAll drops every session and cancels its timers. Used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	for code, s := range r.sessions {
		s.mu.Lock()
		s.closeLocked()
		s.mu.Unlock()
		delete(r.sessions, code)
	}
	clear(r.byParticipant)
	return n
}
