package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/category-clash/server/internal/trivia"
	"github.com/google/uuid"
)

const (
	defaultPlayerName = "Player"
	maxNameLength     = 20
)

// QuestionSource never fails; it falls back to built-in content itself.
type QuestionSource interface {
	FetchQuestion(ctx context.Context) trivia.Question
}

type Config struct {
	Rules         Rules
	TickInterval  time.Duration
	ResultDelay   time.Duration
	CPUStartDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Rules:         DefaultRules(),
		TickInterval:  time.Second,
		ResultDelay:   3 * time.Second,
		CPUStartDelay: time.Second,
	}
}

// Hub turns participant events and timer fires into engine calls and
// broadcasts. Every session mutation happens under that session's lock;
// the question fetch is the only call made without it.
type Hub struct {
	ctx       context.Context
	cfg       Config
	log       *slog.Logger
	registry  *Registry
	engine    *Engine
	questions QuestionSource

	mu    sync.Mutex
	conns map[string]*ClientConn
}

func NewHub(ctx context.Context, cfg Config, registry *Registry, engine *Engine, questions QuestionSource, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		ctx:       ctx,
		cfg:       cfg,
		log:       log,
		registry:  registry,
		engine:    engine,
		questions: questions,
		conns:     make(map[string]*ClientConn),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Connect assigns the connection its participant id and greets it.
func (h *Hub) Connect(cc *ClientConn) string {
	id := uuid.NewString()
	cc.id = id

	h.mu.Lock()
	h.conns[id] = cc
	h.mu.Unlock()

	cc.sendEnvelope(envelope(EventConnected, ConnectedPayload{PlayerID: id}))
	return id
}

// Disconnect is a leave: during a game it forfeits.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()

	h.leave(id)
}

// Close drops every session and closes every connection.
func (h *Hub) Close() {
	n := h.registry.CloseAll()

	h.mu.Lock()
	conns := make([]*ClientConn, 0, len(h.conns))
	for _, cc := range h.conns {
		conns = append(conns, cc)
	}
	clear(h.conns)
	h.mu.Unlock()

	for _, cc := range conns {
		cc.Close()
	}
	h.log.Info("hub closed", "sessions", n, "connections", len(conns))
}

func (h *Hub) CreateRoom(id, name string) {
	h.leave(id)

	s, err := h.registry.Create(id, cleanName(name))
	if err != nil {
		h.sendError(id, "create_failed", "Could not create room")
		return
	}
	h.log.Info("room created", "room", s.code, "player", id)

	s.mu.Lock()
	defer s.mu.Unlock()
	h.sendTo(id, envelope(EventRoomCreated, RoomCreatedPayload{RoomCode: s.code}))
	h.broadcastStateLocked(s)
}

func (h *Hub) JoinRoom(id, code, name string) {
	if current, ok := h.registry.ByParticipant(id); ok && current.Code() == NormalizeCode(code) {
		return
	}
	h.leave(id)

	s, err := h.registry.Join(code, id, cleanName(name))
	if err != nil {
		h.log.Debug("join rejected", "room", NormalizeCode(code), "player", id, "err", err)
		h.sendError(id, "room_unavailable", "Room not found or full")
		return
	}
	h.log.Info("player joined", "room", s.code, "player", id)

	s.mu.Lock()
	defer s.mu.Unlock()
	seat := s.seatOfLocked(id)
	h.sendTo(id, envelope(EventRoomJoined, s.buildStateLocked(seat)))
	h.broadcastLocked(s, envelope(EventPlayerJoined, s.seats[seat].view()))
	h.broadcastStateLocked(s)
}

// CreateCPUGame seats the computer opponent and starts the game on its own
// after a short delay.
func (h *Hub) CreateCPUGame(id, name, difficulty string) {
	h.leave(id)

	s, err := h.registry.CreateCPU(id, cleanName(name), ParseDifficulty(difficulty))
	if err != nil {
		h.sendError(id, "create_failed", "Could not create room")
		return
	}
	h.log.Info("cpu room created", "room", s.code, "player", id, "difficulty", s.difficulty)

	s.mu.Lock()
	defer s.mu.Unlock()
	h.sendTo(id, envelope(EventRoomCreated, RoomCreatedPayload{RoomCode: s.code}))
	h.broadcastStateLocked(s)

	tok := s.transitionLocked()
	s.delayTimer = time.AfterFunc(h.cfg.CPUStartDelay, func() { h.beginGame(s, tok) })
}

func (h *Hub) PlayerReady(id string) {
	s, ready, err := h.registry.ToggleReady(id)
	switch {
	case errors.Is(err, ErrNotInSession):
		h.sendError(id, "not_in_room", "Not in a room")
		return
	case err != nil:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h.broadcastLocked(s, envelope(EventPlayerReadyChanged, PlayerReadyChangedPayload{PlayerID: id, IsReady: ready}))
	h.broadcastStateLocked(s)
}

func (h *Hub) StartGame(id string) {
	s, ok := h.registry.ByParticipant(id)
	if !ok {
		h.sendError(id, "not_in_room", "Not in a room")
		return
	}

	s.mu.Lock()
	if s.phaseLocked() != PhaseLobby {
		s.mu.Unlock()
		return
	}
	if s.seatOfLocked(id) != SeatHost {
		s.mu.Unlock()
		h.sendError(id, "not_host", "Only host can start the game")
		return
	}
	if !s.canStartLocked() {
		s.mu.Unlock()
		h.sendError(id, "not_ready", "Both players must be ready")
		return
	}
	tok := s.transitionLocked()
	s.mu.Unlock()

	h.beginGame(s, tok)
}

func (h *Hub) SubmitTriviaAnswer(id, answer string) {
	s, ok := h.registry.ByParticipant(id)
	if !ok {
		h.sendError(id, "not_in_room", "Not in a room")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h.submitTriviaLocked(s, id, answer)
}

func (h *Hub) SubmitCategoryItem(id, item string) {
	s, ok := h.registry.ByParticipant(id)
	if !ok {
		h.sendError(id, "not_in_room", "Not in a room")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h.applyCategoryOutcomeLocked(s, h.engine.ProcessCategoryItem(s, id, item))
}

func (h *Hub) PassTurn(id string) {
	h.SubmitCategoryItem(id, PassItem)
}

func (h *Hub) LeaveGame(id string) {
	h.leave(id)
}

func (h *Hub) leave(id string) {
	rm, ok := h.registry.RemoveParticipant(id)
	if !ok {
		return
	}
	s := rm.Session

	s.mu.Lock()
	defer s.mu.Unlock()

	if rm.Destroyed {
		h.log.Info("room closed", "room", s.code, "player", id)
		return
	}
	h.log.Info("player left", "room", s.code, "player", id, "host", rm.WasHost, "promoted", rm.Promoted)
	h.broadcastLocked(s, envelope(EventPlayerLeft, PlayerLeftPayload{PlayerID: id}))

	if s.phaseLocked().Active() {
		s.transitionLocked()
		h.engine.Forfeit(s, rm.Seat.Other())
		h.announceGameOverLocked(s)
		return
	}
	h.broadcastStateLocked(s)
}

// beginGame runs the first question fetch outside the session lock and only
// starts the game if nothing moved the session on in the meantime.
func (h *Hub) beginGame(s *Session, tok uint64) {
	if !h.current(s, tok) {
		return
	}
	q := h.questions.FetchQuestion(h.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Seats may have changed while the question was in flight.
	if s.staleLocked(tok) || !s.canStartLocked() || !h.engine.StartGame(s, q) {
		return
	}
	s.transitionLocked()
	h.log.Info("game started", "room", s.code, "cpu", s.IsCPU())
	h.announceTriviaLocked(s)
}

func (h *Hub) nextRound(s *Session, tok uint64) {
	if !h.current(s, tok) {
		return
	}
	q := h.questions.FetchQuestion(h.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(tok) || !h.engine.AdvanceToNextRound(s) {
		return
	}
	if !h.engine.StartTriviaRound(s, q) {
		return
	}
	s.transitionLocked()
	h.announceTriviaLocked(s)
}

func (h *Hub) startCategory(s *Session, tok uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(tok) || !h.engine.StartCategoryBattle(s) {
		return
	}
	s.transitionLocked()

	cb := s.stage.(*CategoryBattle)
	h.broadcastLocked(s, envelope(EventCategoryStart, CategoryStartPayload{
		Category:      cb.Category,
		FirstSeat:     cb.Turn,
		FirstPlayerID: s.participantIDLocked(cb.Turn),
	}))
	h.broadcastStateLocked(s)
	h.startClockLocked(s, h.engine.Rules().CategoryTurnSeconds)
	h.scheduleCPUCategoryLocked(s)
}

func (h *Hub) current(s *Session, tok uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.staleLocked(tok)
}

func (h *Hub) announceTriviaLocked(s *Session) {
	tr := s.stage.(*TriviaRound)
	h.broadcastStateLocked(s)
	h.broadcastLocked(s, envelope(EventTriviaQuestion, questionView(tr.Question)))
	h.startClockLocked(s, h.engine.Rules().TriviaSeconds)
	h.scheduleCPUTriviaLocked(s)
}

func (h *Hub) submitTriviaLocked(s *Session, participantID, answer string) {
	out := h.engine.SubmitTriviaAnswer(s, participantID, answer)
	if !out.Applied {
		return
	}
	h.broadcastLocked(s, envelope(EventTriviaAnswerSubmitted, TriviaAnswerSubmittedPayload{PlayerID: participantID}))
	if out.BothAnswered {
		h.resolveTriviaLocked(s)
		return
	}
	h.broadcastStateLocked(s)
}

func (h *Hub) resolveTriviaLocked(s *Session) {
	res, ok := h.engine.ResolveTriviaRound(s)
	if !ok {
		return
	}
	s.transitionLocked()

	h.broadcastLocked(s, envelope(EventTriviaResult, TriviaResultPayload{
		CorrectAnswer: res.CorrectAnswer,
		WinnerSeat:    res.Winner,
		WinnerID:      s.participantIDLocked(res.Winner),
		PointChange:   res.PointChange,
		Score:         s.score,
	}))
	h.broadcastStateLocked(s)

	if check := h.engine.CheckGameOver(s); check.IsOver {
		h.finishLocked(s, check)
		return
	}
	h.afterDelayLocked(s, h.startCategory)
}

func (h *Hub) applyCategoryOutcomeLocked(s *Session, out CategoryOutcome) {
	if !out.Applied {
		return
	}
	s.transitionLocked()

	h.broadcastLocked(s, envelope(EventCategoryItemResult, CategoryItemResultPayload{
		Item:        out.Item,
		PlayerID:    out.ParticipantID,
		IsValid:     out.Valid,
		PointChange: out.PointChange,
		Score:       s.score,
	}))

	if out.RoundEnded {
		h.broadcastLocked(s, envelope(EventCategoryEnd, CategoryEndPayload{
			WinnerSeat: out.Winner,
			WinnerID:   s.participantIDLocked(out.Winner),
			Reason:     out.Reason,
		}))
		h.broadcastStateLocked(s)
		if check := h.engine.CheckGameOver(s); check.IsOver {
			h.finishLocked(s, check)
			return
		}
		h.afterDelayLocked(s, h.nextRound)
		return
	}

	if check := h.engine.CheckGameOver(s); check.IsOver {
		h.finishLocked(s, check)
		return
	}
	h.broadcastLocked(s, envelope(EventTurnChange, TurnChangePayload{
		PlayerID: s.participantIDLocked(out.NextTurn),
		Seat:     out.NextTurn,
	}))
	h.broadcastStateLocked(s)
	h.startClockLocked(s, h.engine.Rules().CategoryTurnSeconds)
	h.scheduleCPUCategoryLocked(s)
}

func (h *Hub) finishLocked(s *Session, check GameOverCheck) {
	s.transitionLocked()
	h.engine.EndGame(s, check)
	h.announceGameOverLocked(s)
}

func (h *Hub) announceGameOverLocked(s *Session) {
	over, ok := s.stage.(*GameOver)
	if !ok {
		return
	}
	h.log.Info("game over", "room", s.code, "winner", int(over.Winner), "reason", over.Reason, "score", over.FinalScore)
	h.broadcastStateLocked(s)
	h.broadcastLocked(s, envelope(EventGameOver, GameOverPayload{
		WinnerSeat: over.Winner,
		WinnerID:   s.participantIDLocked(over.Winner),
		FinalScore: over.FinalScore,
		Reason:     over.Reason,
	}))
}

func (h *Hub) afterDelayLocked(s *Session, next func(*Session, uint64)) {
	tok := s.epoch
	s.delayTimer = time.AfterFunc(h.cfg.ResultDelay, func() { next(s, tok) })
}

func (h *Hub) startClockLocked(s *Session, seconds int) {
	tok := s.epoch
	s.clock.Start(seconds,
		func(remaining int) { h.onTick(s, tok, remaining) },
		func() { h.onExpire(s, tok) },
	)
}

func (h *Hub) onTick(s *Session, tok uint64, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(tok) {
		return
	}
	switch stg := s.stage.(type) {
	case *TriviaRound:
		stg.Remaining = remaining
	case *CategoryBattle:
		stg.Remaining = remaining
	default:
		return
	}
	h.broadcastLocked(s, envelope(EventTimerTick, TimerTickPayload{TimeRemaining: remaining}))
}

func (h *Hub) onExpire(s *Session, tok uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(tok) {
		return
	}
	switch s.stage.(type) {
	case *TriviaRound:
		h.resolveTriviaLocked(s)
	case *CategoryBattle:
		h.applyCategoryOutcomeLocked(s, h.engine.HandleCategoryTimeout(s))
	}
}

func (h *Hub) scheduleCPUTriviaLocked(s *Session) {
	if s.cpu == nil {
		return
	}
	tok := s.epoch
	s.cpuTimer = time.AfterFunc(s.cpu.ResponseDelay(), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.staleLocked(tok) {
			return
		}
		tr, ok := s.stage.(*TriviaRound)
		if !ok {
			return
		}
		h.submitTriviaLocked(s, CPUPlayerID, s.cpu.TriviaAnswer(tr.Question))
	})
}

func (h *Hub) scheduleCPUCategoryLocked(s *Session) {
	if s.cpu == nil {
		return
	}
	cb, ok := s.stage.(*CategoryBattle)
	if !ok {
		return
	}
	if p := s.participantLocked(cb.Turn); p == nil || !p.CPU {
		return
	}
	tok := s.epoch
	s.cpuTimer = time.AfterFunc(s.cpu.ResponseDelay(), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.staleLocked(tok) {
			return
		}
		cb, ok := s.stage.(*CategoryBattle)
		if !ok {
			return
		}
		item := s.cpu.CategoryItem(cb.Category, cb.usedValues())
		h.applyCategoryOutcomeLocked(s, h.engine.ProcessCategoryItem(s, CPUPlayerID, item))
	})
}

func (h *Hub) conn(id string) *ClientConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[id]
}

func (h *Hub) sendTo(id string, env Envelope) {
	cc := h.conn(id)
	if cc == nil {
		return
	}
	if !cc.sendEnvelope(env) {
		h.log.Warn("dropping message for slow client", "player", id, "type", env.Type)
	}
}

func (h *Hub) sendError(id, code, message string) {
	h.sendTo(id, envelope(EventError, ErrorPayload{Code: code, Message: message}))
}

func (h *Hub) broadcastLocked(s *Session, env Envelope) {
	for _, p := range s.seats {
		if p != nil && !p.CPU {
			h.sendTo(p.ID, env)
		}
	}
}

// broadcastStateLocked personalizes "you" per seat.
func (h *Hub) broadcastStateLocked(s *Session) {
	for seat, p := range s.seats {
		if p != nil && !p.CPU {
			h.sendTo(p.ID, envelope(EventGameStateUpdate, s.buildStateLocked(Seat(seat))))
		}
	}
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultPlayerName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}
