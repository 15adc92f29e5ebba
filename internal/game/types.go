package game

import "encoding/json"

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// inbound
const (
	EventCreateRoom         = "create-room"
	EventJoinRoom           = "join-room"
	EventCreateCPUGame      = "create-cpu-game"
	EventPlayerReady        = "player-ready"
	EventStartGame          = "start-game"
	EventSubmitTriviaAnswer = "submit-trivia-answer"
	EventSubmitCategoryItem = "submit-category-item"
	EventPassTurn           = "pass-turn"
	EventLeaveGame          = "leave-game"
)

// outbound
const (
	EventConnected             = "connected"
	EventError                 = "error"
	EventRoomCreated           = "room-created"
	EventRoomJoined            = "room-joined"
	EventPlayerJoined          = "player-joined"
	EventPlayerLeft            = "player-left"
	EventPlayerReadyChanged    = "player-ready-changed"
	EventGameStateUpdate       = "game-state-update"
	EventTimerTick             = "timer-tick"
	EventTriviaQuestion        = "trivia-question"
	EventTriviaAnswerSubmitted = "trivia-answer-submitted"
	EventTriviaResult          = "trivia-result"
	EventCategoryStart         = "category-start"
	EventCategoryItemResult    = "category-item-result"
	EventTurnChange            = "turn-change"
	EventCategoryEnd           = "category-end"
	EventGameOver              = "game-over"
)

type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CreateCPUGamePayload struct {
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
}

type SubmitTriviaAnswerPayload struct {
	Answer string `json:"answer"`
}

type SubmitCategoryItemPayload struct {
	Item string `json:"item"`
}

type ConnectedPayload struct {
	PlayerID string `json:"playerId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type PlayerReadyChangedPayload struct {
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type TimerTickPayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

type TriviaAnswerSubmittedPayload struct {
	PlayerID string `json:"playerId"`
}

type TriviaResultPayload struct {
	CorrectAnswer string `json:"correctAnswer"`
	WinnerSeat    Seat   `json:"winnerSeat"`
	WinnerID      string `json:"winnerId,omitempty"`
	PointChange   int    `json:"pointChange"`
	Score         int    `json:"score"`
}

type CategoryStartPayload struct {
	Category      string `json:"category"`
	FirstSeat     Seat   `json:"firstSeat"`
	FirstPlayerID string `json:"firstPlayerId"`
}

type CategoryItemResultPayload struct {
	Item        string `json:"item"`
	PlayerID    string `json:"playerId"`
	IsValid     bool   `json:"isValid"`
	PointChange int    `json:"pointChange"`
	Score       int    `json:"score"`
}

type TurnChangePayload struct {
	PlayerID string `json:"playerId"`
	Seat     Seat   `json:"seat"`
}

type CategoryEndPayload struct {
	WinnerSeat Seat   `json:"winnerSeat"`
	WinnerID   string `json:"winnerId,omitempty"`
	Reason     string `json:"reason"`
}

type GameOverPayload struct {
	WinnerSeat Seat   `json:"winnerSeat"`
	WinnerID   string `json:"winnerId,omitempty"`
	FinalScore int    `json:"finalScore"`
	Reason     string `json:"reason"`
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func envelope(typ string, payload any) Envelope {
	if payload == nil {
		return Envelope{Type: typ}
	}
	return Envelope{Type: typ, Payload: mustJSON(payload)}
}
