package game

import (
	"time"

	"github.com/category-clash/server/internal/trivia"
)

type ParticipantView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Seat        Seat   `json:"seat"`
	Role        string `json:"role"`
	IsConnected bool   `json:"isConnected"`
	IsReady     bool   `json:"isReady"`
	IsCPU       bool   `json:"isCpu"`
}

// QuestionView is a question as players see it: without the correct answer.
type QuestionView struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Question   string   `json:"question"`
	AllAnswers []string `json:"allAnswers"`
}

type TriviaStateView struct {
	Question      QuestionView `json:"question"`
	TimeRemaining int          `json:"timeRemaining"`
	Answered      [2]bool      `json:"answered"`
}

type CategoryStateView struct {
	Category            string         `json:"category"`
	CurrentTurnSeat     Seat           `json:"currentTurnSeat"`
	CurrentTurnPlayerID string         `json:"currentTurnPlayerId"`
	TimeRemaining       int            `json:"timeRemaining"`
	UsedItems           []CategoryItem `json:"usedItems"`
	ConsecutiveFails    int            `json:"consecutiveFails"`
}

type RoundResultView struct {
	Kind          RoundKind      `json:"kind"`
	WinnerSeat    Seat           `json:"winnerSeat"`
	PointChange   int            `json:"pointChange"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
	Answers       *[2]*string    `json:"answers,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Category      string         `json:"category,omitempty"`
	UsedItems     []CategoryItem `json:"usedItems,omitempty"`
}

type GameOverView struct {
	WinnerSeat Seat   `json:"winnerSeat"`
	WinnerID   string `json:"winnerId,omitempty"`
	FinalScore int    `json:"finalScore"`
	Reason     string `json:"reason"`
}

// StatePayload is the full snapshot sent on game-state-update. The correct
// answer and the opponent's pick stay hidden until the round is resolved.
type StatePayload struct {
	RoomCode             string              `json:"roomCode"`
	You                  Seat                `json:"you"`
	Phase                Phase               `json:"phase"`
	Players              [2]*ParticipantView `json:"players"`
	Score                int                 `json:"score"`
	CurrentRound         int                 `json:"currentRound"`
	MaxRounds            int                 `json:"maxRounds"`
	TriviaState          *TriviaStateView    `json:"triviaState"`
	CategoryState        *CategoryStateView  `json:"categoryState"`
	RoundResult          *RoundResultView    `json:"roundResult,omitempty"`
	GameOver             *GameOverView       `json:"gameOver,omitempty"`
	LastRoundWinner      Seat                `json:"lastRoundWinner"`
	LastRoundPointChange int                 `json:"lastRoundPointChange"`
	IsCPUGame            bool                `json:"isCpuGame"`
	CPUDifficulty        Difficulty          `json:"cpuDifficulty,omitempty"`
	RoundStartMs         int64               `json:"roundStartTime"`
	TurnStartMs          int64               `json:"turnStartTime"`
}

func (p *Participant) view() *ParticipantView {
	return &ParticipantView{
		ID:          p.ID,
		Name:        p.Name,
		Seat:        p.Seat,
		Role:        p.Seat.Role(),
		IsConnected: p.Connected,
		IsReady:     p.Ready,
		IsCPU:       p.CPU,
	}
}

func questionView(q trivia.Question) QuestionView {
	return QuestionView{
		ID:         q.ID,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Question:   q.Prompt,
		AllAnswers: q.AllAnswers,
	}
}

func (s *Session) buildStateLocked(you Seat) StatePayload {
	st := StatePayload{
		RoomCode:             s.code,
		You:                  you,
		Phase:                s.phaseLocked(),
		Score:                s.score,
		CurrentRound:         s.round,
		MaxRounds:            s.maxRounds,
		LastRoundWinner:      s.lastRoundWinner,
		LastRoundPointChange: s.lastRoundPointChange,
		IsCPUGame:            s.IsCPU(),
		CPUDifficulty:        s.difficulty,
		RoundStartMs:         toMs(s.roundStartedAt),
		TurnStartMs:          toMs(s.turnStartedAt),
	}
	for i, p := range s.seats {
		if p != nil {
			st.Players[i] = p.view()
		}
	}

	switch stg := s.stage.(type) {
	case lobbyStage:
	case *TriviaRound:
		st.TriviaState = &TriviaStateView{
			Question:      questionView(stg.Question),
			TimeRemaining: stg.Remaining,
			Answered:      [2]bool{stg.Answers[SeatHost] != nil, stg.Answers[SeatGuest] != nil},
		}
	case *CategoryBattle:
		st.CategoryState = &CategoryStateView{
			Category:            stg.Category,
			CurrentTurnSeat:     stg.Turn,
			CurrentTurnPlayerID: s.participantIDLocked(stg.Turn),
			TimeRemaining:       stg.Remaining,
			UsedItems:           append([]CategoryItem(nil), stg.Items...),
			ConsecutiveFails:    stg.ConsecutiveFails,
		}
	case *RoundResult:
		v := &RoundResultView{
			Kind:          stg.Kind,
			WinnerSeat:    stg.Winner,
			PointChange:   stg.PointChange,
			CorrectAnswer: stg.CorrectAnswer,
			Reason:        stg.Reason,
		}
		if stg.trivia != nil {
			answers := stg.trivia.Answers
			v.Answers = &answers
		}
		if stg.category != nil {
			v.Category = stg.category.Category
			v.UsedItems = append([]CategoryItem(nil), stg.category.Items...)
		}
		st.RoundResult = v
	case *GameOver:
		st.GameOver = &GameOverView{
			WinnerSeat: stg.Winner,
			WinnerID:   s.participantIDLocked(stg.Winner),
			FinalScore: stg.FinalScore,
			Reason:     stg.Reason,
		}
	}
	return st
}

func toMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
