package game

const (
	ReasonThreshold = "threshold"
	ReasonRounds    = "rounds"
	ReasonForfeit   = "forfeit"
	ReasonPass      = "pass"
	ReasonInvalid   = "invalid"
	ReasonTimeout   = "timeout"
)

// PassItem is what a client sends to give up its category turn.
const PassItem = "__PASS__"

const (
	passLogValue    = "[PASS]"
	timeoutLogValue = "[TIMEOUT]"
)

// maxConsecutiveFails ends a category battle: the second failure in a row
// hands the round to the other seat.
const maxConsecutiveFails = 2

type Rules struct {
	WinThreshold        int
	TriviaCorrectPoints int
	CategoryItemPoints  int
	MaxRounds           int
	TriviaSeconds       int
	CategoryTurnSeconds int
}

func DefaultRules() Rules {
	return Rules{
		WinThreshold:        100,
		TriviaCorrectPoints: 15,
		CategoryItemPoints:  5,
		MaxRounds:           10,
		TriviaSeconds:       10,
		CategoryTurnSeconds: 10,
	}
}

// applyPoints moves score by points toward seat and clamps it to the
// threshold band.
func (r Rules) applyPoints(score int, seat Seat, points int) int {
	return clampScore(score+seat.sign()*points, r.WinThreshold)
}

func clampScore(score, limit int) int {
	if score > limit {
		return limit
	}
	if score < -limit {
		return -limit
	}
	return score
}

type GameOverCheck struct {
	IsOver bool
	Winner Seat
	Reason string
}

// EvaluateGameOver is the end condition on its own: the threshold wins
// outright, otherwise the round limit ends the game in favor of whoever
// leads. A level score after the last round goes to seat 0.
func (r Rules) EvaluateGameOver(score, round int) GameOverCheck {
	if score >= r.WinThreshold {
		return GameOverCheck{IsOver: true, Winner: SeatHost, Reason: ReasonThreshold}
	}
	if score <= -r.WinThreshold {
		return GameOverCheck{IsOver: true, Winner: SeatGuest, Reason: ReasonThreshold}
	}
	if round >= r.MaxRounds {
		winner := SeatHost
		if score < 0 {
			winner = SeatGuest
		}
		return GameOverCheck{IsOver: true, Winner: winner, Reason: ReasonRounds}
	}
	return GameOverCheck{Winner: NoSeat}
}
