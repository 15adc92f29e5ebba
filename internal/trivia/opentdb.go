package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const DefaultOpenTDBURL = "https://opentdb.com/api.php"

var ErrRateLimited = errors.New("opentdb: rate limited")

type openTDBCategory struct {
	ID   int
	Name string
}

var openTDBCategories = []openTDBCategory{
	{9, "General Knowledge"}, {10, "Books"}, {11, "Film"}, {12, "Music"},
	{14, "Television"}, {15, "Video Games"}, {17, "Science & Nature"},
	{18, "Computers"}, {19, "Mathematics"}, {20, "Mythology"}, {21, "Sports"},
	{22, "Geography"}, {23, "History"}, {25, "Art"}, {26, "Celebrities"},
	{27, "Animals"}, {28, "Vehicles"}, {31, "Anime & Manga"}, {32, "Cartoons"},
}

type openTDBResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Category         string   `json:"category"`
		Type             string   `json:"type"`
		Difficulty       string   `json:"difficulty"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// OpenTDB fetches multiple-choice questions from the Open Trivia DB API.
// All sessions share one limiter: at most one upstream call per interval.
type OpenTDB struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	maxWait time.Duration
}

func NewOpenTDB(baseURL string, minInterval, timeout time.Duration) *OpenTDB {
	if baseURL == "" {
		baseURL = DefaultOpenTDBURL
	}
	return &OpenTDB{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		maxWait: minInterval,
	}
}

func (o *OpenTDB) Fetch(ctx context.Context) (Question, error) {
	if err := o.wait(ctx); err != nil {
		return Question{}, err
	}

	cat := openTDBCategories[rand.IntN(len(openTDBCategories))]
	u, err := url.Parse(o.baseURL)
	if err != nil {
		return Question{}, fmt.Errorf("opentdb: parse url: %w", err)
	}
	q := u.Query()
	q.Set("amount", "1")
	q.Set("category", strconv.Itoa(cat.ID))
	q.Set("type", "multiple")
	q.Set("encode", "url3986")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Question{}, fmt.Errorf("opentdb: build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Question{}, fmt.Errorf("opentdb: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Question{}, fmt.Errorf("opentdb: status %d: %w", resp.StatusCode, ErrMalformedQuestion)
	}

	var body openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Question{}, fmt.Errorf("opentdb: decode: %w", ErrMalformedQuestion)
	}
	return decodeOpenTDB(body)
}

// wait blocks for the limiter but refuses to queue behind more than one interval.
func (o *OpenTDB) wait(ctx context.Context) error {
	r := o.limiter.Reserve()
	if !r.OK() {
		return ErrRateLimited
	}
	d := r.Delay()
	if d == 0 {
		return nil
	}
	if d > o.maxWait {
		r.Cancel()
		return ErrRateLimited
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func decodeOpenTDB(body openTDBResponse) (Question, error) {
	if body.ResponseCode != 0 || len(body.Results) == 0 {
		return Question{}, fmt.Errorf("opentdb: response_code=%d: %w", body.ResponseCode, ErrMalformedQuestion)
	}
	raw := body.Results[0]

	unescape := func(s string) (string, error) {
		v, err := url.PathUnescape(s)
		if err != nil {
			return "", fmt.Errorf("opentdb: unescape %q: %w", s, ErrMalformedQuestion)
		}
		return v, nil
	}

	q := Question{ID: uuid.NewString(), Difficulty: raw.Difficulty}
	var err error
	if q.Category, err = unescape(raw.Category); err != nil {
		return Question{}, err
	}
	if q.Prompt, err = unescape(raw.Question); err != nil {
		return Question{}, err
	}
	if q.CorrectAnswer, err = unescape(raw.CorrectAnswer); err != nil {
		return Question{}, err
	}
	for _, a := range raw.IncorrectAnswers {
		v, err := unescape(a)
		if err != nil {
			return Question{}, err
		}
		q.IncorrectAnswers = append(q.IncorrectAnswers, v)
	}

	q = assemble(q)
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}
