package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/category-clash/server/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type roomsMock struct{ mock.Mock }

func (m *roomsMock) Describe(code string) (game.RoomInfo, bool) {
	args := m.Called(code)
	return args.Get(0).(game.RoomInfo), args.Bool(1)
}

type staticCategories []string

func (c staticCategories) Categories() []string { return c }

func newTestMux(rooms RoomDirectory) *http.ServeMux {
	h := &Handler{
		Rooms:      rooms,
		Categories: staticCategories{"Animals", "Countries"},
		now:        func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "health reports ok with timestamp",
			run: func(t *testing.T) {
				rec := do(t, newTestMux(&roomsMock{}), http.MethodGet, "/healthz", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

				var body HealthResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "ok", body.Status)
				assert.Equal(t, "2024-05-01T12:00:00Z", body.Timestamp)
			},
		},
		{
			name: "categories are listed",
			run: func(t *testing.T) {
				rec := do(t, newTestMux(&roomsMock{}), http.MethodGet, "/api/categories", nil)
				require.Equal(t, http.StatusOK, rec.Code)

				var body CategoriesResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, []string{"Animals", "Countries"}, body.Categories)
			},
		},
		{
			name: "room lookup normalizes the code",
			run: func(t *testing.T) {
				rooms := &roomsMock{}
				rooms.On("Describe", "AB23").Return(game.RoomInfo{
					Code: "AB23", Phase: game.PhaseLobby, Players: 1, Joinable: true,
				}, true).Once()

				rec := do(t, newTestMux(rooms), http.MethodGet, "/api/rooms/ab23", nil)
				require.Equal(t, http.StatusOK, rec.Code)

				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "AB23", body["code"])
				assert.Equal(t, "lobby", body["phase"])
				assert.Equal(t, true, body["joinable"])
				rooms.AssertExpectations(t)
			},
		},
		{
			name: "unknown room is 404",
			run: func(t *testing.T) {
				rooms := &roomsMock{}
				rooms.On("Describe", "ZZZZ").Return(game.RoomInfo{}, false)

				rec := do(t, newTestMux(rooms), http.MethodGet, "/api/rooms/ZZZZ", nil)
				require.Equal(t, http.StatusNotFound, rec.Code)

				var body ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "not_found", body.Code)
			},
		},
		{
			name: "room lookup against a real registry",
			run: func(t *testing.T) {
				reg := game.NewRegistry(10, time.Second, nil)
				s, err := reg.Create("p1", "Ada")
				require.NoError(t, err)

				rec := do(t, newTestMux(reg), http.MethodGet, "/api/rooms/"+s.Code(), nil)
				require.Equal(t, http.StatusOK, rec.Code)

				var info game.RoomInfo
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
				assert.Equal(t, s.Code(), info.Code)
				assert.Equal(t, 1, info.Players)
				assert.True(t, info.Joinable)
				assert.False(t, info.IsCPUGame)
			},
		},
		{
			name: "unknown api path is a JSON 404",
			run: func(t *testing.T) {
				rec := do(t, newTestMux(&roomsMock{}), http.MethodGet, "/api/leaderboard", nil)
				require.Equal(t, http.StatusNotFound, rec.Code)
				assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

				var body ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "not_found", body.Code)
			},
		},
		{
			name: "POST to a GET route is rejected",
			run: func(t *testing.T) {
				rec := do(t, newTestMux(&roomsMock{}), http.MethodPost, "/healthz", nil)
				assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		origins    []string
		method     string
		hdr        map[string]string
		wantCode   int
		wantOrigin string
	}{
		{
			name:       "any origin when list is empty",
			method:     http.MethodGet,
			hdr:        map[string]string{"Origin": "http://x.test"},
			wantCode:   http.StatusTeapot,
			wantOrigin: "http://x.test",
		},
		{
			name:       "listed origin",
			origins:    []string{"http://a.test"},
			method:     http.MethodGet,
			hdr:        map[string]string{"Origin": "http://a.test"},
			wantCode:   http.StatusTeapot,
			wantOrigin: "http://a.test",
		},
		{
			name:     "unlisted origin gets no header",
			origins:  []string{"http://a.test"},
			method:   http.MethodGet,
			hdr:      map[string]string{"Origin": "http://b.test"},
			wantCode: http.StatusTeapot,
		},
		{
			name:    "preflight short-circuits",
			origins: []string{"http://a.test"},
			method:  http.MethodOptions,
			hdr: map[string]string{
				"Origin":                        "http://a.test",
				"Access-Control-Request-Method": "GET",
			},
			wantCode:   http.StatusNoContent,
			wantOrigin: "http://a.test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, CORS(tt.origins)(ok), tt.method, "/api/categories", tt.hdr)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
