package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/memory"
)

var now = time.Date(2025, time.May, 15, 10, 0, 0, 0, time.UTC)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	service := domain.NewService(memory.NewRepository(), domain.WithClock(domain.NewFixedClock(now)))
	handler := NewHandler(service, nil)
	handler.now = func() time.Time { return now }
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func do(mux http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, rr.Code, resp.Status)
	require.Equal(t, "05/15/2025 10:00:00", resp.Timestamp)
	return resp
}

const nightBody = `{"sleepDate":"05/15/2025","sleepStart":"22:00","sleepEnd":"06:00","sleepQuality":"GOOD"}`

func TestRecordSleepSuccess(t *testing.T) {
	mux := newTestMux(t)

	rr := do(mux, http.MethodPost, "/v1/sleeplog", nightBody, map[string]string{"userId": "1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var view map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.NotEmpty(t, view["id"])
	require.EqualValues(t, 1, view["userId"])
	require.Equal(t, "05/15/2025", view["sleepDate"])
	require.Equal(t, "22:00", view["sleepStart"])
	require.Equal(t, "06:00", view["sleepEnd"])
	require.Equal(t, "08:00", view["sleepTime"])
	require.Equal(t, "GOOD", view["sleepQuality"])
}

func TestRecordSleepRejections(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		body    string
		status  int
		detail  string
	}{
		{
			name:   "missing user header",
			body:   nightBody,
			status: http.StatusBadRequest,
			detail: "Missing required parameter",
		},
		{
			name:    "non numeric user header",
			headers: map[string]string{"userId": "abc"},
			body:    nightBody,
			status:  http.StatusBadRequest,
			detail:  "Missing required parameter",
		},
		{
			name:    "missing start",
			headers: map[string]string{"userId": "1"},
			body:    `{"sleepEnd":"06:00","sleepQuality":"OK"}`,
			status:  http.StatusBadRequest,
			detail:  "sleepStart is required",
		},
		{
			name:    "missing end",
			headers: map[string]string{"userId": "1"},
			body:    `{"sleepStart":"22:00","sleepQuality":"OK"}`,
			status:  http.StatusBadRequest,
			detail:  "sleepEnd is required",
		},
		{
			name:    "unknown quality",
			headers: map[string]string{"userId": "1"},
			body:    `{"sleepStart":"22:00","sleepEnd":"06:00","sleepQuality":"GREAT"}`,
			status:  http.StatusBadRequest,
			detail:  "Invalid parameter format: GREAT",
		},
		{
			name:    "malformed time",
			headers: map[string]string{"userId": "1"},
			body:    `{"sleepStart":"25:99","sleepEnd":"06:00","sleepQuality":"OK"}`,
			status:  http.StatusBadRequest,
			detail:  "Invalid parameter format: 25:99",
		},
		{
			name:    "malformed date",
			headers: map[string]string{"userId": "1"},
			body:    `{"sleepDate":"2025-05-15","sleepStart":"22:00","sleepEnd":"06:00","sleepQuality":"OK"}`,
			status:  http.StatusBadRequest,
			detail:  "Invalid parameter format: 2025-05-15",
		},
		{
			name:    "zero length interval",
			headers: map[string]string{"userId": "1"},
			body:    `{"sleepStart":"06:00","sleepEnd":"06:00","sleepQuality":"OK"}`,
			status:  http.StatusBadRequest,
		},
		{
			name:    "unparseable body",
			headers: map[string]string{"userId": "1"},
			body:    `{`,
			status:  http.StatusBadRequest,
			detail:  "unable to parse body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t)
			rr := do(mux, http.MethodPost, "/v1/sleeplog", tt.body, tt.headers)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			resp := decodeError(t, rr)
			if tt.detail != "" {
				require.Equal(t, tt.detail, resp.Detail)
			}
		})
	}
}

func TestRecordSleepConflictIsNotAcceptable(t *testing.T) {
	mux := newTestMux(t)
	headers := map[string]string{"userId": "1"}

	rr := do(mux, http.MethodPost, "/v1/sleeplog", nightBody, headers)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(mux, http.MethodPost, "/v1/sleeplog",
		`{"sleepDate":"05/15/2025","sleepStart":"05:00","sleepEnd":"09:00","sleepQuality":"BAD"}`, headers)
	require.Equal(t, http.StatusNotAcceptable, rr.Code)
	resp := decodeError(t, rr)
	require.Equal(t, "You already have a log between 2025-05-14T22:00 and 2025-05-15T06:00", resp.Detail)

	// Another user is unaffected.
	rr = do(mux, http.MethodPost, "/v1/sleeplog", nightBody, map[string]string{"userId": "2"})
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLastNight(t *testing.T) {
	mux := newTestMux(t)

	rr := do(mux, http.MethodGet, "/v1/sleeplog", "", map[string]string{"userId": "1"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "null", strings.TrimSpace(rr.Body.String()))

	rr = do(mux, http.MethodPost, "/v1/sleeplog", nightBody, map[string]string{"userId": "1"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(mux, http.MethodGet, "/v1/sleeplog", "", map[string]string{"userId": "1"})
	require.Equal(t, http.StatusOK, rr.Code)
	var view SleepLogView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Equal(t, int64(1), view.UserID)
	require.Equal(t, domain.NewTimeOfDay(22, 0, 0), view.SleepStart)
	require.Equal(t, domain.QualityGood, view.SleepQuality)

	rr = do(mux, http.MethodGet, "/v1/sleeplog", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLastXDays(t *testing.T) {
	mux := newTestMux(t)
	headers := map[string]string{"userId": "7", "numberOfDays": "7"}

	rr := do(mux, http.MethodGet, "/v1/sleeplog/last-x-days", "", headers)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "null", strings.TrimSpace(rr.Body.String()))

	for _, body := range []string{
		`{"sleepDate":"05/14/2025","sleepStart":"23:00","sleepEnd":"07:00","sleepQuality":"OK"}`,
		`{"sleepDate":"05/15/2025","sleepStart":"21:00","sleepEnd":"05:00","sleepQuality":"GOOD"}`,
	} {
		rr = do(mux, http.MethodPost, "/v1/sleeplog", body, map[string]string{"userId": "7"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = do(mux, http.MethodGet, "/v1/sleeplog/last-x-days", "", headers)
	require.Equal(t, http.StatusOK, rr.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.EqualValues(t, 7, view["userId"])
	require.Equal(t, "04/15/2025", view["observationRangeDateStart"])
	require.Equal(t, "05/15/2025", view["observationRangeDateEnd"])
	require.Equal(t, "22:00", view["avgSleepStart"])
	require.Equal(t, "06:00", view["avgSleepEnd"])
	require.Equal(t, "08:00", view["avgSleepTime"])
	require.Equal(t, map[string]any{"BAD": 0.0, "OK": 1.0, "GOOD": 1.0}, view["sleepQualityCount"])
}

func TestLastXDaysRejectsBadHeaders(t *testing.T) {
	mux := newTestMux(t)

	rr := do(mux, http.MethodGet, "/v1/sleeplog/last-x-days", "", map[string]string{"userId": "7"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing required parameter", decodeError(t, rr).Detail)

	rr = do(mux, http.MethodGet, "/v1/sleeplog/last-x-days", "", map[string]string{"userId": "7", "numberOfDays": "1e3"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing required parameter", decodeError(t, rr).Detail)

	for _, days := range []string{"36601", "-36601", "9223372036854775807"} {
		rr = do(mux, http.MethodGet, "/v1/sleeplog/last-x-days", "", map[string]string{"userId": "7", "numberOfDays": days})
		require.Equal(t, http.StatusBadRequest, rr.Code, days)
		body := decodeError(t, rr)
		require.Equal(t, "invalid_format", body.Type)
		require.Equal(t, "Invalid parameter format: "+days, body.Detail)
	}
}

func TestLastXDaysNegativeWindowIsEmpty(t *testing.T) {
	mux := newTestMux(t)
	headers := map[string]string{"userId": "7"}
	rr := do(mux, http.MethodPost, "/v1/sleeplog", `{"sleepStart":"22:00","sleepEnd":"06:00","sleepQuality":"GOOD"}`, headers)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	headers["numberOfDays"] = "-1"
	rr = do(mux, http.MethodGet, "/v1/sleeplog/last-x-days", "", headers)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestHistoryPaginates(t *testing.T) {
	mux := newTestMux(t)
	headers := map[string]string{"userId": "3"}
	for _, date := range []string{"05/12/2025", "05/13/2025", "05/14/2025"} {
		body := `{"sleepDate":"` + date + `","sleepStart":"23:00","sleepEnd":"07:00","sleepQuality":"OK"}`
		rr := do(mux, http.MethodPost, "/v1/sleeplog", body, headers)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr := do(mux, http.MethodGet, "/v1/sleeplog/history?limit=2", "", headers)
	require.Equal(t, http.StatusOK, rr.Code)
	var page SleepHistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	require.Equal(t, "05/14/2025", page.Items[0].SleepDate)
	require.NotEmpty(t, page.NextCursor)

	rr = do(mux, http.MethodGet, "/v1/sleeplog/history?limit=2&cursor="+page.NextCursor, "", headers)
	require.Equal(t, http.StatusOK, rr.Code)
	var next SleepHistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &next))
	require.Len(t, next.Items, 1)
	require.Equal(t, "05/12/2025", next.Items[0].SleepDate)
	require.Empty(t, next.NextCursor)

	rr = do(mux, http.MethodGet, "/v1/sleeplog/history?cursor=bm9wZQ", "", headers)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnsupportedMethod(t *testing.T) {
	mux := newTestMux(t)
	rr := do(mux, http.MethodDelete, "/v1/sleeplog", "", map[string]string{"userId": "1"})
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
