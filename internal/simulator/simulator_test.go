package simulator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pokemon-trade-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_PutRemoveList(t *testing.T) {
	box := NewBox(3)

	idx, err := box.Put(Pokemon{Data: models.PokemonData{SpeciesID: 7, Level: 3}})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	_, err = box.Put(Pokemon{Nickname: "B"})
	require.NoError(t, err)
	_, err = box.Put(Pokemon{Nickname: "C"})
	require.NoError(t, err)

	_, err = box.Put(Pokemon{Nickname: "D"})
	assert.ErrorIs(t, err, ErrBoxFull)

	items := box.List()
	require.Len(t, items, 3)
	assert.Equal(t, "SPECIES_7", items[0].Nickname, "unnamed pokemon use the species placeholder")

	_, err = box.Remove(1)
	require.NoError(t, err)
	_, err = box.Peek(1)
	assert.ErrorIs(t, err, ErrSlotEmpty)
	_, err = box.Peek(9)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	idx, err = box.Put(Pokemon{Nickname: "E"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "first free slot is reused")
}

func TestEngine_ScriptedProgression(t *testing.T) {
	sim := New(Options{})
	e := sim.Engine

	idle := e.Status()
	assert.Equal(t, models.StatusIdle, idle.StatusCode)
	assert.Equal(t, models.NullTradeID, idle.TradeID)
	require.NotNil(t, idle.OfferedIndex)
	assert.Equal(t, -1, *idle.OfferedIndex)

	info, err := e.Select(0)
	require.NoError(t, err)
	assert.Equal(t, "PIKA_ESP32", info.Nickname)

	start, err := e.Start()
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, start.StatusCode)

	_, err = e.Select(1)
	assert.ErrorIs(t, err, ErrTradeInProgress)

	var codes []models.StatusCode
	var tradeID string
	for i := 0; i < 4; i++ {
		s := e.Status()
		codes = append(codes, s.StatusCode)
		tradeID = s.TradeID
	}
	assert.Equal(t, []models.StatusCode{"STARTED", "CONNECTING", "EXCHANGING_DATA", "AWAITING_CONFIRMATION"}, codes)
	assert.NotEqual(t, models.NullTradeID, tradeID)

	final := e.Status()
	assert.Equal(t, models.StatusTradeComplete, final.StatusCode)
	assert.Equal(t, tradeID, final.TradeID)
	require.NotNil(t, final.ReceivedSummary)
	require.NotNil(t, final.ReceivedSummary.NewStorageIndex)
	assert.Equal(t, "REX", final.ReceivedSummary.Nickname)

	received, err := sim.Box.Peek(*final.ReceivedSummary.NewStorageIndex)
	require.NoError(t, err)
	assert.Equal(t, 5, received.Data.SpeciesID)

	after := e.Status()
	assert.Equal(t, models.StatusIdle, after.StatusCode)
	assert.Equal(t, models.NullTradeID, after.TradeID, "engine is idle once the outcome was reported")
}

func TestEngine_Outcomes(t *testing.T) {
	testCases := []struct {
		outcome  Outcome
		code     models.StatusCode
		swapped  bool
		terminal bool
	}{
		{OutcomeComplete, models.StatusTradeComplete, true, true},
		{OutcomeFailed, models.StatusTradeFailed, false, true},
		{OutcomeCancelled, models.StatusTradeCancelled, false, true},
		{OutcomeIdleReset, models.StatusIdle, true, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			sim := New(Options{Outcome: tc.outcome})
			_, err := sim.Engine.Select(1)
			require.NoError(t, err)
			_, err = sim.Engine.Start()
			require.NoError(t, err)

			var final models.StatusResponse
			for i := 0; i <= len(progression); i++ {
				final = sim.Engine.Status()
			}

			assert.Equal(t, tc.code, final.StatusCode)
			assert.Equal(t, tc.terminal, final.Snapshot().IsTerminal())

			stillThere, err := sim.Box.Peek(1)
			if tc.swapped {
				require.NoError(t, err)
				assert.Equal(t, "REX", stillThere.Nickname)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "BULBA", stillThere.Nickname)
			}
		})
	}
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome(" Cancelled ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, o)

	_, err = ParseOutcome("explode")
	assert.Error(t, err)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
		expectMessage  string
	}{
		{"list", http.MethodGet, "/api/pokemon", nil, http.StatusOK, ""},
		{"detail", http.MethodGet, "/api/pokemon/0", nil, http.StatusOK, ""},
		{"detail empty slot", http.MethodGet, "/api/pokemon/7", nil, http.StatusNotFound, "Pokemon not found"},
		{"detail bad index", http.MethodGet, "/api/pokemon/abc", nil, http.StatusBadRequest, "Invalid storage index"},
		{"select invalid json", http.MethodPost, "/api/trade/select", "{", http.StatusBadRequest, "Invalid JSON format."},
		{"select missing index", http.MethodPost, "/api/trade/select", map[string]int{}, http.StatusBadRequest, "Invalid or missing 'storage_index'."},
		{"select out of range", http.MethodPost, "/api/trade/select", map[string]int{"storage_index": 99}, http.StatusBadRequest, "Invalid or missing 'storage_index'."},
		{"select empty slot", http.MethodPost, "/api/trade/select", map[string]int{"storage_index": 5}, http.StatusNotFound, "Failed to select Pokemon (not found or invalid)."},
		{"start without select", http.MethodPost, "/api/trade/start", nil, http.StatusBadRequest, "No Pokemon selected for trade. Please select a Pokemon first via /api/trade/select."},
		{"status idle", http.MethodGet, "/api/trade/status", nil, http.StatusOK, ""},
		{"bad outcome", http.MethodPut, "/api/sim/outcome", map[string]string{"outcome": "x"}, http.StatusBadRequest, `unknown trade outcome "x"`},
		{"health", http.MethodGet, "/health", nil, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := New(Options{})
			rec := doRequest(t, sim.Handler(), tt.method, tt.path, tt.body, nil)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.expectMessage != "" {
				var errResp models.ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
				assert.Equal(t, "error", errResp.Status)
				assert.Equal(t, tt.expectMessage, errResp.Message)
			}
		})
	}
}

func TestHandlers_SelectSuccess(t *testing.T) {
	sim := New(Options{})
	rec := doRequest(t, sim.Handler(), http.MethodPost, "/api/trade/select", map[string]int{"storage_index": 1}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SelectResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Pokemon at index 1 selected for next trade.", resp.Message)
	require.NotNil(t, resp.Selected)
	assert.Equal(t, "BULBA", resp.Selected.Nickname)

	rec = doRequest(t, sim.Handler(), http.MethodPost, "/api/trade/start", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, sim.Handler(), http.MethodPost, "/api/trade/start", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a second start while trading is rejected")
}

func TestHandlers_DetailBody(t *testing.T) {
	sim := New(Options{})
	rec := doRequest(t, sim.Handler(), http.MethodGet, "/api/pokemon/0", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, "ESP_MASTER", raw["ot_name"])
	data, ok := raw["pokemon_data"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"species_id", "current_hp", "max_hp", "move1_id", "move4_pp", "original_trainer_id", "iv_data"} {
		assert.Contains(t, data, key)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	sim := New(Options{APIKeys: []string{"demo"}})

	rec := doRequest(t, sim.Handler(), http.MethodGet, "/api/pokemon", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, sim.Handler(), http.MethodGet, "/api/pokemon", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, sim.Handler(), http.MethodGet, "/api/pokemon", nil, map[string]string{"X-API-Key": "demo"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, sim.Handler(), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health needs no key")
}

func TestRateLimiter(t *testing.T) {
	sim := New(Options{RateLimit: 2})
	defer sim.Close()

	for i := 0; i < 2; i++ {
		rec := doRequest(t, sim.Handler(), http.MethodGet, "/api/trade/status", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := doRequest(t, sim.Handler(), http.MethodGet, "/api/trade/status", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = doRequest(t, sim.Handler(), http.MethodGet, "/api/trade/status", nil, map[string]string{"X-Forwarded-For": "10.0.0.9"})
	assert.Equal(t, http.StatusOK, rec.Code, "windows are per client")

	rec = doRequest(t, sim.Handler(), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is not limited")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	allowed, remaining, _ := rl.Allow("a")
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)
	allowed, _, _ = rl.Allow("a")
	assert.False(t, allowed)

	rl.windows.Delete("a")
	allowed, _, _ = rl.Allow("a")
	assert.True(t, allowed, "a fresh window starts once the old one is gone")
}
