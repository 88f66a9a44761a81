package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"pokemon-trade-client/internal/models"

	"github.com/gorilla/mux"
)

// Handler serves the trade device API
type Handler struct {
	box    *Box
	engine *Engine
}

// NewHandler creates a handler over box and engine
func NewHandler(box *Box, engine *Engine) *Handler {
	return &Handler{box: box, engine: engine}
}

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes the device's {status:"error", message} body
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, models.ErrorResponse{
		Status:  "error",
		Message: message,
	})
}

// ListPokemon handles GET /api/pokemon
func (h *Handler) ListPokemon(w http.ResponseWriter, r *http.Request) {
	items := h.box.List()
	slog.Debug("Listing pokemon", "count", len(items), "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusOK, items)
}

// GetPokemon handles GET /api/pokemon/{storageIndex}
func (h *Handler) GetPokemon(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["storageIndex"])
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid storage index")
		return
	}

	detail, err := h.box.Get(index)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "Pokemon not found")
		return
	}
	writeJSONResponse(w, http.StatusOK, detail)
}

// SelectPokemon handles POST /api/trade/select
func (h *Handler) SelectPokemon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StorageIndex *int `json:"storage_index"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format.")
		return
	}
	if req.StorageIndex == nil || *req.StorageIndex < 0 || *req.StorageIndex >= h.box.Capacity() {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid or missing 'storage_index'.")
		return
	}

	selected, err := h.engine.Select(*req.StorageIndex)
	switch {
	case errors.Is(err, ErrTradeInProgress):
		writeErrorResponse(w, http.StatusConflict, "A trade is already in progress.")
		return
	case err != nil:
		writeErrorResponse(w, http.StatusNotFound, "Failed to select Pokemon (not found or invalid).")
		return
	}

	writeJSONResponse(w, http.StatusOK, models.SelectResponse{
		Status:   "success",
		Message:  fmt.Sprintf("Pokemon at index %d selected for next trade.", selected.StorageIndex),
		Selected: selected,
	})
}

// StartTrade handles POST /api/trade/start
func (h *Handler) StartTrade(w http.ResponseWriter, r *http.Request) {
	resp, err := h.engine.Start()
	switch {
	case errors.Is(err, ErrTradeInProgress):
		writeErrorResponse(w, http.StatusConflict, "A trade is already in progress.")
		return
	case err != nil:
		writeErrorResponse(w, http.StatusBadRequest,
			"No Pokemon selected for trade. Please select a Pokemon first via /api/trade/select.")
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// TradeStatus handles GET /api/trade/status
func (h *Handler) TradeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.engine.Status())
}

// SetOutcome handles PUT /api/sim/outcome with body {"outcome": "complete|failed|cancelled|idle_reset"}
func (h *Handler) SetOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format.")
		return
	}
	outcome, err := ParseOutcome(req.Outcome)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	h.engine.SetOutcome(outcome)
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "success", "outcome": string(outcome)})
}

// Reset handles POST /api/sim/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "success"})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.HealthResponse{Status: "healthy", Service: "tradesim"})
}
