package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pokemon-trade-client/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// TradeClient provides methods to interact with the trade service API
type TradeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTradeClient creates a new trade client. baseURL includes the API prefix, e.g. http://host/api.
func NewTradeClient(baseURL, apiKey string) *TradeClient {
	return &TradeClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

// SetRequestTimeout sets the per-request timeout
func (c *TradeClient) SetRequestTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
}

// SetRateLimit caps outgoing requests per second; zero or less removes the cap
func (c *TradeClient) SetRateLimit(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 2)
}

// SetHTTPClient replaces the underlying HTTP client
func (c *TradeClient) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// ListPokemon retrieves all stored Pokémon (GET /pokemon)
func (c *TradeClient) ListPokemon(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := c.do(ctx, "list pokemon", http.MethodGet, "/pokemon", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetPokemon retrieves the full record of one stored Pokémon (GET /pokemon/{storageIndex})
func (c *TradeClient) GetPokemon(ctx context.Context, storageIndex int) (*models.PokemonDetail, error) {
	var detail models.PokemonDetail
	path := fmt.Sprintf("/pokemon/%d", storageIndex)
	if err := c.do(ctx, "get pokemon", http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SelectForTrade offers the Pokémon at storageIndex for the next trade (POST /trade/select)
func (c *TradeClient) SelectForTrade(ctx context.Context, storageIndex int) (*models.SelectResponse, error) {
	var resp models.SelectResponse
	body := models.SelectRequest{StorageIndex: storageIndex}
	if err := c.do(ctx, "select pokemon for trade", http.MethodPost, "/trade/select", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartTrade starts the trade session for the selected Pokémon (POST /trade/start)
func (c *TradeClient) StartTrade(ctx context.Context) (*models.StartResponse, error) {
	var resp models.StartResponse
	if err := c.do(ctx, "start trade", http.MethodPost, "/trade/start", nil, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode == "" {
		resp.StatusCode = models.StatusStarted
	}
	return &resp, nil
}

// GetTradeStatus fetches one status snapshot (GET /trade/status)
func (c *TradeClient) GetTradeStatus(ctx context.Context) (*models.StatusSnapshot, error) {
	var resp models.StatusResponse
	if err := c.do(ctx, "get trade status", http.MethodGet, "/trade/status", nil, &resp); err != nil {
		return nil, err
	}
	snap := resp.Snapshot()
	return &snap, nil
}

// do performs one request/response round trip and decodes a 2xx JSON body into out
func (c *TradeClient) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := newProtocolError(op, resp.StatusCode, data)
		slog.Debug("Trade API request rejected",
			"op", op,
			"status", resp.StatusCode,
			"message", perr.Message,
			"request_id", requestID)
		return perr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ProtocolError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}

	return nil
}
