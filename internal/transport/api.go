package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/9182192619/web-chat/internal/types"
)

// API calls the server's REST authentication endpoints.
type API struct {
	baseURL string
	client  *http.Client
}

func NewAPI(baseURL string, client *http.Client) *API {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (a *API) Login(ctx context.Context, req types.AuthRequest) (*types.AuthResponse, error) {
	return a.post(ctx, "/api/login", req)
}

func (a *API) Register(ctx context.Context, req types.AuthRequest) (*types.AuthResponse, error) {
	return a.post(ctx, "/api/register", req)
}

// post decodes the JSON body whatever the status code, since failures carry
// the message to show the user.
func (a *API) post(ctx context.Context, path string, body any) (*types.AuthResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	var out types.AuthResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unexpected response from %s (status %d)", path, resp.StatusCode)
	}
	return &out, nil
}
