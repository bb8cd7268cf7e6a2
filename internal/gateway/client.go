package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jikoent/cipher-squad-backend/internal/vault"
	"github.com/jikoent/cipher-squad-backend/pkg/types"
)

// HTTPRemote talks to the vault backend over its HTTP surface. AuthHeader
// is the full Authorization value ("tma <initData>" or "mock <id>").
type HTTPRemote struct {
	BaseURL    string
	AuthHeader string
	Client     *http.Client
}

func NewHTTPRemote(baseURL, authHeader string) *HTTPRemote {
	return &HTTPRemote{
		BaseURL:    baseURL,
		AuthHeader: authHeader,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRemote) FetchVault(ctx context.Context) (vault.Vault, error) {
	// Cache-bust to force a fresh read through any intermediary.
	url := fmt.Sprintf("%s?t=%d", r.BaseURL, time.Now().UnixMilli())
	var resp types.VaultResponse
	if err := r.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return vault.Vault{}, err
	}
	return vault.Vault{Date: resp.Date, Grid: resp.Grid}, nil
}

func (r *HTTPRemote) Claim(ctx context.Context, tileID string) (*vault.Tile, error) {
	var resp types.TileResponse
	err := r.do(ctx, http.MethodPost, r.BaseURL+"/claim", types.ClaimRequest{TileID: tileID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (r *HTTPRemote) Release(ctx context.Context, tileID string) error {
	return r.do(ctx, http.MethodPost, r.BaseURL+"/release", types.ReleaseRequest{TileID: tileID}, nil)
}

func (r *HTTPRemote) Solve(ctx context.Context, tileID string, solution [][]int) (string, error) {
	var resp types.SolveResponse
	err := r.do(ctx, http.MethodPost, r.BaseURL+"/solve", types.SolveRequest{TileID: tileID, Solution: solution}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Data.Reward, nil
}

func (r *HTTPRemote) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.AuthHeader != "" {
		req.Header.Set("Authorization", r.AuthHeader)
	}

	res, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{Status: res.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
