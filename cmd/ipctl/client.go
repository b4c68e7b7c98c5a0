package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/kailas-cloud/ipregistry/internal/transport/chi"
)

// apiError is a non-2xx response from the registry.
type apiError struct {
	Status     int
	Code       api.ErrorCode
	Message    string
	MatchIndex int
	Score      float64
	// LedgerIndex is set when the record reached the ledger but was not saved.
	LedgerIndex *int
	TxHash      string
}

func (e *apiError) Error() string {
	if e.Code == api.ErrorCodeDuplicateFound {
		return fmt.Sprintf("%s (matches #%d, score %.4f)", e.Message, e.MatchIndex, e.Score)
	}
	if e.Code == api.ErrorCodeMetadataNotSaved && e.LedgerIndex != nil {
		return fmt.Sprintf("%s (tx %s); rerun register with --ledger-index %d", e.Message, e.TxHash, *e.LedgerIndex)
	}
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// apiClient talks to the registry HTTP API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string, timeout time.Duration) (*apiClient, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *apiClient) Register(ctx context.Context, req *api.RegisterRequest) (api.RegisterResponse, error) {
	var resp api.RegisterResponse
	err := c.do(ctx, http.MethodPost, "/register-ip", req, &resp)
	return resp, err
}

func (c *apiClient) CheckDuplicate(ctx context.Context, req *api.CheckDuplicateRequest) (api.CheckDuplicateResponse, error) {
	var resp api.CheckDuplicateResponse
	err := c.do(ctx, http.MethodPost, "/check-duplicate", req, &resp)
	return resp, err
}

func (c *apiClient) List(ctx context.Context) ([]api.IP, error) {
	var resp []api.IP
	err := c.do(ctx, http.MethodGet, "/get-all-ips", nil, &resp)
	return resp, err
}

func (c *apiClient) Get(ctx context.Context, id int) (api.IP, error) {
	var resp api.IP
	err := c.do(ctx, http.MethodGet, "/search-ip/"+strconv.Itoa(id), nil, &resp)
	return resp, err
}

func (c *apiClient) Search(ctx context.Context, keyword string) ([]api.IP, error) {
	var resp []api.IP
	err := c.do(ctx, http.MethodGet, "/search-ip-by-description/"+url.PathEscape(keyword), nil, &resp)
	return resp, err
}

func (c *apiClient) ByOwner(ctx context.Context, address string) ([]api.IP, error) {
	var resp []api.IP
	err := c.do(ctx, http.MethodGet, "/get-ips-by-owner/"+url.PathEscape(address), nil, &resp)
	return resp, err
}

func (c *apiClient) Transfer(ctx context.Context, req *api.TransferRequest) (api.TransferResponse, error) {
	var resp api.TransferResponse
	err := c.do(ctx, http.MethodPost, "/transfer-ownership", req, &resp)
	return resp, err
}

func (c *apiClient) Access(ctx context.Context, req *api.AccessRequest) (api.MessageResponse, error) {
	var resp api.MessageResponse
	err := c.do(ctx, http.MethodPost, "/access-ip", req, &resp)
	return resp, err
}

func (c *apiClient) Licensed(ctx context.Context, address string) ([]api.LicensedIP, error) {
	var resp []api.LicensedIP
	err := c.do(ctx, http.MethodGet, "/licensed-ips/"+url.PathEscape(address), nil, &resp)
	return resp, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &apiError{Status: resp.StatusCode}
	var body struct {
		api.DuplicateResponse
		LedgerIndex *int   `json:"ledgerIndex"`
		TxHash      string `json:"txHash"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Message = body.Message
	apiErr.MatchIndex = body.MatchIndex
	apiErr.Score = body.Score
	apiErr.LedgerIndex = body.LedgerIndex
	apiErr.TxHash = body.TxHash
	return apiErr
}
