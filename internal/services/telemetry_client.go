package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"binsight-backend/internal/models"
)

// FetchErrorKind classifies a failed snapshot fetch
type FetchErrorKind string

const (
	FetchFailure      FetchErrorKind = "fetch_failure"
	MalformedResponse FetchErrorKind = "malformed_response"
)

// FetchError wraps any failure of the telemetry source
type FetchError struct {
	Kind FetchErrorKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx answer from the telemetry source
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err carries a 404 from the telemetry source
func IsNotFound(err error) bool {
	var he *HTTPStatusError
	return errors.As(err, &he) && he.Code == http.StatusNotFound
}

// TelemetryClient talks to the telemetry source over HTTP
type TelemetryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTelemetryClient creates a client for the given base URL
func NewTelemetryClient(baseURL string, timeout time.Duration) *TelemetryClient {
	return &TelemetryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the telemetry source base URL
func (c *TelemetryClient) BaseURL() string {
	return c.baseURL
}

// FetchBins retrieves the whole fleet from GET /bins
func (c *TelemetryClient) FetchBins(ctx context.Context) ([]models.BinReading, error) {
	var bins []models.BinReading
	if err := c.getJSON(ctx, "fetch bins", "/bins", &bins); err != nil {
		return nil, err
	}
	return bins, nil
}

// FetchRoute retrieves the server-side route from GET /route
func (c *TelemetryClient) FetchRoute(ctx context.Context, startID, endID string) (models.RemoteRoute, error) {
	q := url.Values{}
	q.Set("start", startID)
	q.Set("end", endID)

	var route models.RemoteRoute
	if err := c.getJSON(ctx, "fetch route", "/route?"+q.Encode(), &route); err != nil {
		return models.RemoteRoute{}, err
	}
	return route, nil
}

func (c *TelemetryClient) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Kind: FetchFailure, Op: op, Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return &FetchError{Kind: FetchFailure, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Kind: MalformedResponse, Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (c *TelemetryClient) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *TelemetryClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HTTPStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// PostTelemetry sends one sensor reading to POST /telemetry
func (c *TelemetryClient) PostTelemetry(ctx context.Context, in models.TelemetryIn) error {
	var ack models.TelemetryAck
	return c.sendJSON(ctx, "post telemetry", http.MethodPost, "/telemetry", "", in, &ack)
}

// Login exchanges credentials for a bearer token
func (c *TelemetryClient) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		OK    bool   `json:"ok"`
		Token string `json:"token"`
	}
	if err := c.sendJSON(ctx, "login", http.MethodPost, "/api/auth/login", "", body, &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.Token == "" {
		return "", &FetchError{Kind: MalformedResponse, Op: "login", Err: errors.New("no token in response")}
	}
	return resp.Token, nil
}

// RegisterBin creates or updates a bin; it returns "created" or "updated"
func (c *TelemetryClient) RegisterBin(ctx context.Context, token string, req models.RegisterBinRequest) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.sendJSON(ctx, "register bin", http.MethodPost, "/bins/register", token, req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// DeleteBin removes a bin and its history
func (c *TelemetryClient) DeleteBin(ctx context.Context, token, binID string) error {
	var resp struct {
		Status string `json:"status"`
	}
	return c.sendJSON(ctx, "delete bin", http.MethodDelete, "/bins/"+url.PathEscape(binID), token, nil, &resp)
}

// MarkEmptied records a collection of binID
func (c *TelemetryClient) MarkEmptied(ctx context.Context, binID string) (models.BinReading, error) {
	var bin models.BinReading
	err := c.sendJSON(ctx, "mark emptied", http.MethodPost, "/bins/"+url.PathEscape(binID)+"/emptied", "", nil, &bin)
	return bin, err
}

func (c *TelemetryClient) sendJSON(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &FetchError{Kind: FetchFailure, Op: op, Err: fmt.Errorf("encode: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &FetchError{Kind: FetchFailure, Op: op, Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.do(req)
	if err != nil {
		return &FetchError{Kind: FetchFailure, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Kind: MalformedResponse, Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
