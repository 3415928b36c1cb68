// Package gameclient is a fasthttp client for the engine's HTTP API.
package gameclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
	backoffBase    time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithBackoff(base time.Duration) Option {
	return func(c *Client) { c.backoffBase = base }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
		backoffBase:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateGame is never retried; a lost response could otherwise create two games.
func (c *Client) CreateGame(ctx context.Context, req gamedto.CreateGameRequest) (*session.Record, error) {
	var rec session.Record
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", req, &rec, false); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) GetGame(ctx context.Context, gameID string) (*session.Record, error) {
	var rec session.Record
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(gameID), nil, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Move submits a move. Resubmitting an applied move is rejected by the
// engine, so retryable failures are retried as-is.
func (c *Client) Move(ctx context.Context, gameID, playerID string, position int) (*session.Record, error) {
	var rec session.Record
	req := gamedto.MoveRequest{PlayerID: playerID, Position: &position}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(gameID)+"/move", req, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Join(ctx context.Context, gameID, playerID string) (*session.Record, error) {
	var rec session.Record
	req := gamedto.JoinRequest{PlayerID: playerID}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(gameID)+"/join", req, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Active(ctx context.Context, userID string) ([]session.Record, error) {
	var list []session.Record
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/active/"+url.PathEscape(userID), nil, &list, true); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Recent(ctx context.Context, userID string, limit int) ([]gamedto.FinishedGame, error) {
	var list []gamedto.FinishedGame
	path := "/games/recent/" + url.PathEscape(userID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &list, true); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, nil, false)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = decodeError(status, resp.Body())
			if !shouldRetry(status, lastErr) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, c.backoff(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

// decodeError turns an error body into a gamedto.DomainError when possible.
func decodeError(status int, body []byte) error {
	var er gamedto.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return gamedto.DomainError{Code: er.Error, Message: er.Message, Retryable: er.Retryable}
	}
	return fmt.Errorf("game api error: status=%d body=%s", status, truncate(string(body), 512))
}

func shouldRetry(status int, err error) bool {
	var de gamedto.DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}
	switch status {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * c.backoffBase
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
