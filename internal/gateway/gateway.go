// Package gateway is the HTTP client for the remote chess authority.
// Every call either returns a complete new snapshot or an error; callers
// never see partial state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"mateboard/internal/board"
	"mateboard/internal/logging"
	"mateboard/internal/protocol"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNetworkFailure covers transport errors, non-2xx replies and
	// unreadable bodies.
	ErrNetworkFailure = errors.New("network failure")
	// ErrNetworkTimeout is a NetworkFailure caused by the request deadline.
	ErrNetworkTimeout = fmt.Errorf("%w: timeout", ErrNetworkFailure)
)

// StatusError is a non-2xx reply from the authority.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authority replied %d", e.Code)
	}
	return fmt.Sprintf("authority replied %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrNetworkFailure }

// AgentReply is the remote agent's chosen move and search statistics.
type AgentReply struct {
	Depth      int
	Duration   time.Duration
	Evaluation float64
	Move       board.Move
}

// MoveCount is a perft result.
type MoveCount struct {
	Moves   uint64
	Elapsed time.Duration
}

// Client talks to one authority.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for the authority at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     logging.For("gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Board fetches the current board.
func (c *Client) Board(ctx context.Context) (*board.Snapshot, error) {
	return c.snapshot(ctx, http.MethodGet, protocol.PathBoard, nil)
}

// Move submits a move and returns the board after it.
func (c *Client) Move(ctx context.Context, m board.Move) (*board.Snapshot, error) {
	return c.snapshot(ctx, http.MethodPost, protocol.PathMove, protocol.FromMove(m))
}

// LoadPosition replaces the authority's position. An empty fen loads the
// standard starting position.
func (c *Client) LoadPosition(ctx context.Context, fen string) (*board.Snapshot, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		fen = protocol.StartingFEN
	}
	return c.snapshot(ctx, http.MethodPost, protocol.PathLoadFEN, protocol.LoadFEN{FEN: fen})
}

// AgentMove asks the remote agent to move for the side to move.
func (c *Client) AgentMove(ctx context.Context) (AgentReply, error) {
	var r protocol.AgentReply
	if err := c.do(ctx, http.MethodPost, protocol.PathAgentMove, nil, &r); err != nil {
		return AgentReply{}, err
	}
	mv, err := r.AIMove.ToBoard()
	if err != nil {
		return AgentReply{}, fmt.Errorf("%w: agent move: %v", board.ErrMalformedSnapshot, err)
	}
	return AgentReply{
		Depth:      r.Depth,
		Duration:   time.Duration(r.Duration) * time.Millisecond,
		Evaluation: r.Evaluation,
		Move:       mv,
	}, nil
}

// SetThinkTime sets the agent's time budget.
func (c *Client) SetThinkTime(ctx context.Context, d time.Duration) error {
	return c.do(ctx, http.MethodPost, protocol.PathThinkTime, protocol.ThinkTime{TimeToThink: d.Seconds()}, nil)
}

// CountMoves runs a perft of depth on the authority's current position.
func (c *Client) CountMoves(ctx context.Context, depth int) (MoveCount, error) {
	var r protocol.MoveCount
	if err := c.do(ctx, http.MethodPost, protocol.PathMoveCount, protocol.MoveCountRequest{Depth: depth}, &r); err != nil {
		return MoveCount{}, err
	}
	return MoveCount{Moves: r.Moves, Elapsed: time.Duration(r.ElapsedTime) * time.Millisecond}, nil
}

func (c *Client) snapshot(ctx context.Context, method, path string, body any) (*board.Snapshot, error) {
	var wb protocol.Board
	if err := c.do(ctx, method, path, body, &wb); err != nil {
		return nil, err
	}
	s, err := wb.Snapshot()
	if err != nil {
		c.log.Error("authority sent a malformed board", "path", path, "error", err)
		return nil, err
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			c.log.Warn("authority request timed out", "path", path, "after", time.Since(start))
			return fmt.Errorf("%w: %s %s: %v", ErrNetworkTimeout, method, path, err)
		}
		c.log.Warn("authority request failed", "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close()
	logging.Debugf("%s %s -> %d in %s", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e protocol.Error
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: reading %s: %v", ErrNetworkTimeout, path, err)
		}
		return fmt.Errorf("%w: decoding %s: %v", ErrNetworkFailure, path, err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
