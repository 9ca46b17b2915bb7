// Package client talks to the quiz gateway over HTTP and implements
// attempt.Gateway for remote runs.
package client

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

var _ attempt.Gateway = (*Client)(nil)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

type Config struct {
	BaseURL string
	// AccessToken is sent as a bearer token when set.
	AccessToken string
	// TokenURL, ClientID and ClientSecret switch to the client credentials
	// flow instead of a static token.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type Client struct {
	base string
	http *http.Client
}

func New(cfg Config) *Client {
	var h *http.Client
	switch {
	case cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	case cfg.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		h = oauth2.NewClient(context.Background(), ts)
	default:
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{base: strings.TrimSuffix(cfg.BaseURL, "/"), http: h}
}

// Login exchanges dev credentials for an access token.
func Login(ctx context.Context, baseURL, username, password string) (string, error) {
	c := New(Config{BaseURL: baseURL, Timeout: 30 * time.Second})
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, "login", http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *Client) GetQuiz(ctx context.Context, quizID string) (quiz.Definition, error) {
	var def quiz.Definition
	err := c.do(ctx, "get quiz", http.MethodGet, "/quizzes/"+url.PathEscape(quizID), nil, &def)
	return def, err
}

func (c *Client) StartQuizAttempt(ctx context.Context, quizID string) (quiz.Session, error) {
	var s quiz.Session
	err := c.do(ctx, "start attempt", http.MethodPost, "/attempts", map[string]string{"quiz_id": quizID}, &s)
	return s, err
}

func (c *Client) SubmitAnswer(ctx context.Context, sub quiz.Submission) error {
	raw, err := quiz.EncodeAnswer(sub.Answer)
	if err != nil {
		return err
	}
	body := map[string]any{
		"question_id":   sub.QuestionID,
		"answer":        raw,
		"time_spent_ms": sub.TimeSpentMs,
	}
	return c.do(ctx, "submit answer", http.MethodPost, "/attempts/"+url.PathEscape(sub.AttemptID)+"/answers", body, nil)
}

func (c *Client) CompleteQuizAttempt(ctx context.Context, attemptID string) (quiz.Completion, error) {
	var out quiz.Completion
	err := c.do(ctx, "complete attempt", http.MethodPost, "/attempts/"+url.PathEscape(attemptID)+"/complete", nil, &out)
	return out, err
}

func (c *Client) FetchUserAttempts(ctx context.Context, quizID string) ([]quiz.Attempt, error) {
	path := "/attempts"
	if quizID != "" {
		path += "?quiz_id=" + url.QueryEscape(quizID)
	}
	var out []quiz.Attempt
	err := c.do(ctx, "fetch attempts", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Op: op, Code: res.StatusCode, Message: e.Error}
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
