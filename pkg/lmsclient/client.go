// Package lmsclient is a typed client for the coursetrack REST API.
package lmsclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/dto"
)

// MaxUploadBytes mirrors the server side attachment limit.
const MaxUploadBytes int64 = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client talks to the /api/v1 endpoints.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger

	mu    sync.RWMutex
	token string
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    interface{}            `json:"data,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// New constructs a client. BaseURL is the server root, without /api/v1.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		logger: cfg.Logger.With().Str("component", "lmsclient").Logger(),
		token:  cfg.Token,
	}

	c.http = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/api/v1").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	c.http.OnBeforeRequest(c.authorize)
	c.http.OnAfterResponse(c.logFailure)
	c.http.OnError(func(req *resty.Request, err error) {
		c.logger.Error().Err(err).Str("method", req.Method).Str("url", req.URL).Msg("request failed before a response")
	})

	return c
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// authorize attaches the bearer token. Requests without one are still sent; the server
// decides whether the route needs it.
func (c *Client) authorize(_ *resty.Client, req *resty.Request) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		c.logger.Warn().Str("method", req.Method).Str("url", req.URL).Msg("no auth token set, sending anonymous request")
		return nil
	}
	req.SetAuthToken(token)
	return nil
}

func (c *Client) logFailure(_ *resty.Client, resp *resty.Response) error {
	if resp.IsError() {
		c.logger.Warn().
			Int("status", resp.StatusCode()).
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Msg("api returned an error")
	}
	return nil
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (dto.LoginResponse, error) {
	var out dto.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", dto.LoginRequest{Email: email, Password: password}, &out)
	if err == nil {
		c.SetToken(out.Token)
	}
	return out, err
}

// GetProgress fetches one student's record for a course.
func (c *Client) GetProgress(ctx context.Context, studentID, courseID uint) (dto.ProgressResponse, error) {
	var out dto.ProgressResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/progress/%d/%d", studentID, courseID), nil, &out)
	return out, err
}

// UpdateProgress toggles one section and returns the refreshed record.
func (c *Client) UpdateProgress(ctx context.Context, studentID, courseID uint, req dto.ProgressUpdateRequest) (dto.ProgressResponse, error) {
	var out dto.ProgressResponse
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/progress/%d/%d", studentID, courseID), req, &out)
	return out, err
}

// ViewBatch fetches a batch with its course tree and per-section aggregate.
func (c *Client) ViewBatch(ctx context.Context, batchID uint) (dto.BatchViewResponse, error) {
	var out dto.BatchViewResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/progress/batch/view/%d", batchID), nil, &out)
	return out, err
}

// ToggleBatchSection applies one section state to every student of the batch.
func (c *Client) ToggleBatchSection(ctx context.Context, batchID uint, req dto.ProgressUpdateRequest) (dto.BatchToggleResponse, error) {
	var out dto.BatchToggleResponse
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/progress/batch/%d/sections", batchID), req, &out)
	return out, err
}

// UpdateBatchMembers adds and removes batch students.
func (c *Client) UpdateBatchMembers(ctx context.Context, batchID, courseID uint, req dto.BatchMembersRequest) (dto.BatchResponse, error) {
	var out dto.BatchResponse
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/progress/batch/%d/%d", batchID, courseID), req, &out)
	return out, err
}

// GetCourse fetches a course tree.
func (c *Client) GetCourse(ctx context.Context, courseID uint) (dto.CourseResponse, error) {
	var out dto.CourseResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/courses/%d", courseID), nil, &out)
	return out, err
}

// UploadFile sends a file to the upload endpoint. Files above MaxUploadBytes fail with
// ErrFileTooLarge without touching the network.
func (c *Client) UploadFile(ctx context.Context, name string, content io.Reader) (dto.UploadResponse, error) {
	payload, err := io.ReadAll(io.LimitReader(content, MaxUploadBytes+1))
	if err != nil {
		return dto.UploadResponse{}, err
	}
	if int64(len(payload)) > MaxUploadBytes {
		c.logger.Warn().Str("file", name).Msg("upload rejected locally: file too large")
		return dto.UploadResponse{}, ErrFileTooLarge
	}

	var out dto.UploadResponse
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(payload))
	err = c.send(req, http.MethodPost, "/upload/file", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	return c.send(req, method, path, out)
}

func (c *Client) send(req *resty.Request, method, path string, out interface{}) error {
	result := &envelope{Data: out}
	failure := &envelope{}

	resp, err := req.SetResult(result).SetError(failure).Execute(method, path)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	if resp.IsError() {
		message := failure.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode())
		}
		return &APIError{Status: resp.StatusCode(), Message: message, Details: failure.Details}
	}
	return nil
}
