// Package api is the client for the agent host's REST endpoints.
package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-yaml"
)

// Error is a failed REST call.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Client calls the agent host.
type Client struct {
	resty *resty.Client
}

// NewClient creates a client for the given http(s) origin.
func NewClient(origin string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(origin, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("User-Agent", "commuter-operator/1.0")
	return &Client{resty: rc}
}

// State fetches the session state.
func (c *Client) State(ctx context.Context) (*State, error) {
	var out State
	if err := c.do(ctx, "state", c.resty.R().SetResult(&out), "GET", "/api/state"); err != nil {
		return nil, err
	}
	return &out, nil
}

// InterventionStatus fetches the host's intervention flag.
func (c *Client) InterventionStatus(ctx context.Context) (*InterventionStatus, error) {
	var out InterventionStatus
	if err := c.do(ctx, "intervention status", c.resty.R().SetResult(&out), "GET", "/api/intervention/status"); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConfig stores one configuration key.
func (c *Client) UpdateConfig(ctx context.Context, key, value string) (*ConfigResponse, error) {
	if key == "" {
		return nil, &Error{Op: "config", Message: "key is required"}
	}
	var out ConfigResponse
	req := c.resty.R().SetBody(ConfigRequest{Key: key, Value: value}).SetResult(&out)
	if err := c.do(ctx, "config", req, "POST", "/api/config"); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitCommand sends a system command.
func (c *Client) SubmitCommand(ctx context.Context, command string) (*CommandResponse, error) {
	var out CommandResponse
	req := c.resty.R().SetBody(CommandRequest{Command: command}).SetResult(&out)
	if err := c.do(ctx, "command", req, "POST", "/api/command"); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return &out, &Error{Op: "command", Message: out.Error}
	}
	return &out, nil
}

// IngestDocument uploads a document for the agent to use.
func (c *Client) IngestDocument(ctx context.Context, path string) (*IngestResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open document: %s is a directory", path)
	}

	var out IngestResponse
	req := c.resty.R().
		SetFile("file", path).
		SetResult(&out)
	if err := c.do(ctx, "upload", req, "POST", "/api/upload_cv"); err != nil {
		return nil, err
	}
	if out.Status != "success" {
		return &out, &Error{Op: "upload", Message: out.Message}
	}
	return &out, nil
}

// SaveProfile stores the candidate profile.
func (c *Client) SaveProfile(ctx context.Context, p Profile) (*ProfileResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out ProfileResponse
	req := c.resty.R().SetBody(p).SetResult(&out)
	if err := c.do(ctx, "profile", req, "POST", "/api/profile"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) error {
	var errBody ErrorResponse
	resp, err := req.SetContext(ctx).SetError(&errBody).Execute(method, path)
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}
	if resp.IsError() {
		msg := errBody.Message
		if msg == "" {
			msg = errBody.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &Error{Op: op, StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

// LoadProfile reads a YAML profile file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return p, p.Validate()
}
