// Package clickup is a small ClickUp v2 API client covering the calls the
// sync wizard needs.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public ClickUp API.
const DefaultBaseURL = "https://api.clickup.com/api/v2"

// ErrUnauthorized is returned when ClickUp rejects the token.
var ErrUnauthorized = errors.New("clickup: invalid token")

// Workspace is a ClickUp team.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Space is a ClickUp space.
type Space struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Folder is a ClickUp folder with its lists.
type Folder struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Lists []List `json:"lists"`
}

// List is a ClickUp list.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Field is a task attribute found on a sample task.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Custom bool   `json:"custom"`
}

// User is the owner of a token.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// API is what the sync wizard needs from ClickUp.
type API interface {
	ValidateToken(ctx context.Context, token string) (User, error)
	ListWorkspaces(ctx context.Context, token string) ([]Workspace, error)
	ListSpaces(ctx context.Context, token, workspaceID string) ([]Space, error)
	ListFolders(ctx context.Context, token, spaceID string) ([]Folder, error)
	ListLists(ctx context.Context, token, folderID string) ([]List, error)
	ListFolderlessLists(ctx context.Context, token, spaceID string) ([]List, error)
	ListFields(ctx context.Context, token, listID string) ([]Field, error)
}

// Client talks to the ClickUp REST API.
type Client struct {
	base string
	http *resty.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// New returns a Client for base. An empty base uses DefaultBaseURL.
func New(base string, opts ...Option) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{base: base, http: resty.New()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, token, path string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		SetQueryParams(params).
		SetResult(out).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("clickup %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.IsError() {
		return restyErr(path, resp)
	}
	return nil
}

func restyErr(path string, resp *resty.Response) error {
	var body struct {
		Err  string `json:"err"`
		Code string `json:"ECODE"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Err != "" {
		return fmt.Errorf("clickup %s: %s: %s", path, resp.Status(), body.Err)
	}
	return fmt.Errorf("clickup %s: %s", path, resp.Status())
}

// ValidateToken returns the user owning token.
func (c *Client) ValidateToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrUnauthorized
	}
	var out struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, token, "/user", nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

func (c *Client) ListWorkspaces(ctx context.Context, token string) ([]Workspace, error) {
	var out struct {
		Teams []Workspace `json:"teams"`
	}
	if err := c.get(ctx, token, "/team", nil, &out); err != nil {
		return nil, err
	}
	return out.Teams, nil
}

func (c *Client) ListSpaces(ctx context.Context, token, workspaceID string) ([]Space, error) {
	var out struct {
		Spaces []Space `json:"spaces"`
	}
	if err := c.get(ctx, token, "/team/"+workspaceID+"/space", map[string]string{"archived": "false"}, &out); err != nil {
		return nil, err
	}
	return out.Spaces, nil
}

func (c *Client) ListFolders(ctx context.Context, token, spaceID string) ([]Folder, error) {
	var out struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.get(ctx, token, "/space/"+spaceID+"/folder", map[string]string{"archived": "false"}, &out); err != nil {
		return nil, err
	}
	return out.Folders, nil
}

func (c *Client) ListLists(ctx context.Context, token, folderID string) ([]List, error) {
	var out struct {
		Lists []List `json:"lists"`
	}
	if err := c.get(ctx, token, "/folder/"+folderID+"/list", map[string]string{"archived": "false"}, &out); err != nil {
		return nil, err
	}
	return out.Lists, nil
}

func (c *Client) ListFolderlessLists(ctx context.Context, token, spaceID string) ([]List, error) {
	var out struct {
		Lists []List `json:"lists"`
	}
	if err := c.get(ctx, token, "/space/"+spaceID+"/list", map[string]string{"archived": "false"}, &out); err != nil {
		return nil, err
	}
	return out.Lists, nil
}

// ListFields returns the attributes of the first task of listID in the
// order ClickUp sends them, followed by its custom fields. An empty list
// has no fields.
func (c *Client) ListFields(ctx context.Context, token, listID string) ([]Field, error) {
	var out struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	params := map[string]string{"page": "0", "include_closed": "true", "subtasks": "false"}
	if err := c.get(ctx, token, "/list/"+listID+"/task", params, &out); err != nil {
		return nil, err
	}
	if len(out.Tasks) == 0 {
		return nil, nil
	}
	return sampleFields(out.Tasks[0])
}

func sampleFields(task json.RawMessage) ([]Field, error) {
	keys, err := objectKeys(task)
	if err != nil {
		return nil, fmt.Errorf("decode sample task: %w", err)
	}
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		if k == "custom_fields" {
			continue
		}
		fields = append(fields, Field{ID: k, Name: k, Type: "standard"})
	}
	var custom struct {
		Fields []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"custom_fields"`
	}
	if err := json.Unmarshal(task, &custom); err != nil {
		return nil, fmt.Errorf("decode custom fields: %w", err)
	}
	for _, f := range custom.Fields {
		fields = append(fields, Field{ID: f.ID, Name: f.Name, Type: f.Type, Custom: true})
	}
	return fields, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
