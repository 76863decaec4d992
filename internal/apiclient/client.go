// Package apiclient talks to a running invoicer server over its JSON API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

// Error is a problem response returned by the server.
type Error struct {
	Status int
	Title  string
	Detail string
	Fields []httpx.FieldDetail
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%d %s", e.Status, e.Title)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap maps the status back onto the httpx sentinels.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return httpx.ErrValidation
	case http.StatusUnauthorized:
		return httpx.ErrUnauthorized
	case http.StatusForbidden:
		return httpx.ErrForbidden
	case http.StatusNotFound:
		return httpx.ErrNotFound
	case http.StatusConflict:
		return httpx.ErrDuplicate
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return httpx.ErrUnavailable
	default:
		return nil
	}
}

// Client keeps a session cookie and CSRF token across calls. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu   sync.RWMutex
	csrf string
}

// New builds a client for baseURL. A nil httpClient gets a 15s timeout. The
// client's cookie jar is replaced when it has none.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user"`
	CSRFToken     string `json:"csrfToken"`
}

// Login opens a session for email.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var sess sessionView
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &sess); err != nil {
		return err
	}
	c.setToken(sess.CSRFToken)
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/session", body, &sess); err != nil {
		return err
	}
	c.setToken(sess.CSRFToken)
	if !sess.Authenticated {
		return fmt.Errorf("apiclient: sign in was not accepted: %w", httpx.ErrUnauthorized)
	}
	return nil
}

// ListInvoices fetches invoices matching filter.
func (c *Client) ListInvoices(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	q := url.Values{}
	if filter.CustomerName != "" {
		q.Set("customerName", filter.CustomerName)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.DueFrom.Valid() {
		q.Set("dueFrom", filter.DueFrom.String())
	}
	if filter.DueTo.Valid() {
		q.Set("dueTo", filter.DueTo.String())
	}
	path := "/api/invoices"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var res invoice.ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	out := make([]invoice.Invoice, 0, len(res.Invoices))
	for _, v := range res.Invoices {
		out = append(out, v.Invoice)
	}
	return out, nil
}

// UpdateStatus changes only the status of invoice id.
func (c *Client) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Invoice, error) {
	var view invoice.View
	body := invoice.StatusUpdate{ID: id, Status: status}
	if err := c.do(ctx, http.MethodPatch, "/api/invoices/"+url.PathEscape(id)+"/status", body, &view); err != nil {
		return nil, err
	}
	return &view.Invoice, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.token(); token != "" {
			req.Header.Set("X-CSRF-Token", token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, httpx.ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return decodeProblem(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func decodeProblem(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	var problem httpx.ProblemDetail
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&problem); err == nil {
		if problem.Title != "" {
			apiErr.Title = problem.Title
		}
		apiErr.Detail = problem.Detail
		apiErr.Fields = problem.Errors
	}
	return apiErr
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrf
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrf = token
}
