// Package eventsource provides the reminder.EventSource implementations used
// by remindctl: the evently REST API and iCalendar feeds.
package eventsource

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

	"evently/internal/reminder"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 15 * time.Second

// Client talks to the evently API. The bearer token decides whose events are
// returned; the username passed to FetchUpcoming is only used for logging.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logrus.Entry
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client, which times out after 15s.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     logrus.WithField("component", "eventsource"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string { return c.token }

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login exchanges credentials for an access token and keeps it on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login: server returned no token")
	}
	c.token = out.Token
	c.log.WithField("username", out.User.Username).Debug("logged in")
	return out.Token, nil
}

// Logout revokes the server-side refresh token if the server knows one. A
// CLI session only holds an access token, so this mostly clears local state.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	c.token = ""
	return err
}

// wireEvent is an event as the API serialises it; ids are numeric there.
type wireEvent struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
}

func (c *Client) FetchUpcoming(ctx context.Context, username string, w reminder.Window) ([]reminder.Event, error) {
	q := url.Values{}
	q.Set("start_date", w.StartDate())
	q.Set("start_time", w.StartTime())
	q.Set("end_date", w.EndDate())
	q.Set("end_time", w.EndTime())

	var wire []wireEvent
	if err := c.do(ctx, http.MethodGet, "/api/events/upcoming", q, nil, &wire); err != nil {
		return nil, err
	}

	events := make([]reminder.Event, 0, len(wire))
	for _, we := range wire {
		events = append(events, reminder.Event{
			ID:          strconv.FormatInt(we.ID, 10),
			Name:        we.Name,
			Date:        we.Date,
			Time:        we.Time,
			Location:    we.Location,
			Description: we.Description,
		})
	}
	c.log.WithFields(logrus.Fields{"username": username, "window": w.String(), "events": len(events)}).Debug("fetched upcoming events")
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	op := method + " " + path
	resp, err := c.http.Do(req)
	if err != nil {
		return &reminder.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &reminder.NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &reminder.ServerError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage pulls the message out of an {"error": "..."} body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
