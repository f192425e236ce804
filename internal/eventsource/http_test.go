package eventsource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evently/internal/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC)

func TestFetchUpcoming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/upcoming", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "10:00", q.Get("start_time"))
		assert.Equal(t, "2024-01-02", q.Get("end_date"))
		assert.Equal(t, "10:01", q.Get("end_time"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 7, "name": "Standup", "date": "2024-01-01", "time": "10:30", "location": "Room 1", "username": "alice", "categories": []string{}},
			{"id": 12, "name": "Review", "date": "2024-01-02", "time": "09:00", "description": "Q1"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithToken("tok"))
	events, err := c.FetchUpcoming(context.Background(), "alice", reminder.NewWindow(testNow, reminder.DefaultWindow))
	require.NoError(t, err)
	assert.Equal(t, []reminder.Event{
		{ID: "7", Name: "Standup", Date: "2024-01-01", Time: "10:30", Location: "Room 1"},
		{ID: "12", Name: "Review", Date: "2024-01-02", Time: "09:00", Description: "Q1"},
	}, events)
}

func TestFetchUpcomingErrors(t *testing.T) {
	w := reminder.NewWindow(testNow, reminder.DefaultWindow)

	tests := []struct {
		name      string
		status    int
		body      string
		message   string
		transient bool
	}{
		{"server failure", http.StatusInternalServerError, `{"error":"Failed to fetch events"}`, "Failed to fetch events", true},
		{"rate limited", http.StatusTooManyRequests, `slow down`, "slow down", true},
		{"unauthorized", http.StatusUnauthorized, `{"error":"Invalid token"}`, "Invalid token", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).FetchUpcoming(context.Background(), "alice", w)
			var srvErr *reminder.ServerError
			require.ErrorAs(t, err, &srvErr)
			assert.Equal(t, tt.status, srvErr.StatusCode)
			assert.Equal(t, tt.message, srvErr.Message)
			assert.Equal(t, tt.transient, reminder.IsTransient(err))
		})
	}
}

func TestFetchUpcomingNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).FetchUpcoming(context.Background(), "alice", reminder.NewWindow(testNow, 0))
	var netErr *reminder.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, reminder.IsTransient(err))
}

func TestFetchUpcomingCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := NewClient(srv.URL).FetchUpcoming(ctx, "alice", reminder.NewWindow(testNow, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchUpcomingBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchUpcoming(context.Background(), "alice", reminder.NewWindow(testNow, 0))
	require.Error(t, err)
	assert.False(t, reminder.IsTransient(err))
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid username or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"abc","user":{"username":"alice","role":"User"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Login(context.Background(), "alice", "wrong")
	var srvErr *reminder.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusUnauthorized, srvErr.StatusCode)
	assert.Empty(t, c.Token())

	token, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "abc", c.Token())
}
