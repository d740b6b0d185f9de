package rewards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gym-access-backend/internal/model"
)

func TestClient_Increment(t *testing.T) {
	var got IncrementRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/points/increment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, nil)
	err := c.Increment(context.Background(), IncrementRequest{MemberID: "alice", Points: 42, Reason: "equipment_session", Reference: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, IncrementRequest{MemberID: "alice", Points: 42, Reason: "equipment_session", Reference: "s-1"}, got)
}

func TestClient_IncrementErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member unknown", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	err := c.Increment(context.Background(), IncrementRequest{MemberID: "ghost", Points: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_SessionCompleted(t *testing.T) {
	calls := make(chan IncrementRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in IncrementRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		calls <- in
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	c.SessionCompleted(model.UsageSession{ID: "s-1", MemberID: "alice", CaloriesBurned: 120, AutoReleased: true})

	select {
	case in := <-calls:
		assert.Equal(t, "alice", in.MemberID)
		assert.Equal(t, 120, in.Points)
		assert.Equal(t, "equipment_session_auto_released", in.Reason)
		assert.Equal(t, "s-1", in.Reference)
	case <-time.After(2 * time.Second):
		t.Fatal("points service was not called")
	}
}

func TestClient_SessionCompletedSkipsZeroCalories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected call")
	}))
	defer srv.Close()

	New(srv.URL, time.Second, nil).SessionCompleted(model.UsageSession{ID: "s-1", MemberID: "alice"})
	time.Sleep(50 * time.Millisecond)
}
