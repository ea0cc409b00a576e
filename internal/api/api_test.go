package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raf-os/signalR-client/internal/chat"
)

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/validateToken", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		if body["loginToken"] == "good" {
			json.NewEncoder(w).Encode(map[string]any{"isValid": true, "auth": 2})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"isValid": false})
	}))
	defer srv.Close()

	c := New(srv.URL, "")

	level, err := c.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, chat.LevelOperator, level)

	level, err = c.ValidateToken(context.Background(), "bad")
	require.NoError(t, err, "an invalid token is not a transport error")
	assert.Equal(t, chat.LevelGuest, level)
}

func TestActionAttachesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/kickUser", r.URL.Path)
		require.Equal(t, "t1", r.Header.Get("Auth-Token"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ActionResponse{
			Success: true,
			Content: json.RawMessage(`{"kicked":"bob"}`),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "t1")
	resp, err := c.Action(context.Background(), "kickUser", map[string]string{"target": "bob"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	var content map[string]string
	require.NoError(t, json.Unmarshal(resp.Content, &content))
	assert.Equal(t, "bob", content["kicked"])
}

func TestActionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "expired")
	_, err := c.Action(context.Background(), "kickUser", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
