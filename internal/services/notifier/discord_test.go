package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/NordCoder/Upwatch/internal/config/notifier"
	"github.com/NordCoder/Upwatch/internal/domain/notification"
)

func TestDiscord_PostsWebhook(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(config.Discord{Timeout: time.Second, Username: "Upwatch"})
	err := d.Send(t.Context(), srv.URL, notification.Message{Subject: "DOWN: x", Body: "details"})

	require.NoError(t, err)
	assert.Equal(t, "Upwatch", got.Username)
	assert.Equal(t, "**DOWN: x**\ndetails", got.Content)
}

func TestDiscord_RejectedWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Unknown Webhook"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscord(config.Discord{}).Send(t.Context(), srv.URL, notification.Message{Subject: "s"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDiscord_TruncatesLongContent(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	err := NewDiscord(config.Discord{}).Send(t.Context(), srv.URL, notification.Message{Subject: "s", Body: strings.Repeat("x", 5000)})

	require.NoError(t, err)
	assert.Len(t, []rune(got.Content), discordMaxContent)
}
