package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-erase/service/config"
)

func webhookConfig(t *testing.T, url string) config.IService {
	t.Helper()
	t.Setenv("VSE_NOTIFY_URL", url)
	cfg, err := config.NewYAML("")
	require.NoError(t, err)
	return cfg
}

func TestWebhookPostsJSON(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		payload["contentType"] = r.Header.Get("Content-Type")
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	svc := NewWebhook(webhookConfig(t, srv.URL))
	require.NoError(t, svc.Post(map[string]interface{}{"clip": "walk", "frames": 20}))

	payload := <-received
	require.Equal(t, "walk", payload["clip"])
	require.Equal(t, "application/json", payload["contentType"])
	require.EqualValues(t, 20, payload["frames"])
}

func TestWebhookRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewWebhook(webhookConfig(t, srv.URL))
	require.ErrorContains(t, svc.Post(map[string]interface{}{"clip": "walk"}), "502")
}

func TestWebhookWithoutURLIsFake(t *testing.T) {
	svc := NewWebhook(webhookConfig(t, ""))
	require.NoError(t, svc.Post(map[string]interface{}{"clip": "walk"}))
	require.Len(t, Posted(svc), 1)
}
