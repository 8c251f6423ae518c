package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		APIBase:     srv.URL,
		PhoneID:     "123456",
		Token:       "test-token",
		VerifyToken: "verify-me",
	}, srv.Client(), logger.NewNop())
	return client, srv
}

func TestClientSendText(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123456/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT1"}]}`))
	})

	id, err := client.Send(context.Background(), "60123456789", model.ContentSpec{
		Type: model.ContentText,
		Body: "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.OUT1", id)

	assert.Equal(t, "whatsapp", captured["messaging_product"])
	assert.Equal(t, "60123456789", captured["to"])
	assert.Equal(t, "text", captured["type"])
	text := captured["text"].(map[string]interface{})
	assert.Equal(t, "hello there", text["body"])
}

func TestClientSendMedia(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT2"}]}`))
	})

	id, err := client.Send(context.Background(), "60123456789", model.ContentSpec{
		Type:     model.ContentImage,
		MediaURL: "https://cdn.example.com/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.OUT2", id)

	img := captured["image"].(map[string]interface{})
	assert.Equal(t, "https://cdn.example.com/a.jpg", img["link"])
}

func TestClientSendProviderRejection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid recipient","code":131026}}`))
	})

	_, err := client.Send(context.Background(), "bad", model.ContentSpec{
		Type: model.ContentText,
		Body: "x",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, string(apiErr.Body), "invalid recipient")
}

func TestClientSendMissingMessageID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[]}`))
	})

	_, err := client.Send(context.Background(), "601", model.ContentSpec{
		Type: model.ContentText,
		Body: "x",
	})
	assert.Error(t, err)
}

func TestVerifyToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.True(t, client.VerifyToken("subscribe", "verify-me"))
	assert.False(t, client.VerifyToken("subscribe", "wrong"))
	assert.False(t, client.VerifyToken("unsubscribe", "verify-me"))
	assert.False(t, client.VerifyToken("subscribe", ""))
}
