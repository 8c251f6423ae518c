package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/internal/service"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/internal/whatsapp"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	return nil
}

func newWebhookHandler(t *testing.T) (*WebhookHandler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.AddDepartment(model.Department{Name: "Customer Experience", Slug: "cx"})

	log := logger.NewNop()
	provider := whatsapp.NewClient(whatsapp.Config{VerifyToken: "verify-me"}, nil, log)
	router := realtime.NewRouter(nopPublisher{}, log)
	inbox := service.NewInbox(mem, router, nil, "cx", log)

	return NewWebhookHandler(provider, inbox, log), mem
}

func TestWebhookVerifySuccess(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "12345", rr.Body.String())
}

func TestWebhookVerifyWrongToken(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", nil)
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NotContains(t, rr.Body.String(), "12345")
}

func TestWebhookReceiveMessage(t *testing.T) {
	h, mem := newWebhookHandler(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"value": {
					"contacts": [{"wa_id": "60123456789", "profile": {"name": "Jane"}}],
					"messages": [{
						"from": "60123456789",
						"id": "wamid.A",
						"type": "text",
						"text": {"body": "hello"}
					}]
				}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	h.Receive(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"received"}`, rr.Body.String())

	msg, err := mem.GetMessageByProviderID(context.Background(), "wamid.A")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionInbound, msg.Direction)
}

func TestWebhookReceiveMalformedBody(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	h.Receive(rr, req)

	// The provider retries anything non-2xx, so garbage is acknowledged.
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ignored"}`, rr.Body.String())
}

func TestWebhookReceiveNoEvents(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp",
		strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	rr := httptest.NewRecorder()

	h.Receive(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ignored"}`, rr.Body.String())
}
