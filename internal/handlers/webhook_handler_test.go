package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/config"
	"github.com/nimasrn/whatsapp-inbox/internal/processor"
	xhttp "github.com/nimasrn/whatsapp-inbox/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestMain(m *testing.M) {
	config.Set(&config.Config{AppEnv: "dev"})
	os.Exit(m.Run())
}

type stubPublisher struct {
	data     []byte
	metadata map[string]string
	err      error
	delay    time.Duration
}

func (p *stubPublisher) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.data = append([]byte(nil), data...)
	p.metadata = metadata
	return "1700000000000-0", p.err
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestWebhookHandler_Verify(t *testing.T) {
	t.Run("valid handshake echoes challenge verbatim", func(t *testing.T) {
		h := NewWebhookHandler(&stubPublisher{}, "verify-me")

		ctx := setupTestContext("GET", "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=challenge-42", nil)
		h.Verify(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "challenge-42", string(ctx.Response.Body()))
	})

	t.Run("wrong token is forbidden", func(t *testing.T) {
		h := NewWebhookHandler(&stubPublisher{}, "verify-me")

		ctx := setupTestContext("GET", "/webhook?hub.mode=subscribe&hub.verify_token=guess&hub.challenge=x", nil)
		h.Verify(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("wrong mode is forbidden", func(t *testing.T) {
		h := NewWebhookHandler(&stubPublisher{}, "verify-me")

		ctx := setupTestContext("GET", "/webhook?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=x", nil)
		h.Verify(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("empty configured token never verifies", func(t *testing.T) {
		h := NewWebhookHandler(&stubPublisher{}, "")

		ctx := setupTestContext("GET", "/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=x", nil)
		h.Verify(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})
}

func TestWebhookHandler_Receive(t *testing.T) {
	t.Run("delivery is enqueued byte for byte with signature", func(t *testing.T) {
		pub := &stubPublisher{}
		h := NewWebhookHandler(pub, "verify-me")

		body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
		ctx := setupTestContext("POST", "/webhook", body)
		ctx.Request.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

		h.Receive(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var resp map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, "ok", resp["status"])

		assert.Equal(t, body, pub.data)
		assert.Equal(t, "sha256=deadbeef", pub.metadata[processor.SignatureMetadataKey])
		assert.NotEmpty(t, pub.metadata[processor.DeliveryIDMetadataKey])
	})

	t.Run("enqueue failure returns 500 so the provider redelivers", func(t *testing.T) {
		pub := &stubPublisher{err: errors.New("redis down")}
		h := NewWebhookHandler(pub, "verify-me")

		ctx := setupTestContext("POST", "/webhook", []byte(`{}`))
		h.Receive(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
	})

	t.Run("ack does not wait on payload size", func(t *testing.T) {
		pub := &stubPublisher{}
		h := NewWebhookHandler(pub, "verify-me")

		// a large batch must still come back quickly since nothing is parsed
		big := make([]byte, 1<<20)
		copy(big, []byte(`{"object":"whatsapp_business_account"`))

		start := time.Now()
		ctx := setupTestContext("POST", "/webhook", big)
		h.Receive(ctx)

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, 200, ctx.Response.StatusCode())
	})
}
