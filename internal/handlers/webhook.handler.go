package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/nimasrn/whatsapp-inbox/internal/processor"
	xhttp "github.com/nimasrn/whatsapp-inbox/pkg/http"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
	"github.com/nimasrn/whatsapp-inbox/pkg/prom"
)

// Publisher hands a raw delivery to the queue.
type Publisher interface {
	Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error)
}

// WebhookHandler terminates the provider-facing webhook endpoint. The POST
// path does no parsing at all: the raw body is copied and enqueued so the
// provider gets its 200 back immediately, and verification and decoding
// happen in the consumer.
type WebhookHandler struct {
	queue       Publisher
	verifyToken string
}

func RegisterWebhookRoutes(r *router.Router, h *WebhookHandler) {
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
}

func NewWebhookHandler(queue Publisher, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		queue:       queue,
		verifyToken: verifyToken,
	}
}

// Verify answers the provider's subscription handshake. The challenge is
// echoed back byte for byte on success.
func (h *WebhookHandler) Verify(ctx *xhttp.RequestCtx) {
	mode := query(ctx, "hub.mode")
	token := query(ctx, "hub.verify_token")
	challenge := query(ctx, "hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		logger.Warn("Webhook verification rejected", "mode", mode)
		ctx.Response.SetStatusCode(xhttp.StatusForbidden)
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/plain; charset=utf-8")
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyString(challenge)
}

// Receive enqueues one webhook delivery.
func (h *WebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	start := time.Now()

	// fasthttp reuses request buffers between requests, the body must be
	// copied before it outlives this handler
	body := make([]byte, len(ctx.PostBody()))
	copy(body, ctx.PostBody())

	metadata := map[string]string{
		processor.DeliveryIDMetadataKey: uuid.NewString(),
	}
	if sig := ctx.Request.Header.Peek("X-Hub-Signature-256"); len(sig) > 0 {
		metadata[processor.SignatureMetadataKey] = string(sig)
	}

	if _, err := h.queue.Publish(ctx, body, metadata); err != nil {
		// a 500 makes the provider redeliver later
		logger.Error("Failed to enqueue webhook delivery", "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "temporarily unable to accept delivery")
		return
	}

	prom.ObserveWebhookAckDuration(time.Since(start).Seconds())
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
}
