package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gateway "github.com/nimasrn/whatsapp-inbox/internal/gateways"
	"github.com/nimasrn/whatsapp-inbox/internal/handlers"
	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/internal/processor"
	"github.com/nimasrn/whatsapp-inbox/internal/queue"
	"github.com/nimasrn/whatsapp-inbox/internal/repository"
	"github.com/nimasrn/whatsapp-inbox/internal/services"
	"github.com/nimasrn/whatsapp-inbox/test/fixtures"
	"github.com/nimasrn/whatsapp-inbox/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const appSecret = "e2e-app-secret"

type TestEnvironment struct {
	Redis          *miniredis.Miniredis
	Queue          *queue.Queue
	MessageRepo    *repository.MessageRepository
	ContactRepo    *repository.ContactRepository
	InboxService   *services.InboxService
	WebhookHandler *handlers.WebhookHandler
	Processor      *processor.WebhookDeliveryProcessor
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, redisAdapter := helpers.SetupTestRedis(t)

	q, err := queue.NewQueue(redisAdapter, queue.QueueConfig{
		Name:              "test:webhooks",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	})
	require.NoError(t, err)

	messageRepo := repository.NewMessageRepository(db)
	contactRepo := repository.NewContactRepository(db)

	idempotency := processor.NewIdempotencyService(redisAdapter, processor.DefaultIdempotencyConfig())
	proc := processor.NewWebhookDeliveryProcessor(messageRepo, contactRepo, idempotency, appSecret)

	inboxService := services.NewInboxService(messageRepo, contactRepo, nil, "+"+fixtures.BusinessPhone)
	webhookHandler := handlers.NewWebhookHandler(q, "verify-me")

	return &TestEnvironment{
		Redis:          mr,
		Queue:          q,
		MessageRepo:    messageRepo,
		ContactRepo:    contactRepo,
		InboxService:   inboxService,
		WebhookHandler: webhookHandler,
		Processor:      proc,
	}
}

func (env *TestEnvironment) Cleanup() {
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	time.Sleep(100 * time.Millisecond)
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func postWebhook(env *TestEnvironment, body []byte) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("POST")
	ctx.Request.SetRequestURI("/webhook")
	ctx.Request.SetBody(body)
	ctx.Request.Header.Set("X-Hub-Signature-256", fixtures.Sign(body, appSecret))
	env.WebhookHandler.Receive(ctx)
	return ctx
}

func delivery(id string, body []byte) *queue.Message {
	return &queue.Message{
		ID:   id,
		Data: body,
		Metadata: map[string]string{
			processor.DeliveryIDMetadataKey: id,
			processor.SignatureMetadataKey:  fixtures.Sign(body, appSecret),
		},
		Timestamp: time.Now(),
	}
}

// Full path: HTTP webhook -> queue -> processor -> store -> conversation
// view, with multi-byte text surviving byte for byte.
func TestE2E_WebhookToConversation(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	const text = "olá! 👍🏽 café ☕"

	body := fixtures.IncomingText("wamid.e2e1", "5511999998888", "Maria", text, time.Now())
	httpCtx := postWebhook(env, body)
	require.Equal(t, 200, httpCtx.Response.StatusCode())

	err := env.Queue.Consume(func(ctx context.Context, msg *queue.Message) error {
		return env.Processor.Process(ctx, msg)
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs, _, err := env.InboxService.Messages(ctx, "+5511999998888")
		return err == nil && len(msgs) == 1
	}, 3*time.Second, 50*time.Millisecond)

	msgs, total, err := env.InboxService.Messages(ctx, "+5511999998888")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, text, msgs[0].Text)
	assert.Equal(t, model.MessageTypeText, msgs[0].Type)
	assert.Equal(t, model.DirectionIncoming, msgs[0].Direction)

	convs, err := env.InboxService.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "+5511999998888", convs[0].PhoneNumber)
	assert.Equal(t, "Maria", convs[0].ContactName) // profile name captured
	assert.Equal(t, text, convs[0].LastMessage)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestE2E_DuplicateDeliveryStoredOnce(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	body := fixtures.IncomingText("wamid.dup1", "5511999998888", "Maria", "hello", time.Now())

	// same provider message arrives in two distinct deliveries
	require.NoError(t, env.Processor.Process(ctx, delivery("d-1", body)))
	require.NoError(t, env.Processor.Process(ctx, delivery("d-2", body)))

	_, total, err := env.InboxService.Messages(ctx, "+5511999998888")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestE2E_StatusProgression(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.MessageRepo.Create(ctx, &model.Message{
		ProviderMessageID: "wamid.out1",
		From:              "+" + fixtures.BusinessPhone,
		To:                "+5511999998888",
		Text:              "are you there?",
		Type:              model.MessageTypeText,
		Direction:         model.DirectionOutgoing,
		Status:            string(model.DeliveryStatusSent),
		Timestamp:         time.Now(),
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, env.Processor.Process(ctx,
		delivery("s-1", fixtures.StatusUpdate("wamid.out1", "delivered", "5511999998888", now))))
	require.NoError(t, env.Processor.Process(ctx,
		delivery("s-2", fixtures.StatusUpdate("wamid.out1", "read", "5511999998888", now))))

	msg, err := env.MessageRepo.GetByProviderID(ctx, "wamid.out1")
	require.NoError(t, err)
	assert.Equal(t, string(model.DeliveryStatusRead), msg.Status)
}

func TestE2E_UnreadCountAndMarkRead(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i, wamid := range []string{"wamid.u1", "wamid.u2", "wamid.u3"} {
		body := fixtures.IncomingText(wamid, "5511999998888", "Maria", "msg", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, env.Processor.Process(ctx, delivery(wamid, body)))
	}

	convs, err := env.InboxService.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 3, convs[0].UnreadCount) // never opened, everything unread

	_, err = env.InboxService.UpdateConversation(ctx, "+5511999998888", model.ConversationUpdateRequest{MarkAsRead: true})
	require.NoError(t, err)

	convs, err = env.InboxService.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)
}

func TestE2E_SendThroughGateway(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.sent-e2e"}]}`))
	}))
	defer server.Close()

	client, err := gateway.NewClient(&gateway.Config{
		BaseURL:       server.URL,
		PhoneNumberID: fixtures.PhoneNumberID,
		AccessToken:   "token",
		Timeout:       2 * time.Second,
	})
	require.NoError(t, err)

	inbox := services.NewInboxService(env.MessageRepo, env.ContactRepo, client, "+"+fixtures.BusinessPhone)

	sent, err := inbox.Send(ctx, model.SendMessageRequest{To: "+5511999998888", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.sent-e2e", sent.ProviderMessageID)

	stored, err := env.MessageRepo.GetByProviderID(ctx, "wamid.sent-e2e")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionOutgoing, stored.Direction)
	assert.Equal(t, string(model.DeliveryStatusSent), stored.Status)
}
