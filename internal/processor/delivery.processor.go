package processor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/internal/phone"
	"github.com/nimasrn/whatsapp-inbox/internal/queue"
	"github.com/nimasrn/whatsapp-inbox/internal/repository"
	"github.com/nimasrn/whatsapp-inbox/internal/webhook"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
	"github.com/nimasrn/whatsapp-inbox/pkg/prom"
)

// SignatureMetadataKey is the queue metadata key carrying the raw
// X-Hub-Signature-256 header value of the delivery.
const SignatureMetadataKey = "signature"

// DeliveryIDMetadataKey carries the delivery id assigned at enqueue time,
// used for cross-consumer idempotency.
const DeliveryIDMetadataKey = "delivery_id"

type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	UpdateStatusByProviderID(ctx context.Context, providerMessageID, status string) (int64, error)
}

type ContactStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*model.Contact, error)
	Create(ctx context.Context, c *model.Contact) (*model.Contact, error)
}

// WebhookDeliveryProcessor consumes raw webhook deliveries from the queue:
// verify, decode, normalize, persist. The HTTP layer has already
// acknowledged the delivery, so every terminal outcome here must either
// succeed or be safe to drop; only transient persistence errors are
// surfaced to trigger a queue retry.
type WebhookDeliveryProcessor struct {
	messages    MessageStore
	contacts    ContactStore
	idempotency *IdempotencyService
	appSecret   string
}

func NewWebhookDeliveryProcessor(messages MessageStore, contacts ContactStore, idempotency *IdempotencyService, appSecret string) *WebhookDeliveryProcessor {
	return &WebhookDeliveryProcessor{
		messages:    messages,
		contacts:    contacts,
		idempotency: idempotency,
		appSecret:   appSecret,
	}
}

func (p *WebhookDeliveryProcessor) GetType() string {
	return "webhook-delivery"
}

// Process handles one webhook delivery end to end.
func (p *WebhookDeliveryProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	deliveryID := queueMessage.Metadata[DeliveryIDMetadataKey]
	if deliveryID == "" {
		deliveryID = queueMessage.ID
	}

	// Signature check runs against the exact bytes received on the wire.
	// An empty configured secret disables verification, and a delivery that
	// arrived without the header is let through so a provider-side config
	// gap does not silently drop traffic.
	if p.appSecret != "" {
		sig := queueMessage.Metadata[SignatureMetadataKey]
		switch {
		case sig == "":
			logger.Warn("Webhook delivery has no signature header, processing unverified", "delivery_id", deliveryID)
		case !webhook.VerifySignature(queueMessage.Data, sig, p.appSecret):
			logger.Warn("Webhook signature rejected", "delivery_id", deliveryID)
			prom.IncWebhookRejected("signature")
			return nil // forged or corrupted delivery, never retryable
		}
	}

	payload, err := webhook.Decode(queueMessage.Data)
	if err != nil {
		logger.Warn("Webhook payload rejected", "delivery_id", deliveryID, "error", err)
		prom.IncWebhookRejected("decode")
		return nil // malformed bytes won't improve on retry
	}

	if payload.Object != webhook.BusinessAccountObject {
		logger.Info("Ignoring webhook for unrelated object", "delivery_id", deliveryID, "object", payload.Object)
		return nil
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Dropping webhook delivery after max retries", "delivery_id", deliveryID)
			prom.IncWebhookRejected("max_retries")
			return nil // ACK so the queue moves it to the DLQ path
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("delivery locked by another consumer")
		}
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	if err := p.apply(ctx, payload); err != nil {
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark delivery failure", "delivery_id", deliveryID, "error", markErr)
		}
		return err // NACK, retry from queue
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark delivery success", "delivery_id", deliveryID, "error", markErr)
	}
	return nil
}

// apply walks every change in the payload and fans out over its events.
// One failing event makes the whole delivery retryable; duplicate inserts
// are absorbed, so replaying a partially applied delivery is safe.
func (p *WebhookDeliveryProcessor) apply(ctx context.Context, payload *webhook.Payload) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Value == nil {
				continue
			}
			value := change.Value

			names := profileNames(value.Contacts)

			for i := range value.Messages {
				msg := &value.Messages[i]
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := p.applyMessage(ctx, value, msg, names); err != nil {
						record(err)
					}
				}()
			}

			for i := range value.Statuses {
				st := &value.Statuses[i]
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := p.applyStatus(ctx, st); err != nil {
						record(err)
					}
				}()
			}
		}
	}

	wg.Wait()
	return firstErr
}

func (p *WebhookDeliveryProcessor) applyMessage(ctx context.Context, value *webhook.Value, msg *webhook.Message, names map[string]string) error {
	n := webhook.Extract(msg)
	if n.Type == model.MessageTypeUnknown {
		logger.Warn("Unrecognized message kind stored with fallback text", "provider_message_id", msg.ID, "kind", msg.Type)
	}

	from := phone.Canonical(msg.From)
	to := ""
	if value.Metadata != nil {
		to = phone.Canonical(value.Metadata.DisplayPhoneNumber)
	}

	record := &model.Message{
		ProviderMessageID: msg.ID,
		From:              from,
		To:                to,
		Text:              n.Text,
		MediaID:           n.MediaID,
		Type:              n.Type,
		Direction:         model.DirectionIncoming,
		Timestamp:         eventTime(msg.Timestamp),
	}

	created, err := p.messages.Create(ctx, record)
	if errors.Is(err, repository.ErrDuplicateMessage) {
		logger.Debug("Duplicate provider message skipped", "provider_message_id", msg.ID)
		prom.IncWebhookDuplicate()
		return nil
	}
	if err != nil {
		logger.Error("Failed to persist incoming message", "provider_message_id", msg.ID, "error", err)
		return err
	}

	prom.IncWebhookMessageStored(string(record.Type))
	logger.Info("Incoming message stored",
		"provider_message_id", created.ProviderMessageID,
		"from", from,
		"type", record.Type)

	p.rememberProfileName(ctx, from, names[from])
	return nil
}

func (p *WebhookDeliveryProcessor) applyStatus(ctx context.Context, st *webhook.Status) error {
	if st.ID == "" || st.Status == "" {
		logger.Warn("Status update missing id or status, skipped", "provider_message_id", st.ID, "status", st.Status)
		return nil
	}

	status := strings.ToUpper(st.Status)

	rows, err := p.messages.UpdateStatusByProviderID(ctx, st.ID, status)
	if err != nil {
		logger.Error("Failed to apply status update", "provider_message_id", st.ID, "error", err)
		return err
	}
	if rows == 0 {
		// status for a message this deployment never sent
		logger.Debug("Status update matched no message", "provider_message_id", st.ID, "status", status)
		return nil
	}

	prom.IncWebhookStatusApplied(strings.ToLower(status))
	return nil
}

// rememberProfileName stores the sender's WhatsApp profile name for numbers
// that have no contact row yet. Best effort; losing it only loses a display
// name the admin can re-enter.
func (p *WebhookDeliveryProcessor) rememberProfileName(ctx context.Context, phoneNumber, name string) {
	if p.contacts == nil || name == "" || phoneNumber == "" {
		return
	}

	if _, err := p.contacts.GetByPhone(ctx, phoneNumber); !errors.Is(err, repository.ErrContactNotFound) {
		return
	}

	if _, err := p.contacts.Create(ctx, &model.Contact{PhoneNumber: phoneNumber, Name: name}); err != nil {
		logger.Debug("Could not store profile name", "phone", phoneNumber, "error", err)
	}
}

func profileNames(contacts []webhook.Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile != nil && c.Profile.Name != "" {
			names[phone.Canonical(c.WaID)] = c.Profile.Name
		}
	}
	return names
}

// eventTime parses the provider's epoch-seconds timestamp, falling back to
// the receive time when it is absent or unparsable.
func eventTime(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
