package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/internal/phone"
	"github.com/nimasrn/whatsapp-inbox/internal/repository"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrSendFailed   = errors.New("provider send failed")
	ErrNotFound     = errors.New("not found")
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	ListAll(ctx context.Context) ([]*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
	DeleteByCounterparty(ctx context.Context, phone string) (int64, error)
}

type ContactRepository interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*model.Contact, error)
	GetByPhones(ctx context.Context, phoneNumbers []string) (map[string]*model.Contact, error)
	SetPinned(ctx context.Context, phoneNumber string, pinned bool) (*model.Contact, error)
	MarkRead(ctx context.Context, phoneNumber string, at time.Time) (*model.Contact, error)
}

// ProviderGateway is the outgoing-send capability of the WhatsApp Cloud API.
type ProviderGateway interface {
	SendText(ctx context.Context, to, text string) (providerMessageID string, err error)
}

// InboxService derives conversation views from the flat message log and
// drives the admin-side actions on them.
type InboxService struct {
	messageRepo   MessageRepository
	contactRepo   ContactRepository
	gateway       ProviderGateway
	businessPhone string
	now           func() time.Time
}

func NewInboxService(messageRepo MessageRepository, contactRepo ContactRepository, gateway ProviderGateway, businessPhone string) *InboxService {
	return &InboxService{
		messageRepo:   messageRepo,
		contactRepo:   contactRepo,
		gateway:       gateway,
		businessPhone: phone.Canonical(businessPhone),
		now:           time.Now,
	}
}

// Conversations builds the conversation list: one entry per counterparty,
// pinned first, then most recent activity first.
func (s *InboxService) Conversations(ctx context.Context) ([]*model.Conversation, error) {
	msgs, err := s.messageRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*model.Message)
	order := make([]string, 0)
	for _, m := range msgs {
		key := phone.Canonical(m.Counterparty())
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	contacts, err := s.contactRepo.GetByPhones(ctx, order)
	if err != nil {
		return nil, err
	}

	conversations := make([]*model.Conversation, 0, len(order))
	for _, key := range order {
		group := groups[key]
		contact := contacts[key]
		conversations = append(conversations, buildConversation(key, group, contact))
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		if conversations[i].IsPinned != conversations[j].IsPinned {
			return conversations[i].IsPinned
		}
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})

	return conversations, nil
}

// buildConversation folds one counterparty's messages (ascending by
// timestamp) and its optional contact row into a projection.
func buildConversation(key string, group []*model.Message, contact *model.Contact) *model.Conversation {
	last := group[len(group)-1]

	lastText := last.Text
	if lastText == "" {
		lastText = "Media message"
	}

	c := &model.Conversation{
		PhoneNumber:          key,
		LastMessage:          lastText,
		LastMessageType:      last.Type,
		LastMessageDirection: last.Direction,
		LastMessageTime:      last.Timestamp,
		TotalMessages:        len(group),
	}

	var readCursor *time.Time
	if contact != nil {
		c.ContactName = contact.Name
		c.IsPinned = contact.IsPinned
		c.LastReadAt = contact.LastReadAt
		readCursor = contact.LastReadAt
	}

	for _, m := range group {
		if m.Direction != model.DirectionIncoming {
			continue
		}
		// no read cursor means the conversation was never opened
		if readCursor == nil || m.Timestamp.After(*readCursor) {
			c.UnreadCount++
		}
	}

	return c
}

// Messages returns the full thread with one counterparty, oldest first.
func (s *InboxService) Messages(ctx context.Context, rawPhone string) ([]*model.Message, int64, error) {
	p := phone.Canonical(rawPhone)
	if p == "" {
		return nil, 0, ErrInvalidPhone
	}
	return s.messageRepo.List(ctx, model.MessageFilter{Phone: &p})
}

// Send pushes a text message through the provider and records it. Provider
// delivery is authoritative: when the send succeeds but the local insert
// fails, the failure is logged and the send still reported as successful.
func (s *InboxService) Send(ctx context.Context, p model.SendMessageRequest) (*model.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	to := phone.Canonical(p.To)
	if to == "" {
		return nil, ErrInvalidPhone
	}

	providerID, err := s.gateway.SendText(ctx, to, p.Message)
	if err != nil {
		return nil, errors.Join(ErrSendFailed, err)
	}
	if providerID == "" {
		providerID = "local." + uuid.NewString()
	}

	msg := &model.Message{
		ProviderMessageID: providerID,
		From:              s.businessPhone,
		To:                to,
		Text:              p.Message,
		Type:              model.MessageTypeText,
		Direction:         model.DirectionOutgoing,
		Status:            string(model.DeliveryStatusSent),
		Timestamp:         s.now(),
	}

	created, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		logger.Error("outgoing message sent but not persisted",
			"provider_message_id", providerID, "to", to, "error", err)
		return msg, nil
	}
	return created, nil
}

// UpdateConversation applies pin/unpin and mark-as-read mutations to the
// counterparty's contact row, creating it when absent.
func (s *InboxService) UpdateConversation(ctx context.Context, rawPhone string, p model.ConversationUpdateRequest) (*model.Contact, error) {
	key := phone.Canonical(rawPhone)
	if key == "" {
		return nil, ErrInvalidPhone
	}

	var (
		contact *model.Contact
		err     error
	)

	if p.IsPinned != nil {
		contact, err = s.contactRepo.SetPinned(ctx, key, *p.IsPinned)
		if err != nil {
			return nil, err
		}
	}
	if p.MarkAsRead {
		contact, err = s.contactRepo.MarkRead(ctx, key, s.now())
		if err != nil {
			return nil, err
		}
	}

	if contact == nil {
		contact, err = s.contactRepo.GetByPhone(ctx, key)
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}
	return contact, nil
}

// DeleteConversation irreversibly removes every message exchanged with the
// counterparty. The contact row survives.
func (s *InboxService) DeleteConversation(ctx context.Context, rawPhone string) (int64, error) {
	key := phone.Canonical(rawPhone)
	if key == "" {
		return 0, ErrInvalidPhone
	}
	return s.messageRepo.DeleteByCounterparty(ctx, key)
}
