package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) ListAll(ctx context.Context) ([]*model.Message, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

func (m *MockMessageRepository) DeleteByCounterparty(ctx context.Context, phone string) (int64, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).(int64), args.Error(1)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) GetByPhone(ctx context.Context, phoneNumber string) (*model.Contact, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) GetByPhones(ctx context.Context, phoneNumbers []string) (map[string]*model.Contact, error) {
	args := m.Called(ctx, phoneNumbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*model.Contact), args.Error(1)
}

func (m *MockContactRepository) SetPinned(ctx context.Context, phoneNumber string, pinned bool) (*model.Contact, error) {
	args := m.Called(ctx, phoneNumber, pinned)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) MarkRead(ctx context.Context, phoneNumber string, at time.Time) (*model.Contact, error) {
	args := m.Called(ctx, phoneNumber, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendText(ctx context.Context, to, text string) (string, error) {
	args := m.Called(ctx, to, text)
	return args.String(0), args.Error(1)
}

const businessPhone = "+15550000000"

func incoming(providerID, from string, ts time.Time) *model.Message {
	return &model.Message{
		ProviderMessageID: providerID,
		From:              from,
		To:                businessPhone,
		Text:              "msg " + providerID,
		Type:              model.MessageTypeText,
		Direction:         model.DirectionIncoming,
		Timestamp:         ts,
	}
}

func outgoing(providerID, to string, ts time.Time) *model.Message {
	return &model.Message{
		ProviderMessageID: providerID,
		From:              businessPhone,
		To:                to,
		Text:              "msg " + providerID,
		Type:              model.MessageTypeText,
		Direction:         model.DirectionOutgoing,
		Timestamp:         ts,
	}
}

func TestInboxService_Conversations_Grouping(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	contactRepo := new(MockContactRepository)
	svc := NewInboxService(msgRepo, contactRepo, nil, businessPhone)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// incoming and outgoing with +123 must land in the same group
	msgRepo.On("ListAll", mock.Anything).Return([]*model.Message{
		incoming("w1", "+123", base),
		outgoing("w2", "+123", base.Add(time.Minute)),
		incoming("w3", "+456", base.Add(2*time.Minute)),
	}, nil)
	contactRepo.On("GetByPhones", mock.Anything, []string{"+123", "+456"}).
		Return(map[string]*model.Contact{}, nil)

	convs, err := svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)

	byPhone := map[string]*model.Conversation{}
	for _, c := range convs {
		byPhone[c.PhoneNumber] = c
	}

	c := byPhone["+123"]
	require.NotNil(t, c)
	assert.Equal(t, 2, c.TotalMessages)
	assert.Equal(t, "msg w2", c.LastMessage)
	assert.Equal(t, model.DirectionOutgoing, c.LastMessageDirection)
	assert.True(t, c.LastMessageTime.Equal(base.Add(time.Minute)))
	// no contact row: every incoming message counts as unread
	assert.Equal(t, 1, c.UnreadCount)
}

func TestInboxService_Conversations_UnreadCursor(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	contactRepo := new(MockContactRepository)
	svc := NewInboxService(msgRepo, contactRepo, nil, businessPhone)

	cursor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// messages at T-1, T, T+1: only strictly-after counts
	msgRepo.On("ListAll", mock.Anything).Return([]*model.Message{
		incoming("w1", "+123", cursor.Add(-time.Second)),
		incoming("w2", "+123", cursor),
		incoming("w3", "+123", cursor.Add(time.Second)),
	}, nil)
	contactRepo.On("GetByPhones", mock.Anything, []string{"+123"}).
		Return(map[string]*model.Contact{
			"+123": {PhoneNumber: "+123", LastReadAt: &cursor},
		}, nil)

	convs, err := svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestInboxService_Conversations_NoCursorAllUnread(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	contactRepo := new(MockContactRepository)
	svc := NewInboxService(msgRepo, contactRepo, nil, businessPhone)

	base := time.Now()
	msgRepo.On("ListAll", mock.Anything).Return([]*model.Message{
		incoming("w1", "+123", base),
		incoming("w2", "+123", base.Add(time.Second)),
		incoming("w3", "+123", base.Add(2*time.Second)),
	}, nil)
	contactRepo.On("GetByPhones", mock.Anything, mock.Anything).
		Return(map[string]*model.Contact{
			"+123": {PhoneNumber: "+123"}, // contact exists, never read
		}, nil)

	convs, err := svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 3, convs[0].UnreadCount)
}

func TestInboxService_Conversations_SortOrder(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	contactRepo := new(MockContactRepository)
	svc := NewInboxService(msgRepo, contactRepo, nil, businessPhone)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// +111 is pinned but stale, +333 has the most recent message
	msgRepo.On("ListAll", mock.Anything).Return([]*model.Message{
		incoming("w1", "+111", base),
		incoming("w2", "+222", base.Add(time.Hour)),
		incoming("w3", "+333", base.Add(2*time.Hour)),
	}, nil)
	contactRepo.On("GetByPhones", mock.Anything, mock.Anything).
		Return(map[string]*model.Contact{
			"+111": {PhoneNumber: "+111", IsPinned: true},
		}, nil)

	convs, err := svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, "+111", convs[0].PhoneNumber) // pinned beats recency
	assert.Equal(t, "+333", convs[1].PhoneNumber)
	assert.Equal(t, "+222", convs[2].PhoneNumber)
}

func TestInboxService_Conversations_MediaPlaceholder(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	contactRepo := new(MockContactRepository)
	svc := NewInboxService(msgRepo, contactRepo, nil, businessPhone)

	m := incoming("w1", "+123", time.Now())
	m.Text = ""
	m.Type = model.MessageTypeImage
	m.MediaID = "media.9"

	msgRepo.On("ListAll", mock.Anything).Return([]*model.Message{m}, nil)
	contactRepo.On("GetByPhones", mock.Anything, mock.Anything).
		Return(map[string]*model.Contact{}, nil)

	convs, err := svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Media message", convs[0].LastMessage)
	assert.Equal(t, model.MessageTypeImage, convs[0].LastMessageType)
}

func TestInboxService_Messages(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	svc := NewInboxService(msgRepo, nil, nil, businessPhone)

	canonical := "+5511999998888"
	msgRepo.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
		return f.Phone != nil && *f.Phone == canonical && !f.Desc
	})).Return([]*model.Message{}, int64(0), nil)

	// raw form is canonicalized before it reaches the store
	_, _, err := svc.Messages(context.Background(), "55 11 99999 8888")
	require.NoError(t, err)
	msgRepo.AssertExpectations(t)

	_, _, err = svc.Messages(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestInboxService_Send(t *testing.T) {
	t.Run("success persists outgoing row", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		gw := new(MockGateway)
		svc := NewInboxService(msgRepo, nil, gw, businessPhone)

		gw.On("SendText", mock.Anything, "+123", "hello").Return("wamid.out1", nil)
		msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *model.Message) bool {
			return m.ProviderMessageID == "wamid.out1" &&
				m.Direction == model.DirectionOutgoing &&
				m.Status == string(model.DeliveryStatusSent) &&
				m.From == businessPhone && m.To == "+123"
		})).Return(&model.Message{ID: 7, ProviderMessageID: "wamid.out1"}, nil)

		created, err := svc.Send(context.Background(), model.SendMessageRequest{To: "123", Message: "hello"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), created.ID)
	})

	t.Run("gateway failure surfaces and persists nothing", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		gw := new(MockGateway)
		svc := NewInboxService(msgRepo, nil, gw, businessPhone)

		gw.On("SendText", mock.Anything, "+123", "hello").Return("", errors.New("upstream 500"))

		_, err := svc.Send(context.Background(), model.SendMessageRequest{To: "+123", Message: "hello"})
		assert.ErrorIs(t, err, ErrSendFailed)
		msgRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("persist failure after successful send is reported as success", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		gw := new(MockGateway)
		svc := NewInboxService(msgRepo, nil, gw, businessPhone)

		gw.On("SendText", mock.Anything, "+123", "hello").Return("wamid.out2", nil)
		msgRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		msg, err := svc.Send(context.Background(), model.SendMessageRequest{To: "+123", Message: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "wamid.out2", msg.ProviderMessageID)
	})

	t.Run("validation", func(t *testing.T) {
		svc := NewInboxService(nil, nil, nil, businessPhone)
		_, err := svc.Send(context.Background(), model.SendMessageRequest{To: "+123"})
		assert.Error(t, err)
		_, err = svc.Send(context.Background(), model.SendMessageRequest{Message: "hi"})
		assert.Error(t, err)
	})
}

func TestInboxService_UpdateConversation(t *testing.T) {
	t.Run("pin", func(t *testing.T) {
		contactRepo := new(MockContactRepository)
		svc := NewInboxService(nil, contactRepo, nil, businessPhone)

		pinned := true
		contactRepo.On("SetPinned", mock.Anything, "+123", true).
			Return(&model.Contact{PhoneNumber: "+123", IsPinned: true}, nil)

		c, err := svc.UpdateConversation(context.Background(), "123", model.ConversationUpdateRequest{IsPinned: &pinned})
		require.NoError(t, err)
		assert.True(t, c.IsPinned)
	})

	t.Run("mark as read", func(t *testing.T) {
		contactRepo := new(MockContactRepository)
		svc := NewInboxService(nil, contactRepo, nil, businessPhone)

		contactRepo.On("MarkRead", mock.Anything, "+123", mock.AnythingOfType("time.Time")).
			Return(&model.Contact{PhoneNumber: "+123"}, nil)

		_, err := svc.UpdateConversation(context.Background(), "+123", model.ConversationUpdateRequest{MarkAsRead: true})
		require.NoError(t, err)
		contactRepo.AssertExpectations(t)
	})
}

func TestInboxService_DeleteConversation(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	svc := NewInboxService(msgRepo, nil, nil, businessPhone)

	msgRepo.On("DeleteByCounterparty", mock.Anything, "+123").Return(int64(4), nil)

	n, err := svc.DeleteConversation(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
