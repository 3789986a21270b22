package model

import (
	"errors"
	"strings"
	"time"
)

// MessageType is the normalized kind of a WhatsApp message.
type MessageType string

const (
	MessageTypeText        MessageType = "TEXT"
	MessageTypeImage       MessageType = "IMAGE"
	MessageTypeDocument    MessageType = "DOCUMENT"
	MessageTypeAudio       MessageType = "AUDIO"
	MessageTypeVideo       MessageType = "VIDEO"
	MessageTypeSticker     MessageType = "STICKER"
	MessageTypeReaction    MessageType = "REACTION"
	MessageTypeInteractive MessageType = "INTERACTIVE"
	MessageTypeLocation    MessageType = "LOCATION"
	MessageTypeContacts    MessageType = "CONTACTS"
	MessageTypeSystem      MessageType = "SYSTEM"
	MessageTypeUnknown     MessageType = "UNKNOWN"
)

// Direction tells whether the business received or sent the message.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// Delivery status values reported by the provider for outgoing messages.
type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "SENT"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusRead      DeliveryStatus = "READ"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

type Message struct {
	ID                int64       `json:"id"                  db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	ProviderMessageID string      `json:"provider_message_id" db:"provider_message_id" gorm:"column:provider_message_id;not null;uniqueIndex"`
	From              string      `json:"from"                db:"from_number"         gorm:"column:from_number;not null;index"`
	To                string      `json:"to"                  db:"to_number"           gorm:"column:to_number;not null;index"`
	Text              string      `json:"text"                db:"text"                gorm:"column:text"`
	Type              MessageType `json:"type"                db:"type"                gorm:"column:type;not null"`
	Direction         Direction   `json:"direction"           db:"direction"           gorm:"column:direction;not null"`
	Status            string      `json:"status,omitempty"    db:"status"              gorm:"column:status"`
	MediaID           string      `json:"media_id,omitempty"  db:"media_id"            gorm:"column:media_id"` // provider media handle, not a URL
	Timestamp         time.Time   `json:"timestamp"           db:"timestamp"           gorm:"column:timestamp;not null;index"`
	CreatedAt         time.Time   `json:"created_at"          db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (Message) TableName() string { return "messages" }

// Counterparty is the external side of the conversation this message
// belongs to.
func (m *Message) Counterparty() string {
	if m.Direction == DirectionOutgoing {
		return m.To
	}
	return m.From
}

// SendMessageRequest is the input for the admin send action.
type SendMessageRequest struct {
	To      string
	Message string
}

func (p SendMessageRequest) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return errors.New("to is required")
	}
	if strings.TrimSpace(p.Message) == "" {
		return errors.New("message is required")
	}
	return nil
}

// MessageFilter controls message list queries.
type MessageFilter struct {
	Phone  *string // counterparty, canonical form
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
	Desc   bool // order by timestamp
}
