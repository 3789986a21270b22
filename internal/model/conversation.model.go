package model

import "time"

// Conversation is a derived projection, never persisted. It is rebuilt on
// demand from the message log plus the matching contact row.
type Conversation struct {
	PhoneNumber          string      `json:"phone_number"`
	ContactName          string      `json:"contact_name,omitempty"`
	LastMessage          string      `json:"last_message"`
	LastMessageType      MessageType `json:"last_message_type"`
	LastMessageDirection Direction   `json:"last_message_direction"`
	LastMessageTime      time.Time   `json:"last_message_time"`
	UnreadCount          int         `json:"unread_count"`
	TotalMessages        int         `json:"total_messages"`
	IsPinned             bool        `json:"is_pinned"`
	LastReadAt           *time.Time  `json:"last_read_at,omitempty"`
}
