package model

import (
	"errors"
	"strings"
	"time"
)

type Contact struct {
	ID          int64      `json:"id"                     db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	PhoneNumber string     `json:"phone_number"           db:"phone_number" gorm:"column:phone_number;not null;uniqueIndex"`
	Name        string     `json:"name,omitempty"         db:"name"         gorm:"column:name"`
	Email       string     `json:"email,omitempty"        db:"email"        gorm:"column:email"`
	Notes       string     `json:"notes,omitempty"        db:"notes"        gorm:"column:notes"`
	IsPinned    bool       `json:"is_pinned"              db:"is_pinned"    gorm:"column:is_pinned;not null;default:false"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty" db:"last_read_at" gorm:"column:last_read_at"`
	CreatedAt   time.Time  `json:"created_at"             db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at"             db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (Contact) TableName() string { return "contacts" }

// ContactUpsertRequest is the input for creating or editing a contact.
type ContactUpsertRequest struct {
	PhoneNumber string
	Name        string
	Email       string
	Notes       string
}

func (p ContactUpsertRequest) Validate() error {
	if strings.TrimSpace(p.PhoneNumber) == "" {
		return errors.New("phone_number is required")
	}
	return nil
}

// ConversationUpdateRequest carries the admin conversation mutations.
// Nil fields are left untouched.
type ConversationUpdateRequest struct {
	IsPinned   *bool
	MarkAsRead bool
}
