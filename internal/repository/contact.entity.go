package repository

import (
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
)

type ContactEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	PhoneNumber string     `db:"phone_number" gorm:"column:phone_number;not null;uniqueIndex"`
	Name        string     `db:"name"         gorm:"column:name"`
	Email       string     `db:"email"        gorm:"column:email"`
	Notes       string     `db:"notes"        gorm:"column:notes"`
	IsPinned    bool       `db:"is_pinned"    gorm:"column:is_pinned;not null;default:false"`
	LastReadAt  *time.Time `db:"last_read_at" gorm:"column:last_read_at"`
	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (ContactEntity) TableName() string {
	return "contacts"
}

func toContactEntity(m *model.Contact) *ContactEntity {
	if m == nil {
		return nil
	}
	return &ContactEntity{
		ID:          m.ID,
		PhoneNumber: m.PhoneNumber,
		Name:        m.Name,
		Email:       m.Email,
		Notes:       m.Notes,
		IsPinned:    m.IsPinned,
		LastReadAt:  m.LastReadAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toContactModel(e *ContactEntity) *model.Contact {
	if e == nil {
		return nil
	}
	return &model.Contact{
		ID:          e.ID,
		PhoneNumber: e.PhoneNumber,
		Name:        e.Name,
		Email:       e.Email,
		Notes:       e.Notes,
		IsPinned:    e.IsPinned,
		LastReadAt:  e.LastReadAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toContactModels(entities []*ContactEntity) []*model.Contact {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contact, len(entities))
	for i, e := range entities {
		models[i] = toContactModel(e)
	}
	return models
}
