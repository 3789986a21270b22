package repository

import (
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
)

type MessageEntity struct {
	ID                int64     `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	ProviderMessageID string    `db:"provider_message_id" gorm:"column:provider_message_id;not null;uniqueIndex"`
	FromNumber        string    `db:"from_number"         gorm:"column:from_number;not null;index"`
	ToNumber          string    `db:"to_number"           gorm:"column:to_number;not null;index"`
	Text              string    `db:"text"                gorm:"column:text"`
	Type              string    `db:"type"                gorm:"column:type;not null"`
	Direction         string    `db:"direction"           gorm:"column:direction;not null"`
	Status            string    `db:"status"              gorm:"column:status"`
	MediaID           string    `db:"media_id"            gorm:"column:media_id"`
	Timestamp         time.Time `db:"timestamp"           gorm:"column:timestamp;not null;index"`
	CreatedAt         time.Time `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:                m.ID,
		ProviderMessageID: m.ProviderMessageID,
		FromNumber:        m.From,
		ToNumber:          m.To,
		Text:              m.Text,
		Type:              string(m.Type),
		Direction:         string(m.Direction),
		Status:            m.Status,
		MediaID:           m.MediaID,
		Timestamp:         m.Timestamp,
		CreatedAt:         m.CreatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:                e.ID,
		ProviderMessageID: e.ProviderMessageID,
		From:              e.FromNumber,
		To:                e.ToNumber,
		Text:              e.Text,
		Type:              model.MessageType(e.Type),
		Direction:         model.Direction(e.Direction),
		Status:            e.Status,
		MediaID:           e.MediaID,
		Timestamp:         e.Timestamp,
		CreatedAt:         e.CreatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
