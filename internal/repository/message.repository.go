package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrDuplicateMessage is returned when a provider message id was already
	// persisted. Webhook redeliveries hit this; callers treat it as success.
	ErrDuplicateMessage = errors.New("duplicate provider message id")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

// Create persists a message. The insert is an upsert-do-nothing keyed on
// provider_message_id, so at-least-once webhook delivery cannot produce
// duplicate rows; a conflicting insert returns ErrDuplicateMessage.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_message_id"}},
			DoNothing: true,
		}).
		Create(entity)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicateMessage
	}

	return toMessageModel(entity), nil
}

// ListAll loads the full message log, oldest first. The conversation
// aggregator groups it in memory; there is deliberately no pagination here.
func (r *MessageRepository) ListAll(ctx context.Context) ([]*model.Message, error) {
	var entities []*MessageEntity
	if err := r.Read(ctx).WithContext(ctx).
		Order("timestamp ASC, id ASC").
		Find(&entities).Error; err != nil {
		return nil, err
	}
	return toMessageModels(entities), nil
}

// List returns messages matching the filter, ordered by event timestamp.
// Phone matches the counterparty on either side of the conversation.
func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.Phone != nil && *f.Phone != "" {
		q = q.Where("from_number = ? OR to_number = ?", *f.Phone, *f.Phone)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "timestamp"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	q = q.Order(order)
	if f.Limit > 0 {
		offset := f.Offset
		if offset < 0 {
			offset = 0
		}
		q = q.Limit(f.Limit).Offset(offset)
	}

	var entities []*MessageEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}

func (r *MessageRepository) GetByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// UpdateStatusByProviderID applies a provider status callback. Returns the
// number of rows touched; zero rows is not an error, the provider may report
// on messages this system never stored.
func (r *MessageRepository) UpdateStatusByProviderID(ctx context.Context, providerMessageID, status string) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("provider_message_id = ?", providerMessageID).
		Update("status", status)
	return res.RowsAffected, res.Error
}

// DeleteByCounterparty removes every message exchanged with a phone number.
func (r *MessageRepository) DeleteByCounterparty(ctx context.Context, phone string) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).
		Where("from_number = ? OR to_number = ?", phone, phone).
		Delete(&MessageEntity{})
	return res.RowsAffected, res.Error
}
