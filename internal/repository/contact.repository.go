package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrContactNotFound = errors.New("contact not found")
)

type ContactRepository struct {
	*pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{
		db,
	}
}

func (r *ContactRepository) GetByPhone(ctx context.Context, phoneNumber string) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

// GetByPhones loads contacts for a set of phone numbers, keyed by number.
// Numbers without a contact row are simply absent from the result.
func (r *ContactRepository) GetByPhones(ctx context.Context, phoneNumbers []string) (map[string]*model.Contact, error) {
	out := make(map[string]*model.Contact, len(phoneNumbers))
	if len(phoneNumbers) == 0 {
		return out, nil
	}

	var entities []*ContactEntity
	if err := r.Read(ctx).WithContext(ctx).
		Where("phone_number IN ?", phoneNumbers).
		Find(&entities).Error; err != nil {
		return nil, err
	}

	for _, e := range entities {
		out[e.PhoneNumber] = toContactModel(e)
	}
	return out, nil
}

func (r *ContactRepository) List(ctx context.Context) ([]*model.Contact, error) {
	var entities []*ContactEntity
	if err := r.Read(ctx).WithContext(ctx).
		Order("phone_number ASC").
		Find(&entities).Error; err != nil {
		return nil, err
	}
	return toContactModels(entities), nil
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	entity := toContactEntity(c)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toContactModel(entity), nil
}

// Update overwrites the admin-editable fields of an existing contact.
func (r *ContactRepository) Update(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("phone_number = ?", c.PhoneNumber).
		Updates(map[string]interface{}{
			"name":  c.Name,
			"email": c.Email,
			"notes": c.Notes,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrContactNotFound
	}
	return r.GetByPhone(ctx, c.PhoneNumber)
}

// SetPinned creates-or-updates the contact row and flips the pin flag.
// The find-then-write pair is intentionally not transactional; the unique
// index on phone_number turns a create/create race into an error instead of
// a duplicate row.
func (r *ContactRepository) SetPinned(ctx context.Context, phoneNumber string, pinned bool) (*model.Contact, error) {
	return r.createOrUpdate(ctx, phoneNumber, map[string]interface{}{"is_pinned": pinned})
}

// MarkRead moves the read cursor for a counterparty to the given time.
func (r *ContactRepository) MarkRead(ctx context.Context, phoneNumber string, at time.Time) (*model.Contact, error) {
	return r.createOrUpdate(ctx, phoneNumber, map[string]interface{}{"last_read_at": at})
}

func (r *ContactRepository) createOrUpdate(ctx context.Context, phoneNumber string, values map[string]interface{}) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		First(&entity).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		entity = ContactEntity{PhoneNumber: phoneNumber}
		applyContactValues(&entity, values)
		if err := r.Write(ctx).WithContext(ctx).Create(&entity).Error; err != nil {
			return nil, err
		}
		return toContactModel(&entity), nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("phone_number = ?", phoneNumber).
		Updates(values).Error; err != nil {
		return nil, err
	}
	return r.GetByPhone(ctx, phoneNumber)
}

func applyContactValues(e *ContactEntity, values map[string]interface{}) {
	if v, ok := values["is_pinned"].(bool); ok {
		e.IsPinned = v
	}
	if v, ok := values["last_read_at"].(time.Time); ok {
		t := v
		e.LastReadAt = &t
	}
}

func (r *ContactRepository) Delete(ctx context.Context, phoneNumber string) error {
	res := r.Write(ctx).WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		Delete(&ContactEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}
