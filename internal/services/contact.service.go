package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/internal/phone"
	"github.com/nimasrn/whatsapp-inbox/internal/repository"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
)

var ErrEmptyImport = errors.New("csv contains no importable rows")

type ContactStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*model.Contact, error)
	List(ctx context.Context) ([]*model.Contact, error)
	Create(ctx context.Context, c *model.Contact) (*model.Contact, error)
	Update(ctx context.Context, c *model.Contact) (*model.Contact, error)
	Delete(ctx context.Context, phoneNumber string) error
}

type ContactService struct {
	repo ContactStore
}

func NewContactService(repo ContactStore) *ContactService {
	return &ContactService{repo: repo}
}

func (s *ContactService) List(ctx context.Context) ([]*model.Contact, error) {
	return s.repo.List(ctx)
}

func (s *ContactService) Get(ctx context.Context, rawPhone string) (*model.Contact, error) {
	key := phone.Canonical(rawPhone)
	if key == "" {
		return nil, ErrInvalidPhone
	}
	c, err := s.repo.GetByPhone(ctx, key)
	if errors.Is(err, repository.ErrContactNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// Upsert creates the contact or, when the canonical number already exists,
// overwrites its admin-editable fields.
func (s *ContactService) Upsert(ctx context.Context, p model.ContactUpsertRequest) (*model.Contact, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := phone.Canonical(p.PhoneNumber)
	if key == "" {
		return nil, ErrInvalidPhone
	}

	contact := &model.Contact{
		PhoneNumber: key,
		Name:        strings.TrimSpace(p.Name),
		Email:       strings.TrimSpace(p.Email),
		Notes:       strings.TrimSpace(p.Notes),
	}

	_, err := s.repo.GetByPhone(ctx, key)
	if errors.Is(err, repository.ErrContactNotFound) {
		return s.repo.Create(ctx, contact)
	}
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, contact)
}

func (s *ContactService) Delete(ctx context.Context, rawPhone string) error {
	key := phone.Canonical(rawPhone)
	if key == "" {
		return ErrInvalidPhone
	}
	err := s.repo.Delete(ctx, key)
	if errors.Is(err, repository.ErrContactNotFound) {
		return ErrNotFound
	}
	return err
}

// ImportCSV ingests contacts from a CSV stream. Expected columns:
// phone_number,name,email,notes; a header row is detected and skipped.
// Rows that fail individually are counted and logged, not fatal.
func (s *ContactService) ImportCSV(ctx context.Context, r io.Reader) (imported, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first := true
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return imported, skipped, readErr
		}

		if first {
			first = false
			if isCSVHeader(record) {
				continue
			}
		}

		if len(record) == 0 || phone.Canonical(record[0]) == "" {
			skipped++
			continue
		}

		req := model.ContactUpsertRequest{PhoneNumber: record[0]}
		if len(record) > 1 {
			req.Name = record[1]
		}
		if len(record) > 2 {
			req.Email = record[2]
		}
		if len(record) > 3 {
			req.Notes = record[3]
		}

		if _, upErr := s.Upsert(ctx, req); upErr != nil {
			logger.Warn("csv row skipped", "phone", record[0], "error", upErr)
			skipped++
			continue
		}
		imported++
	}

	if imported == 0 && skipped == 0 {
		return 0, 0, ErrEmptyImport
	}
	return imported, skipped, nil
}

func isCSVHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	head := strings.ToLower(strings.TrimSpace(record[0]))
	return head == "phone" || head == "phone_number" || head == "phonenumber"
}
