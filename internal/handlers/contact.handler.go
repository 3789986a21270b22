package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/internal/services"
	xhttp "github.com/nimasrn/whatsapp-inbox/pkg/http"
)

type ContactService interface {
	List(ctx context.Context) ([]*model.Contact, error)
	Get(ctx context.Context, rawPhone string) (*model.Contact, error)
	Upsert(ctx context.Context, p model.ContactUpsertRequest) (*model.Contact, error)
	Delete(ctx context.Context, rawPhone string) error
	ImportCSV(ctx context.Context, r io.Reader) (imported, skipped int, err error)
}

type ContactHandler struct {
	svc ContactService
}

func RegisterContactRoutes(e RouteGroup, h *ContactHandler) {
	e.GET("/contacts", h.ListContacts)
	e.GET("/contacts/{phone}", h.GetContact)
	e.POST("/contacts", h.UpsertContact)
	e.DELETE("/contacts/{phone}", h.DeleteContact)
	e.POST("/contacts/import-csv", h.ImportContacts)
}

func NewContactHandler(svc ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

type upsertContactRequest struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Notes       string `json:"notes"`
}

type contactListResponse struct {
	Items []*model.Contact `json:"items"`
}

type importResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ContactHandler) ListContacts(ctx *xhttp.RequestCtx) {
	items, err := h.svc.List(ctx)
	if err != nil {
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contactListResponse{Items: items})
}

func (h *ContactHandler) GetContact(ctx *xhttp.RequestCtx) {
	contact, err := h.svc.Get(ctx, param(ctx, "phone"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPhone):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		default:
			writeInternalError(ctx, err)
		}
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contact)
}

func (h *ContactHandler) UpsertContact(ctx *xhttp.RequestCtx) {
	var req upsertContactRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	contact, err := h.svc.Upsert(ctx, model.ContactUpsertRequest{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Email:       req.Email,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, contact)
}

func (h *ContactHandler) DeleteContact(ctx *xhttp.RequestCtx) {
	if err := h.svc.Delete(ctx, param(ctx, "phone")); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPhone):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		default:
			writeInternalError(ctx, err)
		}
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusOK)
}

// ImportContacts ingests a CSV document posted as the request body.
func (h *ContactHandler) ImportContacts(ctx *xhttp.RequestCtx) {
	imported, skipped, err := h.svc.ImportCSV(ctx, bytes.NewReader(ctx.PostBody()))
	if err != nil {
		if errors.Is(err, services.ErrEmptyImport) {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, importResponse{Imported: imported, Skipped: skipped})
}
