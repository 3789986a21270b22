package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/nimasrn/whatsapp-inbox/internal/config"
	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/nimasrn/whatsapp-inbox/internal/services"
	xhttp "github.com/nimasrn/whatsapp-inbox/pkg/http"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
)

type InboxService interface {
	Conversations(ctx context.Context) ([]*model.Conversation, error)
	Messages(ctx context.Context, rawPhone string) ([]*model.Message, int64, error)
	Send(ctx context.Context, p model.SendMessageRequest) (*model.Message, error)
	UpdateConversation(ctx context.Context, rawPhone string, p model.ConversationUpdateRequest) (*model.Contact, error)
	DeleteConversation(ctx context.Context, rawPhone string) (int64, error)
}

type ConversationHandler struct {
	svc InboxService
}

func RegisterConversationRoutes(e RouteGroup, h *ConversationHandler) {
	e.GET("/conversations", h.ListConversations)
	e.PATCH("/conversations/{phone}", h.UpdateConversation)
	e.DELETE("/conversations/{phone}", h.DeleteConversation)
	e.GET("/messages", h.ListMessages)
	e.POST("/messages", h.SendMessage)
}

func NewConversationHandler(svc InboxService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type sendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type messageListResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

type conversationListResponse struct {
	Items []*model.Conversation `json:"items"`
}

type updateConversationRequest struct {
	IsPinned   *bool `json:"is_pinned"`
	MarkAsRead bool  `json:"mark_as_read"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ConversationHandler) ListConversations(ctx *xhttp.RequestCtx) {
	items, err := h.svc.Conversations(ctx)
	if err != nil {
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, conversationListResponse{Items: items})
}

func (h *ConversationHandler) ListMessages(ctx *xhttp.RequestCtx) {
	phone := query(ctx, "phone")
	if phone == "" {
		writeError(ctx, xhttp.StatusBadRequest, "phone query parameter is required")
		return
	}

	items, total, err := h.svc.Messages(ctx, phone)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPhone) {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, messageListResponse{Items: items, Total: total})
}

func (h *ConversationHandler) SendMessage(ctx *xhttp.RequestCtx) {
	var req sendMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	msg, err := h.svc.Send(ctx, model.SendMessageRequest{To: req.To, Message: req.Message})
	if err != nil {
		if errors.Is(err, services.ErrSendFailed) {
			writeInternalError(ctx, err)
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, msg)
}

func (h *ConversationHandler) UpdateConversation(ctx *xhttp.RequestCtx) {
	phone := param(ctx, "phone")

	var req updateConversationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	contact, err := h.svc.UpdateConversation(ctx, phone, model.ConversationUpdateRequest{
		IsPinned:   req.IsPinned,
		MarkAsRead: req.MarkAsRead,
	})
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

func (h *ConversationHandler) DeleteConversation(ctx *xhttp.RequestCtx) {
	phone := param(ctx, "phone")

	deleted, err := h.svc.DeleteConversation(ctx, phone)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPhone) {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, deleteResponse{Deleted: deleted})
}

/* -------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func param(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

// writeInternalError maps a server-side failure to 5xx. Connection-level
// errors from the store come back as 503 so callers can tell an unreachable
// backend from a bug; the raw error string is exposed only outside
// production.
func writeInternalError(ctx *xhttp.RequestCtx, err error) {
	status := xhttp.StatusInternalServerError
	var netErr net.Error
	if errors.As(err, &netErr) {
		status = xhttp.StatusServiceUnavailable
	}

	logger.Error("Request failed", "path", string(ctx.Path()), "error", err)

	msg := "internal error"
	if config.Get().AppEnv != "production" {
		msg = err.Error()
	}
	writeError(ctx, status, msg)
}
