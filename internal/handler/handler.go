package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fuwamatch/internal/chat"
	"fuwamatch/internal/config"
	"fuwamatch/internal/dispatch"
	"fuwamatch/internal/model"
	"fuwamatch/internal/publish"
	"fuwamatch/internal/store"
)

// Handler holds application dependencies
type Handler struct {
	Service    *chat.Service
	Dispatcher *dispatch.Dispatcher
	Publisher  publish.Publisher // nilならブローカー再配信なし
	Config     config.Config
}

// New creates a new Handler with the given dependencies
func New(service *chat.Service, dispatcher *dispatch.Dispatcher, publisher publish.Publisher, cfg config.Config) *Handler {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}

	return &Handler{
		Service:    service,
		Dispatcher: dispatcher,
		Publisher:  publisher,
		Config:     cfg,
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API
	r.HandleFunc("/chat/sendMessage", h.SendMessage).Methods("POST")
	r.HandleFunc("/chat/viewMessages/{userId}/{contactId}", h.ViewMessages).Methods("GET")
	r.HandleFunc("/chat/deleteMessage/{messageId}", h.DeleteMessage).Methods("DELETE")
	r.HandleFunc("/chat/editMessage/{messageId}", h.EditMessage).Methods("PUT")
	r.HandleFunc("/chat/block/{blockerId}/{blockedId}", h.BlockUser).Methods("POST")
	r.HandleFunc("/chat/unblock/{blockerId}/{blockedId}", h.UnblockUser).Methods("POST")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	return r
}

// storeCtx derives a bounded context for store calls
func (h *Handler) storeCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, h.Config.StoreTimeout)
}

// fanOut runs the post-persist side effects: live delivery to the
// recipient and best-effort broker republication. どちらが失敗しても
// 送信自体は成功として扱う（保存された時点で送信完了）
func (h *Handler) fanOut(msg *model.Message) {
	h.Dispatcher.Deliver(msg.ReceiverID, msg)

	if h.Publisher == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.Config.PublishTimeout)
		defer cancel()

		if err := h.Publisher.Publish(ctx, publish.Exchange, publish.RoutingKeyNewMessage, msg); err != nil {
			log.Printf("[Publisher] ⚠️  Failed to republish message %s: %v", msg.ID, err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps service errors to HTTP status codes:
// 検証・ポリシーエラーはクライアント起因、ストレージエラーはリトライ可能
func statusForError(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrReplyTargetNotFound):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrSenderBlocked):
		return http.StatusForbidden
	case errors.Is(err, store.ErrAlreadyBlocked):
		return http.StatusConflict
	case errors.Is(err, store.ErrNoActiveBlock):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
