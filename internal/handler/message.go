package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"fuwamatch/internal/model"
)

// SendMessage handles POST /chat/sendMessage
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	log.Printf("[POST /chat/sendMessage] Request received from %s", r.RemoteAddr)

	// リクエストボディサイズを1MBに制限
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req model.SendMessageData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[POST /chat/sendMessage] ❌ Bad Request: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	msg, err := h.Service.SendMessage(ctx, req.SenderID, req.ReceiverID, req.Content, req.ReplyTo)
	if err != nil {
		log.Printf("[POST /chat/sendMessage] ❌ %v", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	log.Printf("[POST /chat/sendMessage] ✅ Created message: ID=%s, %s → %s", msg.ID, msg.SenderID, msg.ReceiverID)

	// 保存成功後のファンアウト（失敗しても送信は成功扱い）
	h.fanOut(msg)

	writeJSON(w, http.StatusCreated, msg)
}

// ViewMessages handles GET /chat/viewMessages/{userId}/{contactId}.
// 閲覧は相手からの未読を既読化してからスレッドを返す
func (h *Handler) ViewMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]
	contactID := vars["contactId"]
	log.Printf("[GET /chat/viewMessages/%s/%s] Request received from %s", userID, contactID, r.RemoteAddr)

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	forest, err := h.Service.GetConversation(ctx, userID, contactID)
	if err != nil {
		log.Printf("[GET /chat/viewMessages/%s/%s] ❌ %v", userID, contactID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch conversation")
		return
	}

	if forest == nil {
		forest = []*model.ThreadMessage{}
	}

	log.Printf("[GET /chat/viewMessages/%s/%s] ✅ Returned %d threads", userID, contactID, len(forest))

	writeJSON(w, http.StatusOK, forest)
}

// DeleteMessage handles DELETE /chat/deleteMessage/{messageId}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["messageId"]
	log.Printf("[DELETE /chat/deleteMessage/%s] Request received from %s", id, r.RemoteAddr)

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	deleted, err := h.Service.DeleteMessage(ctx, id)
	if err != nil {
		log.Printf("[DELETE /chat/deleteMessage/%s] ❌ %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete message")
		return
	}

	if !deleted {
		log.Printf("[DELETE /chat/deleteMessage/%s] ❌ Not Found", id)
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}

	log.Printf("[DELETE /chat/deleteMessage/%s] ✅ Deleted with direct replies", id)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

// EditMessage handles PUT /chat/editMessage/{messageId}
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["messageId"]
	log.Printf("[PUT /chat/editMessage/%s] Request received from %s", id, r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[PUT /chat/editMessage/%s] ❌ Bad Request: %v", id, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	msg, err := h.Service.EditMessage(ctx, id, req.Content)
	if err != nil {
		log.Printf("[PUT /chat/editMessage/%s] ❌ %v", id, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	if msg == nil {
		log.Printf("[PUT /chat/editMessage/%s] ❌ Not Found", id)
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}

	log.Printf("[PUT /chat/editMessage/%s] ✅ Edited successfully", id)

	writeJSON(w, http.StatusOK, msg)
}

// BlockUser handles POST /chat/block/{blockerId}/{blockedId}
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	blockerID := vars["blockerId"]
	blockedID := vars["blockedId"]
	log.Printf("[POST /chat/block/%s/%s] Request received from %s", blockerID, blockedID, r.RemoteAddr)

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	if err := h.Service.BlockUser(ctx, blockerID, blockedID); err != nil {
		log.Printf("[POST /chat/block/%s/%s] ❌ %v", blockerID, blockedID, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	log.Printf("[POST /chat/block/%s/%s] ✅ User blocked", blockerID, blockedID)

	writeJSON(w, http.StatusCreated, model.BlockEvent{
		Status:    "User blocked",
		BlockerID: blockerID,
		BlockedID: blockedID,
	})
}

// UnblockUser handles POST /chat/unblock/{blockerId}/{blockedId}
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	blockerID := vars["blockerId"]
	blockedID := vars["blockedId"]
	log.Printf("[POST /chat/unblock/%s/%s] Request received from %s", blockerID, blockedID, r.RemoteAddr)

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	if err := h.Service.UnblockUser(ctx, blockerID, blockedID); err != nil {
		log.Printf("[POST /chat/unblock/%s/%s] ❌ %v", blockerID, blockedID, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	log.Printf("[POST /chat/unblock/%s/%s] ✅ User unblocked", blockerID, blockedID)

	writeJSON(w, http.StatusOK, model.BlockEvent{
		Status:    "User unblocked",
		BlockerID: blockerID,
		BlockedID: blockedID,
	})
}
