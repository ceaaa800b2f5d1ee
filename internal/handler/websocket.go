package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"fuwamatch/internal/model"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedMap[origin]
		},
	}
}

// wsSession serializes writes to one connection. 読み取りループと
// ディスパッチャーが同じコネクションに並行で書き込むため
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSession) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSession) Close() error {
	return s.conn.Close()
}

// inboundEvent is a raw client frame; Data is decoded per event type
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandleWebSocket handles GET /ws?userId=...
// 接続はクエリのuserIdの部屋に参加し、切断で自動的に退室する
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	session := &wsSession{conn: conn}
	h.Dispatcher.Join(userID, session)
	log.Printf("[WebSocket] New connection for %s. Sessions: %d", userID, h.Dispatcher.SessionCount(userID))

	defer func() {
		h.Dispatcher.Leave(userID, session)
		conn.Close()
		log.Printf("[WebSocket] %s disconnected. Sessions: %d", userID, h.Dispatcher.SessionCount(userID))
	}()

	for {
		var in inboundEvent
		if err := conn.ReadJSON(&in); err != nil {
			break
		}

		h.handleWSEvent(session, in)
	}
}

// handleWSEvent routes one inbound frame
func (h *Handler) handleWSEvent(session *wsSession, in inboundEvent) {
	switch in.Event {

	case "sendMessage":
		var data model.SendMessageData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			h.wsError(session, "Invalid sendMessage payload")
			return
		}

		ctx, cancel := h.storeCtx(context.Background())
		defer cancel()

		msg, err := h.Service.SendMessage(ctx, data.SenderID, data.ReceiverID, data.Content, data.ReplyTo)
		if err != nil {
			log.Printf("[WebSocket] ❌ sendMessage failed: %v", err)
			h.wsError(session, err.Error())
			return
		}

		log.Printf("[WebSocket] 📢 Message %s sent to %s", msg.ID, msg.ReceiverID)

		// 送信元への確認と受信者へのファンアウト
		session.WriteJSON(model.Event{
			Event: "messageSent",
			Data:  map[string]any{"status": "Message sent", "message": msg},
		})
		h.fanOut(msg)

	case "typing":
		var data model.TypingData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return // タイピングは黙って捨てる
		}
		h.Dispatcher.SignalTyping(data.UserID, data.ContactID)

	case "blockUser":
		var data model.BlockData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			h.wsError(session, "Invalid blockUser payload")
			return
		}

		ctx, cancel := h.storeCtx(context.Background())
		defer cancel()

		if err := h.Service.BlockUser(ctx, data.BlockerID, data.BlockedID); err != nil {
			log.Printf("[WebSocket] ❌ blockUser failed: %v", err)
			h.wsError(session, err.Error())
			return
		}
		h.Dispatcher.NotifyBlocked(session, true, data.BlockerID, data.BlockedID)

	case "unblockUser":
		var data model.BlockData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			h.wsError(session, "Invalid unblockUser payload")
			return
		}

		ctx, cancel := h.storeCtx(context.Background())
		defer cancel()

		if err := h.Service.UnblockUser(ctx, data.BlockerID, data.BlockedID); err != nil {
			log.Printf("[WebSocket] ❌ unblockUser failed: %v", err)
			h.wsError(session, err.Error())
			return
		}
		h.Dispatcher.NotifyBlocked(session, false, data.BlockerID, data.BlockedID)

	default:
		// 未知のイベント（ping等のキープアライブ含む）は無視
	}
}

func (h *Handler) wsError(session *wsSession, message string) {
	session.WriteJSON(model.Event{
		Event: "error",
		Data:  map[string]string{"error": message},
	})
}
