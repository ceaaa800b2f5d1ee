// Package dispatch maps live WebSocket sessions to user identities and
// fans events out to them.
package dispatch

import (
	"hash/fnv"
	"log"
	"sync"
	"time"

	"fuwamatch/internal/model"
)

// DefaultDebounce is the typing collapse window
const DefaultDebounce = 500 * time.Millisecond

// shardCount で部屋マップを分割し、無関係な会話同士が
// グローバルロックで直列化されないようにする
const shardCount = 16

// Session is a single live transport connection for one user.
// *websocket.Conn satisfies it.
type Session interface {
	WriteJSON(v any) error
	Close() error
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[Session]struct{}
}

// Dispatcher holds the process-wide registry of live sessions per user
type Dispatcher struct {
	shards [shardCount]*roomShard

	// タイピングデバウンスは(送信者,相手)ペアごとに独立したタイマーを持つ。
	// プロセス全体で1本のタイマーを共有すると並行タイパー間で混線する
	typingMu     sync.Mutex
	typingTimers map[string]*time.Timer

	// Debounce is the typing collapse window; tests shorten it
	Debounce time.Duration
}

// New creates a Dispatcher with empty rooms
func New() *Dispatcher {
	d := &Dispatcher{
		typingTimers: make(map[string]*time.Timer),
		Debounce:     DefaultDebounce,
	}
	for i := range d.shards {
		d.shards[i] = &roomShard{rooms: make(map[string]map[Session]struct{})}
	}
	return d
}

func (d *Dispatcher) shard(userID string) *roomShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return d.shards[h.Sum32()%shardCount]
}

// Join registers a session under userID
func (d *Dispatcher) Join(userID string, s Session) {
	sh := d.shard(userID)
	sh.mu.Lock()
	if sh.rooms[userID] == nil {
		sh.rooms[userID] = make(map[Session]struct{})
	}
	sh.rooms[userID][s] = struct{}{}
	sh.mu.Unlock()
}

// Leave deregisters a session; called on transport disconnect
func (d *Dispatcher) Leave(userID string, s Session) {
	sh := d.shard(userID)
	sh.mu.Lock()
	if set, ok := sh.rooms[userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(sh.rooms, userID)
		}
	}
	sh.mu.Unlock()
}

// SessionCount returns the number of live sessions for userID
func (d *Dispatcher) SessionCount(userID string) int {
	sh := d.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.rooms[userID])
}

// emit writes an event to every live session of userID. セッションの
// スナップショットを取ってからロックを外し、書き込みに失敗した
// セッションだけ後から削除する
func (d *Dispatcher) emit(userID string, event model.Event) {
	sh := d.shard(userID)

	sh.mu.RLock()
	snapshot := make([]Session, 0, len(sh.rooms[userID]))
	for s := range sh.rooms[userID] {
		snapshot = append(snapshot, s)
	}
	sh.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.WriteJSON(event); err != nil {
			log.Printf("[WebSocket] ❌ Write to %s failed, dropping session: %v", userID, err)
			s.Close()
			d.Leave(userID, s)
		}
	}
}

// Deliver pushes a newMessage event to the recipient's live sessions.
// 受信者がオフラインならno-op（メッセージは閲覧APIで取得できる）
func (d *Dispatcher) Deliver(recipientID string, msg *model.Message) {
	d.emit(recipientID, model.Event{Event: "newMessage", Data: msg})
}

// NotifyBlocked confirms a block or unblock to the session that
// requested it, not to the other party
func (d *Dispatcher) NotifyBlocked(s Session, blocked bool, blockerID, blockedID string) {
	event, status := "userBlocked", "User blocked"
	if !blocked {
		event, status = "userUnblocked", "User unblocked"
	}

	err := s.WriteJSON(model.Event{
		Event: event,
		Data: model.BlockEvent{
			Status:    status,
			BlockerID: blockerID,
			BlockedID: blockedID,
		},
	})
	if err != nil {
		log.Printf("[WebSocket] ❌ Block confirmation write failed: %v", err)
	}
}

// SignalTyping relays a typing event to the contact's room after the
// debounce window. 同一ペアからの連続シグナルはタイマーをリセットして
// 1回の中継にまとめる（中間シグナルの取りこぼしは許容）
func (d *Dispatcher) SignalTyping(fromUserID, toContactID string) {
	key := fromUserID + "\x00" + toContactID

	d.typingMu.Lock()
	defer d.typingMu.Unlock()

	if timer, ok := d.typingTimers[key]; ok {
		timer.Reset(d.Debounce)
		return
	}

	d.typingTimers[key] = time.AfterFunc(d.Debounce, func() {
		d.typingMu.Lock()
		delete(d.typingTimers, key)
		d.typingMu.Unlock()

		d.emit(toContactID, model.Event{
			Event: "typing",
			Data:  model.TypingEvent{UserID: fromUserID},
		})
	})
}
