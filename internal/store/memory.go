package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fuwamatch/internal/model"
)

// MemoryMessageStore keeps messages in memory. DB未設定の開発環境と
// テストで使用する
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[string]*model.Message
	order    map[string]int // 挿入順（createdAt同時刻のタイブレーク用）
	nextSeq  int
}

// NewMemoryMessageStore creates an empty in-memory message store
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		messages: make(map[string]*model.Message),
		order:    make(map[string]int),
	}
}

// Insert assigns id and timestamps, then stores a copy of msg
func (s *MemoryMessageStore) Insert(ctx context.Context, msg *model.Message) error {
	now := time.Now().UTC()
	msg.ID = uuid.NewString()
	msg.IsSeen = false
	msg.CreatedAt = now
	msg.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	s.messages[stored.ID] = &stored
	s.order[stored.ID] = s.nextSeq
	s.nextSeq++
	return nil
}

// FindByID returns a copy of the message or nil when absent
func (s *MemoryMessageStore) FindByID(ctx context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	found := *msg
	return &found, nil
}

// FindByParticipants returns both directions of the conversation,
// createdAt ascending with insertion order as tie-break
func (s *MemoryMessageStore) FindByParticipants(ctx context.Context, a, b string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgList []model.Message
	for _, msg := range s.messages {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			msgList = append(msgList, *msg)
		}
	}

	sort.Slice(msgList, func(i, j int) bool {
		if !msgList[i].CreatedAt.Equal(msgList[j].CreatedAt) {
			return msgList[i].CreatedAt.Before(msgList[j].CreatedAt)
		}
		return s.order[msgList[i].ID] < s.order[msgList[j].ID]
	})

	return msgList, nil
}

// MarkSeen marks all unseen messages from otherID to readerID as seen
func (s *MemoryMessageStore) MarkSeen(ctx context.Context, readerID, otherID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	now := time.Now().UTC()
	for _, msg := range s.messages {
		if msg.SenderID == otherID && msg.ReceiverID == readerID && !msg.IsSeen {
			msg.IsSeen = true
			msg.UpdatedAt = now
			affected++
		}
	}
	return affected, nil
}

// DeleteCascade removes the direct replies of id, then id itself
func (s *MemoryMessageStore) DeleteCascade(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return false, nil
	}

	for childID, msg := range s.messages {
		if msg.ReplyTo != nil && *msg.ReplyTo == id {
			delete(s.messages, childID)
			delete(s.order, childID)
		}
	}
	delete(s.messages, id)
	delete(s.order, id)
	return true, nil
}

// Edit replaces the content and refreshes updatedAt
func (s *MemoryMessageStore) Edit(ctx context.Context, id, newContent string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	msg.Content = newContent
	msg.UpdatedAt = time.Now().UTC()

	edited := *msg
	return &edited, nil
}

// MemoryBlockRegistry keeps blocks in memory
type MemoryBlockRegistry struct {
	mu     sync.RWMutex
	blocks map[[2]string]model.Block // key: {blockerId, blockedId}
}

// NewMemoryBlockRegistry creates an empty in-memory block registry
func NewMemoryBlockRegistry() *MemoryBlockRegistry {
	return &MemoryBlockRegistry{
		blocks: make(map[[2]string]model.Block),
	}
}

// IsBlocked is true iff receiverID has blocked senderID
func (r *MemoryBlockRegistry) IsBlocked(ctx context.Context, senderID, receiverID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, blocked := r.blocks[[2]string{receiverID, senderID}]
	return blocked, nil
}

// Block creates a block for the ordered pair
func (r *MemoryBlockRegistry) Block(ctx context.Context, blockerID, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]string{blockerID, blockedID}
	if _, exists := r.blocks[key]; exists {
		return ErrAlreadyBlocked
	}

	r.blocks[key] = model.Block{
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// Unblock deletes the block for the ordered pair
func (r *MemoryBlockRegistry) Unblock(ctx context.Context, blockerID, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]string{blockerID, blockedID}
	if _, exists := r.blocks[key]; !exists {
		return ErrNoActiveBlock
	}

	delete(r.blocks, key)
	return nil
}
