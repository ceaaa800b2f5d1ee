// Package chat is the single point of business-rule enforcement for
// the messaging engine: validation, block policy, profanity filtering,
// persistence and seen-state transitions.
package chat

import (
	"context"
	"errors"
	"fmt"

	goaway "github.com/TwiN/go-away"

	"fuwamatch/internal/model"
	"fuwamatch/internal/store"
	"fuwamatch/internal/thread"
)

var (
	// ErrInvalidMessage 入力不備（空のID・本文）
	ErrInvalidMessage = errors.New("senderId, receiverId and content are required")
	// ErrReplyTargetNotFound 返信先メッセージが存在しない
	ErrReplyTargetNotFound = errors.New("reply to message not found")
	// ErrSenderBlocked 受信者にブロックされている
	ErrSenderBlocked = errors.New("you have been blocked by this user and cannot send messages")
	// ErrWriteFailure ストレージ書き込み失敗（リトライ可能）
	ErrWriteFailure = errors.New("failed to store message")
)

// Service orchestrates the Message Store and the Block Registry
type Service struct {
	Messages store.MessageStore
	Blocks   store.BlockRegistry
}

// New creates a Service backed by the given store and registry
func New(messages store.MessageStore, blocks store.BlockRegistry) *Service {
	return &Service{Messages: messages, Blocks: blocks}
}

// SendMessage validates, censors and persists a new message.
// 検証かポリシーで弾かれた場合は一切の副作用を残さない
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string, replyTo *string) (*model.Message, error) {
	if senderID == "" || receiverID == "" || content == "" {
		return nil, ErrInvalidMessage
	}

	// 1. 返信先の存在チェック
	if replyTo != nil {
		target, err := s.Messages.FindByID(ctx, *replyTo)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reply target: %w", err)
		}
		if target == nil {
			return nil, ErrReplyTargetNotFound
		}
	}

	// 2. ブロックチェック（受信者→送信者の方向のみ）
	blocked, err := s.Blocks.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check block status: %w", err)
	}
	if blocked {
		return nil, ErrSenderBlocked
	}

	// 3. 禁止語フィルタ（決定的な置換、リクエストは失敗させない）
	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    goaway.Censor(content),
		ReplyTo:    replyTo,
	}

	// 4. 永続化（ここが最後の副作用: 成功か失敗かのどちらかのみ）
	if err := s.Messages.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	return msg, nil
}

// GetConversation marks unseen messages from contactID as seen, then
// returns the bidirectional conversation as a reply forest.
// 閲覧そのものが既読遷移のトリガーになる（副作用を伴う読み取り）
func (s *Service) GetConversation(ctx context.Context, userID, contactID string) ([]*model.ThreadMessage, error) {
	// 既読化はフェッチより先に完了させる（自分の書き込みを読む順序保証）
	if _, err := s.Messages.MarkSeen(ctx, userID, contactID); err != nil {
		return nil, fmt.Errorf("failed to mark messages as seen: %w", err)
	}

	messages, err := s.Messages.FindByParticipants(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	return thread.Build(messages), nil
}

// BlockUser delegates to the Block Registry; errors propagate unchanged
func (s *Service) BlockUser(ctx context.Context, blockerID, blockedID string) error {
	return s.Blocks.Block(ctx, blockerID, blockedID)
}

// UnblockUser delegates to the Block Registry; errors propagate unchanged
func (s *Service) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	return s.Blocks.Unblock(ctx, blockerID, blockedID)
}

// DeleteMessage cascade-deletes the message and its direct replies
func (s *Service) DeleteMessage(ctx context.Context, id string) (bool, error) {
	return s.Messages.DeleteCascade(ctx, id)
}

// EditMessage replaces the content in place. ブロック・返信先の再検証は
// 行わない（送信時チェックは編集では再実行しない）
func (s *Service) EditMessage(ctx context.Context, id, newContent string) (*model.Message, error) {
	if newContent == "" {
		return nil, ErrInvalidMessage
	}
	return s.Messages.Edit(ctx, id, goaway.Censor(newContent))
}
